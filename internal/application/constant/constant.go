package constant

// slog attribute keys used across the app.
const (
	Error      = "error"
	RoomKey    = "room_key"
	ConnID     = "conn_id"
	UserID     = "user_id"
	SnapshotID = "snapshot_id"
	CommentID  = "comment_id"
)

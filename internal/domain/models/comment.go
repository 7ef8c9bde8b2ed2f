package models

import "time"

// Comment is the metadata record of a component-anchored comment thread.
// The resolved state is not stored here: it is derived from the latest
// ResolveEvent in the comment's event log, so concurrent toggles merge
// instead of overwriting each other.
type Comment struct {
	ID          string   `json:"id"`
	ComponentID string   `json:"componentId"`
	Position    Position `json:"position"`

	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Reply is one entry of a comment's ordered reply thread.
type Reply struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	ResolveActionResolve = "resolve"
	ResolveActionReopen  = "reopen"
)

// ResolveEvent is one entry of a comment's append-only resolve/reopen log.
type ResolveEvent struct {
	Action string    `json:"action"`
	Actor  string    `json:"actor"`
	At     time.Time `json:"at"`
}

// CommentView is a comment joined with its derived state and thread,
// as returned to clients.
type CommentView struct {
	Comment

	Resolved   bool       `json:"resolved"`
	ResolvedBy string     `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`

	Replies []Reply `json:"replies"`
}

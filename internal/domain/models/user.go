package models

// UserInfo is the display identity a client presents when it connects.
// It is echoed back to the room in user lists, presence frames and master
// announcements; the relay never verifies it beyond non-emptiness.
type UserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

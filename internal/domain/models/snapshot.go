package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Snapshot is an immutable, named full encoding of a room's document state.
// State is opaque to the relay; only the merge engine can interpret it.
type Snapshot struct {
	ID          string    `json:"id" db:"id"`
	RoomKey     string    `json:"roomKey" db:"room_key"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	CreatedBy   string    `json:"createdBy" db:"created_by"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`

	State []byte `json:"-" db:"state"`
}

// SnapshotMeta is a Snapshot without its state blob, for listings.
type SnapshotMeta struct {
	ID          string    `json:"id" db:"id"`
	RoomKey     string    `json:"roomKey" db:"room_key"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	CreatedBy   string    `json:"createdBy" db:"created_by"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// NewSnapshotID derives an id from the current time plus random bytes, so
// lexicographic order of ids matches creation order.
func NewSnapshotID(now time.Time) string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)

	return fmt.Sprintf("%013d-%s", now.UnixMilli(), hex.EncodeToString(buf))
}

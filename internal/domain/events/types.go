package events

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/fivepointers/pagerelay/internal/domain/models"
	"github.com/fivepointers/pagerelay/internal/domain/runtime"
)

// Frame is the JSON envelope of every non-binary websocket message.
// Binary messages are opaque document updates and carry no envelope.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Frame types sent by the server.
const (
	TypeConnection    = "connection"
	TypeUserList      = "user-list"
	TypeMasterChanged = "master-changed"
	TypePresence      = "presence"
	TypePong          = "pong"
)

// Frame types accepted from clients.
const (
	TypePresenceUpdate = "presence"
	TypePing           = "ping"
)

func NewFrame(frameType string, data any) (Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}

	return Frame{Type: frameType, Data: raw}, nil
}

// ConnectionAck confirms admission to a room.
type ConnectionAck struct {
	Status    string    `json:"status"`
	RoomKey   string    `json:"roomId"`
	ConnID    uuid.UUID `json:"connId"`
	JoinSeq   int64     `json:"joinSeq"`
	Timestamp int64     `json:"timestamp"`
}

// UserListEvent carries the full member list, ascending by join sequence.
type UserListEvent struct {
	Users []runtime.Member `json:"users"`
}

// MasterChangedEvent announces the room's current master.
type MasterChangedEvent struct {
	ConnID uuid.UUID       `json:"connId"`
	User   models.UserInfo `json:"user"`
}

// PresenceUpdate is the awareness record of a single connection. State is
// an arbitrary small object (cursor, selection, chat bubble, typing flag);
// the server stores and forwards it without interpretation.
type PresenceUpdate struct {
	ConnID uuid.UUID       `json:"connId,omitempty"`
	User   models.UserInfo `json:"user,omitempty"`
	State  json.RawMessage `json:"state"`
}

// PongEvent answers an application-level ping.
type PongEvent struct {
	Timestamp int64 `json:"timestamp"`
}

package runtime

import (
	"time"

	"github.com/google/uuid"

	"github.com/fivepointers/pagerelay/internal/domain/models"
)

// Member is a live connection admitted into a room. The registry owns it;
// everything else refers to it by ConnID only.
type Member struct {
	ConnID  uuid.UUID       `json:"connId"`
	JoinSeq int64           `json:"joinSeq"`
	User    models.UserInfo `json:"user"`

	JoinedAt time.Time `json:"joinedAt"`
	LastSeen time.Time `json:"-"`
}

// RoomPhase gates what the relay may do with a room's traffic.
type RoomPhase int32

const (
	PhaseLive RoomPhase = iota
	PhaseCapturing
	PhaseRestoring
)

func (p RoomPhase) String() string {
	switch p {
	case PhaseLive:
		return "live"
	case PhaseCapturing:
		return "capturing"
	case PhaseRestoring:
		return "restoring"
	default:
		return "unknown"
	}
}

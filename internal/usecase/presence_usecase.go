package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/fivepointers/pagerelay/internal/application/metric"
	"github.com/fivepointers/pagerelay/internal/domain/events"
	"github.com/fivepointers/pagerelay/internal/infra/adapters/memory"
)

// PresenceUsecase is the ephemeral awareness channel: last-write-wins
// records per connection (cursor, selection, chat bubble, typing flag),
// broadcast to everyone else in the room. Logically separate from the
// document channel so clients can tell "document changed" from "someone
// moved their cursor".
type PresenceUsecase interface {
	HandleUpdate(ctx context.Context, roomKey string, senderID uuid.UUID, state json.RawMessage) error
}

type presenceUsecase struct {
	registry memory.RoomRegistry
	presence memory.PresenceRepository
	relay    RelayUsecase
}

func NewPresenceUsecase(
	registry memory.RoomRegistry,
	presence memory.PresenceRepository,
	relay RelayUsecase,
) PresenceUsecase {
	return &presenceUsecase{
		registry: registry,
		presence: presence,
		relay:    relay,
	}
}

func (u *presenceUsecase) HandleUpdate(ctx context.Context, roomKey string, senderID uuid.UUID, state json.RawMessage) error {
	member, ok := u.registry.Member(roomKey, senderID)
	if !ok {
		return fmt.Errorf("connection %s is not a member of room %q", senderID, roomKey)
	}

	update := events.PresenceUpdate{
		ConnID: senderID,
		User:   member.User,
		State:  state,
	}

	u.presence.Set(roomKey, update)
	u.relay.Touch(roomKey, senderID)

	frame, err := events.NewFrame(events.TypePresence, update)
	if err != nil {
		return fmt.Errorf("encode presence frame: %w", err)
	}

	metric.IncrementPresenceUpdates()

	u.relay.BroadcastFrame(ctx, roomKey, frame, senderID)

	return nil
}

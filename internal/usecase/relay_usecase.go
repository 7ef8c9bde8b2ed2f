package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fivepointers/pagerelay/internal/application/constant"
	"github.com/fivepointers/pagerelay/internal/application/metric"
	"github.com/fivepointers/pagerelay/internal/docstate"
	"github.com/fivepointers/pagerelay/internal/domain/events"
	"github.com/fivepointers/pagerelay/internal/domain/runtime"
	"github.com/fivepointers/pagerelay/internal/infra/adapters/memory"
)

// RelayUsecase moves opaque document updates between the members of a
// room. It never interprets payloads; it only fans them out and converts
// write failures into membership changes.
type RelayUsecase interface {
	HandleJoin(ctx context.Context, roomKey string, member runtime.Member) (runtime.Member, error)
	HandleLeave(ctx context.Context, roomKey string, connID uuid.UUID)

	// HandleDocumentUpdate relays one opaque update from sender to every
	// other room member. Updates arriving while the room is restoring are
	// dropped; clients resync from the restored state broadcast.
	HandleDocumentUpdate(ctx context.Context, roomKey string, senderID uuid.UUID, update []byte)

	// BroadcastBinary fans a payload out to every member except exclude
	// (uuid.Nil excludes nobody). Used by the snapshot and comment layers
	// to push server-originated updates through the normal path.
	BroadcastBinary(ctx context.Context, roomKey string, payload []byte, exclude uuid.UUID)

	// BroadcastFrame does the same for JSON control/presence frames.
	BroadcastFrame(ctx context.Context, roomKey string, frame events.Frame, exclude uuid.UUID)

	Touch(roomKey string, connID uuid.UUID)
}

type relayUsecase struct {
	registry memory.RoomRegistry
	connRepo memory.ConnectionRepository
	presence memory.PresenceRepository
	engine   docstate.Engine
	election ElectionUsecase
}

func NewRelayUsecase(
	registry memory.RoomRegistry,
	connRepo memory.ConnectionRepository,
	presence memory.PresenceRepository,
	engine docstate.Engine,
	election ElectionUsecase,
) RelayUsecase {
	return &relayUsecase{
		registry: registry,
		connRepo: connRepo,
		presence: presence,
		engine:   engine,
		election: election,
	}
}

func (u *relayUsecase) HandleJoin(ctx context.Context, roomKey string, member runtime.Member) (runtime.Member, error) {
	member = u.registry.Admit(roomKey, member)

	slog.Info(
		"member joined",
		slog.String(constant.RoomKey, roomKey),
		slog.Any(constant.ConnID, member.ConnID),
		slog.String(constant.UserID, member.User.ID),
		slog.Int64("join_seq", member.JoinSeq),
	)

	ack, err := events.NewFrame(events.TypeConnection, events.ConnectionAck{
		Status:    "connected",
		RoomKey:   roomKey,
		ConnID:    member.ConnID,
		JoinSeq:   member.JoinSeq,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return member, err
	}

	if err := u.connRepo.WriteJSON(member.ConnID, ack); err != nil {
		u.HandleLeave(ctx, roomKey, member.ConnID)
		return member, err
	}

	// Late joiners converge from the room's accumulated state. The first
	// member gets nothing: an empty room holds no document state.
	if len(u.registry.MembersOf(roomKey)) > 1 {
		if state, err := u.engine.EncodeFullState(roomKey); err == nil {
			if err := u.connRepo.WriteBinary(member.ConnID, state); err != nil {
				u.HandleLeave(ctx, roomKey, member.ConnID)
				return member, err
			}
		}

		for _, record := range u.presence.All(roomKey) {
			frame, err := events.NewFrame(events.TypePresence, record)
			if err != nil {
				continue
			}
			if err := u.connRepo.WriteJSON(member.ConnID, frame); err != nil {
				break
			}
		}
	}

	u.broadcastUserList(ctx, roomKey)
	u.election.Recompute(ctx, roomKey)

	return member, nil
}

func (u *relayUsecase) HandleLeave(ctx context.Context, roomKey string, connID uuid.UUID) {
	removed, emptied := u.registry.Remove(roomKey, connID)
	if !removed {
		return
	}

	u.connRepo.Remove(connID)
	u.presence.Remove(roomKey, connID)

	slog.Info(
		"member left",
		slog.String(constant.RoomKey, roomKey),
		slog.Any(constant.ConnID, connID),
	)

	if emptied {
		// Last member out: the room and everything derived from it is
		// discarded. The durable document lives in the snapshot store.
		u.presence.DropRoom(roomKey)
		u.engine.Release(roomKey)
		u.election.Recompute(ctx, roomKey)

		slog.Info("room discarded", slog.String(constant.RoomKey, roomKey))
		return
	}

	u.broadcastUserList(ctx, roomKey)
	u.election.Recompute(ctx, roomKey)
}

func (u *relayUsecase) HandleDocumentUpdate(ctx context.Context, roomKey string, senderID uuid.UUID, update []byte) {
	u.registry.Touch(roomKey, senderID, time.Now())

	if u.registry.Phase(roomKey) == runtime.PhaseRestoring {
		metric.IncrementDroppedUpdates()
		return
	}

	if err := u.engine.ApplyUpdate(roomKey, update); err != nil {
		slog.Error(
			"apply document update",
			slog.Any(constant.Error, err),
			slog.String(constant.RoomKey, roomKey),
		)
		return
	}

	metric.IncrementRelayedUpdates()

	u.BroadcastBinary(ctx, roomKey, update, senderID)
}

func (u *relayUsecase) BroadcastBinary(ctx context.Context, roomKey string, payload []byte, exclude uuid.UUID) {
	var failed []uuid.UUID

	for _, member := range u.registry.MembersOf(roomKey) {
		if member.ConnID == exclude {
			continue
		}

		if err := u.connRepo.WriteBinary(member.ConnID, payload); err != nil {
			slog.Warn(
				"write document update",
				slog.Any(constant.Error, err),
				slog.Any(constant.ConnID, member.ConnID),
			)
			failed = append(failed, member.ConnID)
		}
	}

	// A dead peer never aborts delivery to the rest; it just leaves.
	for _, connID := range failed {
		u.HandleLeave(ctx, roomKey, connID)
	}
}

func (u *relayUsecase) BroadcastFrame(ctx context.Context, roomKey string, frame events.Frame, exclude uuid.UUID) {
	var failed []uuid.UUID

	for _, member := range u.registry.MembersOf(roomKey) {
		if member.ConnID == exclude {
			continue
		}

		if err := u.connRepo.WriteJSON(member.ConnID, frame); err != nil {
			slog.Warn(
				"write control frame",
				slog.Any(constant.Error, err),
				slog.Any(constant.ConnID, member.ConnID),
			)
			failed = append(failed, member.ConnID)
		}
	}

	for _, connID := range failed {
		u.HandleLeave(ctx, roomKey, connID)
	}
}

func (u *relayUsecase) Touch(roomKey string, connID uuid.UUID) {
	u.registry.Touch(roomKey, connID, time.Now())
}

func (u *relayUsecase) broadcastUserList(ctx context.Context, roomKey string) {
	frame, err := events.NewFrame(events.TypeUserList, events.UserListEvent{
		Users: u.registry.MembersOf(roomKey),
	})
	if err != nil {
		slog.Error("encode user-list frame", slog.Any(constant.Error, err))
		return
	}

	u.BroadcastFrame(ctx, roomKey, frame, uuid.Nil)
}

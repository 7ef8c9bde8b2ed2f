package usecase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/fivepointers/pagerelay/internal/application/constant"
	"github.com/fivepointers/pagerelay/internal/domain/events"
	"github.com/fivepointers/pagerelay/internal/domain/runtime"
	"github.com/fivepointers/pagerelay/internal/infra/adapters/memory"
)

// ElectMaster picks the master of a room: the live member with the
// smallest join sequence. Join sequences are unique per room, so there
// are no ties. An empty slice means no master.
func ElectMaster(members []runtime.Member) (runtime.Member, bool) {
	if len(members) == 0 {
		return runtime.Member{}, false
	}

	master := members[0]
	for _, member := range members[1:] {
		if member.JoinSeq < master.JoinSeq {
			master = member
		}
	}

	return master, true
}

// ElectionUsecase recomputes the room master eagerly on every membership
// change and announces changes to the whole room.
type ElectionUsecase interface {
	Recompute(ctx context.Context, roomKey string)
	Master(roomKey string) (runtime.Member, bool)
}

type electionUsecase struct {
	registry memory.RoomRegistry
	connRepo memory.ConnectionRepository

	// masters holds the last announced master per room, to detect changes.
	masters map[string]uuid.UUID
	mu      sync.Mutex
}

func NewElectionUsecase(registry memory.RoomRegistry, connRepo memory.ConnectionRepository) ElectionUsecase {
	return &electionUsecase{
		registry: registry,
		connRepo: connRepo,
		masters:  make(map[string]uuid.UUID),
	}
}

func (u *electionUsecase) Recompute(ctx context.Context, roomKey string) {
	members := u.registry.MembersOf(roomKey)

	master, ok := ElectMaster(members)

	u.mu.Lock()
	previous, hadPrevious := u.masters[roomKey]

	if !ok {
		// Room emptied; its derived state goes with it.
		delete(u.masters, roomKey)
		u.mu.Unlock()
		return
	}

	if hadPrevious && previous == master.ConnID {
		u.mu.Unlock()
		return
	}

	u.masters[roomKey] = master.ConnID
	u.mu.Unlock()

	frame, err := events.NewFrame(events.TypeMasterChanged, events.MasterChangedEvent{
		ConnID: master.ConnID,
		User:   master.User,
	})
	if err != nil {
		slog.Error("encode master-changed frame", slog.Any(constant.Error, err))
		return
	}

	slog.Info(
		"master changed",
		slog.String(constant.RoomKey, roomKey),
		slog.Any(constant.ConnID, master.ConnID),
		slog.String(constant.UserID, master.User.ID),
	)

	// Write failures here are left to the relay's next delivery attempt,
	// which owns eviction.
	for _, member := range members {
		if err := u.connRepo.WriteJSON(member.ConnID, frame); err != nil {
			slog.Warn(
				"write master-changed frame",
				slog.Any(constant.Error, err),
				slog.Any(constant.ConnID, member.ConnID),
			)
		}
	}
}

func (u *electionUsecase) Master(roomKey string) (runtime.Member, bool) {
	return ElectMaster(u.registry.MembersOf(roomKey))
}

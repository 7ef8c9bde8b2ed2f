package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fivepointers/pagerelay/internal/application/constant"
	"github.com/fivepointers/pagerelay/internal/application/metric"
	"github.com/fivepointers/pagerelay/internal/docstate"
	"github.com/fivepointers/pagerelay/internal/domain/models"
	"github.com/fivepointers/pagerelay/internal/domain/runtime"
	"github.com/fivepointers/pagerelay/internal/infra/adapters/memory"
	"github.com/fivepointers/pagerelay/internal/infra/adapters/postgres/repository"
)

var (
	ErrRoomNotFound = errors.New("room has no live members")

	// ErrRoomBusy rejects a capture or restore while another capture or
	// restore is in flight for the same room.
	ErrRoomBusy = errors.New("room is capturing or restoring")
)

// VersionUsecase drives the per-room Live/Capturing/Restoring machine.
// Captures and restores are the only operations that await external I/O;
// listing, renaming and deleting touch only the snapshot store.
type VersionUsecase interface {
	CreateSnapshot(ctx context.Context, roomKey, name, description, createdBy string) (models.SnapshotMeta, error)
	RestoreVersion(ctx context.Context, roomKey, snapshotID string) error

	ListSnapshots(ctx context.Context, roomKey string) ([]models.SnapshotMeta, error)
	RenameSnapshot(ctx context.Context, snapshotID, name string) error
	DeleteSnapshot(ctx context.Context, snapshotID string) error
}

type versionUsecase struct {
	registry memory.RoomRegistry
	engine   docstate.Engine
	store    repository.SnapshotRepository
	relay    RelayUsecase
}

func NewVersionUsecase(
	registry memory.RoomRegistry,
	engine docstate.Engine,
	store repository.SnapshotRepository,
	relay RelayUsecase,
) VersionUsecase {
	return &versionUsecase{
		registry: registry,
		engine:   engine,
		store:    store,
		relay:    relay,
	}
}

func (u *versionUsecase) CreateSnapshot(ctx context.Context, roomKey, name, description, createdBy string) (models.SnapshotMeta, error) {
	if len(u.registry.MembersOf(roomKey)) == 0 {
		return models.SnapshotMeta{}, ErrRoomNotFound
	}

	if !u.registry.CompareAndSwapPhase(roomKey, runtime.PhaseLive, runtime.PhaseCapturing) {
		return models.SnapshotMeta{}, ErrRoomBusy
	}
	defer u.registry.CompareAndSwapPhase(roomKey, runtime.PhaseCapturing, runtime.PhaseLive)

	state, err := u.engine.EncodeFullState(roomKey)
	if err != nil {
		metric.RecordSnapshotOp("capture", err)
		return models.SnapshotMeta{}, fmt.Errorf("encode full state: %w", err)
	}

	now := time.Now()
	snapshot := models.Snapshot{
		ID:          models.NewSnapshotID(now),
		RoomKey:     roomKey,
		Name:        name,
		Description: description,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		State:       state,
	}

	if err := u.store.SaveSnapshot(ctx, snapshot); err != nil {
		metric.RecordSnapshotOp("capture", err)
		return models.SnapshotMeta{}, fmt.Errorf("save snapshot: %w", err)
	}

	metric.RecordSnapshotOp("capture", nil)

	slog.Info(
		"snapshot captured",
		slog.String(constant.RoomKey, roomKey),
		slog.String(constant.SnapshotID, snapshot.ID),
		slog.String(constant.UserID, createdBy),
	)

	return models.SnapshotMeta{
		ID:          snapshot.ID,
		RoomKey:     snapshot.RoomKey,
		Name:        snapshot.Name,
		Description: snapshot.Description,
		CreatedBy:   snapshot.CreatedBy,
		CreatedAt:   snapshot.CreatedAt,
	}, nil
}

func (u *versionUsecase) RestoreVersion(ctx context.Context, roomKey, snapshotID string) error {
	if len(u.registry.MembersOf(roomKey)) == 0 {
		return ErrRoomNotFound
	}

	if !u.registry.CompareAndSwapPhase(roomKey, runtime.PhaseLive, runtime.PhaseRestoring) {
		return ErrRoomBusy
	}

	restoreErr := u.applySnapshot(ctx, roomKey, snapshotID)

	// Fail-open: fan-out resumes no matter what the restore left behind.
	// A room is never permanently muted.
	u.registry.CompareAndSwapPhase(roomKey, runtime.PhaseRestoring, runtime.PhaseLive)

	metric.RecordSnapshotOp("restore", restoreErr)

	if restoreErr != nil {
		return restoreErr
	}

	// Every connected member receives the restored state through the
	// normal replication path; nobody diverges silently.
	state, err := u.engine.EncodeFullState(roomKey)
	if err != nil {
		return fmt.Errorf("encode restored state: %w", err)
	}

	u.relay.BroadcastBinary(ctx, roomKey, state, uuid.Nil)

	slog.Info(
		"snapshot restored",
		slog.String(constant.RoomKey, roomKey),
		slog.String(constant.SnapshotID, snapshotID),
	)

	return nil
}

func (u *versionUsecase) applySnapshot(ctx context.Context, roomKey, snapshotID string) error {
	snapshot, err := u.store.LoadSnapshot(ctx, snapshotID)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	if snapshot.RoomKey != roomKey {
		return fmt.Errorf("snapshot %s belongs to room %q, not %q", snapshotID, snapshot.RoomKey, roomKey)
	}

	u.engine.ClearAllState(roomKey)

	if err := u.engine.ApplyUpdate(roomKey, snapshot.State); err != nil {
		return fmt.Errorf("apply snapshot state: %w", err)
	}

	return nil
}

func (u *versionUsecase) ListSnapshots(ctx context.Context, roomKey string) ([]models.SnapshotMeta, error) {
	return u.store.ListSnapshots(ctx, roomKey)
}

func (u *versionUsecase) RenameSnapshot(ctx context.Context, snapshotID, name string) error {
	return u.store.RenameSnapshot(ctx, snapshotID, name)
}

func (u *versionUsecase) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	return u.store.DeleteSnapshot(ctx, snapshotID)
}

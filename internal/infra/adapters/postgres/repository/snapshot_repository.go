package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fivepointers/pagerelay/internal/domain/models"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotRepository is the external persistence collaborator for version
// snapshots. The relay never stores document state anywhere else.
type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, snapshot models.Snapshot) error
	ListSnapshots(ctx context.Context, roomKey string) ([]models.SnapshotMeta, error)
	LoadSnapshot(ctx context.Context, snapshotID string) (models.Snapshot, error)
	DeleteSnapshot(ctx context.Context, snapshotID string) error
	RenameSnapshot(ctx context.Context, snapshotID, name string) error
}

type snapshotRepo struct {
	db *sqlx.DB
}

func NewSnapshotRepo(db *sqlx.DB) SnapshotRepository {
	return &snapshotRepo{db: db}
}

func (r *snapshotRepo) SaveSnapshot(ctx context.Context, snapshot models.Snapshot) error {
	query := `INSERT INTO page_snapshots (id, room_key, name, description, created_by, created_at, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	res, err := r.db.ExecContext(ctx, query,
		snapshot.ID,
		snapshot.RoomKey,
		snapshot.Name,
		snapshot.Description,
		snapshot.CreatedBy,
		snapshot.CreatedAt,
		snapshot.State,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	if aff, err := res.RowsAffected(); aff == 0 || err != nil {
		return fmt.Errorf("save snapshot no rows affected: %w", err)
	}

	return nil
}

func (r *snapshotRepo) ListSnapshots(ctx context.Context, roomKey string) ([]models.SnapshotMeta, error) {
	var metas []models.SnapshotMeta

	query := `SELECT id, room_key, name, description, created_by, created_at
		FROM page_snapshots WHERE room_key = $1 ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &metas, query, roomKey); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	return metas, nil
}

func (r *snapshotRepo) LoadSnapshot(ctx context.Context, snapshotID string) (models.Snapshot, error) {
	var snapshot models.Snapshot

	query := `SELECT id, room_key, name, description, created_by, created_at, state
		FROM page_snapshots WHERE id = $1`

	err := r.db.GetContext(ctx, &snapshot, query, snapshotID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Snapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	return snapshot, nil
}

func (r *snapshotRepo) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM page_snapshots WHERE id = $1", snapshotID)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}

	if aff, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	} else if aff == 0 {
		return ErrSnapshotNotFound
	}

	return nil
}

func (r *snapshotRepo) RenameSnapshot(ctx context.Context, snapshotID, name string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE page_snapshots SET name = $2 WHERE id = $1", snapshotID, name)
	if err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}

	if aff, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	} else if aff == 0 {
		return ErrSnapshotNotFound
	}

	return nil
}

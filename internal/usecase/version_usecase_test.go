package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivepointers/pagerelay/internal/domain/models"
	"github.com/fivepointers/pagerelay/internal/domain/runtime"
)

func TestVersion_CaptureStoresCurrentState(t *testing.T) {
	stack := newTestStack()
	store := newFakeSnapshotStore()
	versions := NewVersionUsecase(stack.registry, stack.engine, store, stack.relay)
	ctx := context.Background()

	a := stack.join("demo", "alice")
	stack.relay.HandleDocumentUpdate(ctx, "demo", a.ConnID, []byte("edit-1"))

	meta, err := versions.CreateSnapshot(ctx, "demo", "v1", "first draft", "alice")
	require.NoError(t, err)
	assert.Equal(t, "demo", meta.RoomKey)
	assert.Equal(t, "v1", meta.Name)
	assert.NotEmpty(t, meta.ID)

	stored, err := store.LoadSnapshot(ctx, meta.ID)
	require.NoError(t, err)

	state, err := stack.engine.EncodeFullState("demo")
	require.NoError(t, err)
	assert.Equal(t, state, stored.State)

	// The room resumes normal operation.
	assert.Equal(t, runtime.PhaseLive, stack.registry.Phase("demo"))
}

func TestVersion_CaptureRequiresLiveRoom(t *testing.T) {
	stack := newTestStack()
	store := newFakeSnapshotStore()
	versions := NewVersionUsecase(stack.registry, stack.engine, store, stack.relay)

	_, err := versions.CreateSnapshot(context.Background(), "empty-room", "v1", "", "alice")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestVersion_ConcurrentCaptureIsRejected(t *testing.T) {
	stack := newTestStack()
	store := newFakeSnapshotStore()
	versions := NewVersionUsecase(stack.registry, stack.engine, store, stack.relay)
	ctx := context.Background()

	stack.join("demo", "alice")

	require.True(t, stack.registry.CompareAndSwapPhase("demo", runtime.PhaseLive, runtime.PhaseCapturing))

	_, err := versions.CreateSnapshot(ctx, "demo", "v1", "", "alice")
	assert.ErrorIs(t, err, ErrRoomBusy)

	err = versions.RestoreVersion(ctx, "demo", "whatever")
	assert.ErrorIs(t, err, ErrRoomBusy)
}

func TestVersion_StoreFailureLeavesRoomLive(t *testing.T) {
	stack := newTestStack()
	store := newFakeSnapshotStore()
	store.failSave = true
	versions := NewVersionUsecase(stack.registry, stack.engine, store, stack.relay)

	stack.join("demo", "alice")

	_, err := versions.CreateSnapshot(context.Background(), "demo", "v1", "", "alice")
	require.Error(t, err)

	assert.Equal(t, runtime.PhaseLive, stack.registry.Phase("demo"))
}

func TestVersion_RestoreReplacesStateAndBroadcastsToEveryone(t *testing.T) {
	stack := newTestStack()
	store := newFakeSnapshotStore()
	versions := NewVersionUsecase(stack.registry, stack.engine, store, stack.relay)
	ctx := context.Background()

	a := stack.join("demo", "alice")
	b := stack.join("demo", "bob")

	stack.relay.HandleDocumentUpdate(ctx, "demo", a.ConnID, []byte("kept-edit"))

	meta, err := versions.CreateSnapshot(ctx, "demo", "before", "", "alice")
	require.NoError(t, err)

	captured, err := stack.engine.EncodeFullState("demo")
	require.NoError(t, err)

	stack.relay.HandleDocumentUpdate(ctx, "demo", a.ConnID, []byte("discarded-edit"))

	aBefore := len(stack.connRepo.binaryFrames(a.ConnID))
	bBefore := len(stack.connRepo.binaryFrames(b.ConnID))

	require.NoError(t, versions.RestoreVersion(ctx, "demo", meta.ID))

	restored, err := stack.engine.EncodeFullState("demo")
	require.NoError(t, err)
	assert.Equal(t, captured, restored)

	// Unlike a relayed edit, the restored state goes to every member,
	// including whoever triggered the restore.
	aFrames := stack.connRepo.binaryFrames(a.ConnID)
	bFrames := stack.connRepo.binaryFrames(b.ConnID)
	require.Len(t, aFrames, aBefore+1)
	require.Len(t, bFrames, bBefore+1)
	assert.Equal(t, restored, aFrames[len(aFrames)-1])
	assert.Equal(t, restored, bFrames[len(bFrames)-1])

	assert.Equal(t, runtime.PhaseLive, stack.registry.Phase("demo"))
}

func TestVersion_RestoreIsIdempotent(t *testing.T) {
	stack := newTestStack()
	store := newFakeSnapshotStore()
	versions := NewVersionUsecase(stack.registry, stack.engine, store, stack.relay)
	ctx := context.Background()

	a := stack.join("demo", "alice")
	stack.relay.HandleDocumentUpdate(ctx, "demo", a.ConnID, []byte("edit"))

	meta, err := versions.CreateSnapshot(ctx, "demo", "v1", "", "alice")
	require.NoError(t, err)

	require.NoError(t, versions.RestoreVersion(ctx, "demo", meta.ID))
	once, err := stack.engine.EncodeFullState("demo")
	require.NoError(t, err)

	require.NoError(t, versions.RestoreVersion(ctx, "demo", meta.ID))
	twice, err := stack.engine.EncodeFullState("demo")
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestVersion_FailedRestoreFailsOpen(t *testing.T) {
	stack := newTestStack()
	store := newFakeSnapshotStore()
	versions := NewVersionUsecase(stack.registry, stack.engine, store, stack.relay)
	ctx := context.Background()

	a := stack.join("demo", "alice")
	b := stack.join("demo", "bob")

	store.failLoad = true
	err := versions.RestoreVersion(ctx, "demo", "missing")
	require.Error(t, err)

	// The room is never left muted: fan-out resumes immediately.
	assert.Equal(t, runtime.PhaseLive, stack.registry.Phase("demo"))

	stack.relay.HandleDocumentUpdate(ctx, "demo", a.ConnID, []byte("after-failure"))
	assert.NotEmpty(t, stack.connRepo.binaryFrames(b.ConnID))
}

func TestVersion_RestoreRejectsForeignSnapshot(t *testing.T) {
	stack := newTestStack()
	store := newFakeSnapshotStore()
	versions := NewVersionUsecase(stack.registry, stack.engine, store, stack.relay)
	ctx := context.Background()

	a := stack.join("other", "alice")
	stack.relay.HandleDocumentUpdate(ctx, "other", a.ConnID, []byte("other-edit"))

	meta, err := versions.CreateSnapshot(ctx, "other", "v1", "", "alice")
	require.NoError(t, err)

	stack.join("demo", "bob")

	err = versions.RestoreVersion(ctx, "demo", meta.ID)
	require.Error(t, err)
	assert.Equal(t, runtime.PhaseLive, stack.registry.Phase("demo"))
}

func TestVersion_RestoreRevivesDeletedComment(t *testing.T) {
	stack := newTestStack()
	store := newFakeSnapshotStore()
	versions := NewVersionUsecase(stack.registry, stack.engine, store, stack.relay)
	comments := NewCommentUsecase(stack.engine, stack.relay)
	ctx := context.Background()

	stack.join("demo", "alice")

	view, err := comments.AddComment(ctx, "demo", models.Comment{
		ComponentID: "hero-1",
		Position:    models.Position{X: 10, Y: 20},
		CreatedBy:   "alice",
	})
	require.NoError(t, err)

	meta, err := versions.CreateSnapshot(ctx, "demo", "with-comment", "", "alice")
	require.NoError(t, err)

	require.NoError(t, comments.DeleteComment(ctx, "demo", view.ID))

	listed, err := comments.ListForComponent(ctx, "demo", "hero-1")
	require.NoError(t, err)
	require.Empty(t, listed)

	// Comments ride the document, so restoring the document restores them.
	require.NoError(t, versions.RestoreVersion(ctx, "demo", meta.ID))

	listed, err = comments.ListForComponent(ctx, "demo", "hero-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, view.ID, listed[0].ID)
}

func TestVersion_ListRenameDelete(t *testing.T) {
	stack := newTestStack()
	store := newFakeSnapshotStore()
	versions := NewVersionUsecase(stack.registry, stack.engine, store, stack.relay)
	ctx := context.Background()

	stack.join("demo", "alice")

	meta, err := versions.CreateSnapshot(ctx, "demo", "draft", "", "alice")
	require.NoError(t, err)

	require.NoError(t, versions.RenameSnapshot(ctx, meta.ID, "final"))

	metas, err := versions.ListSnapshots(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "final", metas[0].Name)

	require.NoError(t, versions.DeleteSnapshot(ctx, meta.ID))

	metas, err = versions.ListSnapshots(ctx, "demo")
	require.NoError(t, err)
	assert.Empty(t, metas)
}

package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fivepointers/pagerelay/internal/docstate"
	"github.com/fivepointers/pagerelay/internal/domain/events"
	"github.com/fivepointers/pagerelay/internal/domain/models"
	"github.com/fivepointers/pagerelay/internal/domain/runtime"
	"github.com/fivepointers/pagerelay/internal/infra/adapters/memory"
)

var errConnGone = errors.New("connection gone")

// fakeConnRepo records every write per connection and can simulate dead
// sockets, which is how the relay detects peer loss.
type fakeConnRepo struct {
	mu      sync.Mutex
	json    map[uuid.UUID][]events.Frame
	binary  map[uuid.UUID][][]byte
	failing map[uuid.UUID]bool
}

func newFakeConnRepo() *fakeConnRepo {
	return &fakeConnRepo{
		json:    make(map[uuid.UUID][]events.Frame),
		binary:  make(map[uuid.UUID][][]byte),
		failing: make(map[uuid.UUID]bool),
	}
}

func (f *fakeConnRepo) Add(connID uuid.UUID, conn *websocket.Conn) {}

func (f *fakeConnRepo) Remove(connID uuid.UUID) {}

func (f *fakeConnRepo) WriteJSON(connID uuid.UUID, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failing[connID] {
		return errConnGone
	}

	frame, ok := payload.(events.Frame)
	if !ok {
		return errors.New("unexpected payload type")
	}

	f.json[connID] = append(f.json[connID], frame)
	return nil
}

func (f *fakeConnRepo) WriteBinary(connID uuid.UUID, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failing[connID] {
		return errConnGone
	}

	f.binary[connID] = append(f.binary[connID], payload)
	return nil
}

func (f *fakeConnRepo) Ping(connID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failing[connID] {
		return errConnGone
	}

	return nil
}

func (f *fakeConnRepo) CloseAll() {}

func (f *fakeConnRepo) fail(connID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failing[connID] = true
}

func (f *fakeConnRepo) binaryFrames(connID uuid.UUID) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.binary[connID]
}

func (f *fakeConnRepo) framesOfType(connID uuid.UUID, frameType string) []events.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []events.Frame
	for _, frame := range f.json[connID] {
		if frame.Type == frameType {
			matched = append(matched, frame)
		}
	}

	return matched
}

// fakeSnapshotStore is the persistence collaborator held in memory.
type fakeSnapshotStore struct {
	mu        sync.Mutex
	snapshots map[string]models.Snapshot

	failSave bool
	failLoad bool
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{
		snapshots: make(map[string]models.Snapshot),
	}
}

func (f *fakeSnapshotStore) SaveSnapshot(ctx context.Context, snapshot models.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failSave {
		return errors.New("store unavailable")
	}

	f.snapshots[snapshot.ID] = snapshot
	return nil
}

func (f *fakeSnapshotStore) ListSnapshots(ctx context.Context, roomKey string) ([]models.SnapshotMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var metas []models.SnapshotMeta
	for _, snapshot := range f.snapshots {
		if snapshot.RoomKey != roomKey {
			continue
		}
		metas = append(metas, models.SnapshotMeta{
			ID:          snapshot.ID,
			RoomKey:     snapshot.RoomKey,
			Name:        snapshot.Name,
			Description: snapshot.Description,
			CreatedBy:   snapshot.CreatedBy,
			CreatedAt:   snapshot.CreatedAt,
		})
	}

	return metas, nil
}

func (f *fakeSnapshotStore) LoadSnapshot(ctx context.Context, snapshotID string) (models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failLoad {
		return models.Snapshot{}, errors.New("store unavailable")
	}

	snapshot, ok := f.snapshots[snapshotID]
	if !ok {
		return models.Snapshot{}, errors.New("snapshot not found")
	}

	return snapshot, nil
}

func (f *fakeSnapshotStore) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.snapshots, snapshotID)
	return nil
}

func (f *fakeSnapshotStore) RenameSnapshot(ctx context.Context, snapshotID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapshot, ok := f.snapshots[snapshotID]
	if !ok {
		return errors.New("snapshot not found")
	}

	snapshot.Name = name
	f.snapshots[snapshotID] = snapshot
	return nil
}

// testStack wires the in-memory components the way runApp does.
type testStack struct {
	registry memory.RoomRegistry
	connRepo *fakeConnRepo
	presence memory.PresenceRepository
	engine   *docstate.MemoryEngine
	election ElectionUsecase
	relay    RelayUsecase
}

func newTestStack() *testStack {
	registry := memory.NewRoomRegistry()
	connRepo := newFakeConnRepo()
	presence := memory.NewPresenceRepository()
	engine := docstate.NewMemoryEngine()
	election := NewElectionUsecase(registry, connRepo)
	relay := NewRelayUsecase(registry, connRepo, presence, engine, election)

	return &testStack{
		registry: registry,
		connRepo: connRepo,
		presence: presence,
		engine:   engine,
		election: election,
		relay:    relay,
	}
}

func (s *testStack) join(roomKey, userID string) runtime.Member {
	member, _ := s.relay.HandleJoin(context.Background(), roomKey, runtime.Member{
		ConnID: uuid.New(),
		User:   models.UserInfo{ID: userID, Name: userID},
	})

	return member
}

package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/fivepointers/pagerelay/internal/domain/events"
)

// PresenceRepository keeps the latest awareness record per connection.
// Records are last-write-wins, never persisted, and die with their
// connection or room. Expiring payloads (chat bubbles) carry their own
// expiry; the server never sweeps them.
type PresenceRepository interface {
	Set(roomKey string, update events.PresenceUpdate)
	Remove(roomKey string, connID uuid.UUID)
	DropRoom(roomKey string)

	// All returns the room's current records in no particular order.
	All(roomKey string) []events.PresenceUpdate
}

type presenceRepository struct {
	rooms map[string]map[uuid.UUID]events.PresenceUpdate
	mu    sync.RWMutex
}

func NewPresenceRepository() PresenceRepository {
	return &presenceRepository{
		rooms: make(map[string]map[uuid.UUID]events.PresenceUpdate),
	}
}

func (r *presenceRepository) Set(roomKey string, update events.PresenceUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, ok := r.rooms[roomKey]
	if !ok {
		records = make(map[uuid.UUID]events.PresenceUpdate)
		r.rooms[roomKey] = records
	}

	records[update.ConnID] = update
}

func (r *presenceRepository) Remove(roomKey string, connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if records, ok := r.rooms[roomKey]; ok {
		delete(records, connID)

		if len(records) == 0 {
			delete(r.rooms, roomKey)
		}
	}
}

func (r *presenceRepository) DropRoom(roomKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rooms, roomKey)
}

func (r *presenceRepository) All(roomKey string) []events.PresenceUpdate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records, ok := r.rooms[roomKey]
	if !ok {
		return nil
	}

	updates := make([]events.PresenceUpdate, 0, len(records))
	for _, update := range records {
		updates = append(updates, update)
	}

	return updates
}

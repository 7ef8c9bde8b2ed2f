package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fivepointers/pagerelay/internal/application/metric"
	"github.com/fivepointers/pagerelay/internal/domain/runtime"
)

// RoomRegistry owns all per-room membership state: the member set, join
// sequence assignment, and the room phase used to gate snapshot restores.
// Rooms are created on first admit and discarded when the last member
// leaves; nothing else may mutate this state.
type RoomRegistry interface {
	// Admit adds the member to the room, creating it if needed, and
	// returns the member with its assigned join sequence. Sequences start
	// at 1 and are strictly increasing for the room's lifetime.
	Admit(roomKey string, member runtime.Member) runtime.Member

	// Remove drops the member. Reports whether it was present and whether
	// the room emptied (and was discarded) as a result.
	Remove(roomKey string, connID uuid.UUID) (removed bool, emptied bool)

	// MembersOf returns the room's members ascending by join sequence.
	// Unknown rooms yield an empty slice.
	MembersOf(roomKey string) []runtime.Member

	Member(roomKey string, connID uuid.UUID) (runtime.Member, bool)

	// Touch records traffic from the connection for liveness accounting.
	Touch(roomKey string, connID uuid.UUID, at time.Time)

	// CompareAndSwapPhase transitions the room phase if it currently
	// equals from. Fails for unknown rooms.
	CompareAndSwapPhase(roomKey string, from, to runtime.RoomPhase) bool

	Phase(roomKey string) runtime.RoomPhase

	RoomCount() int
	TotalMembers() int
}

type roomBucket struct {
	members map[uuid.UUID]runtime.Member
	nextSeq int64
	phase   runtime.RoomPhase
}

type roomRegistry struct {
	rooms map[string]*roomBucket
	mu    sync.RWMutex
}

func NewRoomRegistry() RoomRegistry {
	return &roomRegistry{
		rooms: make(map[string]*roomBucket),
	}
}

func (r *roomRegistry) Admit(roomKey string, member runtime.Member) runtime.Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.rooms[roomKey]
	if !ok {
		bucket = &roomBucket{
			members: make(map[uuid.UUID]runtime.Member),
			phase:   runtime.PhaseLive,
		}
		r.rooms[roomKey] = bucket

		metric.SetOpenRooms(len(r.rooms))
	}

	bucket.nextSeq++
	member.JoinSeq = bucket.nextSeq

	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now()
	}
	member.LastSeen = member.JoinedAt

	bucket.members[member.ConnID] = member

	return member
}

func (r *roomRegistry) Remove(roomKey string, connID uuid.UUID) (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.rooms[roomKey]
	if !ok {
		return false, false
	}

	if _, ok = bucket.members[connID]; !ok {
		return false, false
	}

	delete(bucket.members, connID)

	if len(bucket.members) == 0 {
		delete(r.rooms, roomKey)
		metric.SetOpenRooms(len(r.rooms))

		return true, true
	}

	return true, false
}

func (r *roomRegistry) MembersOf(roomKey string) []runtime.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, ok := r.rooms[roomKey]
	if !ok {
		return nil
	}

	members := make([]runtime.Member, 0, len(bucket.members))
	for _, member := range bucket.members {
		members = append(members, member)
	}

	sort.Slice(members, func(i, j int) bool {
		return members[i].JoinSeq < members[j].JoinSeq
	})

	return members
}

func (r *roomRegistry) Member(roomKey string, connID uuid.UUID) (runtime.Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, ok := r.rooms[roomKey]
	if !ok {
		return runtime.Member{}, false
	}

	member, ok := bucket.members[connID]

	return member, ok
}

func (r *roomRegistry) Touch(roomKey string, connID uuid.UUID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.rooms[roomKey]
	if !ok {
		return
	}

	member, ok := bucket.members[connID]
	if !ok {
		return
	}

	member.LastSeen = at
	bucket.members[connID] = member
}

func (r *roomRegistry) CompareAndSwapPhase(roomKey string, from, to runtime.RoomPhase) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.rooms[roomKey]
	if !ok {
		return false
	}

	if bucket.phase != from {
		return false
	}

	bucket.phase = to

	return true
}

func (r *roomRegistry) Phase(roomKey string) runtime.RoomPhase {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, ok := r.rooms[roomKey]
	if !ok {
		return runtime.PhaseLive
	}

	return bucket.phase
}

func (r *roomRegistry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}

func (r *roomRegistry) TotalMembers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, bucket := range r.rooms {
		total += len(bucket.members)
	}

	return total
}

package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivepointers/pagerelay/internal/domain/runtime"
)

func admit(r RoomRegistry, roomKey string) runtime.Member {
	return r.Admit(roomKey, runtime.Member{ConnID: uuid.New()})
}

func TestRoomRegistry_JoinSequencesAreStrictlyIncreasing(t *testing.T) {
	registry := NewRoomRegistry()

	first := admit(registry, "demo")
	second := admit(registry, "demo")
	third := admit(registry, "demo")

	assert.Equal(t, int64(1), first.JoinSeq)
	assert.Equal(t, int64(2), second.JoinSeq)
	assert.Equal(t, int64(3), third.JoinSeq)

	// A departed member's sequence is never handed out again.
	registry.Remove("demo", second.ConnID)

	fourth := admit(registry, "demo")
	assert.Equal(t, int64(4), fourth.JoinSeq)
}

func TestRoomRegistry_MembersOfOrderedAscending(t *testing.T) {
	registry := NewRoomRegistry()

	admit(registry, "demo")
	admit(registry, "demo")
	admit(registry, "demo")

	members := registry.MembersOf("demo")
	require.Len(t, members, 3)

	for i := 1; i < len(members); i++ {
		assert.Greater(t, members[i].JoinSeq, members[i-1].JoinSeq)
	}
}

func TestRoomRegistry_UnknownRoomIsEmptyAndRemoveIsNoop(t *testing.T) {
	registry := NewRoomRegistry()

	assert.Empty(t, registry.MembersOf("nowhere"))

	removed, emptied := registry.Remove("nowhere", uuid.New())
	assert.False(t, removed)
	assert.False(t, emptied)
}

func TestRoomRegistry_LastLeaveDiscardsRoom(t *testing.T) {
	registry := NewRoomRegistry()

	member := admit(registry, "demo")
	require.Equal(t, 1, registry.RoomCount())

	removed, emptied := registry.Remove("demo", member.ConnID)
	assert.True(t, removed)
	assert.True(t, emptied)
	assert.Equal(t, 0, registry.RoomCount())

	// A re-created room is a fresh lifetime with fresh sequences.
	again := admit(registry, "demo")
	assert.Equal(t, int64(1), again.JoinSeq)
}

func TestRoomRegistry_ConcurrentAdmitsNeverCollide(t *testing.T) {
	registry := NewRoomRegistry()

	const n = 64

	var wg sync.WaitGroup
	results := make(chan int64, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- admit(registry, "demo").JoinSeq
		}()
	}

	wg.Wait()
	close(results)

	seen := make(map[int64]bool, n)
	for seq := range results {
		assert.False(t, seen[seq], "sequence %d assigned twice", seq)
		seen[seq] = true
	}

	assert.Len(t, seen, n)
	assert.Len(t, registry.MembersOf("demo"), n)
}

func TestRoomRegistry_PhaseCompareAndSwap(t *testing.T) {
	registry := NewRoomRegistry()

	admit(registry, "demo")

	require.Equal(t, runtime.PhaseLive, registry.Phase("demo"))

	assert.True(t, registry.CompareAndSwapPhase("demo", runtime.PhaseLive, runtime.PhaseCapturing))
	assert.Equal(t, runtime.PhaseCapturing, registry.Phase("demo"))

	// Only one capture may be in flight.
	assert.False(t, registry.CompareAndSwapPhase("demo", runtime.PhaseLive, runtime.PhaseCapturing))

	assert.True(t, registry.CompareAndSwapPhase("demo", runtime.PhaseCapturing, runtime.PhaseLive))

	assert.False(t, registry.CompareAndSwapPhase("missing", runtime.PhaseLive, runtime.PhaseCapturing))
}

func TestRoomRegistry_TouchUpdatesLastSeen(t *testing.T) {
	registry := NewRoomRegistry()

	member := admit(registry, "demo")

	later := time.Now().Add(time.Minute)
	registry.Touch("demo", member.ConnID, later)

	got, ok := registry.Member("demo", member.ConnID)
	require.True(t, ok)
	assert.Equal(t, later, got.LastSeen)
}

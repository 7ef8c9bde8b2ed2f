package docstate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEngine_OpaqueUpdatesSurviveRoundTrip(t *testing.T) {
	engine := NewMemoryEngine()

	require.NoError(t, engine.ApplyUpdate("room", []byte{0x01, 0x02, 0x03}))
	require.NoError(t, engine.ApplyUpdate("room", []byte{0xff, 0xee}))

	before, err := engine.EncodeFullState("room")
	require.NoError(t, err)

	engine.ClearAllState("room")

	cleared, err := engine.EncodeFullState("room")
	require.NoError(t, err)
	assert.NotEqual(t, before, cleared)

	require.NoError(t, engine.ApplyUpdate("room", before))

	after, err := engine.EncodeFullState("room")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMemoryEngine_MapStateSurvivesRoundTrip(t *testing.T) {
	engine := NewMemoryEngine()

	_, err := engine.MapSet("room", "comments", "c1", json.RawMessage(`{"id":"c1"}`))
	require.NoError(t, err)

	_, err = engine.MapAppend("room", "commentThreads", "c1", json.RawMessage(`{"text":"hi"}`))
	require.NoError(t, err)

	before, err := engine.EncodeFullState("room")
	require.NoError(t, err)

	engine.ClearAllState("room")
	_, ok := engine.MapGet("room", "comments", "c1")
	require.False(t, ok)

	require.NoError(t, engine.ApplyUpdate("room", before))

	value, ok := engine.MapGet("room", "comments", "c1")
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"c1"}`, string(value))

	thread := engine.MapList("room", "commentThreads", "c1")
	require.Len(t, thread, 1)
	assert.JSONEq(t, `{"text":"hi"}`, string(thread[0]))
}

func TestMemoryEngine_ApplyingStateTwiceIsIdempotent(t *testing.T) {
	engine := NewMemoryEngine()

	require.NoError(t, engine.ApplyUpdate("room", []byte("client-edit")))
	_, err := engine.MapSet("room", "comments", "c1", json.RawMessage(`{}`))
	require.NoError(t, err)

	state, err := engine.EncodeFullState("room")
	require.NoError(t, err)

	require.NoError(t, engine.ApplyUpdate("room", state))
	first, err := engine.EncodeFullState("room")
	require.NoError(t, err)

	require.NoError(t, engine.ApplyUpdate("room", state))
	second, err := engine.EncodeFullState("room")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMemoryEngine_MutationBlobsReplayOnPeers(t *testing.T) {
	engine := NewMemoryEngine()

	// Updates produced against one room replay into another engine's
	// view of the document, which is how comment ops reach peers.
	update, err := engine.MapSet("origin", "comments", "c1", json.RawMessage(`{"id":"c1"}`))
	require.NoError(t, err)

	peer := NewMemoryEngine()
	require.NoError(t, peer.ApplyUpdate("origin", update))

	value, ok := peer.MapGet("origin", "comments", "c1")
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"c1"}`, string(value))
}

func TestMemoryEngine_MapDeleteSpansCollectionsAtomically(t *testing.T) {
	engine := NewMemoryEngine()

	_, err := engine.MapSet("room", "comments", "c1", json.RawMessage(`{}`))
	require.NoError(t, err)
	_, err = engine.MapAppend("room", "commentThreads", "c1", json.RawMessage(`{"text":"a"}`))
	require.NoError(t, err)
	_, err = engine.MapAppend("room", "commentEvents", "c1", json.RawMessage(`{"action":"resolve"}`))
	require.NoError(t, err)

	update, err := engine.MapDelete("room", []string{"comments", "commentThreads", "commentEvents"}, "c1")
	require.NoError(t, err)

	_, ok := engine.MapGet("room", "comments", "c1")
	assert.False(t, ok)
	assert.Empty(t, engine.MapList("room", "commentThreads", "c1"))
	assert.Empty(t, engine.MapList("room", "commentEvents", "c1"))

	// The single delete blob removes everything on a peer as well.
	peer := NewMemoryEngine()
	_, err = peer.MapSet("room", "comments", "c1", json.RawMessage(`{}`))
	require.NoError(t, err)
	_, err = peer.MapAppend("room", "commentThreads", "c1", json.RawMessage(`{"text":"a"}`))
	require.NoError(t, err)

	require.NoError(t, peer.ApplyUpdate("room", update))

	_, ok = peer.MapGet("room", "comments", "c1")
	assert.False(t, ok)
	assert.Empty(t, peer.MapList("room", "commentThreads", "c1"))
}

func TestMemoryEngine_ReleaseForgetsRoom(t *testing.T) {
	engine := NewMemoryEngine()

	require.NoError(t, engine.ApplyUpdate("room", []byte("edit")))

	before, err := engine.EncodeFullState("room")
	require.NoError(t, err)

	engine.Release("room")

	fresh, err := engine.EncodeFullState("room")
	require.NoError(t, err)
	assert.NotEqual(t, before, fresh)
}

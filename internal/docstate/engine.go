// Package docstate holds the document-merge collaborator contract. The relay
// treats every update and full-state blob as opaque bytes; only an Engine may
// interpret them.
package docstate

import "encoding/json"

type Engine interface {
	// ApplyUpdate merges one update blob into the room's document. Blobs
	// produced by clients are kept verbatim; blobs produced by this engine
	// (map operations, full-state encodings) are applied structurally.
	ApplyUpdate(roomKey string, update []byte) error

	// EncodeFullState returns a self-contained blob of the room's document.
	// Applying it to a cleared room reproduces an equivalent state.
	EncodeFullState(roomKey string) ([]byte, error)

	// ClearAllState empties the room's document but keeps the room known.
	ClearAllState(roomKey string)

	// Release forgets the room entirely. Called when a room loses its last
	// member; a room with no members retains no document state.
	Release(roomKey string)

	// Keyed shared collections inside the same document. Mutations return
	// the update blob that, relayed to peers, replays the mutation there.
	MapSet(roomKey, ns, key string, value json.RawMessage) ([]byte, error)
	// MapDelete removes the keys from every named collection as one
	// update, so observers never see a partial delete.
	MapDelete(roomKey string, namespaces []string, keys ...string) ([]byte, error)
	MapAppend(roomKey, ns, key string, value json.RawMessage) ([]byte, error)

	MapGet(roomKey, ns, key string) (json.RawMessage, bool)
	MapValues(roomKey, ns string) map[string]json.RawMessage
	MapList(roomKey, ns, key string) []json.RawMessage
}

package docstate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
)

// envelopeMagic prefixes every blob this engine produces, so they can be
// told apart from raw client updates, which are stored verbatim.
var envelopeMagic = []byte{0x00, 'p', 'r', '1'}

const (
	opSet    = "set"
	opDelete = "delete"
	opAppend = "append"
	opState  = "state"
)

type envelope struct {
	Op     string          `json:"op"`
	NS     string          `json:"ns,omitempty"`
	NSList []string        `json:"nss,omitempty"`
	Key    string          `json:"key,omitempty"`
	Keys   []string        `json:"keys,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
	State  *fullState      `json:"state,omitempty"`
}

type fullState struct {
	KV      map[string]map[string]json.RawMessage   `json:"kv"`
	Logs    map[string]map[string][]json.RawMessage `json:"logs"`
	Updates [][]byte                                `json:"updates"`
}

// doc is one room's document: keyed maps, append logs, and the verbatim
// log of opaque client updates in arrival order.
type doc struct {
	mu sync.Mutex

	kv      map[string]map[string]json.RawMessage
	logs    map[string]map[string][]json.RawMessage
	updates [][]byte
}

func newDoc() *doc {
	return &doc{
		kv:   make(map[string]map[string]json.RawMessage),
		logs: make(map[string]map[string][]json.RawMessage),
	}
}

// MemoryEngine is an in-process Engine. It does not merge concurrent edits
// structurally (clients do that); it accumulates them so a full-state
// encoding can be captured and restored server-side.
type MemoryEngine struct {
	mu    sync.RWMutex
	rooms map[string]*doc
}

func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		rooms: make(map[string]*doc),
	}
}

func (e *MemoryEngine) room(roomKey string) *doc {
	e.mu.RLock()
	d, ok := e.rooms[roomKey]
	e.mu.RUnlock()

	if ok {
		return d
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if d, ok = e.rooms[roomKey]; ok {
		return d
	}

	d = newDoc()
	e.rooms[roomKey] = d

	return d
}

func (e *MemoryEngine) ApplyUpdate(roomKey string, update []byte) error {
	d := e.room(roomKey)

	if !bytes.HasPrefix(update, envelopeMagic) {
		d.mu.Lock()
		defer d.mu.Unlock()

		d.updates = append(d.updates, bytes.Clone(update))
		return nil
	}

	var env envelope
	if err := json.Unmarshal(update[len(envelopeMagic):], &env); err != nil {
		return fmt.Errorf("decode update envelope: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch env.Op {
	case opSet:
		d.set(env.NS, env.Key, env.Value)
	case opDelete:
		d.delete(env.NSList, env.Keys)
	case opAppend:
		d.append(env.NS, env.Key, env.Value)
	case opState:
		if env.State == nil {
			return fmt.Errorf("state envelope without state")
		}
		d.replace(env.State)
	default:
		return fmt.Errorf("unknown envelope op %q", env.Op)
	}

	return nil
}

func (e *MemoryEngine) EncodeFullState(roomKey string) ([]byte, error) {
	d := e.room(roomKey)

	d.mu.Lock()
	defer d.mu.Unlock()

	return encodeEnvelope(envelope{Op: opState, State: d.snapshot()})
}

func (e *MemoryEngine) ClearAllState(roomKey string) {
	d := e.room(roomKey)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.kv = make(map[string]map[string]json.RawMessage)
	d.logs = make(map[string]map[string][]json.RawMessage)
	d.updates = nil
}

func (e *MemoryEngine) Release(roomKey string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.rooms, roomKey)
}

func (e *MemoryEngine) MapSet(roomKey, ns, key string, value json.RawMessage) ([]byte, error) {
	d := e.room(roomKey)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.set(ns, key, value)

	return encodeEnvelope(envelope{Op: opSet, NS: ns, Key: key, Value: value})
}

func (e *MemoryEngine) MapDelete(roomKey string, namespaces []string, keys ...string) ([]byte, error) {
	d := e.room(roomKey)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.delete(namespaces, keys)

	return encodeEnvelope(envelope{Op: opDelete, NSList: namespaces, Keys: keys})
}

func (e *MemoryEngine) MapAppend(roomKey, ns, key string, value json.RawMessage) ([]byte, error) {
	d := e.room(roomKey)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.append(ns, key, value)

	return encodeEnvelope(envelope{Op: opAppend, NS: ns, Key: key, Value: value})
}

func (e *MemoryEngine) MapGet(roomKey, ns, key string) (json.RawMessage, bool) {
	d := e.room(roomKey)

	d.mu.Lock()
	defer d.mu.Unlock()

	bucket, ok := d.kv[ns]
	if !ok {
		return nil, false
	}

	value, ok := bucket[key]
	return value, ok
}

func (e *MemoryEngine) MapValues(roomKey, ns string) map[string]json.RawMessage {
	d := e.room(roomKey)

	d.mu.Lock()
	defer d.mu.Unlock()

	values := make(map[string]json.RawMessage, len(d.kv[ns]))
	for key, value := range d.kv[ns] {
		values[key] = value
	}

	return values
}

func (e *MemoryEngine) MapList(roomKey, ns, key string) []json.RawMessage {
	d := e.room(roomKey)

	d.mu.Lock()
	defer d.mu.Unlock()

	bucket, ok := d.logs[ns]
	if !ok {
		return nil
	}

	list := make([]json.RawMessage, len(bucket[key]))
	copy(list, bucket[key])

	return list
}

func (d *doc) set(ns, key string, value json.RawMessage) {
	bucket, ok := d.kv[ns]
	if !ok {
		bucket = make(map[string]json.RawMessage)
		d.kv[ns] = bucket
	}

	bucket[key] = value
}

func (d *doc) delete(namespaces []string, keys []string) {
	for _, ns := range namespaces {
		for _, key := range keys {
			if bucket, ok := d.kv[ns]; ok {
				delete(bucket, key)
			}
			if bucket, ok := d.logs[ns]; ok {
				delete(bucket, key)
			}
		}
	}
}

func (d *doc) append(ns, key string, value json.RawMessage) {
	bucket, ok := d.logs[ns]
	if !ok {
		bucket = make(map[string][]json.RawMessage)
		d.logs[ns] = bucket
	}

	bucket[key] = append(bucket[key], value)
}

func (d *doc) snapshot() *fullState {
	state := &fullState{
		KV:      make(map[string]map[string]json.RawMessage, len(d.kv)),
		Logs:    make(map[string]map[string][]json.RawMessage, len(d.logs)),
		Updates: make([][]byte, len(d.updates)),
	}

	for ns, bucket := range d.kv {
		state.KV[ns] = make(map[string]json.RawMessage, len(bucket))
		for key, value := range bucket {
			state.KV[ns][key] = value
		}
	}

	for ns, bucket := range d.logs {
		state.Logs[ns] = make(map[string][]json.RawMessage, len(bucket))
		for key, list := range bucket {
			copied := make([]json.RawMessage, len(list))
			copy(copied, list)
			state.Logs[ns][key] = copied
		}
	}

	copy(state.Updates, d.updates)

	return state
}

func (d *doc) replace(state *fullState) {
	d.kv = make(map[string]map[string]json.RawMessage, len(state.KV))
	for ns, bucket := range state.KV {
		d.kv[ns] = make(map[string]json.RawMessage, len(bucket))
		for key, value := range bucket {
			d.kv[ns][key] = value
		}
	}

	d.logs = make(map[string]map[string][]json.RawMessage, len(state.Logs))
	for ns, bucket := range state.Logs {
		d.logs[ns] = make(map[string][]json.RawMessage, len(bucket))
		for key, list := range bucket {
			copied := make([]json.RawMessage, len(list))
			copy(copied, list)
			d.logs[ns][key] = copied
		}
	}

	d.updates = make([][]byte, len(state.Updates))
	copy(d.updates, state.Updates)
}

func encodeEnvelope(env envelope) ([]byte, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode update envelope: %w", err)
	}

	return append(bytes.Clone(envelopeMagic), payload...), nil
}

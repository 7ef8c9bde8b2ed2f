package memory

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fivepointers/pagerelay/internal/application/metric"
)

// ConnectionRepository holds the live websocket of every admitted
// connection. Writes are serialized per connection; write errors are
// returned to the caller, which treats them as the liveness signal.
type ConnectionRepository interface {
	Add(connID uuid.UUID, conn *websocket.Conn)
	Remove(connID uuid.UUID)

	WriteJSON(connID uuid.UUID, payload any) error
	WriteBinary(connID uuid.UUID, payload []byte) error

	// Ping sends a websocket control ping, serialized with data writes.
	Ping(connID uuid.UUID) error

	// CloseAll closes every tracked socket. Used on shutdown.
	CloseAll()
}

type safeWS struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

type connectionRepository struct {
	conns map[uuid.UUID]*safeWS
	mu    sync.RWMutex
}

func NewConnectionRepository() ConnectionRepository {
	return &connectionRepository{
		conns: make(map[uuid.UUID]*safeWS, 16),
	}
}

func (r *connectionRepository) Add(connID uuid.UUID, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[connID] = &safeWS{conn: conn}

	metric.IncrementWSActiveConnections()
}

func (r *connectionRepository) Remove(connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ws, exists := r.conns[connID]; exists {
		delete(r.conns, connID)
		ws.conn.Close()

		metric.DecrementWSActiveConnections()
	}
}

func (r *connectionRepository) WriteJSON(connID uuid.UUID, payload any) error {
	ws, ok := r.get(connID)
	if !ok {
		return websocket.ErrCloseSent
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	return ws.conn.WriteJSON(payload)
}

func (r *connectionRepository) WriteBinary(connID uuid.UUID, payload []byte) error {
	ws, ok := r.get(connID)
	if !ok {
		return websocket.ErrCloseSent
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	return ws.conn.WriteMessage(websocket.BinaryMessage, payload)
}

func (r *connectionRepository) Ping(connID uuid.UUID) error {
	ws, ok := r.get(connID)
	if !ok {
		return websocket.ErrCloseSent
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	return ws.conn.WriteMessage(websocket.PingMessage, nil)
}

func (r *connectionRepository) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for connID, ws := range r.conns {
		ws.conn.Close()
		delete(r.conns, connID)

		metric.DecrementWSActiveConnections()
	}
}

func (r *connectionRepository) get(connID uuid.UUID) (*safeWS, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ws, ok := r.conns[connID]
	return ws, ok
}

// Package realtime implements the core of the specification: the
// Connection Registry, Membership Sync, Inbound Message Loop, Delivery
// Engine, and Pub/Sub Listener (C4-C7, C9), plus the WebSocket upgrade
// handler that wires them together.
package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Registry is the in-process map of user id to active connection. At most
// one live connection per uid per instance; a new connection displaces
// the old one with a normal close. All access is synchronized by a
// sharded-free mutex since nothing here assumes a cooperative scheduler.
type Registry struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]*Connection
}

func NewRegistry() *Registry {
	return &Registry{connections: make(map[uuid.UUID]*Connection)}
}

// Register inserts conn, returning the previous connection for this uid
// (or nil) so the caller can cleanly close it — displacement per §4.4
// step 2.
func (r *Registry) Register(conn *Connection) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.connections[conn.userID]
	r.connections[conn.userID] = conn
	return prev
}

// Unregister removes conn only if it is still the registered connection
// for its uid (a displaced connection must not un-register the one that
// replaced it).
func (r *Registry) Unregister(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.connections[conn.userID]; ok && current == conn {
		delete(r.connections, conn.userID)
	}
}

// Get returns the live connection for uid, if any.
func (r *Registry) Get(uid uuid.UUID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[uid]
	return conn, ok
}

// Online returns the user ids with a live connection on this instance. Used for
// diagnostics; cross-instance truth lives in the Session Store.
func (r *Registry) Online() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(r.connections))
	for uid := range r.connections {
		ids = append(ids, uid)
	}
	return ids
}

// Package handlers provides Telnet session handling: the welcome and
// authentication flow and the main game loop.
package handlers

import (
	"sync"

	"github.com/google/uuid"

	"github.com/samud/samud/internal/telnet"
)

// ConnectionRegistry tracks every live connection so shutdown can close
// them all. Safe for concurrent use.
type ConnectionRegistry struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*telnet.Conn
}

// NewConnectionRegistry creates an empty ConnectionRegistry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{conns: make(map[uuid.UUID]*telnet.Conn)}
}

// Add registers a connection under the given session id.
func (r *ConnectionRegistry) Add(id uuid.UUID, conn *telnet.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = conn
}

// Remove deregisters a connection. Removing an unknown id is a no-op.
func (r *ConnectionRegistry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
}

// Len returns the number of live connections.
func (r *ConnectionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// CloseAll closes every registered connection. Each session's handler
// observes the close as a read error and cleans itself up.
func (r *ConnectionRegistry) CloseAll() {
	r.mu.Lock()
	conns := make([]*telnet.Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

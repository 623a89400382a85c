package wsgateway

import (
	"sync"
)

// ConnectionRegistry tracks the live sockets of push recipients. The hub
// fans a notification out to every socket of its user id, so a user with
// several tabs open receives it on each; a user with none is reported
// unavailable to the dispatcher.
type ConnectionRegistry struct {
	connections map[string]*Connection            // connection id -> socket
	byUser      map[string]map[string]*Connection // recipient -> connection id -> socket
	mu          sync.RWMutex
}

// NewConnectionRegistry returns an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		connections: make(map[string]*Connection),
		byUser:      make(map[string]map[string]*Connection),
	}
}

// Add registers an authenticated socket under its recipient.
func (r *ConnectionRegistry) Add(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[conn.ID] = conn
	if r.byUser[conn.UserID] == nil {
		r.byUser[conn.UserID] = make(map[string]*Connection)
	}
	r.byUser[conn.UserID][conn.ID] = conn
}

// Remove drops a closed socket. It reports false when the socket was already
// gone, so the hub unwinds a connection only once.
func (r *ConnectionRegistry) Remove(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.connections[connectionID]
	if !exists {
		return false
	}
	delete(r.connections, connectionID)

	if userConns, ok := r.byUser[conn.UserID]; ok {
		delete(userConns, connectionID)
		if len(userConns) == 0 {
			delete(r.byUser, conn.UserID)
		}
	}
	return true
}

// Get looks a socket up by connection id.
func (r *ConnectionRegistry) Get(connectionID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, exists := r.connections[connectionID]
	return conn, exists
}

// GetByUser returns the sockets a notification for userID is written to.
func (r *ConnectionRegistry) GetByUser(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userConns := r.byUser[userID]
	connections := make([]*Connection, 0, len(userConns))
	for _, conn := range userConns {
		connections = append(connections, conn)
	}
	return connections
}

// GetAll returns every socket; used for pings and shutdown.
func (r *ConnectionRegistry) GetAll() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connections := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		connections = append(connections, conn)
	}
	return connections
}

// Count is checked against the connection cap on upgrade.
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

func (r *ConnectionRegistry) CountByUser(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

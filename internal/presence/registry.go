// Package presence tracks which users currently hold a live realtime connection.
package presence

import "sync"

// Conn is a live realtime connection that can receive events.
type Conn interface {
	// ID is unique per connection for its lifetime.
	ID() string
	Emit(event string, payload any) error
}

// Registry maps a user to at most one connection. The most recent Register wins.
type Registry struct {
	mu    sync.Mutex
	conns map[string]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register binds userID to conn, replacing any earlier binding.
func (r *Registry) Register(userID string, conn Conn) {
	if userID == "" || conn == nil {
		return
	}
	r.mu.Lock()
	r.conns[userID] = conn
	r.mu.Unlock()
}

func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[userID]
	return c, ok
}

// Remove drops every entry bound to conn. It reports the user ids that were
// removed; removing an unknown conn is a no-op.
func (r *Registry) Remove(conn Conn) []string {
	if conn == nil {
		return nil
	}
	id := conn.ID()

	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []string
	for userID, c := range r.conns {
		if c.ID() == id {
			delete(r.conns, userID)
			removed = append(removed, userID)
		}
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

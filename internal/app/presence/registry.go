/*
Package presence tracks which live connections are bound to which identity.
*/
package presence

import (
	"sort"
	"sync"
)

// Conn is a live client connection able to receive encoded frames.
// Implementations must be comparable (pointer receivers).
type Conn interface {
	// ID is a per-connection identifier used in logs.
	ID() string

	// Send queues an encoded frame for delivery. It must not block.
	Send(frame []byte) error

	// Close terminates the connection.
	Close()
}

// Registry is a two-way index between connections and nicknames.
// A connection is bound to at most one nickname; a nickname may have many connections.
type Registry struct {
	mu       sync.RWMutex
	byConn   map[Conn]string
	byName   map[string]map[Conn]struct{}
	attached map[Conn]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byConn:   make(map[Conn]string),
		byName:   make(map[string]map[Conn]struct{}),
		attached: make(map[Conn]struct{}),
	}
}

// Attach records an unauthenticated connection.
func (r *Registry) Attach(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attached[c] = struct{}{}
}

// Bind associates c with nickname, replacing any previous binding of c.
func (r *Registry) Bind(c Conn, nickname string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unbindLocked(c)

	r.attached[c] = struct{}{}
	r.byConn[c] = nickname

	set, ok := r.byName[nickname]
	if !ok {
		set = make(map[Conn]struct{})
		r.byName[nickname] = set
	}
	set[c] = struct{}{}
}

// Unbind forgets c entirely. It returns the nickname c was bound to, if any.
func (r *Registry) Unbind(c Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.attached, c)
	return r.unbindLocked(c)
}

func (r *Registry) unbindLocked(c Conn) (string, bool) {
	nickname, ok := r.byConn[c]
	if !ok {
		return "", false
	}

	delete(r.byConn, c)
	if set := r.byName[nickname]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(r.byName, nickname)
		}
	}
	return nickname, true
}

// IdentityFor returns the nickname bound to c.
func (r *Registry) IdentityFor(c Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nickname, ok := r.byConn[c]
	return nickname, ok
}

// ConnectionsFor returns every connection bound to nickname.
func (r *Registry) ConnectionsFor(nickname string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byName[nickname]
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Authenticated returns every bound connection.
func (r *Registry) Authenticated() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conn, 0, len(r.byConn))
	for c := range r.byConn {
		out = append(out, c)
	}
	return out
}

// All returns every known connection, bound or not.
func (r *Registry) All() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conn, 0, len(r.attached))
	for c := range r.attached {
		out = append(out, c)
	}
	return out
}

// Online returns the nicknames that have at least one connection, sorted.
func (r *Registry) Online() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.byName))
	for nickname := range r.byName {
		out = append(out, nickname)
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}

// Len returns the number of known connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.attached)
}

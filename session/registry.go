package session

import (
	"sync"

	"github.com/google/uuid"
)

// registry is the global mutex-protected table of live sessions, keyed by
// uuid (spec.md §5, "Shared resources" -- session identity is the one
// piece of global mutable state every session needs to be discoverable
// by, e.g., an admin console listing active connections).
var registry = struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}{sessions: make(map[uuid.UUID]*Session)}

// Register adds s to the global session registry. Called by New.
func Register(s *Session) {
	registry.mu.Lock()
	registry.sessions[s.id] = s
	registry.mu.Unlock()
}

// Unregister removes a session from the registry. Called by Close.
func Unregister(id uuid.UUID) {
	registry.mu.Lock()
	delete(registry.sessions, id)
	registry.mu.Unlock()
}

// Lookup returns the session with the given id, if it's still live.
func Lookup(id uuid.UUID) (*Session, bool) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	s, ok := registry.sessions[id]
	return s, ok
}

// All returns a snapshot of every currently registered session.
func All() []*Session {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	out := make([]*Session, 0, len(registry.sessions))
	for _, s := range registry.sessions {
		out = append(out, s)
	}
	return out
}

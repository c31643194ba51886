package engine

import (
	"sync"

	"github.com/google/uuid"
)

// Registry holds at most one live engine per session. Concurrent entries
// for the same session (two tabs, reconnects) share the single engine, so
// the timer and capture token stay singletons per session.
type Registry struct {
	mu      sync.Mutex
	engines map[uuid.UUID]*Engine
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[uuid.UUID]*Engine)}
}

// GetOrCreate returns the live engine for the session, building it with
// build on first use. The build runs under the registry lock so two
// concurrent resumes cannot race into two timers.
func (r *Registry) GetOrCreate(sessionID uuid.UUID, build func() (*Engine, error)) (*Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.engines[sessionID]; ok {
		return e, nil
	}
	e, err := build()
	if err != nil {
		return nil, err
	}
	r.engines[sessionID] = e
	return e, nil
}

// Get returns the live engine for a session, if any.
func (r *Registry) Get(sessionID uuid.UUID) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.engines[sessionID]
	return e, ok
}

// Remove evicts and closes the engine for a session. Called after the
// terminal transition or on idle eviction.
func (r *Registry) Remove(sessionID uuid.UUID) {
	r.mu.Lock()
	e, ok := r.engines[sessionID]
	delete(r.engines, sessionID)
	r.mu.Unlock()

	if ok {
		e.Close()
	}
}

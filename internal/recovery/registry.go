package recovery

import (
	"context"
	"sync"
)

// Registry keeps one Session per user for long-running front ends. Sessions
// are resumed from the store on first access.
type Registry struct {
	manager *Manager

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty Registry.
func NewRegistry(manager *Manager) *Registry {
	return &Registry{manager: manager, sessions: make(map[string]*Session)}
}

// Manager returns the manager sessions are run by.
func (r *Registry) Manager() *Manager {
	return r.manager
}

// Get returns the user's session, resuming it from the store if needed.
// A failed resume is not cached, so the next call tries again.
func (r *Registry) Get(ctx context.Context, userID string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	r.mu.Unlock()
	if ok {
		return s, nil
	}

	resumed, err := r.manager.Resume(ctx, userID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another caller may have resumed the same user meanwhile.
	if s, ok := r.sessions[userID]; ok {
		return s, nil
	}
	r.sessions[userID] = resumed
	return resumed, nil
}

// Drop forgets a user's session and cancels its pending auto-advance.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()
	if ok {
		r.manager.CancelPendingAdvance(s)
	}
}

// Close stops auto-advance for every session. Call it before closing the
// store the manager writes to.
func (r *Registry) Close() {
	r.manager.StopAdvancing()

	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		r.manager.CancelPendingAdvance(s)
	}
}

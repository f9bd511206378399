package planner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type registered struct {
	session  *Session
	lastSeen time.Time
}

// Registry holds open sessions by ID and forgets the ones left idle longer
// than its TTL. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*registered
	ttl      time.Duration
	now      func() time.Time
}

// NewRegistry returns an empty registry. A non-positive ttl keeps sessions
// until they are removed.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*registered),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Add registers s.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = &registered{session: s, lastSeen: r.now()}
}

// Get returns the session with id and refreshes its idle timer.
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	now := r.now()
	if r.expired(reg, now) {
		delete(r.sessions, id)
		return nil, false
	}
	reg.lastSeen = now
	return reg.session, true
}

// Remove forgets the session with id. It reports whether it was registered.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

// Len returns the number of registered sessions, expired or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops every expired session and returns how many were dropped.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for id, reg := range r.sessions {
		if r.expired(reg, now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) expired(reg *registered, now time.Time) bool {
	return r.ttl > 0 && now.Sub(reg.lastSeen) > r.ttl
}

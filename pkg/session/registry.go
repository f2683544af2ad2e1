package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry owns the live sessions. Sessions share nothing but this map.
type Registry struct {
	Width, Height int
	ScratchDir    string
	TTL           time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry whose sessions render at
// width x height by default and expire after ttl without a connection.
func NewRegistry(width, height int, ttl time.Duration) *Registry {
	return &Registry{
		Width:    width,
		Height:   height,
		TTL:      ttl,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session.
func (r *Registry) Create() *Session {
	s := New(uuid.NewString(), r.Width, r.Height)
	s.ScratchDir = r.ScratchDir

	r.mu.Lock()
	r.sessions[s.ID] = s
	n := len(r.sessions)
	r.mu.Unlock()

	log.Printf("session %s: created (%d live)", s.ID, n)
	return s
}

// Get returns the session with the given id and marks it active.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		s.Touch()
	}
	return s, ok
}

// Remove drops a session, and with it its view and mesh.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	if ok {
		log.Printf("session %s: removed (%d live)", id, n)
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes sessions idle since before now minus the TTL and returns
// how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	if r.TTL <= 0 {
		return 0
	}
	cutoff := now.Add(-r.TTL)

	r.mu.Lock()
	var expired []string
	for id, s := range r.sessions {
		if s.idle(cutoff) {
			expired = append(expired, id)
		}
	}
	r.mu.Unlock()

	for _, id := range expired {
		r.Remove(id)
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

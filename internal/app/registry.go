package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/DannyahIA/nexus-sub002/internal/domain"
)

// Registry is the keyed store of peer sessions. Mutation goes through the
// engine only; readers (HealthMonitor, HTTP surface) take snapshots.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.UserID]*PeerSession
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[domain.UserID]*PeerSession)}
}

func (r *Registry) Get(id domain.UserID) (*PeerSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) put(s *PeerSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.UserID] = s
	log.Info().Str("module", "app.registry").Str("user_id", string(s.UserID)).Msg("session registered")
}

func (r *Registry) remove(id domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	log.Info().Str("module", "app.registry").Str("user_id", string(id)).Msg("session removed")
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// all returns the live session pointers. Engine-internal; callers must hold
// the engine lock before touching session fields.
func (r *Registry) all() []*PeerSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*PeerSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Snapshot returns read-only views of every session.
func (r *Registry) Snapshot() []SessionSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionSnapshot, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.snapshot())
	}
	return out
}

package session

import (
	"sync"
	"time"

	apperrors "pensionflow/pkg/errors"
	"pensionflow/pkg/logger"
)

// Registry keeps the live sessions in memory, keyed by id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cfg      Config
	logger   logger.Logger
}

func NewRegistry(cfg Config, log logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		logger:   log,
	}
}

// Create starts a new session on the dashboard.
func (r *Registry) Create() *Session {
	s := New(r.cfg, r.logger)
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()

	r.logger.Info("session created", map[string]interface{}{"session_id": s.ID()})
	return s
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	s.Touch()
	return s, nil
}

// Delete closes and forgets a session.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return apperrors.ErrSessionNotFound
	}
	s.Close()
	r.logger.Info("session deleted", map[string]interface{}{"session_id": id})
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep closes sessions idle for longer than idle and returns how many
// were removed.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		if s.IdleSince().Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 {
		r.logger.Info("idle sessions swept", map[string]interface{}{"count": len(stale)})
	}
	return len(stale)
}

// CloseAll closes every session. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}

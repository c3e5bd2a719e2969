package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joeblew999/plat-stat/internal/logger"
	"github.com/joeblew999/plat-stat/internal/metrics"
)

// ErrSessionNotFound is returned for an unknown or expired session id.
var ErrSessionNotFound = errors.New("session not found")

// DefaultIdleTimeout is how long an unused session is kept.
const DefaultIdleTimeout = 30 * time.Minute

// Sessions maps session ids to controllers. State is never persisted; a
// restart or an idle timeout starts the user afresh.
type Sessions struct {
	mu    sync.RWMutex
	deps  *Deps
	items map[string]*Controller
	idle  time.Duration
	now   func() time.Time
}

// NewSessions creates an empty session table.
func NewSessions(d *Deps, idle time.Duration) *Sessions {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Sessions{
		deps:  d,
		items: make(map[string]*Controller),
		idle:  idle,
		now:   time.Now,
	}
}

// Create starts a new session.
func (s *Sessions) Create() *Controller {
	id := uuid.NewString()
	c := NewController(id, s.deps)
	c.touch(s.now())

	s.mu.Lock()
	s.items[id] = c
	n := len(s.items)
	s.mu.Unlock()

	metrics.SessionsCreatedTotal.Inc()
	metrics.SessionsActive.Set(float64(n))
	logger.L().Debug("session_created", "session", id)
	return c
}

// Get returns the controller of a session and marks it used.
func (s *Sessions) Get(id string) (*Controller, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}
	s.mu.RLock()
	c, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	c.touch(s.now())
	return c, nil
}

// GetOrCreate returns the session id's controller, or a new session when
// id is empty or unknown.
func (s *Sessions) GetOrCreate(id string) *Controller {
	if id != "" {
		if c, err := s.Get(id); err == nil {
			return c
		}
	}
	return s.Create()
}

// Delete ends a session.
func (s *Sessions) Delete(id string) bool {
	s.mu.Lock()
	_, ok := s.items[id]
	delete(s.items, id)
	n := len(s.items)
	s.mu.Unlock()
	metrics.SessionsActive.Set(float64(n))
	return ok
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Prune drops sessions idle for longer than the timeout and returns how
// many were removed.
func (s *Sessions) Prune() int {
	cutoff := s.now().Add(-s.idle)
	s.mu.Lock()
	removed := 0
	for id, c := range s.items {
		if c.idleSince().Before(cutoff) {
			delete(s.items, id)
			removed++
		}
	}
	n := len(s.items)
	s.mu.Unlock()

	metrics.SessionsActive.Set(float64(n))
	if removed > 0 {
		logger.L().Info("sessions_pruned", "removed", removed, "active", n)
	}
	return removed
}

// Run prunes idle sessions until ctx is done.
func (s *Sessions) Run(ctx context.Context) {
	interval := s.idle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Prune()
		}
	}
}

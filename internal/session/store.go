package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mohaweel/internal/domain"
	"mohaweel/internal/infra"
)

type entry struct {
	ctrl     *Controller
	lastSeen time.Time
}

// Store keeps sessions in memory, keyed by a random id. Sessions idle for
// longer than the TTL are evicted by Run.
type Store struct {
	mu          sync.Mutex
	sessions    map[string]*entry
	transformer Transformer
	ttl         time.Duration
	logger      *infra.Logger
	now         func() time.Time
}

func NewStore(t Transformer, ttl time.Duration, logger *infra.Logger) *Store {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Store{
		sessions:    make(map[string]*entry),
		transformer: t,
		ttl:         ttl,
		logger:      logger,
		now:         time.Now,
	}
}

// Create starts a new session and returns its id.
func (s *Store) Create() (string, *Controller) {
	id := uuid.NewString()
	ctrl := NewController(s.transformer, WithLogger(s.logger), WithClock(s.now))
	s.mu.Lock()
	s.sessions[id] = &entry{ctrl: ctrl, lastSeen: s.now()}
	s.mu.Unlock()
	return id, ctrl
}

// Get returns the session and refreshes its idle timer.
func (s *Store) Get(id string) (*Controller, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	e.lastSeen = s.now()
	return e.ctrl, nil
}

// Delete drops a session. It reports whether the session existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep evicts sessions idle since before now-ttl and returns how many were removed.
func (s *Store) Sweep(now time.Time) int {
	cutoff := now.Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	interval := s.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 {
				s.logger.Debug().Int("evicted", n).Int("remaining", s.Len()).Msg("session: swept idle sessions")
			}
		}
	}
}

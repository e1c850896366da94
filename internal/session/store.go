package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"study-companion/internal/metrics"
)

// Store holds every live session. Sessions idle for longer than ttl are
// swept.
type Store struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]*Session
	ttl       time.Duration
	flipDelay time.Duration
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewStore(ttl, flipDelay time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Store {
	return &Store{
		sessions:  make(map[uuid.UUID]*Session),
		ttl:       ttl,
		flipDelay: flipDelay,
		metrics:   m,
		logger:    logger.With().Str("component", "sessions").Logger(),
		now:       time.Now,
	}
}

func (st *Store) Create() *Session {
	sess := newSession(st.now(), st.flipDelay)

	st.mu.Lock()
	st.sessions[sess.ID] = sess
	n := len(st.sessions)
	st.mu.Unlock()

	st.metrics.ActiveSessions.Set(float64(n))
	st.logger.Debug().Str("session_id", sess.ID.String()).Msg("Session created")
	return sess
}

// Get returns the session and marks it as used.
func (st *Store) Get(id uuid.UUID) (*Session, error) {
	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	sess.touch(st.now())
	return sess, nil
}

func (st *Store) Delete(id uuid.UUID) {
	st.mu.Lock()
	delete(st.sessions, id)
	n := len(st.sessions)
	st.mu.Unlock()

	st.metrics.ActiveSessions.Set(float64(n))
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep evicts idle sessions and returns how many were removed.
func (st *Store) Sweep() int {
	cutoff := st.now().Add(-st.ttl)

	st.mu.Lock()
	removed := 0
	for id, sess := range st.sessions {
		if sess.idleSince().Before(cutoff) {
			delete(st.sessions, id)
			removed++
		}
	}
	n := len(st.sessions)
	st.mu.Unlock()

	st.metrics.ActiveSessions.Set(float64(n))
	if removed > 0 {
		st.logger.Info().Int("evicted", removed).Int("active", n).Msg("Evicted idle sessions")
	}
	return removed
}

// Run sweeps periodically until ctx is done.
func (st *Store) Run(ctx context.Context) {
	interval := min(st.ttl/4, time.Minute)
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Sweep()
		}
	}
}

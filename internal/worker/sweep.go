package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Expirer is the subset of store.Sessions the sweep needs.
type Expirer interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// Sweep deletes sessions idle for longer than TTL.
type Sweep struct {
	sessions Expirer
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewSweep returns a Sweep over sessions. now may be nil.
func NewSweep(sessions Expirer, ttl time.Duration, now func() time.Time, logger *slog.Logger) *Sweep {
	if now == nil {
		now = time.Now
	}
	return &Sweep{sessions: sessions, ttl: ttl, now: now, logger: logger}
}

func (s *Sweep) Name() string { return "session-sweep" }

// Run removes every session last updated before now - TTL.
func (s *Sweep) Run(ctx context.Context) error {
	cutoff := s.now().UTC().Add(-s.ttl)
	n, err := s.sessions.DeleteExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("sweep: delete expired: %w", err)
	}
	if n > 0 {
		s.logger.Info("sweep: removed expired sessions", "count", n, "cutoff", cutoff)
	}
	return nil
}

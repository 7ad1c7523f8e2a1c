// Package store persists questionnaire sessions between requests.
//
// Three backends implement Sessions: an in-process map for development and
// tests, Redis for multi-instance deployments with TTL expiry, and Postgres
// for durable storage. All of them serialise Update per session so two
// concurrent submits for the same session never interleave.
//
// Dependency rule: store imports questionnaire only. It never imports api,
// assessment, or inference.
package store

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/workplace-wellbeing-backend/internal/questionnaire"
)

// ─── ERRORS ──────────────────────────────────────────────────────────────────

var (
	// ErrNotFound is returned when no session exists for an id, including
	// sessions that expired.
	ErrNotFound = errors.New("store: session not found")

	// ErrExists is returned by Create when the id is already taken.
	ErrExists = errors.New("store: session already exists")
)

// ─── INTERFACE ───────────────────────────────────────────────────────────────

// UpdateFunc mutates a session in place. Returning a non-nil error discards
// the mutation and Update returns that error unchanged.
type UpdateFunc func(s *questionnaire.Session) error

// Sessions is the storage interface the assessment service depends on.
// Implementations must be safe for concurrent use.
type Sessions interface {
	Create(ctx context.Context, s questionnaire.Session) error
	Get(ctx context.Context, id uuid.UUID) (questionnaire.Session, error)

	// Update loads the session, applies fn and writes the result atomically
	// with respect to other Updates of the same session. It returns the
	// session as written.
	Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (questionnaire.Session, error)

	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteExpired removes sessions last updated before cutoff and returns
	// how many were removed. Backends with native expiry may return 0.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// clone deep-copies the mutable parts of a session so a caller can never
// alias stored state.
func clone(s questionnaire.Session) questionnaire.Session {
	s.Answers = maps.Clone(s.Answers)
	if s.Answers == nil {
		s.Answers = map[string]string{}
	}
	s.Row = slices.Clone(s.Row)
	return s
}

package questionnaire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ─── SESSION ──────────────────────────────────────────────────────────────────

// Session is the per-user questionnaire state. It is a plain value: the
// Machine mutates it through a pointer and a store persists it between
// requests. Sessions never share mutable state with each other.
type Session struct {
	ID      uuid.UUID `json:"id"`
	Token   string    `json:"token"`
	Started bool      `json:"started"`

	// Index is the 0-based position of the pending question. It only grows
	// and never exceeds the catalog length.
	Index int `json:"index"`

	// Answers maps question id → raw answer as submitted.
	Answers map[string]string `json:"answers"`

	// Label and Row cache the prediction for a completed session. Cleared by
	// Start.
	Label string          `json:"label,omitempty"`
	Row   json.RawMessage `json:"row,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession returns an unstarted session with a fresh id and the given
// bearer token.
func NewSession(token string, now time.Time) Session {
	return Session{
		ID:        uuid.New(),
		Token:     token,
		Answers:   map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ─── STATE ────────────────────────────────────────────────────────────────────

// Phase is the coarse state of a session.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseInProgress Phase = "in_progress"
	PhaseComplete   Phase = "complete"
)

// State is the state-machine view of a session. Index is meaningful only
// for PhaseInProgress.
type State struct {
	Phase Phase
	Index int
}

// ─── ERRORS ──────────────────────────────────────────────────────────────────

var (
	// ErrNotStarted is returned when a question is requested or answered
	// before Start. Callers redirect the user to start a new assessment.
	ErrNotStarted = errors.New("questionnaire: assessment not started")

	// ErrComplete is returned when a question is requested or answered after
	// the last question was answered.
	ErrComplete = errors.New("questionnaire: assessment already complete")

	// ErrStaleAnswer is returned by SubmitAnswerFor when the answer targets a
	// question other than the pending one, e.g. a duplicated form submit.
	ErrStaleAnswer = errors.New("questionnaire: answer does not match the pending question")
)

// ─── MACHINE ──────────────────────────────────────────────────────────────────

// Machine advances sessions linearly through a catalog. It holds no
// per-session state and is safe for concurrent use; callers serialise
// access to a single Session.
type Machine struct {
	catalog *Catalog
}

// NewMachine returns a Machine over c.
func NewMachine(c *Catalog) *Machine {
	return &Machine{catalog: c}
}

// Catalog returns the catalog the machine walks.
func (m *Machine) Catalog() *Catalog { return m.catalog }

// State reports where s is in the questionnaire.
func (m *Machine) State(s *Session) State {
	switch {
	case !s.Started:
		return State{Phase: PhaseNotStarted}
	case s.Index >= m.catalog.Len():
		return State{Phase: PhaseComplete, Index: m.catalog.Len()}
	default:
		return State{Phase: PhaseInProgress, Index: s.Index}
	}
}

// Start resets s to the first question and clears its answers and any cached
// prediction. Calling it on a session in any state is allowed.
func (m *Machine) Start(s *Session) {
	s.Started = true
	s.Index = 0
	s.Answers = map[string]string{}
	s.Label = ""
	s.Row = nil
}

// IsComplete reports whether every question has been answered.
func (m *Machine) IsComplete(s *Session) bool {
	return m.State(s).Phase == PhaseComplete
}

// CurrentQuestion returns the pending question.
func (m *Machine) CurrentQuestion(s *Session) (Question, error) {
	st := m.State(s)
	switch st.Phase {
	case PhaseNotStarted:
		return Question{}, ErrNotStarted
	case PhaseComplete:
		return Question{}, ErrComplete
	}
	q, err := m.catalog.ByIndex(st.Index)
	if err != nil {
		// Index and catalog out of sync: a programmer error.
		return Question{}, fmt.Errorf("questionnaire: current question: %w", err)
	}
	return q, nil
}

// SubmitAnswer stores raw as the answer to the pending question and advances
// by exactly one. A previous answer for the same id is overwritten.
func (m *Machine) SubmitAnswer(s *Session, raw string) error {
	q, err := m.CurrentQuestion(s)
	if err != nil {
		return err
	}
	if s.Answers == nil {
		s.Answers = map[string]string{}
	}
	s.Answers[q.ID] = raw
	s.Index++
	return nil
}

// SubmitAnswerFor is SubmitAnswer guarded by the id of the question the user
// was shown. A replayed submission for an already-consumed question returns
// ErrStaleAnswer and leaves s untouched.
func (m *Machine) SubmitAnswerFor(s *Session, questionID, raw string) error {
	q, err := m.CurrentQuestion(s)
	if err != nil {
		return err
	}
	if q.ID != questionID {
		return fmt.Errorf("%w: got %q, pending %q", ErrStaleAnswer, questionID, q.ID)
	}
	return m.SubmitAnswer(s, raw)
}

// Progress is the position of a session for display.
type Progress struct {
	Percent float64 `json:"progress"`
	Current int     `json:"current_question"` // 1-based
	Total   int     `json:"total_questions"`
}

// Progress returns the display progress of s.
func (m *Machine) Progress(s *Session) Progress {
	total := m.catalog.Len()
	idx := min(max(s.Index, 0), total)
	p := Progress{Current: idx + 1, Total: total}
	if total > 0 {
		p.Percent = 100 * float64(idx) / float64(total)
	}
	if idx == total {
		p.Current = total
	}
	return p
}

// PreviousAnswer returns the raw answer to the question just before the
// pending one, or "" at the first question.
func (m *Machine) PreviousAnswer(s *Session) string {
	if s.Index <= 0 {
		return ""
	}
	prev, err := m.catalog.ByIndex(s.Index - 1)
	if err != nil {
		return ""
	}
	return s.Answers[prev.ID]
}

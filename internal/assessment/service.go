// Package assessment is the application service behind every transport. It
// walks a stored session through the questionnaire and turns a completed
// session into a prediction.
//
// Dependency rule: assessment imports questionnaire, features, inference and
// store. Transports (api, rpc) import assessment; nothing here knows about
// HTTP or gRPC.
package assessment

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	randv2 "math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/workplace-wellbeing-backend/internal/features"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/inference"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/questionnaire"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/store"
)

// PredictionFailedMessage is shown to the user when inference fails. It
// never carries internal detail.
const PredictionFailedMessage = "We encountered an issue processing your responses. Please try again."

// ─── ERRORS ──────────────────────────────────────────────────────────────────

var (
	// ErrNotComplete is returned by Predict before the last answer is in.
	ErrNotComplete = errors.New("assessment: not every question has been answered")

	// ErrPredictionFailed wraps any inference failure. The session stays
	// complete, so the user can retry.
	ErrPredictionFailed = errors.New("assessment: prediction failed")

	// ErrUnauthorized is returned by Authorize when the token does not belong
	// to the session.
	ErrUnauthorized = errors.New("assessment: token does not match session")
)

// ─── VIEWS ───────────────────────────────────────────────────────────────────

// View is what a client renders after any questionnaire step: the pending
// question with progress, or the completion marker.
type View struct {
	SessionID uuid.UUID               `json:"session_id"`
	Complete  bool                    `json:"complete"`
	Question  *questionnaire.Question `json:"question,omitempty"`
	Progress  questionnaire.Progress  `json:"progress"`
}

// Result is a prediction for a completed session.
type Result struct {
	SessionID  uuid.UUID `json:"session_id"`
	Label      string    `json:"prediction"`
	Confidence float64   `json:"confidence,omitempty"`

	// Cached is true when the label came from the session rather than a
	// fresh model call.
	Cached bool `json:"cached"`
}

// ─── SERVICE ─────────────────────────────────────────────────────────────────

// Option configures a Service.
type Option func(*Service)

// WithPredictDelay pauses before returning a fresh prediction. The pause
// honours context cancellation.
func WithPredictDelay(d time.Duration) Option {
	return func(s *Service) { s.delay = d }
}

// WithRand replaces the randomness used to decorate prompts.
func WithRand(r questionnaire.Rand) Option {
	return func(s *Service) { s.rng = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is safe for concurrent use. All per-session state lives in the
// store; the service itself holds only immutable collaborators.
type Service struct {
	machine   *questionnaire.Machine
	assembler *features.Assembler
	predictor inference.Predictor
	sessions  store.Sessions
	logger    *slog.Logger

	rng   questionnaire.Rand
	now   func() time.Time
	delay time.Duration
}

// New wires a Service.
func New(
	machine *questionnaire.Machine,
	assembler *features.Assembler,
	predictor inference.Predictor,
	sessions store.Sessions,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		machine:   machine,
		assembler: assembler,
		predictor: predictor,
		sessions:  sessions,
		logger:    logger,
		rng:       globalRand{},
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Catalog returns the questions in order.
func (s *Service) Catalog() []questionnaire.Question {
	return s.machine.Catalog().All()
}

// Create stores a new, unstarted session with a random bearer token.
func (s *Service) Create(ctx context.Context) (questionnaire.Session, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return questionnaire.Session{}, fmt.Errorf("assessment: generate token: %w", err)
	}

	sess := questionnaire.NewSession(hex.EncodeToString(tokenBytes), s.now().UTC())
	if err := s.sessions.Create(ctx, sess); err != nil {
		return questionnaire.Session{}, fmt.Errorf("assessment: create session: %w", err)
	}
	s.logger.Info("assessment: session created", "session_id", sess.ID)
	return sess, nil
}

// Authorize checks token against the session's bearer token in constant
// time.
func (s *Service) Authorize(ctx context.Context, id uuid.UUID, token string) error {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(sess.Token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Start begins, or restarts, the questionnaire for a session. Answers and
// any cached prediction are discarded.
func (s *Service) Start(ctx context.Context, id uuid.UUID) (View, error) {
	sess, err := s.sessions.Update(ctx, id, func(x *questionnaire.Session) error {
		s.machine.Start(x)
		x.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return View{}, fmt.Errorf("assessment: start: %w", err)
	}
	return s.view(&sess)
}

// Current returns the pending question, decorated, with progress.
func (s *Service) Current(ctx context.Context, id uuid.UUID) (View, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return View{}, fmt.Errorf("assessment: current: %w", err)
	}
	return s.view(&sess)
}

// Submit records raw as the answer to questionID and returns the next view.
// An empty questionID answers whatever question is pending; otherwise a
// mismatch fails with questionnaire.ErrStaleAnswer.
func (s *Service) Submit(ctx context.Context, id uuid.UUID, questionID, raw string) (View, error) {
	sess, err := s.sessions.Update(ctx, id, func(x *questionnaire.Session) error {
		var err error
		if questionID == "" {
			err = s.machine.SubmitAnswer(x, raw)
		} else {
			err = s.machine.SubmitAnswerFor(x, questionID, raw)
		}
		if err != nil {
			return err
		}
		x.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return View{}, fmt.Errorf("assessment: submit: %w", err)
	}
	return s.view(&sess)
}

// Predict returns the label for a completed session. The first call
// assembles the row, runs the model and caches the label on the session;
// later calls return the cached label without touching the model.
func (s *Service) Predict(ctx context.Context, id uuid.UUID) (Result, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("assessment: predict: %w", err)
	}
	switch s.machine.State(&sess).Phase {
	case questionnaire.PhaseNotStarted:
		return Result{}, questionnaire.ErrNotStarted
	case questionnaire.PhaseInProgress:
		return Result{}, ErrNotComplete
	}
	if sess.Label != "" {
		return Result{SessionID: id, Label: sess.Label, Cached: true}, nil
	}

	row := s.assembler.Assemble(sess.Answers, s.predictor.Contract())
	rowJSON, err := json.Marshal(row)
	if err != nil {
		return Result{}, fmt.Errorf("assessment: encode row: %w", err)
	}
	s.logger.Info("assessment: predicting",
		"session_id", id,
		"row", json.RawMessage(rowJSON),
	)

	pred, err := s.predictor.Predict(ctx, row)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		var te *inference.TransformError
		if errors.As(err, &te) {
			s.logger.Error("assessment: model rejected row",
				"session_id", id,
				"column", te.Column,
				"value", te.Value,
				"error", err,
			)
		} else {
			s.logger.Error("assessment: prediction failed", "session_id", id, "error", err)
		}
		return Result{}, fmt.Errorf("%w: %w", ErrPredictionFailed, err)
	}

	if err := s.pause(ctx); err != nil {
		return Result{}, err
	}

	answers := sess.Answers
	_, err = s.sessions.Update(ctx, id, func(x *questionnaire.Session) error {
		// A restart between the read and this write invalidates the label.
		if !s.machine.IsComplete(x) || !maps.Equal(x.Answers, answers) {
			return nil
		}
		x.Label = pred.Label
		x.Row = rowJSON
		x.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		// The label is still valid for this response.
		s.logger.Warn("assessment: failed to cache prediction", "session_id", id, "error", err)
	}

	return Result{SessionID: id, Label: pred.Label, Confidence: pred.Confidence}, nil
}

// view renders the state of sess.
func (s *Service) view(sess *questionnaire.Session) (View, error) {
	v := View{SessionID: sess.ID, Progress: s.machine.Progress(sess)}
	q, err := s.machine.CurrentQuestion(sess)
	switch {
	case errors.Is(err, questionnaire.ErrComplete):
		v.Complete = true
		return v, nil
	case err != nil:
		return View{}, err
	}
	q = questionnaire.Decorate(q, s.machine.PreviousAnswer(sess), s.rng)
	v.Question = &q
	return v, nil
}

func (s *Service) pause(ctx context.Context) error {
	if s.delay <= 0 {
		return nil
	}
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// globalRand uses the math/rand/v2 top-level source, which is safe for
// concurrent use.
type globalRand struct{}

func (globalRand) Float64() float64 { return randv2.Float64() }
func (globalRand) IntN(n int) int   { return randv2.IntN(n) }

// Package api implements the JSON HTTP layer for the workplace wellbeing
// assessment. Handlers are methods on *Server; the assessment logic lives in
// the assessment package.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/nyashahama/workplace-wellbeing-backend/internal/assessment"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/questionnaire"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// Env is "production", "staging", or "development".
	Env string

	// CORSOrigin is the allowed browser origin in production. Other
	// environments echo the request origin.
	CORSOrigin string

	// RequestTimeout bounds each request, including any prediction delay.
	RequestTimeout time.Duration
}

// Assessor is the subset of *assessment.Service the handlers use.
type Assessor interface {
	Catalog() []questionnaire.Question
	Create(ctx context.Context) (questionnaire.Session, error)
	Authorize(ctx context.Context, id uuid.UUID, token string) error
	Start(ctx context.Context, id uuid.UUID) (assessment.View, error)
	Current(ctx context.Context, id uuid.UUID) (assessment.View, error)
	Submit(ctx context.Context, id uuid.UUID, questionID, raw string) (assessment.View, error)
	Predict(ctx context.Context, id uuid.UUID) (assessment.Result, error)
}

// Server holds all shared dependencies.
type Server struct {
	svc    Assessor
	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.Server.
func NewServer(svc Assessor, cfg Config, logger *slog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	s := &Server{svc: svc, cfg: cfg, logger: logger}
	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// ── API ───────────────────────────────────────────────────────────────────
	r.Route("/api", func(r chi.Router) {
		r.Get("/questions", s.handleListQuestions)

		// No auth: anyone may begin an assessment.
		r.Post("/assessment", s.handleCreateAssessment)

		// Session-scoped routes require the session's token.
		r.Route("/assessment/{sessionID}", func(r chi.Router) {
			r.Use(s.requireSessionToken)
			r.Post("/start", s.handleStart)
			r.Get("/question", s.handleCurrentQuestion)
			r.Post("/answer", s.handleSubmitAnswer)
			r.Get("/prediction", s.handlePrediction)
		})
	})

	return r
}

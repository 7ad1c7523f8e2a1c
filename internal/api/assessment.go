package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nyashahama/workplace-wellbeing-backend/internal/assessment"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/questionnaire"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/store"
)

// ─── GET /api/questions ──────────────────────────────────────────────────────

type listQuestionsResponse struct {
	Questions []questionnaire.Question `json:"questions"`
	Total     int                      `json:"total"`
}

// handleListQuestions returns the whole catalog, undecorated.
func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	qs := s.svc.Catalog()
	respond(w, http.StatusOK, listQuestionsResponse{Questions: qs, Total: len(qs)})
}

// ─── POST /api/assessment ────────────────────────────────────────────────────

type createAssessmentResponse struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

// handleCreateAssessment creates an unstarted session for a new visitor. The
// token is returned once and must be sent as X-Session-Token afterwards.
func (s *Server) handleCreateAssessment(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Create(r.Context())
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("create assessment: %w", err))
		return
	}
	respond(w, http.StatusCreated, createAssessmentResponse{
		SessionID: sess.ID.String(),
		Token:     sess.Token,
	})
}

// ─── POST /api/assessment/:sessionID/start ───────────────────────────────────

// handleStart begins or restarts the questionnaire and returns the first
// question.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.Start(r.Context(), sessionIDFrom(r))
	if err != nil {
		s.respondFlowErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, v)
}

// ─── GET /api/assessment/:sessionID/question ─────────────────────────────────

// handleCurrentQuestion returns the pending question, or complete=true once
// every question has been answered.
func (s *Server) handleCurrentQuestion(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.Current(r.Context(), sessionIDFrom(r))
	if err != nil {
		s.respondFlowErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, v)
}

// ─── POST /api/assessment/:sessionID/answer ──────────────────────────────────

type submitAnswerRequest struct {
	// QuestionID is the id of the question the user was shown. Optional;
	// when set, a duplicated submit returns 409 instead of answering the
	// next question.
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// handleSubmitAnswer records one answer and returns the next view. Any
// string is accepted; normalization happens at prediction time.
func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitAnswerRequest
	if !decode(w, r, &req) {
		return
	}

	v, err := s.svc.Submit(r.Context(), sessionIDFrom(r), req.QuestionID, req.Answer)
	if err != nil {
		s.respondFlowErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, v)
}

// ─── GET /api/assessment/:sessionID/prediction ───────────────────────────────

// handlePrediction returns the model's label for a completed session.
// Inference failures return 502 with a generic, retryable message.
func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Predict(r.Context(), sessionIDFrom(r))
	switch {
	case err == nil:
		respond(w, http.StatusOK, res)
	case errors.Is(err, assessment.ErrPredictionFailed):
		// Already logged with detail by the service.
		respondErr(w, http.StatusBadGateway, assessment.PredictionFailedMessage)
	case errors.Is(err, assessment.ErrNotComplete):
		respondErr(w, http.StatusConflict, "answer every question before requesting a prediction")
	default:
		s.respondFlowErr(w, r, err)
	}
}

// respondFlowErr maps questionnaire and store errors to HTTP statuses.
func (s *Server) respondFlowErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondErr(w, http.StatusNotFound, "session not found; start a new assessment")
	case errors.Is(err, questionnaire.ErrNotStarted):
		respondErr(w, http.StatusConflict, "assessment not started; POST /start first")
	case errors.Is(err, questionnaire.ErrComplete):
		respondErr(w, http.StatusConflict, "assessment already complete")
	case errors.Is(err, questionnaire.ErrStaleAnswer):
		respondErr(w, http.StatusConflict, "answer does not match the current question")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		respondErr(w, http.StatusServiceUnavailable, "request timed out")
	default:
		s.respondInternalErr(w, r, err)
	}
}

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/nyashahama/workplace-wellbeing-backend/internal/api"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/assessment"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/features"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/inference"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/questionnaire"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/store"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

type stubPredictor struct {
	contract features.Contract
	err      error
	calls    int
}

func (p *stubPredictor) Contract() features.Contract { return p.contract }

func (p *stubPredictor) Predict(context.Context, features.Row) (inference.Prediction, error) {
	p.calls++
	if p.err != nil {
		return inference.Prediction{}, p.err
	}
	return inference.Prediction{Label: "No", Confidence: 0.75}, nil
}

type noDecoration struct{}

func (noDecoration) Float64() float64 { return 0 }
func (noDecoration) IntN(int) int     { return 0 }

// ─── HELPERS ─────────────────────────────────────────────────────────────────

type testDeps struct {
	predictor *stubPredictor
	handler   http.Handler
}

func newTestServer(t *testing.T) *testDeps {
	t.Helper()

	contract, err := features.NewContract(questionnaire.OSMI.IDs(), []string{"Age"})
	if err != nil {
		t.Fatalf("NewContract: %v", err)
	}
	p := &stubPredictor{contract: contract}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := assessment.New(
		questionnaire.NewMachine(questionnaire.OSMI),
		features.NewAssembler(features.NewNormalizer(questionnaire.OSMI), logger),
		p,
		store.NewMemory(),
		logger,
		assessment.WithRand(noDecoration{}),
	)
	handler := api.NewServer(svc, api.Config{Env: "development"}, logger)
	return &testDeps{predictor: p, handler: handler}
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("decode response body: %v (raw: %s)", err, rr.Body.String())
	}
}

type viewResponse struct {
	Complete bool `json:"complete"`
	Question *struct {
		ID      string   `json:"id"`
		Prompt  string   `json:"text"`
		Kind    string   `json:"type"`
		Options []string `json:"options"`
	} `json:"question"`
	Progress struct {
		Percent float64 `json:"progress"`
		Current int     `json:"current_question"`
		Total   int     `json:"total_questions"`
	} `json:"progress"`
}

// createSession posts a new assessment and returns the session path prefix
// and token header.
func createSession(t *testing.T, h http.Handler) (string, map[string]string) {
	t.Helper()
	rr := doRequest(t, h, http.MethodPost, "/api/assessment", nil, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		SessionID string `json:"session_id"`
		Token     string `json:"token"`
	}
	decodeJSON(t, rr, &resp)
	return "/api/assessment/" + resp.SessionID, map[string]string{api.TokenHeader: resp.Token}
}

// ─── GET /healthz ─────────────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodGet, "/healthz", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

// ─── GET /api/questions ───────────────────────────────────────────────────────

func TestListQuestions(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodGet, "/api/questions", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp struct {
		Questions []struct {
			ID string `json:"id"`
		} `json:"questions"`
		Total int `json:"total"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Total != questionnaire.OSMI.Len() || len(resp.Questions) != resp.Total {
		t.Errorf("total=%d questions=%d", resp.Total, len(resp.Questions))
	}
	if resp.Questions[0].ID != "Age" {
		t.Errorf("first question: got %q", resp.Questions[0].ID)
	}
}

// ─── Auth ─────────────────────────────────────────────────────────────────────

func TestSessionRoutes_TokenChecks(t *testing.T) {
	deps := newTestServer(t)
	path, headers := createSession(t, deps.handler)

	tests := []struct {
		name    string
		path    string
		headers map[string]string
		want    int
	}{
		{"missing token", path + "/question", nil, http.StatusUnauthorized},
		{"wrong token", path + "/question", map[string]string{api.TokenHeader: "nope"}, http.StatusForbidden},
		{"bad uuid", "/api/assessment/not-a-uuid/question", headers, http.StatusBadRequest},
		{"unknown session", "/api/assessment/" + uuid.NewString() + "/question", headers, http.StatusNotFound},
		{"not started", path + "/question", headers, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, deps.handler, http.MethodGet, tt.path, nil, tt.headers)
			if rr.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
		})
	}
}

// ─── Full flow ────────────────────────────────────────────────────────────────

func TestAssessmentFlow_StartAnswerPredict(t *testing.T) {
	deps := newTestServer(t)
	h := deps.handler
	path, headers := createSession(t, h)

	rr := doRequest(t, h, http.MethodPost, path+"/start", nil, headers)
	if rr.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var v viewResponse
	decodeJSON(t, rr, &v)

	// Prediction before completion is refused.
	rr = doRequest(t, h, http.MethodGet, path+"/prediction", nil, headers)
	if rr.Code != http.StatusConflict {
		t.Fatalf("early prediction: expected 409, got %d", rr.Code)
	}

	answered := 0
	for !v.Complete {
		answer := "29"
		if v.Question.Kind == "select" {
			answer = v.Question.Options[0]
		}
		rr = doRequest(t, h, http.MethodPost, path+"/answer",
			map[string]string{"question_id": v.Question.ID, "answer": answer}, headers)
		if rr.Code != http.StatusOK {
			t.Fatalf("answer %s: expected 200, got %d: %s", v.Question.ID, rr.Code, rr.Body.String())
		}
		v = viewResponse{}
		decodeJSON(t, rr, &v)
		answered++
	}
	if answered != questionnaire.OSMI.Len() {
		t.Errorf("answered %d questions, want %d", answered, questionnaire.OSMI.Len())
	}
	if v.Progress.Percent != 100 {
		t.Errorf("final progress: %v", v.Progress.Percent)
	}

	rr = doRequest(t, h, http.MethodGet, path+"/prediction", nil, headers)
	if rr.Code != http.StatusOK {
		t.Fatalf("prediction: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var res struct {
		Prediction string `json:"prediction"`
		Cached     bool   `json:"cached"`
	}
	decodeJSON(t, rr, &res)
	if res.Prediction != "No" || res.Cached {
		t.Errorf("got %+v", res)
	}

	// Answering after completion is a conflict, not a crash.
	rr = doRequest(t, h, http.MethodPost, path+"/answer", map[string]string{"answer": "Yes"}, headers)
	if rr.Code != http.StatusConflict {
		t.Errorf("answer after complete: expected 409, got %d", rr.Code)
	}
	if deps.predictor.calls != 1 {
		t.Errorf("predictor calls: got %d, want 1", deps.predictor.calls)
	}
}

func TestSubmitAnswer_DuplicateIsConflict(t *testing.T) {
	deps := newTestServer(t)
	path, headers := createSession(t, deps.handler)
	doRequest(t, deps.handler, http.MethodPost, path+"/start", nil, headers)

	body := map[string]string{"question_id": "Age", "answer": "31"}
	if rr := doRequest(t, deps.handler, http.MethodPost, path+"/answer", body, headers); rr.Code != http.StatusOK {
		t.Fatalf("first: expected 200, got %d", rr.Code)
	}
	if rr := doRequest(t, deps.handler, http.MethodPost, path+"/answer", body, headers); rr.Code != http.StatusConflict {
		t.Errorf("duplicate: expected 409, got %d", rr.Code)
	}
}

func TestSubmitAnswer_RejectsUnknownFields(t *testing.T) {
	deps := newTestServer(t)
	path, headers := createSession(t, deps.handler)
	doRequest(t, deps.handler, http.MethodPost, path+"/start", nil, headers)

	rr := doRequest(t, deps.handler, http.MethodPost, path+"/answer",
		map[string]string{"answer": "31", "extra": "x"}, headers)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestPrediction_FailureIsGenericAndRetryable(t *testing.T) {
	deps := newTestServer(t)
	deps.predictor.err = &inference.TransformError{Column: "Gender", Value: "Unknown", Reason: "unknown category"}
	h := deps.handler
	path, headers := createSession(t, h)
	doRequest(t, h, http.MethodPost, path+"/start", nil, headers)
	for range questionnaire.OSMI.Len() {
		doRequest(t, h, http.MethodPost, path+"/answer", map[string]string{"answer": ""}, headers)
	}

	rr := doRequest(t, h, http.MethodGet, path+"/prediction", nil, headers)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["error"] != assessment.PredictionFailedMessage {
		t.Errorf("error message: got %q", resp["error"])
	}

	deps.predictor.err = nil
	rr = doRequest(t, h, http.MethodGet, path+"/prediction", nil, headers)
	if rr.Code != http.StatusOK {
		t.Errorf("retry: expected 200, got %d", rr.Code)
	}
}

// ─── CORS ─────────────────────────────────────────────────────────────────────

func TestCORS_PreflightEchoesOriginInDevelopment(t *testing.T) {
	deps := newTestServer(t)
	rr := doRequest(t, deps.handler, http.MethodOptions, "/api/assessment", nil,
		map[string]string{"Origin": "http://localhost:5173"})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow-origin: got %q", got)
	}
}

// ─── Errors ───────────────────────────────────────────────────────────────────

type failingAssessor struct{ api.Assessor }

func (failingAssessor) Create(context.Context) (questionnaire.Session, error) {
	return questionnaire.Session{}, errors.New("store down")
}

func TestCreateAssessment_InternalErrorDoesNotLeak(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := api.NewServer(failingAssessor{}, api.Config{}, logger)

	rr := doRequest(t, h, http.MethodPost, "/api/assessment", nil, nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if bytes.Contains(rr.Body.Bytes(), []byte("store down")) {
		t.Errorf("internal detail leaked: %s", rr.Body.String())
	}
}

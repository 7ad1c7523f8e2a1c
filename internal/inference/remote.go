package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nyashahama/workplace-wellbeing-backend/internal/features"
)

// Remote is a Predictor backed by a model server that exposes
//
//	GET  /contract  → {"columns": [...], "numeric": [...]}
//	POST /predict   ← {"row": {...}}  → {"label": "...", "confidence": 0.8}
//
// The server answers 422 with {"error", "column", "value"} when its fitted
// transform rejects the row.
type Remote struct {
	baseURL    string
	httpClient *http.Client
	contract   features.Contract
}

// NewRemote fetches the contract from the server at baseURL and returns a
// Predictor for it. httpClient may be nil.
func NewRemote(ctx context.Context, baseURL string, httpClient *http.Client) (*Remote, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	r := &Remote{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}

	var body contractJSON
	status, raw, err := r.call(ctx, http.MethodGet, "/contract", nil, &body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("remote: contract: unexpected status %d: %.200s", status, raw)
	}
	r.contract, err = features.NewContract(body.Columns, body.Numeric)
	if err != nil {
		return nil, fmt.Errorf("remote: contract: %w", err)
	}
	return r, nil
}

// ─── WIRE SHAPES ──────────────────────────────────────────────────────────────

type contractJSON struct {
	Columns []string `json:"columns"`
	Numeric []string `json:"numeric"`
}

type predictRequest struct {
	Row features.Row `json:"row"`
}

type predictResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error"`
	Column     string  `json:"column"`
	Value      string  `json:"value"`
}

// ─── IMPLEMENTATION ───────────────────────────────────────────────────────────

// Contract implements Predictor.
func (r *Remote) Contract() features.Contract { return r.contract }

// Predict implements Predictor.
func (r *Remote) Predict(ctx context.Context, row features.Row) (Prediction, error) {
	var body predictResponse
	status, raw, err := r.call(ctx, http.MethodPost, "/predict", predictRequest{Row: row}, &body)
	if err != nil {
		return Prediction{}, err
	}

	switch status {
	case http.StatusOK:
		if body.Label == "" {
			return Prediction{}, fmt.Errorf("remote: predict: empty label")
		}
		return Prediction{Label: body.Label, Confidence: body.Confidence}, nil
	case http.StatusUnprocessableEntity:
		return Prediction{}, &TransformError{Column: body.Column, Value: body.Value, Reason: body.Error}
	default:
		return Prediction{}, fmt.Errorf("remote: predict: unexpected status %d: %.200s", status, raw)
	}
}

// call sends one request and decodes a JSON response into out. Non-JSON
// bodies are tolerated for non-2xx statuses; the raw bytes are returned for
// error messages.
func (r *Remote) call(ctx context.Context, method, path string, in, out any) (int, []byte, error) {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("remote: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("remote: build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("remote: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("remote: read response: %w", err)
	}

	if err := json.Unmarshal(raw, out); err != nil && resp.StatusCode < 300 {
		return resp.StatusCode, raw, fmt.Errorf("remote: unmarshal response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

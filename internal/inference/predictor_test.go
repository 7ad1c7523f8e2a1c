package inference_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/features"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/inference"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

type stubPredictor struct {
	contract features.Contract
	result   inference.Prediction
	err      error
	calls    int
}

func (s *stubPredictor) Contract() features.Contract { return s.contract }

func (s *stubPredictor) Predict(context.Context, features.Row) (inference.Prediction, error) {
	s.calls++
	return s.result, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func row(age int, gender, family string) features.Row {
	return features.Row{
		Columns: []string{"Age", "Gender", "family_history"},
		Values:  []features.Value{features.Number(age), features.Text(gender), features.Text(family)},
	}
}

func mustContract(t *testing.T, columns, numeric []string) features.Contract {
	t.Helper()
	c, err := features.NewContract(columns, numeric)
	if err != nil {
		t.Fatalf("NewContract: %v", err)
	}
	return c
}

// ─── Manifest ─────────────────────────────────────────────────────────────────

func TestLoadManifest_JSONAndYAMLAgree(t *testing.T) {
	j, err := inference.LoadManifest("testdata/model.json")
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	y, err := inference.LoadManifest("testdata/model.yaml")
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if diff := cmp.Diff(j, y); diff != "" {
		t.Errorf("manifests differ (-json +yaml):\n%s", diff)
	}
	if j.Width() != 6 {
		t.Errorf("width: got %d, want 6", j.Width())
	}
}

func TestLoadManifest_Rejects(t *testing.T) {
	for _, path := range []string{
		"testdata/bad_width.yaml",
		"testdata/unknown_field.yaml",
		"testdata/missing.json",
	} {
		if _, err := inference.LoadManifest(path); err == nil {
			t.Errorf("%s: expected error, got nil", path)
		}
	}
}

func TestManifest_Validate(t *testing.T) {
	base := func() inference.Manifest {
		return inference.Manifest{
			Columns:      []string{"Age", "Gender"},
			Numeric:      map[string]inference.Scaler{"Age": {Mean: 30, Scale: 10}},
			Categories:   map[string][]string{"Gender": {"Female", "Male"}},
			Classes:      []string{"No", "Yes"},
			Coefficients: [][]float64{{1, 0, 0}},
			Intercept:    []float64{0},
		}
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("base manifest: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*inference.Manifest)
	}{
		{"column without transform", func(m *inference.Manifest) { delete(m.Categories, "Gender") }},
		{"column with two transforms", func(m *inference.Manifest) { m.Categories["Age"] = []string{"x"} }},
		{"zero scale", func(m *inference.Manifest) { m.Numeric["Age"] = inference.Scaler{Mean: 1} }},
		{"transform for missing column", func(m *inference.Manifest) { m.Numeric["Salary"] = inference.Scaler{Scale: 1} }},
		{"single class", func(m *inference.Manifest) { m.Classes = []string{"Yes"} }},
		{"row count", func(m *inference.Manifest) { m.Coefficients = append(m.Coefficients, []float64{0, 0, 0}) }},
		{"intercept count", func(m *inference.Manifest) { m.Intercept = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base()
			tt.mutate(&m)
			if err := m.Validate(); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

// ─── Linear ───────────────────────────────────────────────────────────────────

func TestLinear_ContractFromManifest(t *testing.T) {
	l, err := inference.LoadLinear("testdata/model.json")
	if err != nil {
		t.Fatalf("LoadLinear: %v", err)
	}
	want := mustContract(t, []string{"Age", "Gender", "family_history"}, []string{"Age"})
	if !l.Contract().Equal(want) {
		t.Errorf("contract: got %v, Age numeric=%v", l.Contract().Columns, l.Contract().IsNumeric("Age"))
	}
}

func TestLinear_Predict(t *testing.T) {
	l, err := inference.LoadLinear("testdata/model.yaml")
	if err != nil {
		t.Fatalf("LoadLinear: %v", err)
	}
	wantConf := 1 / (1 + math.Exp(-1.5))

	tests := []struct {
		name  string
		row   features.Row
		label string
	}{
		{"family history pushes to yes", row(30, "Male", "Yes"), "Yes"},
		{"no history stays no", row(30, "Female", "No"), "No"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := l.Predict(context.Background(), tt.row)
			if err != nil {
				t.Fatalf("Predict: %v", err)
			}
			if p.Label != tt.label {
				t.Errorf("label: got %q, want %q", p.Label, tt.label)
			}
			if math.Abs(p.Confidence-wantConf) > 1e-9 {
				t.Errorf("confidence: got %v, want %v", p.Confidence, wantConf)
			}
		})
	}
}

func TestLinear_PredictMultiClass(t *testing.T) {
	l, err := inference.NewLinear(inference.Manifest{
		Columns:      []string{"X"},
		Categories:   map[string][]string{"X": {"p", "q"}},
		Classes:      []string{"a", "b", "c"},
		Coefficients: [][]float64{{1, 0}, {0, 1}, {0, 0}},
		Intercept:    []float64{0, 0, 0},
	})
	if err != nil {
		t.Fatalf("NewLinear: %v", err)
	}
	r := features.Row{Columns: []string{"X"}, Values: []features.Value{features.Text("q")}}
	p, err := l.Predict(context.Background(), r)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if p.Label != "b" {
		t.Errorf("label: got %q, want b", p.Label)
	}
}

func TestLinear_TransformErrors(t *testing.T) {
	l, err := inference.LoadLinear("testdata/model.json")
	if err != nil {
		t.Fatalf("LoadLinear: %v", err)
	}

	tests := []struct {
		name   string
		row    features.Row
		column string
	}{
		{"unseen category", row(30, "Unknown", "No"), "Gender"},
		{"text in numeric column", features.Row{
			Columns: []string{"Age", "Gender", "family_history"},
			Values:  []features.Value{features.Text("thirty"), features.Text("Male"), features.Text("No")},
		}, "Age"},
		{"number in categorical column", features.Row{
			Columns: []string{"Age", "Gender", "family_history"},
			Values:  []features.Value{features.Number(30), features.Number(1), features.Text("No")},
		}, "Gender"},
		{"wrong column order", features.Row{
			Columns: []string{"Gender", "Age", "family_history"},
			Values:  []features.Value{features.Text("Male"), features.Number(30), features.Text("No")},
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Predict(context.Background(), tt.row)
			var te *inference.TransformError
			if !errors.As(err, &te) {
				t.Fatalf("expected *TransformError, got %v", err)
			}
			if te.Column != tt.column {
				t.Errorf("column: got %q, want %q", te.Column, tt.column)
			}
		})
	}
}

func TestLinear_CancelledContext(t *testing.T) {
	l, err := inference.LoadLinear("testdata/model.json")
	if err != nil {
		t.Fatalf("LoadLinear: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Predict(ctx, row(30, "Male", "No")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// ─── Remote ───────────────────────────────────────────────────────────────────

func newModelServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /contract", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"columns":["Age","Gender","family_history"],"numeric":["Age"]}`)
	})
	mux.HandleFunc("POST /predict", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Row map[string]any `json:"row"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if req.Row["Gender"] == "Unknown" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"error":"unknown category","column":"Gender","value":"Unknown"}`)
			return
		}
		if req.Row["Age"] != float64(30) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "boom")
			return
		}
		_, _ = io.WriteString(w, `{"label":"Yes","confidence":0.7}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemote_ContractAndPredict(t *testing.T) {
	srv := newModelServer(t)

	r, err := inference.NewRemote(context.Background(), srv.URL+"/", srv.Client())
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}
	want := mustContract(t, []string{"Age", "Gender", "family_history"}, []string{"Age"})
	if !r.Contract().Equal(want) {
		t.Errorf("contract: got %v", r.Contract().Columns)
	}

	p, err := r.Predict(context.Background(), row(30, "Male", "Yes"))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if diff := cmp.Diff(inference.Prediction{Label: "Yes", Confidence: 0.7}, p); diff != "" {
		t.Errorf("prediction (-want +got):\n%s", diff)
	}
}

func TestRemote_UnprocessableIsTransformError(t *testing.T) {
	srv := newModelServer(t)
	r, err := inference.NewRemote(context.Background(), srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("NewRemote: %v", err)
	}

	_, err = r.Predict(context.Background(), row(30, "Unknown", "Yes"))
	var te *inference.TransformError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransformError, got %v", err)
	}
	if te.Column != "Gender" || te.Value != "Unknown" {
		t.Errorf("got %+v", te)
	}

	_, err = r.Predict(context.Background(), row(99, "Male", "Yes"))
	if err == nil || errors.As(err, &te) {
		t.Errorf("server error should be a plain error, got %v", err)
	}
}

func TestNewRemote_BadContract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"columns":[]}`)
	}))
	defer srv.Close()

	if _, err := inference.NewRemote(context.Background(), srv.URL, srv.Client()); err == nil {
		t.Error("expected error for empty contract, got nil")
	}
}

// ─── Fallback ─────────────────────────────────────────────────────────────────

func TestFallback_PrimarySucceeds_SecondaryNotCalled(t *testing.T) {
	c := mustContract(t, []string{"Age"}, []string{"Age"})
	primary := &stubPredictor{contract: c, result: inference.Prediction{Label: "Yes"}}
	secondary := &stubPredictor{contract: c, result: inference.Prediction{Label: "No"}}

	f, err := inference.NewFallback(primary, secondary, discardLogger())
	if err != nil {
		t.Fatalf("NewFallback: %v", err)
	}
	p, err := f.Predict(context.Background(), features.Row{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Label != "Yes" {
		t.Errorf("expected primary result, got %q", p.Label)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary should not be called, got %d calls", secondary.calls)
	}
}

func TestFallback_PrimaryFails_SecondaryUsed(t *testing.T) {
	c := mustContract(t, []string{"Age"}, []string{"Age"})
	primary := &stubPredictor{contract: c, err: errors.New("model server down")}
	secondary := &stubPredictor{contract: c, result: inference.Prediction{Label: "No"}}

	f, err := inference.NewFallback(primary, secondary, discardLogger())
	if err != nil {
		t.Fatalf("NewFallback: %v", err)
	}
	p, err := f.Predict(context.Background(), features.Row{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Label != "No" || primary.calls != 1 || secondary.calls != 1 {
		t.Errorf("label=%q primary=%d secondary=%d", p.Label, primary.calls, secondary.calls)
	}
}

func TestFallback_BothFail_TransformErrorSurvives(t *testing.T) {
	c := mustContract(t, []string{"Age"}, []string{"Age"})
	primary := &stubPredictor{contract: c, err: errors.New("timeout")}
	secondary := &stubPredictor{contract: c, err: &inference.TransformError{Column: "Age", Reason: "expected a number"}}

	f, err := inference.NewFallback(primary, secondary, discardLogger())
	if err != nil {
		t.Fatalf("NewFallback: %v", err)
	}
	_, err = f.Predict(context.Background(), features.Row{})
	var te *inference.TransformError
	if !errors.As(err, &te) {
		t.Errorf("expected *TransformError in chain, got %v", err)
	}
}

func TestNewFallback_ContractMismatch(t *testing.T) {
	a := &stubPredictor{contract: mustContract(t, []string{"Age"}, []string{"Age"})}
	b := &stubPredictor{contract: mustContract(t, []string{"Age"}, nil)}
	if _, err := inference.NewFallback(a, b, discardLogger()); err == nil {
		t.Error("expected contract mismatch error, got nil")
	}
	if _, err := inference.NewFallback(a, nil, discardLogger()); err == nil {
		t.Error("expected error for nil secondary, got nil")
	}
}

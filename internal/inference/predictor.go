// Package inference defines the boundary to the fitted classifier and
// provides the implementations the service can run against: a local linear
// model read from an exported manifest, a remote model server, and a
// primary/secondary fallback.
//
// The artifact is loaded once at startup and never mutated, so every
// Predictor here is safe for concurrent use without locking.
package inference

import (
	"context"
	"fmt"

	"github.com/nyashahama/workplace-wellbeing-backend/internal/features"
)

// Prediction is the classifier's answer for one row.
type Prediction struct {
	Label string `json:"label"`

	// Confidence is the probability of Label when the model reports one,
	// otherwise 0.
	Confidence float64 `json:"confidence,omitempty"`
}

// Predictor is the interface the assessment service uses for inference.
// Tests inject a stub.
type Predictor interface {
	// Contract returns the column contract the model was fit on. It is read
	// once when the predictor is built.
	Contract() features.Contract

	// Predict transforms row and classifies it. A row the fitted transform
	// cannot accept fails with *TransformError.
	Predict(ctx context.Context, row features.Row) (Prediction, error)
}

// TransformError means the fitted column transform rejected the row: wrong
// shape, a value of the wrong type, or a category the encoder never saw.
type TransformError struct {
	Column string
	Value  string
	Reason string
}

func (e *TransformError) Error() string {
	if e.Column == "" {
		return "inference: transform: " + e.Reason
	}
	return fmt.Sprintf("inference: transform: column %q value %q: %s", e.Column, e.Value, e.Reason)
}

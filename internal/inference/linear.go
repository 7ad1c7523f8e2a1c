package inference

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/nyashahama/workplace-wellbeing-backend/internal/features"
)

// Linear runs a Manifest in-process: one-hot encode categoricals,
// standardise numerics, then a logistic (binary) or softmax (multi-class)
// linear model.
type Linear struct {
	m        Manifest
	contract features.Contract
}

// NewLinear validates m and returns a predictor for it.
func NewLinear(m Manifest) (*Linear, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	contract, err := m.Contract()
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	return &Linear{m: m, contract: contract}, nil
}

// LoadLinear reads a manifest from path and returns a predictor for it.
func LoadLinear(path string) (*Linear, error) {
	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	return NewLinear(m)
}

// Contract implements Predictor.
func (l *Linear) Contract() features.Contract { return l.contract }

// Transform encodes row into the model's feature vector. Like a fitted
// one-hot encoder without handle_unknown, it rejects categories it was not
// fit on.
func (l *Linear) Transform(row features.Row) ([]float64, error) {
	if !slices.Equal(row.Columns, l.m.Columns) || len(row.Values) != len(row.Columns) {
		return nil, &TransformError{Reason: fmt.Sprintf("row columns %v do not match the fitted columns", row.Columns)}
	}

	x := make([]float64, 0, l.m.Width())
	for i, col := range l.m.Columns {
		v := row.Values[i]
		if s, ok := l.m.Numeric[col]; ok {
			if !v.Numeric {
				return nil, &TransformError{Column: col, Value: v.String(), Reason: "expected a number"}
			}
			x = append(x, (float64(v.Number)-s.Mean)/s.Scale)
			continue
		}
		if v.Numeric {
			return nil, &TransformError{Column: col, Value: v.String(), Reason: "expected a category"}
		}
		cats := l.m.Categories[col]
		idx := slices.Index(cats, v.Text)
		if idx < 0 {
			return nil, &TransformError{Column: col, Value: v.Text, Reason: "unknown category"}
		}
		for j := range cats {
			if j == idx {
				x = append(x, 1)
			} else {
				x = append(x, 0)
			}
		}
	}
	return x, nil
}

// Predict implements Predictor.
func (l *Linear) Predict(ctx context.Context, row features.Row) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	x, err := l.Transform(row)
	if err != nil {
		return Prediction{}, err
	}

	scores := make([]float64, len(l.m.Coefficients))
	for k, w := range l.m.Coefficients {
		z := l.m.Intercept[k]
		for j, xj := range x {
			z += w[j] * xj
		}
		scores[k] = z
	}

	if len(l.m.Classes) == 2 {
		p := sigmoid(scores[0])
		if p >= 0.5 {
			return Prediction{Label: l.m.Classes[1], Confidence: p}, nil
		}
		return Prediction{Label: l.m.Classes[0], Confidence: 1 - p}, nil
	}

	probs := softmax(scores)
	best := 0
	for k := range probs {
		if probs[k] > probs[best] {
			best = k
		}
	}
	return Prediction{Label: l.m.Classes[best], Confidence: probs[best]}, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func softmax(z []float64) []float64 {
	hi := slices.Max(z)
	out := make([]float64, len(z))
	sum := 0.0
	for i, v := range z {
		out[i] = math.Exp(v - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

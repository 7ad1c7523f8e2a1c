package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nyashahama/workplace-wellbeing-backend/internal/features"
)

// fallbackPredictor calls the primary first; if that fails it logs the
// failure and tries the secondary. main.go picks the order.
type fallbackPredictor struct {
	primary   Predictor
	secondary Predictor
	logger    *slog.Logger
}

// NewFallback returns a Predictor that calls primary and, on failure, falls
// back to secondary. Both must declare the same contract, since the row is
// assembled once against it.
func NewFallback(primary, secondary Predictor, logger *slog.Logger) (Predictor, error) {
	if primary == nil || secondary == nil {
		return nil, errors.New("inference: fallback needs a primary and a secondary")
	}
	if !primary.Contract().Equal(secondary.Contract()) {
		return nil, errors.New("inference: primary and secondary contracts differ")
	}
	return &fallbackPredictor{primary: primary, secondary: secondary, logger: logger}, nil
}

func (f *fallbackPredictor) Contract() features.Contract { return f.primary.Contract() }

// Predict tries the primary. If it fails, it logs the primary error and tries
// the secondary; when both fail the joined error is returned so callers can
// still find a *TransformError.
func (f *fallbackPredictor) Predict(ctx context.Context, row features.Row) (Prediction, error) {
	p, err := f.primary.Predict(ctx, row)
	if err == nil {
		return p, nil
	}
	if ctx.Err() != nil {
		return Prediction{}, err
	}
	f.logger.Warn("inference: primary predictor failed, trying secondary", "error", err)

	p, err2 := f.secondary.Predict(ctx, row)
	if err2 != nil {
		return Prediction{}, fmt.Errorf("inference: primary and secondary failed: %w", errors.Join(err, err2))
	}
	return p, nil
}

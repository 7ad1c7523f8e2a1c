// Package worker runs background maintenance for the assessment service. The
// Runner fires its Job on a fixed interval with a per-run timeout and
// exponential back-off retries; the only job today is the expired-session
// sweep.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// ─── RUNNER ───────────────────────────────────────────────────────────────────

// RunnerConfig holds tuning parameters for the Runner. Zero fields take the
// values from DefaultRunnerConfig.
type RunnerConfig struct {
	// Interval is the time between runs. Default: 5m.
	Interval time.Duration

	// JobTimeout is the per-attempt context deadline. Default: 30s.
	JobTimeout time.Duration

	// MaxRetries is the number of attempts per run. Default: 3.
	MaxRetries int

	// BaseBackoff is the delay before the second attempt; it doubles after
	// each failure. Default: 1s.
	BaseBackoff time.Duration
}

// DefaultRunnerConfig returns safe production defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Interval:    5 * time.Minute,
		JobTimeout:  30 * time.Second,
		MaxRetries:  3,
		BaseBackoff: time.Second,
	}
}

// Runner runs a Job once at start and then every Interval until its context
// is cancelled.
type Runner struct {
	job    Job
	cfg    RunnerConfig
	logger *slog.Logger

	wg sync.WaitGroup
}

// NewRunner constructs a Runner. Call Start to begin.
func NewRunner(job Job, cfg RunnerConfig, logger *slog.Logger) *Runner {
	def := DefaultRunnerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	return &Runner{job: job, cfg: cfg, logger: logger.With("job", job.Name())}
}

// Start blocks until ctx is cancelled and the current run has returned. Call
// it in a goroutine from main:
//
//	go runner.Start(ctx)
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("worker: starting", "interval", r.cfg.Interval)

	r.wg.Add(1)
	go r.loop(ctx)
	r.wg.Wait()

	r.logger.Info("worker: stopped")
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	// Run once immediately to clear anything left from before a restart.
	r.runWithRetry(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runWithRetry(ctx)
		}
	}
}

// runWithRetry executes the job up to MaxRetries times with exponential
// back-off. A run that exhausts its retries is logged and skipped; the next
// tick tries again.
func (r *Runner) runWithRetry(ctx context.Context) {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		jobCtx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
		lastErr = r.job.Run(jobCtx)
		cancel()

		if lastErr == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}

		r.logger.Warn("worker: job attempt failed",
			"attempt", attempt,
			"max", r.cfg.MaxRetries,
			"error", lastErr,
		)

		if attempt < r.cfg.MaxRetries {
			backoff := r.cfg.BaseBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}
	}

	r.logger.Error("worker: job failed, will retry next interval", "error", lastErr)
}

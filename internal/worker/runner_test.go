package worker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/nyashahama/workplace-wellbeing-backend/internal/questionnaire"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/store"
	"github.com/nyashahama/workplace-wellbeing-backend/internal/worker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ─── STUBS ────────────────────────────────────────────────────────────────────

// stubJob fails the first failures calls, then succeeds, signalling each
// call on ran.
type stubJob struct {
	mu       sync.Mutex
	calls    int
	failures int
	ran      chan struct{}
}

func (j *stubJob) Name() string { return "stub" }

func (j *stubJob) Run(context.Context) error {
	j.mu.Lock()
	j.calls++
	fail := j.calls <= j.failures
	j.mu.Unlock()
	select {
	case j.ran <- struct{}{}:
	default:
	}
	if fail {
		return errors.New("transient")
	}
	return nil
}

func (j *stubJob) callCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startRunner runs r until the returned stop func is called.
func startRunner(r *worker.Runner) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

func waitRuns(t *testing.T, j *stubJob, n int) {
	t.Helper()
	for range n {
		select {
		case <-j.ran:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for run, calls=%d", j.callCount())
		}
	}
}

// ─── Runner ───────────────────────────────────────────────────────────────────

func TestRunner_RunsImmediatelyAndOnInterval(t *testing.T) {
	j := &stubJob{ran: make(chan struct{}, 16)}
	r := worker.NewRunner(j, worker.RunnerConfig{Interval: 10 * time.Millisecond}, discardLogger())

	stop := startRunner(r)
	waitRuns(t, j, 3)
	stop()

	if j.callCount() < 3 {
		t.Errorf("calls: got %d, want >= 3", j.callCount())
	}
}

func TestRunner_RetriesWithBackoff(t *testing.T) {
	j := &stubJob{failures: 2, ran: make(chan struct{}, 16)}
	r := worker.NewRunner(j, worker.RunnerConfig{
		Interval:    time.Hour,
		MaxRetries:  3,
		BaseBackoff: time.Millisecond,
	}, discardLogger())

	stop := startRunner(r)
	waitRuns(t, j, 3)
	stop()

	if j.callCount() != 3 {
		t.Errorf("calls: got %d, want 3", j.callCount())
	}
}

func TestRunner_StopsOnCancelDuringBackoff(t *testing.T) {
	j := &stubJob{failures: 100, ran: make(chan struct{}, 16)}
	r := worker.NewRunner(j, worker.RunnerConfig{
		Interval:    time.Hour,
		MaxRetries:  5,
		BaseBackoff: time.Hour,
	}, discardLogger())

	stop := startRunner(r)
	waitRuns(t, j, 1)
	stop()

	if j.callCount() != 1 {
		t.Errorf("calls: got %d, want 1", j.callCount())
	}
}

// ─── Sweep ────────────────────────────────────────────────────────────────────

func TestSweep_DeletesIdleSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sessions := store.NewMemory()

	idle := questionnaire.NewSession("idle", now.Add(-2*time.Hour))
	active := questionnaire.NewSession("active", now.Add(-10*time.Minute))
	for _, s := range []questionnaire.Session{idle, active} {
		if err := sessions.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	sweep := worker.NewSweep(sessions, time.Hour, func() time.Time { return now }, discardLogger())
	if err := sweep.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := sessions.Get(ctx, idle.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("idle session: expected ErrNotFound, got %v", err)
	}
	if _, err := sessions.Get(ctx, active.ID); err != nil {
		t.Errorf("active session: %v", err)
	}
}

type failingExpirer struct{}

func (failingExpirer) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, errors.New("db down")
}

func TestSweep_PropagatesStoreError(t *testing.T) {
	sweep := worker.NewSweep(failingExpirer{}, time.Hour, nil, discardLogger())
	if err := sweep.Run(context.Background()); err == nil {
		t.Error("expected error, got nil")
	}
}

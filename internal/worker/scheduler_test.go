package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockJob は実行回数を数えるJobのモック。
type mockJob struct {
	name  string
	runFn func(ctx context.Context) error
	calls atomic.Int32
}

func (m *mockJob) Name() string { return m.name }

func (m *mockJob) Run(ctx context.Context) error {
	m.calls.Add(1)
	if m.runFn != nil {
		return m.runFn(ctx)
	}
	return nil
}

// syncBuffer はgoroutineから安全に書き込めるログ出力先。
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger(w *syncBuffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, nil))
}

func TestScheduler_RunsImmediatelyAndOnInterval(t *testing.T) {
	var logs syncBuffer
	s := NewScheduler(newTestLogger(&logs))
	job := &mockJob{name: "fast"}
	s.Add(job, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 75*time.Millisecond)
	defer cancel()

	s.Start(ctx)

	if got := job.calls.Load(); got < 2 {
		t.Errorf("job ran %d times, want at least 2", got)
	}
}

func TestScheduler_RunsJobsIndependently(t *testing.T) {
	var logs syncBuffer
	s := NewScheduler(newTestLogger(&logs))
	slow := &mockJob{name: "slow"}
	fast := &mockJob{name: "fast"}
	s.Add(slow, time.Hour)
	s.Add(fast, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 75*time.Millisecond)
	defer cancel()

	s.Start(ctx)

	if got := slow.calls.Load(); got != 1 {
		t.Errorf("slow job ran %d times, want 1 (startup only)", got)
	}
	if got := fast.calls.Load(); got < 2 {
		t.Errorf("fast job ran %d times, want at least 2", got)
	}
}

func TestScheduler_FailureIsLoggedAndRetried(t *testing.T) {
	var logs syncBuffer
	s := NewScheduler(newTestLogger(&logs))
	job := &mockJob{
		name:  "flaky",
		runFn: func(ctx context.Context) error { return errors.New("db down") },
	}
	s.Add(job, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s.Start(ctx)

	if got := job.calls.Load(); got < 2 {
		t.Errorf("failing job ran %d times, want it to keep running", got)
	}
	if !strings.Contains(logs.String(), "db down") {
		t.Errorf("failure should be logged: %s", logs.String())
	}
}

func TestScheduler_IgnoresNonPositiveInterval(t *testing.T) {
	var logs syncBuffer
	s := NewScheduler(newTestLogger(&logs))
	job := &mockJob{name: "disabled"}
	s.Add(job, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Start(ctx)

	if got := job.calls.Load(); got != 0 {
		t.Errorf("job with zero interval ran %d times", got)
	}
}

func TestScheduler_CancelledContextSkipsRun(t *testing.T) {
	var logs syncBuffer
	s := NewScheduler(newTestLogger(&logs))
	job := &mockJob{name: "late"}
	s.Add(job, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should return after cancellation")
	}
	if got := job.calls.Load(); got != 0 {
		t.Errorf("job ran %d times after cancellation", got)
	}
}

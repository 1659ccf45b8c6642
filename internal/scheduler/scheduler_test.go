package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func countingJob(calls *atomic.Int32, err error) Job {
	return func(ctx context.Context) error {
		calls.Add(1)
		return err
	}
}

func TestNew_Invalid(t *testing.T) {
	var calls atomic.Int32
	job := countingJob(&calls, nil)

	if _, err := New(Config{Interval: 0}, job, nil); err == nil {
		t.Error("expected error for zero interval")
	}
	if _, err := New(Config{Interval: time.Second, MaxRuns: -1}, job, nil); err == nil {
		t.Error("expected error for negative max runs")
	}
	if _, err := New(Config{Interval: time.Second}, nil, nil); err == nil {
		t.Error("expected error for nil job")
	}
}

func TestRun_MaxRuns(t *testing.T) {
	var calls atomic.Int32
	s, err := New(Config{Interval: 10 * time.Millisecond, MaxRuns: 3}, countingJob(&calls, nil), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
	st := s.Status()
	if st.Running || st.TotalRuns != 3 || st.SuccessfulRuns != 3 || st.FailedRuns != 0 {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestRun_Immediate(t *testing.T) {
	var calls atomic.Int32
	s, _ := New(Config{Interval: time.Hour, Immediate: true, MaxRuns: 1}, countingJob(&calls, nil), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if time.Since(start) > time.Minute {
		t.Error("immediate run waited for the interval")
	}
}

func TestRun_FailuresCounted(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("quota exceeded")
	s, _ := New(Config{Interval: 5 * time.Millisecond, MaxRuns: 2}, countingJob(&calls, boom), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Run(ctx)

	st := s.Status()
	if st.FailedRuns != 2 || st.SuccessfulRuns != 0 {
		t.Errorf("unexpected counters %+v", st)
	}
	if st.LastError != "quota exceeded" {
		t.Errorf("LastError = %q", st.LastError)
	}
}

func TestStop(t *testing.T) {
	var calls atomic.Int32
	s, _ := New(Config{Interval: time.Hour}, countingJob(&calls, nil), nil)

	if err := s.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop before Start = %v, want ErrNotRunning", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrRunning) {
		t.Errorf("second Start = %v, want ErrRunning", err)
	}
	if !s.Status().Running {
		t.Error("status should report running")
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if s.Status().Running {
		t.Error("status should report stopped")
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("restart = %v, want ErrStopped", err)
	}
	if calls.Load() != 0 {
		t.Errorf("job ran %d times before first tick", calls.Load())
	}
}

func TestContextCancel(t *testing.T) {
	var calls atomic.Int32
	s, _ := New(Config{Interval: time.Hour}, countingJob(&calls, nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}

// Package scheduler repeats a job on a fixed interval, e.g. pushing a local
// file to Drive every few minutes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Ning0612/drivesync/internal/logger"
)

var (
	// ErrRunning is returned by Start on a scheduler that is already running
	ErrRunning = errors.New("scheduler is already running")
	// ErrStopped is returned by Start after Stop; schedulers are single use
	ErrStopped = errors.New("scheduler cannot be restarted after stop")
	// ErrNotRunning is returned by Stop on a scheduler that never started
	ErrNotRunning = errors.New("scheduler is not running")
)

// Job is one scheduled unit of work
type Job func(ctx context.Context) error

// Config contains scheduler configuration
type Config struct {
	// Interval between runs
	Interval time.Duration
	// Immediate runs the job once at Start instead of waiting a full interval
	Immediate bool
	// MaxRuns stops the scheduler after that many runs; 0 means unlimited
	MaxRuns int
}

// Status represents the current state of a scheduler
type Status struct {
	Running        bool
	LastRunTime    time.Time
	NextRunTime    time.Time
	TotalRuns      int
	SuccessfulRuns int
	FailedRuns     int
	LastError      string
}

// Scheduler runs a Job every Config.Interval. Runs never overlap.
type Scheduler struct {
	config Config
	job    Job
	log    logger.Logger

	mu       sync.RWMutex
	running  bool
	stopped  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	status   Status
}

// New creates a scheduler for job
func New(config Config, job Job, log logger.Logger) (*Scheduler, error) {
	if config.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", config.Interval)
	}
	if config.MaxRuns < 0 {
		return nil, fmt.Errorf("max runs cannot be negative, got %d", config.MaxRuns)
	}
	if job == nil {
		return nil, fmt.Errorf("job cannot be nil")
	}
	if log == nil {
		log = &logger.NullLogger{}
	}

	return &Scheduler{
		config: config,
		job:    job,
		log:    log,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

// Start begins the loop in a goroutine and returns immediately
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrRunning
	}
	if s.stopped {
		return ErrStopped
	}

	s.running = true
	s.status.Running = true
	s.status.NextRunTime = time.Now().Add(s.config.Interval)

	go s.loop(ctx)
	return nil
}

// Done is closed once the loop has exited
func (s *Scheduler) Done() <-chan struct{} {
	return s.doneCh
}

// Run starts the scheduler and blocks until ctx is done, Stop is called, or
// MaxRuns is reached
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-s.doneCh
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.stopped = true
		s.status.Running = false
		s.mu.Unlock()
		close(s.doneCh)
	}()

	if s.config.Immediate {
		if s.runOnce(ctx) {
			return
		}
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if s.runOnce(ctx) {
				return
			}
		}
	}
}

// runOnce executes the job and reports whether MaxRuns was reached
func (s *Scheduler) runOnce(ctx context.Context) bool {
	start := time.Now()
	err := s.job(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.LastRunTime = start
	s.status.NextRunTime = time.Now().Add(s.config.Interval)
	s.status.TotalRuns++
	if err != nil {
		s.status.FailedRuns++
		s.status.LastError = err.Error()
		s.log.Warn("Scheduled run failed", "run", s.status.TotalRuns, "error", err)
	} else {
		s.status.SuccessfulRuns++
		s.status.LastError = ""
		s.log.Debug("Scheduled run finished", "run", s.status.TotalRuns, "duration", time.Since(start))
	}

	return s.config.MaxRuns > 0 && s.status.TotalRuns >= s.config.MaxRuns
}

// Stop ends the loop and waits for an in-flight run to finish
func (s *Scheduler) Stop() error {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}

	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
	return nil
}

// Status returns a snapshot of the scheduler's counters
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// ABOUTME: This file runs named background jobs on fixed intervals
// ABOUTME: Each job fires once immediately, then on every tick until shutdown

package job

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is a named periodic task. Delay postpones the first run; Timeout bounds
// each individual run.
type Job struct {
	Name     string
	Interval time.Duration
	Delay    time.Duration
	Timeout  time.Duration
	Fn       func(ctx context.Context)
}

// Scheduler runs jobs on their intervals until its context is cancelled.
type Scheduler struct {
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewScheduler creates a job scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{logger: logger}
}

// Start launches a goroutine per job. After the job's initial delay it runs
// once, then on every interval tick. Cancelling ctx stops all jobs; Wait
// blocks until they have returned.
func (s *Scheduler) Start(ctx context.Context, jobs ...Job) {
	for _, j := range jobs {
		s.wg.Add(1)
		go func(j Job) {
			defer s.wg.Done()
			s.run(ctx, j)
		}(j)
	}
}

// Wait blocks until all started jobs have stopped.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, j Job) {
	if j.Delay > 0 {
		select {
		case <-time.After(j.Delay):
		case <-ctx.Done():
			return
		}
	}

	s.logger.Info("background job started",
		"job", j.Name,
		"interval", j.Interval.String())

	s.runOnce(ctx, j)

	if j.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx, j)
		case <-ctx.Done():
			s.logger.Info("background job stopped", "job", j.Name)
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, j Job) {
	runCtx := ctx
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	start := time.Now()
	j.Fn(runCtx)
	s.logger.Debug("background job run completed",
		"job", j.Name,
		"duration", time.Since(start).String())
}

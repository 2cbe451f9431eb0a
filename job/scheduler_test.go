package job

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_RunsImmediatelyThenOnTicks(t *testing.T) {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(nil)
	s.Start(ctx, Job{
		Name:     "counter",
		Interval: 20 * time.Millisecond,
		Fn:       func(ctx context.Context) { runs.Add(1) },
	})

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	s.Wait()
}

func TestScheduler_DelayPostponesFirstRun(t *testing.T) {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(nil)
	s.Start(ctx, Job{
		Name:     "delayed",
		Interval: time.Hour,
		Delay:    50 * time.Millisecond,
		Fn:       func(ctx context.Context) { runs.Add(1) },
	})

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	s.Wait()
}

func TestScheduler_CancelDuringDelaySkipsRun(t *testing.T) {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	s := NewScheduler(nil)
	s.Start(ctx, Job{
		Name:  "cancelled",
		Delay: time.Hour,
		Fn:    func(ctx context.Context) { runs.Add(1) },
	})

	cancel()
	s.Wait()
	assert.Equal(t, int32(0), runs.Load())
}

func TestScheduler_OneShotJobStops(t *testing.T) {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(nil)
	s.Start(ctx, Job{
		Name: "oneshot",
		Fn:   func(ctx context.Context) { runs.Add(1) },
	})

	s.Wait()
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_TimeoutBoundsEachRun(t *testing.T) {
	deadlineSeen := make(chan bool, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(nil)
	s.Start(ctx, Job{
		Name:    "bounded",
		Timeout: 10 * time.Millisecond,
		Fn: func(ctx context.Context) {
			_, ok := ctx.Deadline()
			deadlineSeen <- ok
		},
	})

	assert.True(t, <-deadlineSeen)
	s.Wait()
}

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igrelay/pkg/logger"
)

type resultCollector struct {
	mu      sync.Mutex
	results []Result
}

func (c *resultCollector) add(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func (c *resultCollector) all() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Result(nil), c.results...)
}

func TestWorkerPoolBasicFunctionality(t *testing.T) {
	collector := &resultCollector{}
	pool := NewWorkerPool(3, 20, logger.NewNopLogger(), WithResultHandler(collector.add))
	pool.Start(context.Background())

	var runs atomic.Int32
	for i := 0; i < 10; i++ {
		err := pool.Submit(Job{
			Name:   fmt.Sprintf("job%d", i),
			ChatID: int64(i),
			Run: func(ctx context.Context) error {
				runs.Add(1)
				return nil
			},
		})
		require.NoError(t, err)
	}

	pool.Stop()

	assert.Equal(t, int32(10), runs.Load())
	assert.Len(t, collector.all(), 10)
	stats := pool.Stats()
	assert.Equal(t, int64(10), stats.Submitted)
	assert.Equal(t, int64(10), stats.Completed)
	assert.Zero(t, stats.Failed)
}

func TestWorkerPoolWithErrors(t *testing.T) {
	collector := &resultCollector{}
	pool := NewWorkerPool(2, 10, logger.NewNopLogger(), WithResultHandler(collector.add))
	pool.Start(context.Background())

	boom := errors.New("boom")
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(Job{Name: "fail", Run: func(context.Context) error { return boom }}))
	}
	pool.Stop()

	results := collector.all()
	require.Len(t, results, 5)
	for _, r := range results {
		assert.ErrorIs(t, r.Error, boom)
	}
	assert.Equal(t, int64(5), pool.Stats().Failed)
}

func TestWorkerPoolRecoversPanics(t *testing.T) {
	collector := &resultCollector{}
	pool := NewWorkerPool(1, 2, logger.NewNopLogger(), WithResultHandler(collector.add))
	pool.Start(context.Background())

	require.NoError(t, pool.Submit(Job{Name: "panic", Run: func(context.Context) error { panic("bad") }}))
	require.NoError(t, pool.Submit(Job{Name: "after", Run: func(context.Context) error { return nil }}))
	pool.Stop()

	results := collector.all()
	require.Len(t, results, 2)
	assert.ErrorContains(t, results[0].Error, "panicked")
	assert.NoError(t, results[1].Error)
}

func TestWorkerPoolConcurrency(t *testing.T) {
	pool := NewWorkerPool(5, 10, logger.NewNopLogger())
	pool.Start(context.Background())

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(Job{Name: "sleep", Run: func(context.Context) error {
			time.Sleep(100 * time.Millisecond)
			return nil
		}}))
	}
	pool.Stop()

	// 10 jobs of 100ms on 5 workers take about 200ms
	assert.Less(t, time.Since(start), 450*time.Millisecond)
}

func TestSubmitQueueFull(t *testing.T) {
	pool := NewWorkerPool(1, 1, logger.NewNopLogger())
	pool.Start(context.Background())

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(Job{Name: "block", Run: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}))
	<-started

	noop := Job{Name: "noop", Run: func(context.Context) error { return nil }}
	require.NoError(t, pool.Submit(noop))
	assert.ErrorIs(t, pool.Submit(noop), ErrQueueFull)
	stats := pool.Stats()
	assert.Equal(t, int64(1), stats.Rejected)
	assert.Equal(t, 1, stats.Queued)

	close(release)
	pool.Stop()
}

func TestSubmitAfterStop(t *testing.T) {
	pool := NewWorkerPool(1, 1, logger.NewNopLogger())
	pool.Start(context.Background())
	pool.Stop()
	pool.Stop()

	err := pool.Submit(Job{Name: "late", Run: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestSubmitRequiresRun(t *testing.T) {
	pool := NewWorkerPool(1, 1, logger.NewNopLogger())
	assert.Error(t, pool.Submit(Job{Name: "empty"}))
}

func TestCancelledContextReachesJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	collector := &resultCollector{}
	pool := NewWorkerPool(1, 1, logger.NewNopLogger(), WithResultHandler(collector.add))
	pool.Start(ctx)

	started := make(chan struct{})
	require.NoError(t, pool.Submit(Job{Name: "wait", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}}))
	<-started
	cancel()
	pool.Stop()

	results := collector.all()
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Error, context.Canceled)
}

func TestWorkerPoolStartTwiceKeepsWorkerCount(t *testing.T) {
	pool := NewWorkerPool(1, 4, logger.NewNopLogger())
	pool.Start(context.Background())
	pool.Start(context.Background())

	var running, peak atomic.Int32
	for i := 0; i < 3; i++ {
		require.NoError(t, pool.Submit(Job{
			Name: fmt.Sprintf("job%d", i),
			Run: func(ctx context.Context) error {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				running.Add(-1)
				return nil
			},
		}))
	}
	pool.Stop()

	assert.Equal(t, int32(1), peak.Load())
	assert.Equal(t, int64(3), pool.Stats().Completed)
}

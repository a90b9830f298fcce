package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"igrelay/pkg/logger"
)

var (
	// ErrQueueFull is returned by Submit when every queue slot is taken
	ErrQueueFull = errors.New("dispatch queue is full")
	// ErrStopped is returned by Submit after Stop
	ErrStopped = errors.New("worker pool is shutting down")
)

// Job is one unit of chat work, usually a single media batch
type Job struct {
	Name   string
	ChatID int64
	Run    func(ctx context.Context) error
}

// Result is the outcome of a finished job
type Result struct {
	Job      Job
	Error    error
	Duration time.Duration
}

// Stats is a snapshot of pool counters
type Stats struct {
	Submitted int64
	Completed int64
	Failed    int64
	Rejected  int64
	Queued    int
	Workers   int
}

// WorkerPool runs jobs on a fixed number of workers
type WorkerPool struct {
	numWorkers int
	jobQueue   chan Job
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	onResult   func(Result)
	logger     logger.Logger

	mu      sync.RWMutex
	started bool
	stopped bool

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// Option configures a WorkerPool
type Option func(*WorkerPool)

// WithResultHandler registers a callback invoked after every job
func WithResultHandler(fn func(Result)) Option {
	return func(wp *WorkerPool) { wp.onResult = fn }
}

// NewWorkerPool creates a pool with numWorkers workers and room for
// queueSize waiting jobs
func NewWorkerPool(numWorkers, queueSize int, log logger.Logger, opts ...Option) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if log == nil {
		log = logger.GetLogger()
	}

	wp := &WorkerPool{
		numWorkers: numWorkers,
		jobQueue:   make(chan Job, queueSize),
		logger:     log.WithField("component", "dispatch"),
	}
	wp.ctx, wp.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(wp)
	}
	return wp
}

// Start launches the workers. Jobs run with a context derived from ctx;
// cancelling it aborts running jobs. Only the first call has an effect.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.started || wp.stopped {
		return
	}
	wp.started = true

	wp.cancel()
	wp.ctx, wp.cancel = context.WithCancel(ctx)

	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
		"queue_size":  cap(wp.jobQueue),
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop stops accepting jobs and waits for queued and running jobs to finish
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobQueue)
	cancel := wp.cancel
	wp.mu.Unlock()

	wp.logger.Info("Stopping worker pool...")
	wp.wg.Wait()
	cancel()
	wp.logger.Info("Worker pool stopped")
}

// Submit queues a job without blocking
func (wp *WorkerPool) Submit(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("job %q has no Run function", job.Name)
	}

	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		wp.rejected.Add(1)
		return ErrStopped
	}

	select {
	case wp.jobQueue <- job:
		wp.submitted.Add(1)
		wp.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
			"job":     job.Name,
			"chat_id": job.ChatID,
		})
		return nil
	default:
		wp.rejected.Add(1)
		wp.logger.WarnWithFields("Job rejected, queue full", map[string]interface{}{
			"job":     job.Name,
			"chat_id": job.ChatID,
		})
		return ErrQueueFull
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		result := wp.processJob(job, id)
		if result.Error != nil {
			wp.failed.Add(1)
		} else {
			wp.completed.Add(1)
		}
		if wp.onResult != nil {
			wp.onResult(result)
		}
	}

	wp.logger.DebugWithFields("Worker stopping - job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}

func (wp *WorkerPool) processJob(job Job, workerID int) (result Result) {
	start := time.Now()
	result.Job = job

	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Errorf("job panicked: %v", r)
			wp.logger.ErrorWithFields("Worker recovered from panic", map[string]interface{}{
				"worker_id": workerID,
				"job":       job.Name,
				"chat_id":   job.ChatID,
				"panic":     fmt.Sprint(r),
				"stack":     string(debug.Stack()),
			})
		}
		result.Duration = time.Since(start)
	}()

	if err := wp.ctx.Err(); err != nil {
		result.Error = err
		return result
	}

	result.Error = job.Run(wp.ctx)

	fields := map[string]interface{}{
		"worker_id": workerID,
		"job":       job.Name,
		"chat_id":   job.ChatID,
		"duration":  time.Since(start),
	}
	if result.Error != nil {
		wp.logger.WithError(result.Error).WarnWithFields("Job failed", fields)
	} else {
		wp.logger.DebugWithFields("Job completed", fields)
	}
	return result
}

// GetQueueSize returns the number of jobs waiting for a worker
func (wp *WorkerPool) GetQueueSize() int {
	return len(wp.jobQueue)
}

// Stats returns the current counters
func (wp *WorkerPool) Stats() Stats {
	return Stats{
		Submitted: wp.submitted.Load(),
		Completed: wp.completed.Load(),
		Failed:    wp.failed.Load(),
		Rejected:  wp.rejected.Load(),
		Queued:    wp.GetQueueSize(),
		Workers:   wp.numWorkers,
	}
}

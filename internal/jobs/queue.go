package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("job queue is shutting down")

// RunFunc executes one job. A returned error fails the job.
type RunFunc func(ctx context.Context, j *Job) error

// Task pairs a job with the work that drives it.
type Task struct {
	Job *Job
	Run RunFunc
}

// Queue runs tasks on a fixed pool of workers. Each task runs on exactly
// one worker.
type Queue struct {
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch      chan Task
	done    chan struct{}
	wg      sync.WaitGroup
	senders sync.WaitGroup
	once    sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Task, n)
		}
	}
}

// WithRunTimeout bounds a single run; 0 leaves runs unbounded.
func WithRunTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewQueue(logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		logger:  logger,
		workers: 2,
		ch:      make(chan Task, 64),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("jobs.worker.start", "worker_id", workerID)
				for t := range q.ch {
					q.runOne(workerID, t)
				}
				q.logger.Debug("jobs.worker.stop", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *Queue) runOne(workerID int, t Task) {
	start := time.Now()
	ctx := context.Background()
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				q.logger.Error("jobs.run.panic", "job_id", t.Job.ID, "panic", r, "stack", string(debug.Stack()))
				err = fmt.Errorf("internal error: %v", r)
			}
		}()
		return t.Run(ctx, t.Job)
	}()

	if err != nil {
		t.Job.Fail(err)
		q.logger.Error("jobs.run.failed", "worker_id", workerID, "job_id", t.Job.ID, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	q.logger.Info("jobs.run.ok", "worker_id", workerID, "job_id", t.Job.ID, "duration_ms", time.Since(start).Milliseconds())
}

// Enqueue hands a task to the pool, blocking while the buffer is full until
// ctx is done or the queue shuts down. The lock only guards the closed flag so
// a blocked caller never stalls other callers or Shutdown.
func (q *Queue) Enqueue(ctx context.Context, t Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.senders.Add(1)
	q.mu.Unlock()
	defer q.senders.Done()

	select {
	case q.ch <- t:
		q.logger.Debug("jobs.enqueue.ok", "job_id", t.Job.ID)
		return nil
	default:
	}
	q.logger.Warn("jobs.enqueue.backpressure", "job_id", t.Job.ID)
	select {
	case q.ch <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrQueueClosed
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish or for
// ctx to end. Blocked Enqueue calls return ErrQueueClosed.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		// ch is closed only once no sender can still write to it.
		q.senders.Wait()
		close(q.ch)
		q.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		q.logger.Warn("jobs.shutdown.interrupted")
	case <-finished:
		q.logger.Info("jobs.shutdown.ok")
	}
}

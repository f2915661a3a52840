package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"quiz-forge/internal/domain"
	"quiz-forge/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrAlreadyQueued = errors.New("worker: task already queued")
	ErrQueueFull     = errors.New("worker: queue is full")
	ErrQueueClosed   = errors.New("worker: queue is closed")
	// ErrLockedElsewhere is reported on a handle whose key is held by another instance.
	ErrLockedElsewhere = errors.New("worker: task is running on another instance")
)

// Task is a unit of background work. The context is cancelled only on forced shutdown.
type Task func(ctx context.Context) error

// Handle tracks one enqueued task until it finishes.
type Handle struct {
	key  string
	done chan struct{}
	err  error
}

func newHandle(key string) *Handle {
	return &Handle{key: key, done: make(chan struct{})}
}

func (h *Handle) Key() string {
	return h.key
}

// Done is closed once the task has finished.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the task result. Only meaningful after Done is closed.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx ends.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type job struct {
	handle *Handle
	task   Task
}

type Options struct {
	Concurrency int
	Size        int
	LockTTL     time.Duration
	// LockKey maps a task key to its distributed lock key. Required when a locker is set.
	LockKey func(key string) string
}

// Queue is a bounded in-process task queue admitting at most one in-flight task per key.
type Queue struct {
	opts   Options
	locker domain.Locker

	mu       sync.Mutex
	inflight map[string]*Handle
	jobs     chan job
	closed   bool

	group  *errgroup.Group
	cancel context.CancelFunc
}

// NewQueue creates a queue. locker may be nil for single-instance deployments.
func NewQueue(opts Options, locker domain.Locker) *Queue {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Size <= 0 {
		opts.Size = 1
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	if opts.LockKey == nil {
		opts.LockKey = func(key string) string { return key }
	}
	return &Queue{
		opts:     opts,
		locker:   locker,
		inflight: make(map[string]*Handle),
		jobs:     make(chan job, opts.Size),
	}
}

// Start launches the worker goroutines. Tasks run with a context derived from ctx.
func (q *Queue) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.group = new(errgroup.Group)
	for i := 0; i < q.opts.Concurrency; i++ {
		workerID := i
		q.group.Go(func() error {
			for j := range q.jobs {
				q.run(runCtx, workerID, j)
			}
			return nil
		})
	}
	logger.Get().Info("Worker queue started",
		zap.Int("concurrency", q.opts.Concurrency),
		zap.Int("size", q.opts.Size))
}

// Enqueue never blocks. A duplicate key returns the in-flight handle with ErrAlreadyQueued.
func (q *Queue) Enqueue(key string, task Task) (*Handle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}
	if h, ok := q.inflight[key]; ok {
		return h, ErrAlreadyQueued
	}

	h := newHandle(key)
	select {
	case q.jobs <- job{handle: h, task: task}:
		q.inflight[key] = h
		return h, nil
	default:
		return nil, ErrQueueFull
	}
}

// Len reports the number of queued or running tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}

// Shutdown stops admission and drains queued tasks. When ctx ends first, running
// tasks are cancelled and Shutdown waits for them to return.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	if q.group == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- q.group.Wait() }()

	select {
	case err := <-done:
		q.cancel()
		return err
	case <-ctx.Done():
		logger.Get().Warn("Worker queue drain timed out, cancelling running tasks")
		q.cancel()
		<-done
		return ctx.Err()
	}
}

func (q *Queue) run(ctx context.Context, workerID int, j job) {
	key := j.handle.key
	start := time.Now()

	err := q.withLock(ctx, key, func() error {
		return safeRun(ctx, j.task)
	})

	if err != nil {
		logger.Get().Warn("Task failed",
			zap.String("key", key),
			zap.Int("worker", workerID),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
	} else {
		logger.Get().Debug("Task finished",
			zap.String("key", key),
			zap.Int("worker", workerID),
			zap.Duration("duration", time.Since(start)))
	}

	q.mu.Lock()
	delete(q.inflight, key)
	q.mu.Unlock()

	j.handle.err = err
	close(j.handle.done)
}

// withLock runs fn under the distributed lock when a locker is configured.
// A failing lock backend degrades to local-only admission.
func (q *Queue) withLock(ctx context.Context, key string, fn func() error) error {
	if q.locker == nil {
		return fn()
	}

	lockKey := q.opts.LockKey(key)
	acquired, err := q.locker.Acquire(ctx, lockKey, q.opts.LockTTL)
	if err != nil {
		logger.Get().Warn("Failed to acquire task lock, running without it",
			zap.String("lock_key", lockKey), zap.Error(err))
		return fn()
	}
	if !acquired {
		return ErrLockedElsewhere
	}
	defer func() {
		if relErr := q.locker.Release(context.WithoutCancel(ctx), lockKey); relErr != nil {
			logger.Get().Warn("Failed to release task lock", zap.String("lock_key", lockKey), zap.Error(relErr))
		}
	}()
	return fn()
}

func safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return task(ctx)
}

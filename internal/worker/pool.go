// Package worker runs keyed background tasks with bounded concurrency.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/set-night/memoirbot/internal/domain"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) active() bool {
	return s == StatusPending || s == StatusRunning
}

// Task is a snapshot of one submitted job.
type Task struct {
	Key       string
	Status    Status
	Err       error
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Func func(ctx context.Context) error

// Pool runs at most workers tasks at once and keeps up to queue more waiting.
// Only one task per key may be pending or running.
type Pool struct {
	sem      *semaphore.Weighted
	capacity int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	tasks    map[string]*Task
	inflight int
	closed   bool
}

func New(workers, queue int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		sem:      semaphore.NewWeighted(int64(workers)),
		capacity: workers + queue,
		ctx:      ctx,
		cancel:   cancel,
		tasks:    make(map[string]*Task),
	}
}

// Submit schedules fn under key.
func (p *Pool) Submit(key string, fn Func) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return domain.ErrPoolClosed
	}
	if t, ok := p.tasks[key]; ok && t.Status.active() {
		return fmt.Errorf("task %s: %w", key, domain.ErrTaskRunning)
	}
	if p.inflight >= p.capacity {
		return fmt.Errorf("task %s: %w", key, domain.ErrQueueFull)
	}

	now := time.Now()
	task := &Task{Key: key, Status: StatusPending, CreatedAt: now, UpdatedAt: now}
	p.tasks[key] = task
	p.inflight++
	p.wg.Add(1)

	go p.run(task, fn)
	return nil
}

func (p *Pool) run(task *Task, fn Func) {
	defer p.wg.Done()

	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		p.finish(task, StatusCancelled, err)
		return
	}
	defer p.sem.Release(1)

	p.setStatus(task, StatusRunning)
	if err := p.call(p.ctx, task.Key, fn); err != nil {
		p.finish(task, StatusFailed, err)
		return
	}
	p.finish(task, StatusCompleted, nil)
}

func (p *Pool) call(ctx context.Context, key string, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic recovered in task", "key", key, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("task %s panicked: %v", key, r)
		}
	}()
	return fn(ctx)
}

// Do runs fn on the calling goroutine once a worker slot is free. Synchronous
// work shares the concurrency bound with submitted tasks but not the queue.
func (p *Pool) Do(ctx context.Context, key string, fn Func) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return domain.ErrPoolClosed
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("task %s: wait for worker: %w", key, err)
	}
	defer p.sem.Release(1)
	return p.call(ctx, key, fn)
}

func (p *Pool) setStatus(task *Task, status Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	task.Status = status
	task.UpdatedAt = time.Now()
}

func (p *Pool) finish(task *Task, status Status, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	task.Status = status
	task.Err = err
	task.UpdatedAt = time.Now()
	p.inflight--
}

// Get returns a snapshot of the latest task submitted under key.
func (p *Pool) Get(key string) (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.tasks[key]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// InFlight counts pending and running tasks.
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inflight
}

// Cleanup forgets finished tasks last updated before now-age.
func (p *Pool) Cleanup(age time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := time.Now().Add(-age)
	n := 0
	for key, t := range p.tasks {
		if !t.Status.active() && t.UpdatedAt.Before(cutoff) {
			delete(p.tasks, key)
			n++
		}
	}
	return n
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Shutdown stops accepting tasks and waits for running ones. When ctx ends
// first, the shared task context is cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return fmt.Errorf("shutdown worker pool: %w", ctx.Err())
	}
}

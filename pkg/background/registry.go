// Package background runs supervised fire-and-forget tasks outside the request path.
package background

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	logx "github.com/chative-realty/leadbot/pkg/logger"
	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by Submit after Shutdown has started.
var ErrClosed = errors.New("background registry closed")

type Config struct {
	MaxConcurrent int64 `split_words:"true" default:"8"`
	TaskTimeout   int   `split_words:"true" default:"30"`
}

// Task is a unit of background work. Its error is logged and never retried.
type Task func(ctx context.Context) error

// Registry bounds concurrent background tasks and owns their lifetime.
// Submit never blocks the caller; tasks wait for a slot on their own goroutine.
type Registry struct {
	sem     *semaphore.Weighted
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool

	failed    atomic.Int64
	completed atomic.Int64
}

func New(cfg Config) *Registry {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	timeout := time.Duration(cfg.TaskTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		sem:     semaphore.NewWeighted(cfg.MaxConcurrent),
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit schedules task under name and returns immediately.
func (r *Registry) Submit(name string, task Task) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		logx.Warn().Str("task", name).Msg("background task rejected, registry closed")
		return ErrClosed
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go r.run(name, task)
	return nil
}

func (r *Registry) run(name string, task Task) {
	defer r.wg.Done()

	if err := r.sem.Acquire(r.ctx, 1); err != nil {
		r.failed.Add(1)
		logx.Warn().Str("task", name).Err(err).Msg("background task dropped before start")
		return
	}
	defer r.sem.Release(1)

	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	start := time.Now()
	if err := safeRun(ctx, task); err != nil {
		r.failed.Add(1)
		logx.Error().
			Str("task", name).
			Dur("elapsed", time.Since(start)).
			Err(err).
			Msg("background task failed")
		return
	}
	r.completed.Add(1)
	logx.Debug().Str("task", name).Dur("elapsed", time.Since(start)).Msg("background task done")
}

func safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v\n%s", rec, debug.Stack())
		}
	}()
	return task(ctx)
}

// Shutdown stops accepting tasks and waits for running ones until ctx expires,
// then cancels whatever is still in flight.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}

// Stats reports completed and failed task counts since start.
func (r *Registry) Stats() (completed, failed int64) {
	return r.completed.Load(), r.failed.Load()
}

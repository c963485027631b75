// Package tasks provides a small background task executor for
// fire-and-forget work: post-search access bumps, post-turn learning
// hooks, and similar best-effort jobs that must not block the request
// path.
//
// The executor owns its base context. Submitted tasks inherit it, so
// Close cancels everything in flight; Drain waits for in-flight tasks
// without accepting that guarantee for ones submitted afterwards.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Executor runs submitted tasks on their own goroutines with panic
// recovery and a structured error sink. Errors never propagate to the
// submitter; they are logged and counted.
type Executor struct {
	logger *slog.Logger

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool

	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewExecutor creates an Executor whose tasks derive from ctx.
func NewExecutor(ctx context.Context, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(ctx)
	return &Executor{
		logger:  logger,
		baseCtx: base,
		cancel:  cancel,
	}
}

// Submit schedules fn on its own goroutine. The name appears in error
// logs and panic reports. Submissions after Close are dropped with a
// warning rather than panicking.
func (e *Executor) Submit(name string, fn func(ctx context.Context) error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.logger.Warn("background task dropped, executor closed", "task", name)
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("background task panicked",
					"task", name,
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()),
				)
			}
		}()
		if err := fn(e.baseCtx); err != nil {
			e.logger.Error("background task failed", "task", name, "error", err)
		}
	}()
}

// Drain blocks until every in-flight task finishes or ctx expires.
// Tasks keep running past an expired ctx; Drain just stops waiting.
func (e *Executor) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining background tasks: %w", ctx.Err())
	}
}

// Close stops accepting tasks and cancels the base context of everything
// in flight. Call Drain first for a graceful stop.
func (e *Executor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cancel()
}

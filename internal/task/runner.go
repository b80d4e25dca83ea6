package task

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Runner executes named jobs on background goroutines. Each job gets its
// own context with the configured timeout; a panicking job is logged and
// recovered so it cannot take the process down.
type Runner struct {
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewRunner creates a runner whose jobs are bounded by timeout.
func NewRunner(logger *slog.Logger, timeout time.Duration) *Runner {
	return &Runner{logger: logger, timeout: timeout}
}

// Enqueue starts fn on a new goroutine and returns immediately.
func (r *Runner) Enqueue(name string, fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("background job panicked",
					"job", name,
					"error", rec,
					"stack", string(debug.Stack()),
				)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		start := time.Now()
		r.logger.Debug("background job started", "job", name)
		fn(ctx)
		r.logger.Debug("background job finished", "job", name, "duration", time.Since(start))
	}()
}

// Shutdown blocks until running jobs finish or ctx expires.
func (r *Runner) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

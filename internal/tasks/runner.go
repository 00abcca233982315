// Package tasks runs side effects that must not influence a request's result.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Runner launches background tasks detached from the request context. Task
// errors are logged and never returned to the code that launched them.
type Runner struct {
	group   errgroup.Group
	timeout time.Duration
	logger  *slog.Logger
}

func NewRunner(limit int, timeout time.Duration, logger *slog.Logger) *Runner {
	r := &Runner{timeout: timeout, logger: logger}
	if limit > 0 {
		r.group.SetLimit(limit)
	}
	return r
}

// Go runs fn with a fresh context carrying ctx's values but not its
// cancellation, so the task survives the end of the HTTP request.
func (r *Runner) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	taskCtx := context.WithoutCancel(ctx)
	r.group.Go(func() error {
		if r.timeout > 0 {
			var cancel context.CancelFunc
			taskCtx, cancel = context.WithTimeout(taskCtx, r.timeout)
			defer cancel()
		}
		if err := fn(taskCtx); err != nil {
			r.logger.Error("background task failed", "task", name, "error", err)
		}
		return nil
	})
}

// Wait blocks until every launched task returned.
func (r *Runner) Wait() {
	_ = r.group.Wait()
}

// Package pool fans instance groups out to concurrent workers. Each worker
// owns one group and walks it in order, so instances that were grouped
// together never run in parallel with each other.
package pool

import (
	"context"
	"errors"
	"sync"

	"github.com/vk/taskbed/internal/ctxlog"
	"github.com/vk/taskbed/internal/instance"
)

// WorkFunc processes a single instance. Returning an error marks the whole
// run as failed and cancels the remaining work; per-instance outcomes that
// should not stop the batch belong in the caller's bookkeeping instead.
type WorkFunc func(ctx context.Context, workerID int, inst *instance.Instance) error

// Run executes work over every instance in every group, one worker per
// group. The first error cancels outstanding workers; all collected errors
// are joined into the result.
func Run(parent context.Context, groups [][]instance.Instance, work WorkFunc) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	logger := ctxlog.FromContext(ctx)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for workerID, group := range groups {
		if len(group) == 0 {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			workerLogger := logger.With("workerID", workerID, "instances", len(group))
			workerLogger.Debug("Worker started.")

			for i := range group {
				if ctx.Err() != nil {
					workerLogger.Debug("Worker skipping remaining instances.", "reason", ctx.Err())
					return
				}
				if err := work(ctx, workerID, &group[i]); err != nil {
					workerLogger.Error("Worker stopping after failure.", "instanceID", group[i].ID, "error", err)
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
					cancel()
					return
				}
			}
			workerLogger.Debug("Worker finished.")
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return err
	}
	return parent.Err()
}

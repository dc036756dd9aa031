// Package workerpool bounds how many partitions run at once.
//
// A Pool is a value that callers create once and pass to every scan that
// should share its concurrency limit. It keeps no goroutines of its own:
// each Run call spawns at most Size workers, and concurrent Run calls on the
// same Pool share the limit through a semaphore.
package workerpool

import (
	"context"
	"runtime"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/ajitpratap0/mongoscan/pkg/errors"
)

// Pool runs indexed tasks with bounded parallelism.
type Pool struct {
	size int
	sem  chan struct{}
}

// New returns a pool running at most size tasks at once. A size below one
// uses GOMAXPROCS.
func New(size int) *Pool {
	if size < 1 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{size: size, sem: make(chan struct{}, size)}
}

// Size is the parallelism limit.
func (p *Pool) Size() int { return p.size }

// Run calls fn(ctx, i) for i in [0, tasks) and waits for all of them. The
// first error cancels the context passed to the remaining tasks and is the
// one returned. A panicking task is reported as an internal error instead of
// crashing the process.
func (p *Pool) Run(ctx context.Context, tasks int, fn func(ctx context.Context, i int) error) error {
	if tasks <= 0 {
		return nil
	}
	workers := min(tasks, p.size)
	cp := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(workers)

	for i := 0; i < tasks; i++ {
		cp.Go(func(ctx context.Context) error {
			select {
			case p.sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-p.sem }()

			var err error
			recovered := panics.Try(func() { err = fn(ctx, i) })
			if recovered != nil {
				return errors.Wrap(recovered.AsError(), errors.ErrorTypeInternal, "task panicked").
					WithDetail("task", i)
			}
			return err
		})
	}
	return cp.Wait()
}

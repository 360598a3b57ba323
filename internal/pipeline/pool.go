package pipeline

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// numCPU is swappable for tests.
var numCPU = runtime.NumCPU

// PoolSize resolves the worker count: requested when positive, else the
// CPU count. ok is false when neither gave a usable value and the size fell
// back to 1.
func PoolSize(requested int) (size int, ok bool) {
	if requested > 0 {
		return requested, true
	}
	if n := numCPU(); n > 0 {
		return n, true
	}
	return 1, false
}

// Pool runs a fixed number of workers over a task channel.
type Pool struct {
	Size int
	// Work handles one claimed task. worker is 1-based.
	Work func(ctx context.Context, worker int, t Task)
}

// Run starts the workers and blocks until every one has drained: tasks is
// closed and empty, or ctx is cancelled. Cancellation is checked before
// each claim, so a task already running always completes and nothing new
// starts afterwards. Tasks left in the channel are not processed.
func (p *Pool) Run(ctx context.Context, tasks <-chan Task) {
	size := max(p.Size, 1)

	var g errgroup.Group
	for w := 1; w <= size; w++ {
		g.Go(func() error {
			for {
				if ctx.Err() != nil {
					return nil
				}
				var t Task
				var ok bool
				select {
				case <-ctx.Done():
					return nil
				case t, ok = <-tasks:
				}
				if !ok {
					return nil
				}
				// A receive can win the select after cancellation.
				if ctx.Err() != nil {
					return nil
				}
				p.Work(ctx, w, t)
			}
		})
	}
	_ = g.Wait()
}

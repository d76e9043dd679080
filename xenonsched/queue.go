package xenonsched

import (
	"context"

	"xenon/xenonexec"
)

// workerQueue dispatches submitted executors onto a bounded (or, for
// "unlimited", unbounded) pool of driver goroutines. A single/multi
// queue pulls executors off a buffered channel with a fixed worker
// count; an unlimited queue spawns one goroutine per submission
// directly, matching spec §4.1's "single, multi, unlimited" queue
// semantics.
type workerQueue struct {
	name      string
	jobs      chan *xenonexec.Executor
	unlimited bool
}

func newWorkerQueue(ctx context.Context, name string, workers int) *workerQueue {
	q := &workerQueue{name: name, unlimited: workers <= 0}
	if q.unlimited {
		return q
	}
	q.jobs = make(chan *xenonexec.Executor, 4096)
	for i := 0; i < workers; i++ {
		go q.runWorker(ctx)
	}
	return q
}

func (q *workerQueue) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case executor, ok := <-q.jobs:
			if !ok {
				return
			}
			executor.Run(ctx)
		}
	}
}

// submit hands executor to the queue. For bounded queues this may block
// if the channel buffer is full; for the unlimited queue it starts a
// fresh goroutine immediately.
func (q *workerQueue) submit(ctx context.Context, executor *xenonexec.Executor) {
	if q.unlimited {
		go executor.Run(ctx)
		return
	}
	q.jobs <- executor
}

func (q *workerQueue) close() {
	if q.unlimited {
		return
	}
	close(q.jobs)
}

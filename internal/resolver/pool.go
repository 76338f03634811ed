package resolver

import (
	"context"
	"errors"
	"sync"
)

type job func(ctx context.Context)

// workerPool runs fetch jobs with bounded concurrency and a bounded queue.
type workerPool struct {
	ctx    context.Context
	cancel context.CancelFunc
	jobs   chan job
	wg     sync.WaitGroup
}

func newWorkerPool(parent context.Context, concurrency, queueSize int) (*workerPool, error) {
	if concurrency <= 0 || queueSize <= 0 {
		return nil, errors.New("worker pool requires positive concurrency and queue size")
	}
	ctx, cancel := context.WithCancel(parent)
	p := &workerPool{
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(chan job, queueSize),
	}
	for i := 0; i < concurrency; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			// Workers drain until the queue closes so every accepted
			// job runs; after cancellation each job returns on its own.
			for fn := range p.jobs {
				fn(p.ctx)
			}
		}()
	}
	return p, nil
}

// submit schedules a job, rejecting if either context cancels first.
func (p *workerPool) submit(ctx context.Context, fn job) error {
	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	case p.jobs <- fn:
		return nil
	}
}

// close stops all workers after in-flight jobs finish.
func (p *workerPool) close() {
	p.cancel()
	close(p.jobs)
	p.wg.Wait()
}

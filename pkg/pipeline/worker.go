package pipeline

import (
	"context"
	"sync"

	apperrors "genre-swap/pkg/errors"
)

// WorkerPool runs submitted jobs on a fixed number of goroutines.
type WorkerPool struct {
	workers    int
	taskQueue  chan *job
	workerFunc func(context.Context, *job)
	wg         sync.WaitGroup
}

func NewWorkerPool(workers, queueSize int, workerFunc func(context.Context, *job)) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < workers {
		queueSize = workers * 2
	}
	return &WorkerPool{
		workers:    workers,
		taskQueue:  make(chan *job, queueSize),
		workerFunc: workerFunc,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx)
	}
}

// Submit enqueues j without blocking. It must not be called after Stop.
func (wp *WorkerPool) Submit(j *job) error {
	select {
	case wp.taskQueue <- j:
		return nil
	default:
		return apperrors.ErrQueueFull
	}
}

// Stop closes the queue and waits for running jobs. Jobs still queued when
// the context is cancelled are left unprocessed.
func (wp *WorkerPool) Stop() {
	close(wp.taskQueue)
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context) {
	defer wp.wg.Done()

	for {
		select {
		case j, ok := <-wp.taskQueue:
			if !ok {
				return
			}
			wp.workerFunc(ctx, j)

		case <-ctx.Done():
			return
		}
	}
}

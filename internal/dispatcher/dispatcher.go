// Package dispatcher manages worker fan-out over the region queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/vacancy"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/worker"
)

// Queue is the task queue shared by the dispatcher and its workers.
type Queue interface {
	worker.Queue
	Enqueue(ctx context.Context, task vacancy.RegionTask) error
	Close()
}

// Dispatcher fans out queued region tasks to a fixed pool of workers.
type Dispatcher struct {
	queue   Queue
	workers []*worker.Worker
}

// New creates a Dispatcher.
func New(queue Queue, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
	}
}

// Run starts all workers and blocks until every one of them has returned,
// either because the queue was closed and drained or the context finished.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, task vacancy.RegionTask) error {
	if err := d.queue.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// Close stops the queue accepting tasks; workers exit once it drains.
func (d *Dispatcher) Close() {
	d.queue.Close()
}

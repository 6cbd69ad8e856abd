// Package memory provides the bounded in-process queue feeding region workers.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/vacancy"
)

// ErrClosed is returned by Dequeue once the queue is closed and drained.
var ErrClosed = vacancy.ErrQueueClosed

// Queue is a bounded in-memory queue of region tasks with context-aware operations.
type Queue struct {
	ch      chan vacancy.RegionTask
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan vacancy.RegionTask, capacity),
	}
}

// Enqueue pushes a task into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, task vacancy.RegionTask) error {
	q.closeMu.Lock()
	closed := q.closed
	q.closeMu.Unlock()
	if closed {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next task. Tasks buffered before Close are still
// delivered; ErrClosed follows once the buffer is empty.
func (q *Queue) Dequeue(ctx context.Context) (vacancy.RegionTask, error) {
	select {
	case <-ctx.Done():
		return vacancy.RegionTask{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		if !ok {
			return vacancy.RegionTask{}, ErrClosed
		}
		return task, nil
	}
}

// Close stops accepting tasks. Safe to call more than once.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}

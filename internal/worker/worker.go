// Package worker implements the region ingestion loop run by each pool goroutine.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/metrics"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/vacancy"
)

// Queue is the task source a worker drains.
type Queue interface {
	Dequeue(ctx context.Context) (vacancy.RegionTask, error)
}

// Worker consumes region tasks and reports one result per task.
type Worker struct {
	id      int
	queue   Queue
	fetcher vacancy.RegionFetcher
	results chan<- vacancy.RegionResult
	clock   vacancy.Clock
	logger  *zap.Logger
}

// New constructs a Worker. results must have room for every task the worker
// may receive, or be drained concurrently.
func New(
	id int,
	queue Queue,
	fetcher vacancy.RegionFetcher,
	results chan<- vacancy.RegionResult,
	clock vacancy.Clock,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:      id,
		queue:   queue,
		fetcher: fetcher,
		results: results,
		clock:   clock,
		logger:  logger.With(zap.Int("worker", id)),
	}
}

// Run blocks, consuming tasks until the queue is closed and drained or the
// context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, vacancy.ErrQueueClosed) || ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			return
		}
		w.logger.Debug("dequeued region", zap.Int("region_id", task.RegionID))
		w.results <- w.process(ctx, task)
	}
}

func (w *Worker) process(ctx context.Context, task vacancy.RegionTask) vacancy.RegionResult {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	start := w.clock.Now()
	count, err := w.fetch(ctx, task)
	result := vacancy.RegionResult{
		RegionID: task.RegionID,
		Count:    count,
		Duration: w.clock.Now().Sub(start),
	}
	if err != nil {
		result.Err = &vacancy.RegionTaskError{RegionID: task.RegionID, Err: err}
	}
	metrics.ObserveRegion(result.Err)
	return result
}

// fetch isolates the region fetcher so a panic fails only its own region.
func (w *Worker) fetch(ctx context.Context, task vacancy.RegionTask) (count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("region task panicked",
				zap.Int("region_id", task.RegionID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			count = 0
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.fetcher.FetchRegion(ctx, task)
}

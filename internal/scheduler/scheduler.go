// Package scheduler triggers pipeline runs on a cron spec.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/vacancy"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler wraps robfig/cron. A trigger that fires while a run is still in
// progress, whether from cron or the startup run, is skipped rather than
// queued, since each run wipes the raw store.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	job    Job
	logger *zap.Logger

	running atomic.Bool
	wg      sync.WaitGroup
}

// New validates spec and prepares a Scheduler.
func New(spec string, job Job, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	return &Scheduler{cron: c, spec: spec, job: job, logger: logger}, nil
}

// Start registers the job, starts the cron loop and runs the job once
// immediately so a fresh deployment has data without waiting a full period.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.run(ctx, "cron") }); err != nil {
		return fmt.Errorf("register schedule: %w", err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.spec))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, "startup")
	}()
	return nil
}

// Stop halts the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("scheduled run skipped: previous run still in progress", zap.String("trigger", trigger))
		return
	}
	defer s.running.Store(false)

	s.logger.Info("scheduled run starting", zap.String("trigger", trigger))
	err := s.job(ctx)
	switch {
	case errors.Is(err, vacancy.ErrRunLocked):
		s.logger.Info("scheduled run skipped: another run holds the lock")
	case err != nil:
		s.logger.Error("scheduled run failed", zap.String("trigger", trigger), zap.Error(err))
	default:
		s.logger.Info("scheduled run finished", zap.String("trigger", trigger))
	}
}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/dispatcher"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/queue/memory"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/vacancy"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/worker"
)

// DefaultWorkers is the size of the region worker pool.
const DefaultWorkers = 8

// Config lists the regions to ingest and the pool size.
type Config struct {
	Regions []int
	Workers int
}

// Summary reports one full-refresh ingestion.
type Summary struct {
	RunID     string
	Wiped     int64
	Total     int
	PerRegion map[int]int
	// Failures holds one *vacancy.RegionTaskError per failed region.
	Failures []error
	Started  time.Time
	Duration time.Duration
}

// Coordinator wipes the raw store and refetches every region through a fixed
// worker pool.
type Coordinator struct {
	cfg     Config
	store   vacancy.RawStore
	fetcher vacancy.RegionFetcher
	ids     vacancy.IDGenerator
	clock   vacancy.Clock
	logger  *zap.Logger
}

// NewCoordinator builds a Coordinator. ids may be nil, in which case runs
// carry no run id.
func NewCoordinator(
	cfg Config,
	store vacancy.RawStore,
	fetcher vacancy.RegionFetcher,
	ids vacancy.IDGenerator,
	clock vacancy.Clock,
	logger *zap.Logger,
) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		cfg:     cfg,
		store:   store,
		fetcher: fetcher,
		ids:     ids,
		clock:   clock,
		logger:  logger,
	}
}

// Run performs the full refresh. Only a wipe failure (or a failure to start
// the run) is returned as an error; per-region failures land in
// Summary.Failures and never stop the other regions.
func (c *Coordinator) Run(ctx context.Context) (Summary, error) {
	summary := Summary{
		Started:   c.clock.Now(),
		PerRegion: make(map[int]int, len(c.cfg.Regions)),
	}
	if c.ids != nil {
		runID, err := c.ids.NewID()
		if err != nil {
			return summary, fmt.Errorf("start ingestion: %w", err)
		}
		summary.RunID = runID
	}
	log := c.logger.With(zap.String("run_id", summary.RunID))

	wiped, err := c.store.Wipe(ctx)
	if err != nil {
		return summary, fmt.Errorf("wipe raw store: %w", err)
	}
	summary.Wiped = wiped
	log.Info("raw store wiped", zap.Int64("deleted", wiped))

	if err := c.store.EnsureUniqueID(ctx); err != nil {
		if errors.Is(err, vacancy.ErrIndexExists) {
			log.Debug("unique id index already present", zap.Error(err))
		} else {
			log.Error("unique id index could not be created", zap.Error(err))
		}
	}

	results := c.dispatch(ctx, summary.RunID, summary.Started)
	for r := range results {
		summary.PerRegion[r.RegionID] += r.Count
		summary.Total += r.Count
		if r.Err != nil {
			summary.Failures = append(summary.Failures, r.Err)
			log.Error("region failed",
				zap.Int("region_id", r.RegionID),
				zap.Int("stored", r.Count),
				zap.Error(r.Err),
			)
			continue
		}
		log.Info("region fetched",
			zap.Int("region_id", r.RegionID),
			zap.Int("stored", r.Count),
			zap.Duration("duration", r.Duration),
		)
	}

	summary.Duration = c.clock.Now().Sub(summary.Started)
	log.Info("ingestion finished",
		zap.Int("total", summary.Total),
		zap.Int("regions", len(c.cfg.Regions)),
		zap.Int("failed_regions", len(summary.Failures)),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// dispatch enqueues one task per region and returns a channel that yields
// results as regions complete and closes after the last one.
func (c *Coordinator) dispatch(ctx context.Context, runID string, submitted time.Time) <-chan vacancy.RegionResult {
	regions := c.cfg.Regions
	q := memory.NewQueue(len(regions))
	results := make(chan vacancy.RegionResult, len(regions))

	poolSize := c.cfg.Workers
	if poolSize > len(regions) {
		poolSize = len(regions)
	}
	workers := make([]*worker.Worker, poolSize)
	for i := range workers {
		workers[i] = worker.New(i, q, c.fetcher, results, c.clock, c.logger)
	}
	d := dispatcher.New(q, workers)

	for _, id := range regions {
		// The queue holds every region, so this only fails on a canceled context.
		if err := d.Enqueue(ctx, vacancy.RegionTask{RegionID: id, RunID: runID, Submitted: submitted}); err != nil {
			results <- vacancy.RegionResult{RegionID: id, Err: &vacancy.RegionTaskError{RegionID: id, Err: err}}
		}
	}
	d.Close()

	go func() {
		d.Run(ctx)
		close(results)
	}()
	return results
}

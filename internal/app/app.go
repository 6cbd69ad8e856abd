// Package app builds the long-lived services named by the configuration and
// hands them to the pipeline and dashboard. It acts as a small dependency
// injection container.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/clock/system"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/config"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/dashboard"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/dataset"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/hh"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/id/uuid"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/ingest"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/lock"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/pipeline"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/arctic-vacancy-pipeline/internal/publisher/pubsub"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/storage/gcs"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/storage/memory"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/storage/mongo"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/storage/postgres"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/transform"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/vacancy"
)

// Closer releases one service.
type Closer func(ctx context.Context) error

// App holds the shared services for one process.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	store     vacancy.RawStore
	locker    vacancy.Locker
	publisher vacancy.Publisher
	mirror    pipeline.Mirror
	clock     vacancy.Clock
	ids       vacancy.IDGenerator

	closers []Closer
}

// Option overrides a service, mainly for tests.
type Option func(*App)

// WithStore replaces the configured raw store.
func WithStore(store vacancy.RawStore) Option {
	return func(a *App) { a.store = store }
}

// WithClock replaces the wall clock.
func WithClock(clock vacancy.Clock) Option {
	return func(a *App) { a.clock = clock }
}

// New connects every service the configuration enables. It fails fast when a
// configured service cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		clock:  system.New(),
		ids:    uuid.New(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.init(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	if a.store == nil {
		store, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		a.store = store
		a.closers = append(a.closers, store.Close)
	}

	if url := a.cfg.Lock.RedisURL; url != "" {
		locker, err := lock.New(ctx, url, a.cfg.Lock.Key, a.cfg.Lock.TTL, a.ids)
		if err != nil {
			return fmt.Errorf("init run lock: %w", err)
		}
		a.logger.Info("using redis run lock", zap.String("key", a.cfg.Lock.Key))
		a.locker = locker
		a.closers = append(a.closers, func(context.Context) error { return locker.Close() })
	} else {
		a.locker = lock.Noop{}
	}

	if a.cfg.Notify.Topic != "" {
		pub, err := pubsubpublisher.New(ctx, a.cfg.Notify.ProjectID, a.cfg.Notify.Topic)
		if err != nil {
			return fmt.Errorf("init notifications: %w", err)
		}
		a.logger.Info("publishing run notifications", zap.String("topic", a.cfg.Notify.Topic))
		a.publisher = pub
		a.closers = append(a.closers, func(context.Context) error { return pub.Close() })
	}

	if a.cfg.Dataset.GCSBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		mirror, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Dataset.GCSBucket, Object: a.cfg.Dataset.GCSObject})
		if err != nil {
			return fmt.Errorf("init dataset mirror: %w", err)
		}
		a.logger.Info("mirroring dataset to gcs", zap.String("bucket", a.cfg.Dataset.GCSBucket))
		a.mirror = mirror
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (vacancy.RawStore, error) {
	s := a.cfg.Storage
	switch s.Provider {
	case "mongo":
		a.logger.Info("connecting to mongo", zap.String("database", s.Mongo.Database), zap.String("collection", s.Mongo.Collection))
		store, err := mongo.New(ctx, mongo.Config{
			URI:        s.Mongo.URI,
			Database:   s.Mongo.Database,
			Collection: s.Mongo.Collection,
			Timeout:    s.Mongo.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("init mongo raw store: %w", err)
		}
		return store, nil
	case "postgres":
		a.logger.Info("connecting to postgres", zap.String("table", s.Postgres.Table))
		store, err := postgres.New(ctx, postgres.Config{
			DSN:      s.Postgres.DSN,
			Table:    s.Postgres.Table,
			MaxConns: s.Postgres.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres raw store: %w", err)
		}
		return store, nil
	case "memory":
		a.logger.Warn("using in-memory raw store; documents are lost on exit")
		return memory.NewRawStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", s.Provider)
	}
}

// Store exposes the raw document store.
func (a *App) Store() vacancy.RawStore {
	return a.store
}

// Coordinator builds the ingestion coordinator over the hh.ru client.
func (a *App) Coordinator() *ingest.Coordinator {
	client := hh.New(hh.Config{
		BaseURL:   a.cfg.API.BaseURL,
		UserAgent: a.cfg.API.UserAgent,
		Timeout:   a.cfg.API.Timeout,
		PerPage:   a.cfg.API.PerPage,
	}, a.logger.Named("hh"))
	fetcher := ingest.NewRegionFetcher(
		client,
		a.store,
		ratelimit.New(a.cfg.API.PageDelay),
		a.clock,
		a.cfg.API.MaxPages,
		a.logger.Named("region"),
	)
	return ingest.NewCoordinator(
		ingest.Config{Regions: a.cfg.Ingest.Regions, Workers: a.cfg.Ingest.Workers},
		a.store,
		fetcher,
		a.ids,
		a.clock,
		a.logger.Named("ingest"),
	)
}

// Pipeline builds the full refresh pipeline.
func (a *App) Pipeline() *pipeline.Pipeline {
	return pipeline.New(pipeline.Config{
		Topic:          a.cfg.Notify.Topic,
		PushgatewayURL: a.cfg.Metrics.PushgatewayURL,
		Job:            a.cfg.Metrics.Job,
	}, pipeline.Deps{
		Ingester:    a.Coordinator(),
		Transformer: transform.New(a.store, a.logger.Named("transform")),
		Writer:      dataset.NewWriter(a.cfg.Dataset.Path, a.logger.Named("dataset")),
		Mirror:      a.mirror,
		Publisher:   a.publisher,
		Locker:      a.locker,
		Clock:       a.clock,
		Logger:      a.logger.Named("pipeline"),
	})
}

// Dashboard builds the dashboard server. It needs no store connection.
func Dashboard(cfg config.Config, logger *zap.Logger) *dashboard.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	loader := dashboard.NewLoader(cfg.Dashboard.DataPath, logger.Named("loader"))
	return dashboard.NewServer(loader, dashboard.SummaryConfig{
		TopProfessions:       cfg.Dashboard.TopProfessions,
		HistogramBins:        cfg.Dashboard.HistogramBins,
		MinProfessionSamples: cfg.Dashboard.MinProfessionSamples,
		PreviewRows:          cfg.Dashboard.PreviewRows,
	}, logger.Named("dashboard"))
}

// AddCloser registers an extra shutdown hook.
func (a *App) AddCloser(c Closer) {
	a.closers = append(a.closers, c)
}

// Close releases services in reverse order of creation.
func (a *App) Close(ctx context.Context) {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error closing services", zap.Error(err))
	}
}

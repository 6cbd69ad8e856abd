// Package pipeline sequences one full refresh: ingest every region, flatten
// the raw store and publish the dataset.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/dataset"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/ingest"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/metrics"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/telemetry"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/transform"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/vacancy"
)

// EventRunCompleted is the event attribute of run notifications.
const EventRunCompleted = "run.completed"

// Ingester runs the ingestion stage.
type Ingester interface {
	Run(ctx context.Context) (ingest.Summary, error)
}

// Transformer flattens the raw store.
type Transformer interface {
	Transform(ctx context.Context) ([]vacancy.FlatVacancy, transform.Stats, error)
}

// DatasetWriter persists flattened rows.
type DatasetWriter interface {
	Write(ctx context.Context, rows []vacancy.FlatVacancy) (dataset.WriteResult, error)
}

// Mirror copies the written dataset elsewhere.
type Mirror interface {
	Upload(ctx context.Context, path, checksum string) (string, error)
}

// Config carries the optional outer surfaces of a run.
type Config struct {
	// Topic receives a RunNotification after a successful export.
	Topic string
	// PushgatewayURL, when set, receives the process metrics after each run.
	PushgatewayURL string
	Job            string
}

// Pipeline wires the stages together. Mirror, Publisher and Locker may be nil.
type Pipeline struct {
	cfg         Config
	ingester    Ingester
	transformer Transformer
	writer      DatasetWriter
	mirror      Mirror
	publisher   vacancy.Publisher
	locker      vacancy.Locker
	clock       vacancy.Clock
	logger      *zap.Logger
}

// Deps lists the collaborators of a Pipeline.
type Deps struct {
	Ingester    Ingester
	Transformer Transformer
	Writer      DatasetWriter
	Mirror      Mirror
	Publisher   vacancy.Publisher
	Locker      vacancy.Locker
	Clock       vacancy.Clock
	Logger      *zap.Logger
}

// Report summarizes one run.
type Report struct {
	Ingest         ingest.Summary
	Transform      transform.Stats
	Dataset        dataset.WriteResult
	MirrorURI      string
	NotificationID string
	Duration       time.Duration
}

// RunNotification is published once the dataset is in place.
type RunNotification struct {
	RunID       string      `json:"run_id"`
	Total       int         `json:"total"`
	PerRegion   map[int]int `json:"per_region"`
	Failed      []int       `json:"failed_regions,omitempty"`
	Rows        int         `json:"rows"`
	Skipped     int         `json:"skipped"`
	DatasetPath string      `json:"dataset_path"`
	MirrorURI   string      `json:"mirror_uri,omitempty"`
	SHA256      string      `json:"sha256"`
	Finished    time.Time   `json:"finished_at"`
}

// Attributes lets subscribers filter notifications without decoding them.
func (n RunNotification) Attributes() map[string]string {
	return map[string]string{"event": EventRunCompleted, "run_id": n.RunID}
}

// New builds a Pipeline.
func New(cfg Config, deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:         cfg,
		ingester:    deps.Ingester,
		transformer: deps.Transformer,
		writer:      deps.Writer,
		mirror:      deps.Mirror,
		publisher:   deps.Publisher,
		locker:      deps.Locker,
		clock:       deps.Clock,
		logger:      logger,
	}
}

// Run executes ingest, transform and write while holding the run lock.
// Region failures are reported in the Report; a wipe, empty dataset or
// persistence failure aborts the run.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.run")
	var report Report
	started := p.clock.Now()
	err := p.locked(ctx, func(ctx context.Context) error {
		summary, err := p.ingester.Run(ctx)
		report.Ingest = summary
		span.SetAttributes(attribute.String("run_id", summary.RunID))
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		return p.export(ctx, &report)
	})
	report.Duration = p.clock.Now().Sub(started)
	endSpan(span, err)
	p.finish(ctx, report)
	return report, err
}

// Ingest runs only the ingestion stage.
func (p *Pipeline) Ingest(ctx context.Context) (ingest.Summary, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.ingest")
	var summary ingest.Summary
	err := p.locked(ctx, func(ctx context.Context) error {
		var err error
		summary, err = p.ingester.Run(ctx)
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		return nil
	})
	span.SetAttributes(attribute.String("run_id", summary.RunID))
	endSpan(span, err)
	p.finish(ctx, Report{Ingest: summary, Duration: summary.Duration})
	return summary, err
}

// Export flattens the current raw store and writes the dataset.
func (p *Pipeline) Export(ctx context.Context) (Report, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.export")
	var report Report
	started := p.clock.Now()
	err := p.locked(ctx, func(ctx context.Context) error {
		return p.export(ctx, &report)
	})
	report.Duration = p.clock.Now().Sub(started)
	endSpan(span, err)
	p.finish(ctx, report)
	return report, err
}

func (p *Pipeline) locked(ctx context.Context, fn func(context.Context) error) error {
	if p.locker == nil {
		return fn(ctx)
	}
	release, err := p.locker.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			p.logger.Warn("failed to release run lock", zap.Error(err))
		}
	}()
	return fn(ctx)
}

func (p *Pipeline) export(ctx context.Context, report *Report) error {
	rows, stats, err := p.transformer.Transform(ctx)
	report.Transform = stats
	if err != nil {
		return fmt.Errorf("transform: %w", err)
	}

	result, err := p.writer.Write(ctx, rows)
	if err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	report.Dataset = result
	metrics.ObserveDataset(result.Rows)

	if p.mirror != nil {
		uri, err := p.mirror.Upload(ctx, result.Path, result.SHA256)
		if err != nil {
			p.logger.Warn("dataset mirror upload failed", zap.String("path", result.Path), zap.Error(err))
		} else {
			report.MirrorURI = uri
		}
	}

	if p.publisher != nil && p.cfg.Topic != "" {
		id, err := p.publisher.Publish(ctx, p.cfg.Topic, p.notification(*report))
		if err != nil {
			p.logger.Warn("run notification failed", zap.String("topic", p.cfg.Topic), zap.Error(err))
		} else {
			report.NotificationID = id
		}
	}
	return nil
}

func (p *Pipeline) notification(r Report) RunNotification {
	n := RunNotification{
		RunID:       r.Ingest.RunID,
		Total:       r.Ingest.Total,
		PerRegion:   r.Ingest.PerRegion,
		Rows:        r.Dataset.Rows,
		Skipped:     r.Transform.Skipped,
		DatasetPath: r.Dataset.Path,
		MirrorURI:   r.MirrorURI,
		SHA256:      r.Dataset.SHA256,
		Finished:    p.clock.Now(),
	}
	for _, failure := range r.Ingest.Failures {
		var taskErr *vacancy.RegionTaskError
		if errors.As(failure, &taskErr) {
			n.Failed = append(n.Failed, taskErr.RegionID)
		}
	}
	return n
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (p *Pipeline) finish(ctx context.Context, r Report) {
	metrics.ObserveRun(p.clock.Now(), r.Duration)
	if err := metrics.Push(ctx, p.cfg.PushgatewayURL, p.cfg.Job, r.Ingest.RunID); err != nil {
		p.logger.Warn("metrics push failed", zap.Error(err))
	}
}

// Package cmd defines the arcticvac command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/app"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/config"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/logging"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/metrics"
	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/telemetry"
)

type runtimeKeyType struct{}

var runtimeKey runtimeKeyType

// runtime is what every subcommand receives from the root pre-run hook.
type runtime struct {
	cfg    config.Config
	logger *zap.Logger
	tracer *sdktrace.TracerProvider
}

// newApp builds the service container. Tests replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// newLogger builds the process logger. Tests replace it.
var newLogger = logging.New

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "arcticvac",
		Short: "Arctic labour market vacancy pipeline",
		Long: `arcticvac collects hh.ru vacancies for the Arctic zone regions, stores the
raw documents, flattens them into a Parquet dataset and serves a dashboard
over that dataset.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := newLogger(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			metrics.Init()
			tp, err := telemetry.InitTracerProvider(cmd.Context(), telemetry.ServiceName)
			if err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			rt := &runtime{cfg: cfg, logger: logger, tracer: tp}
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKey, rt))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			rt, ok := cmd.Context().Value(runtimeKey).(*runtime)
			if !ok {
				return
			}
			if err := rt.tracer.Shutdown(context.WithoutCancel(cmd.Context())); err != nil {
				rt.logger.Warn("tracer shutdown failed", zap.Error(err))
			}
			_ = rt.logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); ARCTIC_* environment variables override it")

	cmd.AddCommand(
		newRunCmd(),
		newIngestCmd(),
		newTransformCmd(),
		newScheduleCmd(),
		newDashboardCmd(),
	)
	return cmd
}

func resolveRuntime(ctx context.Context) (*runtime, error) {
	rt, ok := ctx.Value(runtimeKey).(*runtime)
	if !ok || rt == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return rt, nil
}

// withApp opens the service container for the duration of fn.
func withApp(ctx context.Context, fn func(rt *runtime, a *app.App) error) error {
	rt, err := resolveRuntime(ctx)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, rt.cfg, rt.logger)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer a.Close(context.WithoutCancel(ctx))
	return fn(rt, a)
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "arcticvac: %v\n", err)
		stop()
		os.Exit(1)
	}
}

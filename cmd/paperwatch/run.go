package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/paperwatch/internal/config"
	"github.com/fyrsmithlabs/paperwatch/internal/digest"
	"github.com/fyrsmithlabs/paperwatch/internal/logging"
	"github.com/fyrsmithlabs/paperwatch/internal/telemetry"
)

// errAborted marks a run that finished without producing a report.
// Schedulers distinguish it from startup failures via exit code 2.
var errAborted = errors.New("pipeline run aborted")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one pipeline run",
	Long: `Run the full pipeline once: fetch, filter, analyze, synthesize.

The process exits 0 when a report was written, 1 on a startup error,
and 2 when the pipeline aborted (for example, no sources reachable).

Examples:
  # Run with defaults and environment configuration
  PAPERWATCH_LLM_API_KEY=sk-... paperwatch run

  # Run with a config file
  paperwatch run --config paperwatch.yaml`,
	RunE: runPipeline,
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry shutdown: %v\n", err)
		}
	}()

	log, err := buildLogger(cfg, tel)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = log.Sync()
	}()

	svc, err := digest.NewService(cfg, log, tel)
	if err != nil {
		return fmt.Errorf("initializing pipeline: %w", err)
	}

	result, err := svc.Run(ctx)
	if err != nil {
		return err
	}

	if !result.Completed() {
		log.Warn(ctx, "run did not produce a report",
			zap.String("run_id", result.RunID),
			zap.String("abort_stage", result.AbortStage),
			zap.String("abort_reason", result.AbortReason))
		// Return rather than os.Exit so the deferred telemetry
		// shutdown and log sync still flush; main maps this error to
		// exit code 2.
		return fmt.Errorf("%w at stage %s: %s", errAborted, result.AbortStage, result.AbortReason)
	}

	log.Info(ctx, "run finished",
		zap.String("run_id", result.RunID),
		zap.String("report", result.ReportPath))
	for _, stage := range result.Stages {
		log.Info(ctx, "stage summary",
			zap.String("stage", stage.Stage),
			zap.Int("total", stage.Total),
			zap.Int("succeeded", stage.Succeeded),
			zap.Int("failed", stage.Failed),
			zap.Duration("duration", stage.Duration))
	}

	return nil
}

// buildLogger translates the file/env logging section into the
// logging package's config and attaches the OTEL bridge when
// telemetry is live.
func buildLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	logCfg := logging.NewDefaultConfig()

	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logCfg.Level = level
	if cfg.Logging.Format != "" {
		logCfg.Format = cfg.Logging.Format
	}
	logCfg.Output.OTEL = tel.IsEnabled()

	return logging.NewLogger(logCfg, tel.LoggerProvider())
}

// telemetryConfig translates the file/env telemetry section into the
// telemetry package's config.
func telemetryConfig(cfg *config.Config) *telemetry.Config {
	tc := telemetry.NewDefaultConfig()
	tc.Enabled = cfg.Telemetry.Enabled
	if cfg.Telemetry.Endpoint != "" {
		tc.Endpoint = cfg.Telemetry.Endpoint
	}
	if cfg.Telemetry.Protocol != "" {
		tc.Protocol = cfg.Telemetry.Protocol
	}
	tc.Insecure = cfg.Telemetry.Insecure
	if cfg.Telemetry.ServiceName != "" {
		tc.ServiceName = cfg.Telemetry.ServiceName
	}
	tc.Sampling.Rate = cfg.Telemetry.SamplingRate
	tc.Metrics.Enabled = cfg.Telemetry.MetricsEnabled
	if cfg.Telemetry.ExportInterval.Duration() > 0 {
		tc.Metrics.ExportInterval = cfg.Telemetry.ExportInterval
	}
	return tc
}

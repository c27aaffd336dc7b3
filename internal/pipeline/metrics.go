package pipeline

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics instruments pipeline runs with OpenTelemetry. All methods
// are nil-safe so callers never guard their instrumentation.
type Metrics struct {
	runs          metric.Int64Counter
	items         metric.Int64Counter
	stageDuration metric.Float64Histogram
}

// NewMetrics creates pipeline instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.runs, err = meter.Int64Counter(
		"paperwatch.pipeline.runs",
		metric.WithDescription("Total pipeline runs by terminal status"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating run counter: %w", err)
	}

	m.items, err = meter.Int64Counter(
		"paperwatch.pipeline.items",
		metric.WithDescription("Per-stage item outcomes"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating item counter: %w", err)
	}

	m.stageDuration, err = meter.Float64Histogram(
		"paperwatch.pipeline.stage.duration",
		metric.WithDescription("Duration of pipeline stage executions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stage duration histogram: %w", err)
	}

	return m, nil
}

// recordStage records item outcomes and duration for one stage.
func (m *Metrics) recordStage(ctx context.Context, audit StageAudit) {
	if m == nil {
		return
	}
	stage := attribute.String("stage", audit.Stage)
	succeeded := audit.SuccessCount()

	m.items.Add(ctx, int64(succeeded),
		metric.WithAttributes(stage, attribute.String("outcome", "success")))
	m.items.Add(ctx, int64(len(audit.Items)-succeeded),
		metric.WithAttributes(stage, attribute.String("outcome", "failure")))
	m.stageDuration.Record(ctx, audit.Duration.Seconds(),
		metric.WithAttributes(stage))
}

// recordRun records a terminal run status.
func (m *Metrics) recordRun(ctx context.Context, status Status) {
	if m == nil {
		return
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(status))))
}

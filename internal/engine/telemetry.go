package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/parorch/internal/ir"
)

const instrumentationName = "github.com/roach88/parorch/internal/engine"

// Telemetry emits one span per run, one child span per round, and the
// scheduler's counters. The zero providers from the otel globals are
// no-ops until the process installs real ones.
type Telemetry struct {
	tracer trace.Tracer

	rounds       metric.Int64Counter
	reexecutions metric.Int64Counter
	skipped      metric.Int64Counter
}

// NewTelemetry creates instruments from the given providers.
func NewTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) (*Telemetry, error) {
	meter := mp.Meter(instrumentationName, metric.WithInstrumentationVersion(ir.SchedulerVersion))

	rounds, err := meter.Int64Counter("parorch.rounds",
		metric.WithDescription("Rounds executed"),
		metric.WithUnit("{round}"))
	if err != nil {
		return nil, err
	}
	reexec, err := meter.Int64Counter("parorch.reexecutions",
		metric.WithDescription("Command executions after the first round"),
		metric.WithUnit("{command}"))
	if err != nil {
		return nil, err
	}
	skipped, err := meter.Int64Counter("parorch.attribution_skipped",
		metric.WithDescription("Trace lines and launch bindings that could not be attributed"),
		metric.WithUnit("{event}"))
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		tracer:       tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(ir.SchedulerVersion)),
		rounds:       rounds,
		reexecutions: reexec,
		skipped:      skipped,
	}, nil
}

// DefaultTelemetry uses the global otel providers.
func DefaultTelemetry() *Telemetry {
	t, err := NewTelemetry(otel.GetTracerProvider(), otel.GetMeterProvider())
	if err != nil {
		// The global providers never reject these instrument names.
		panic(err)
	}
	return t
}

func (t *Telemetry) startRun(ctx context.Context, runID string, commands int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "parorch.run", trace.WithAttributes(
		attribute.String("parorch.run_id", runID),
		attribute.Int("parorch.commands", commands),
	))
}

func (t *Telemetry) startRound(ctx context.Context, round, workset int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "parorch.round", trace.WithAttributes(
		attribute.Int("parorch.round", round),
		attribute.Int("parorch.workset", workset),
	))
}

// roundDone counts the round and ends its span. unattributed is the
// parser's skipped lines plus its unresolved launch bindings.
func (t *Telemetry) roundDone(ctx context.Context, span trace.Span, round, workset, next, unattributed int) {
	attrs := metric.WithAttributes(attribute.Int("parorch.round", round))
	t.rounds.Add(ctx, 1)
	if round > 1 {
		t.reexecutions.Add(ctx, int64(workset), attrs)
	}
	if unattributed > 0 {
		t.skipped.Add(ctx, int64(unattributed), attrs)
	}
	span.SetAttributes(
		attribute.Int("parorch.next", next),
		attribute.Int("parorch.unattributed", unattributed),
	)
	span.End()
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/opensearch-mcp/tool"
)

// Metric names recorded by DispatchObserver.
const (
	MetricInvocations = "opensearch_mcp.tool.invocations"
	MetricFailures    = "opensearch_mcp.tool.failures"
	MetricLatency     = "opensearch_mcp.tool.latency"

	dispatchSpanName = "tool.dispatch"
)

// DispatchObserver records dispatch outcomes into OpenTelemetry.
type DispatchObserver struct {
	tracer trace.Tracer

	invocations metric.Int64Counter
	failures    metric.Int64Counter
	latency     metric.Float64Histogram
}

// NewDispatchObserver creates an observer bound to the provided meter/tracer.
// A nil tracer disables spans.
func NewDispatchObserver(meter metric.Meter, tracer trace.Tracer) (*DispatchObserver, error) {
	invocations, err := meter.Int64Counter(
		MetricInvocations,
		metric.WithDescription("Number of tool invocations"),
	)
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter(
		MetricFailures,
		metric.WithDescription("Number of failed tool invocations by error kind"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		MetricLatency,
		metric.WithDescription("Tool invocation latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &DispatchObserver{
		tracer:      tracer,
		invocations: invocations,
		failures:    failures,
		latency:     latency,
	}, nil
}

// ObserveInvocation records one dispatch.
func (o *DispatchObserver) ObserveInvocation(observation tool.InvocationObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("tool_name", observation.ToolName),
		attribute.Bool("success", observation.Success),
	}
	if observation.Cluster != "" {
		attrs = append(attrs, attribute.String("cluster", observation.Cluster))
	}
	if observation.Kind != "" {
		attrs = append(attrs, attribute.String("error_kind", string(observation.Kind)))
	}

	ctx := context.Background()
	duration := time.Duration(observation.DurationMS) * time.Millisecond
	options := metric.WithAttributes(attrs...)
	o.invocations.Add(ctx, 1, options)
	o.latency.Record(ctx, duration.Seconds(), options)
	if !observation.Success {
		o.failures.Add(ctx, 1, options)
	}

	if o.tracer == nil {
		return
	}
	end := time.Now()
	_, span := o.tracer.Start(ctx, dispatchSpanName,
		trace.WithTimestamp(end.Add(-duration)),
		trace.WithAttributes(append(attrs, attribute.String("invocation_id", observation.InvocationID))...),
	)
	if observation.Success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, observation.Message)
	}
	span.End(trace.WithTimestamp(end))
}

var _ tool.Observer = (*DispatchObserver)(nil)

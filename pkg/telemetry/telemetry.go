// Package telemetry installs the process-wide OpenTelemetry
// TracerProvider and provides span helpers for each network-crossing
// component boundary: the warehouse, the model provider, and Slack.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/adinsight/adinsight"

// Setup installs a TracerProvider built from the given span
// processors (typically an exporter wired in by the caller, or none
// for local runs where tracing is generated but not shipped anywhere)
// and returns its Shutdown function.
func Setup(processors ...sdktrace.SpanProcessor) func(context.Context) error {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithSampler(sdktrace.AlwaysSample())}
	for _, p := range processors {
		opts = append(opts, sdktrace.WithSpanProcessor(p))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartWarehouseSpan wraps one Metric Store Adapter call.
func StartWarehouseSpan(ctx context.Context, operation, tenant string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "warehouse."+operation, trace.WithAttributes(
		attribute.String("tenant", tenant),
	))
}

// StartModelSpan wraps one language-model call.
func StartModelSpan(ctx context.Context, provider string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "model.step", trace.WithAttributes(
		attribute.String("model.provider", provider),
	))
}

// StartNotifySpan wraps one Slack notification post.
func StartNotifySpan(ctx context.Context, channel string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "notify.slack", trace.WithAttributes(
		attribute.String("slack.channel", channel),
	))
}

// EndWithError records err onto span when non-nil, then ends it. Call
// sites defer this immediately after starting a span.
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

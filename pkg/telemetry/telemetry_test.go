package telemetry

import (
	"context"
	"errors"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/codes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_RecordsSpansThroughExporter(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	shutdown := Setup(sdktrace.NewSimpleSpanProcessor(exporter))
	defer shutdown(context.Background())

	_, span := StartWarehouseSpan(context.Background(), "fetch_ad_summaries", "acme")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "warehouse.fetch_ad_summaries", spans[0].Name)
}

func TestStartModelSpan_SetsProviderAttribute(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	shutdown := Setup(sdktrace.NewSimpleSpanProcessor(exporter))
	defer shutdown(context.Background())

	_, span := StartModelSpan(context.Background(), "anthropic")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	found := false
	for _, attr := range spans[0].Attributes {
		if string(attr.Key) == "model.provider" && attr.Value.AsString() == "anthropic" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEndWithError_SetsErrorStatus(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	shutdown := Setup(sdktrace.NewSimpleSpanProcessor(exporter))
	defer shutdown(context.Background())

	_, span := StartNotifySpan(context.Background(), "#alerts")
	EndWithError(span, errors.New("boom"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestEndWithError_NilErrorLeavesStatusUnset(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	shutdown := Setup(sdktrace.NewSimpleSpanProcessor(exporter))
	defer shutdown(context.Background())

	_, span := StartNotifySpan(context.Background(), "#alerts")
	EndWithError(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
}

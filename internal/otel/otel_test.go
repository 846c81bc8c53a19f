package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return sr
}

func TestInitTracer_DisabledWithoutEndpoint(t *testing.T) {
	shutdown := InitTracer("")
	require.NotNil(t, shutdown)
	shutdown()
}

func TestStart_RecordsNameAttributesAndOutcome(t *testing.T) {
	sr := recordSpans(t)

	ctx, span := Start(context.Background(), "rpc.relay", attribute.Int64("chain_id", 8453))
	SetOutcome(ctx, "ok")
	RecordError(ctx, nil)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "rpc.relay", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.Int64("chain_id", 8453))
	assert.Contains(t, spans[0].Attributes(), attribute.String("outcome", "ok"))
	assert.Equal(t, codes.Unset, spans[0].Status().Code, "nil error leaves the span ok")
}

func TestRecordError_MarksSpanFailed(t *testing.T) {
	sr := recordSpans(t)

	ctx, span := Start(context.Background(), "wallet.connect")
	RecordError(ctx, errors.New("user rejected the request"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "user rejected the request", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

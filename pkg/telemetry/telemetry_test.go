package telemetry

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	recorder := tracetest.NewSpanRecorder()
	shutdown, err := Setup(context.Background(), Config{Enabled: true, Sampler: "always"},
		WithSpanProcessor(recorder))
	require.NoError(t, err)
	t.Cleanup(func() { shutdown(context.Background()) })
	return recorder
}

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false, Sampler: "bogus"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupRejectsBadSampler(t *testing.T) {
	_, err := Setup(context.Background(), Config{Enabled: true, Sampler: "sometimes"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tracing sampler")

	_, err = Setup(context.Background(), Config{Enabled: true, Sampler: "ratio", Ratio: 2})
	require.Error(t, err)
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  string
	}{
		{"", 0, sdktrace.AlwaysSample().Description()},
		{"always", 0, sdktrace.AlwaysSample().Description()},
		{"never", 0, sdktrace.NeverSample().Description()},
		{"ratio", 0.5, sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.5)).Description()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sampler, err := newSampler(tt.name, tt.ratio)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sampler.Description())
		})
	}
}

func TestWithSpanRecordsStatus(t *testing.T) {
	recorder := setupRecorder(t)
	ctx := context.Background()

	require.NoError(t, WithSpan(ctx, "pipeline.detect", func(ctx context.Context) error {
		SetAttributes(ctx, attribute.Int("docsync.dirs", 3))
		AddEvent(ctx, "agent_file.updated", attribute.String("docsync.file", "CLAUDE.md"))
		return nil
	}))

	boom := errors.New("boom")
	err := WithSpan(ctx, "pipeline.patch", func(context.Context) error { return boom })
	assert.Equal(t, boom, err)

	WithSpanFunc(ctx, "pipeline.promote", func(ctx context.Context) {
		RecordError(ctx, errors.New("one file failed"))
	})

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	assert.Equal(t, "pipeline.detect", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.Int("docsync.dirs", 3))
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "agent_file.updated", spans[0].Events()[0].Name)

	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)

	assert.Equal(t, codes.Ok, spans[2].Status().Code)
	require.Len(t, spans[2].Events(), 1)
	assert.Equal(t, "exception", spans[2].Events()[0].Name)
}

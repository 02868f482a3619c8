package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"bankcap/internal/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitializeOTel(t *testing.T) {
	reg := NewMetricsRegistry()
	cfg := config.Default().Telemetry
	cfg.TraceExporter = "none"
	cfg.EnableMetrics = true

	providers, err := InitializeOTel(cfg, reg, quietLogger())
	require.NoError(t, err)
	require.NotNil(t, providers)
	assert.Nil(t, providers.TracerProvider)
	assert.NotNil(t, providers.MeterProvider)

	counter, err := otel.Meter("test").Int64Counter("bankcap_test_events_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	rec := httptest.NewRecorder()
	providers.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bankcap_test_events_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestInitializeOTelRejectsUnknownExporter(t *testing.T) {
	cfg := config.Default().Telemetry
	cfg.TraceExporter = "jaeger"

	_, err := InitializeOTel(cfg, NewMetricsRegistry(), quietLogger())
	assert.Error(t, err)
}

func TestTraceIDFromContext(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))

	cfg := config.Default().Telemetry
	cfg.TraceExporter = "stdout"
	cfg.EnableMetrics = false
	providers, err := InitializeOTel(cfg, nil, quietLogger())
	require.NoError(t, err)
	require.NotNil(t, providers.TracerProvider)
	defer providers.Shutdown(context.Background())

	ctx, span := providers.TracerProvider.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	traceID := TraceIDFromContext(ctx)
	assert.Len(t, traceID, 32)
}

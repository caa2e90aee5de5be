package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/celestiaorg/reelcast/internal/events"
)

func shutdown(provider *sdkmetric.MeterProvider) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = provider.Shutdown(ctx)
}

func scrape(t *testing.T, handler http.Handler) string {
	t.Helper()
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	return string(body)
}

func TestInitMetrics(t *testing.T) {
	handler, provider, err := InitMetrics()
	require.NoError(t, err)
	defer shutdown(provider)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRecorder_CountsBusEvents(t *testing.T) {
	handler, provider, err := InitMetrics()
	require.NoError(t, err)
	defer shutdown(provider)

	recorder, err := NewRecorder(provider)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := events.NewBus()
	recorder.Subscribe(bus)
	bus.Start(ctx)

	bus.Publish(events.Event{Type: events.EventJobCreated, JobID: "job-1"})
	bus.Publish(events.Event{Type: events.EventSceneCompleted, JobID: "job-1"})
	bus.Publish(events.Event{Type: events.EventOperationSubmitted, JobID: "job-1", Operation: "render"})
	bus.Wait()

	out := scrape(t, handler)
	assert.Contains(t, out, "reelcast_jobs_created_total")
	assert.Contains(t, out, "reelcast_scenes_completed_total")
	assert.Contains(t, out, `operation="render"`)
}

func TestRecorder_ProvidersAreIsolated(t *testing.T) {
	global := otel.GetMeterProvider()

	firstHandler, first, err := InitMetrics()
	require.NoError(t, err)
	defer shutdown(first)
	secondHandler, second, err := InitMetrics()
	require.NoError(t, err)
	defer shutdown(second)

	assert.Same(t, global, otel.GetMeterProvider(), "the global provider is not replaced")

	recorder, err := NewRecorder(first)
	require.NoError(t, err)
	_, err = NewRecorder(second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := events.NewBus()
	recorder.Subscribe(bus)
	bus.Start(ctx)
	bus.Publish(events.Event{Type: events.EventJobCreated, JobID: "job-1"})
	bus.Wait()

	assert.Contains(t, scrape(t, firstHandler), "reelcast_jobs_created_total")
	assert.NotContains(t, scrape(t, secondHandler), "reelcast_jobs_created_total")
}

// Package metrics exports job lifecycle counters through OpenTelemetry with a
// Prometheus scrape endpoint.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/celestiaorg/reelcast/internal/events"
)

// MeterName is the instrumentation scope of the job counters
const MeterName = "github.com/celestiaorg/reelcast"

// InitMetrics creates a meter provider backed by a Prometheus exporter on its
// own registry. It returns the /metrics handler and the provider, which the
// caller passes to NewRecorder and shuts down on exit. The global provider is
// left untouched.
func InitMetrics() (http.Handler, *sdkmetric.MeterProvider, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), provider, nil
}

// Recorder counts job lifecycle events
type Recorder struct {
	jobsCreated         metric.Int64Counter
	jobsStarted         metric.Int64Counter
	jobsCompleted       metric.Int64Counter
	jobsFailed          metric.Int64Counter
	jobsRetried         metric.Int64Counter
	scenesCompleted     metric.Int64Counter
	operationsSubmitted metric.Int64Counter
}

// NewRecorder creates the counters on provider
func NewRecorder(provider metric.MeterProvider) (*Recorder, error) {
	meter := provider.Meter(MeterName)

	var (
		r   Recorder
		err error
	)
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&r.jobsCreated, "reelcast_jobs_created", "Render jobs created"},
		{&r.jobsStarted, "reelcast_jobs_started", "Render jobs that started processing"},
		{&r.jobsCompleted, "reelcast_jobs_completed", "Render jobs that produced a video"},
		{&r.jobsFailed, "reelcast_jobs_failed", "Render job attempts that failed"},
		{&r.jobsRetried, "reelcast_jobs_retried", "Failed render jobs that were retried"},
		{&r.scenesCompleted, "reelcast_scenes_completed", "Scene results appended"},
		{&r.operationsSubmitted, "reelcast_operations_submitted", "Remote operations submitted, by kind"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
	}
	return &r, nil
}

// Subscriber registers event handlers
type Subscriber interface {
	Subscribe(events.EventType, events.Handler)
}

// Subscribe counts every lifecycle event published on the bus
func (r *Recorder) Subscribe(bus Subscriber) {
	bus.Subscribe(events.EventJobCreated, r.count(r.jobsCreated))
	bus.Subscribe(events.EventJobStarted, r.count(r.jobsStarted))
	bus.Subscribe(events.EventJobCompleted, r.count(r.jobsCompleted))
	bus.Subscribe(events.EventJobFailed, r.count(r.jobsFailed))
	bus.Subscribe(events.EventJobRetried, r.count(r.jobsRetried))
	bus.Subscribe(events.EventSceneCompleted, r.count(r.scenesCompleted))
	bus.Subscribe(events.EventOperationSubmitted, func(ctx context.Context, e events.Event) error {
		r.operationsSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", e.Operation)))
		return nil
	})
}

func (r *Recorder) count(c metric.Int64Counter) events.Handler {
	return func(ctx context.Context, _ events.Event) error {
		c.Add(ctx, 1)
		return nil
	}
}

// Package metrics exposes per-run Prometheus metrics and pushes them to a Pushgateway.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/rpattn/classcheck/internal/domain"
)

// Metrics tracks snapshot runs. Each instance owns its registry so that a batch job
// pushes only its own series.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	Elements        *prometheus.GaugeVec
	TaxonomyItems   prometheus.Gauge
	RowsWritten     prometheus.Gauge
	LastRunUnixTime prometheus.Gauge
}

// New creates a new Metrics instance with all run metrics registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "classcheck_runs_total",
			Help: "Total number of snapshot runs by status",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "classcheck_run_duration_seconds",
			Help:    "Duration of snapshot runs",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		Elements: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "classcheck_elements",
			Help: "Elements seen by the last run, by classification state",
		}, []string{"state"}),
		TaxonomyItems: factory.NewGauge(prometheus.GaugeOpts{
			Name: "classcheck_taxonomy_items",
			Help: "Classification items flattened by the last run",
		}),
		RowsWritten: factory.NewGauge(prometheus.GaugeOpts{
			Name: "classcheck_rows_written",
			Help: "Snapshot rows written by the last run",
		}),
		LastRunUnixTime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "classcheck_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

// Registry returns the registry holding the run metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(entry domain.RunLogEntry) {
	m.RunsTotal.WithLabelValues(string(entry.Status)).Inc()
	m.RunDuration.Observe(entry.Duration().Seconds())
	m.Elements.WithLabelValues("total").Set(float64(entry.Elements))
	m.Elements.WithLabelValues("classified").Set(float64(entry.Classified))
	m.Elements.WithLabelValues("unclassified").Set(float64(entry.Unclassified))
	m.Elements.WithLabelValues("unresolved").Set(float64(entry.Unresolved))
	m.TaxonomyItems.Set(float64(entry.TaxonomyItems))
	m.RowsWritten.Set(float64(entry.RowsWritten))
	m.LastRunUnixTime.Set(float64(entry.FinishedAt.Unix()))
}

// Push sends the current metrics to the Pushgateway at url under job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}

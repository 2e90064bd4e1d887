// Package metrics exposes Prometheus counters for quota runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the run metrics on a private registry.
type Collector struct {
	runs        *prometheus.CounterVec
	rows        *prometheus.CounterVec
	kilograms   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	lastRun     prometheus.Gauge

	registry *prometheus.Registry
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cavapgc_runs_total",
			Help: "Quota runs by entry point, delivery source and outcome",
		}, []string{"trigger", "source", "status"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cavapgc_rows_total",
			Help: "Rows seen per pipeline stage",
		}, []string{"stage"}),
		kilograms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cavapgc_kilograms_total",
			Help: "Allocated kilograms per bucket (quota or excess)",
		}, []string{"bucket"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cavapgc_run_duration_seconds",
			Help:    "Duration of a quota run",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"trigger"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cavapgc_last_run_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
		registry: registry,
	}
	registry.MustRegister(c.runs, c.rows, c.kilograms, c.runDuration, c.lastRun)
	registry.MustRegister(collectors.NewGoCollector())
	return c
}

// RunStats is what a finished run reports.
type RunStats struct {
	Trigger  string
	Source   string
	Err      error
	Duration time.Duration
	Rows     map[string]int
	QuotaKg  float64
	ExcessKg float64
}

// ObserveRun records one run. Row and kilogram counters only move for
// successful runs.
func (c *Collector) ObserveRun(s RunStats) {
	status := "ok"
	if s.Err != nil {
		status = "error"
	}
	c.runs.WithLabelValues(s.Trigger, s.Source, status).Inc()
	c.runDuration.WithLabelValues(s.Trigger).Observe(s.Duration.Seconds())
	if s.Err != nil {
		return
	}
	for stage, n := range s.Rows {
		c.rows.WithLabelValues(stage).Add(float64(n))
	}
	c.kilograms.WithLabelValues("quota").Add(s.QuotaKg)
	c.kilograms.WithLabelValues("excess").Add(s.ExcessKg)
	c.lastRun.SetToCurrentTime()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

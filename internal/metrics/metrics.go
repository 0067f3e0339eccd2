// Package metrics keeps a private Prometheus registry with the join counters
// exposed on /metrics in serve mode.
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"geo-intersect/internal/calculator"
	"geo-intersect/internal/models"
)

// RadiusLabels labels the match counter, one entry per bucket.
var RadiusLabels = [models.BucketCount]string{"50km", "25km", "10km", "5km", "2km", "1km"}

type Metrics struct {
	registry *prometheus.Registry

	PointsProcessed prometheus.Counter
	PairsWindowed   prometheus.Counter
	PairsTested     prometheus.Counter
	Matches         *prometheus.CounterVec // radius
	JoinDuration    prometheus.Histogram
	Jobs            prometheus.Gauge
	JobsFinished    *prometheus.CounterVec // status
}

// New registers the Go and process collectors plus the join metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: reg}

	m.PointsProcessed = m.newCounter(prometheus.CounterOpts{
		Name: "join_points_processed_total",
		Help: "Outer points scanned by the join",
	})
	m.PairsWindowed = m.newCounter(prometheus.CounterOpts{
		Name: "join_pairs_windowed_total",
		Help: "Candidate pairs inside the north-south window",
	})
	m.PairsTested = m.newCounter(prometheus.CounterOpts{
		Name: "join_pairs_tested_total",
		Help: "Candidate pairs that passed the east-west filter and were distance tested",
	})
	m.Matches = m.NewCounterVec(prometheus.CounterOpts{
		Name: "join_matches_total",
		Help: "Pairs counted per bucket radius",
	}, []string{"radius"})
	m.JoinDuration = m.newHistogram(prometheus.HistogramOpts{
		Name:    "join_duration_seconds",
		Help:    "Wall time of the parallel join",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	})
	m.Jobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jobs_running",
		Help: "Jobs currently running in serve mode",
	})
	reg.MustRegister(m.Jobs)
	m.JobsFinished = m.NewCounterVec(prometheus.CounterOpts{
		Name: "jobs_finished_total",
		Help: "Jobs finished in serve mode",
	}, []string{"status"})

	slog.Debug("metrics registry initialized")
	return m
}

func (m *Metrics) newCounter(opts prometheus.CounterOpts) prometheus.Counter {
	c := prometheus.NewCounter(opts)
	m.registry.MustRegister(c)
	return c
}

func (m *Metrics) newHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	h := prometheus.NewHistogram(opts)
	m.registry.MustRegister(h)
	return h
}

func (m *Metrics) NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(opts, labelNames)
	m.registry.MustRegister(cv)
	return cv
}

// Observe adds one finished join to the counters. A nil *Metrics is a no-op.
func (m *Metrics) Observe(stats calculator.Stats) {
	if m == nil {
		return
	}
	m.PointsProcessed.Add(float64(stats.Processed))
	m.PairsWindowed.Add(float64(stats.Windowed))
	m.PairsTested.Add(float64(stats.Tested))
	for i, n := range stats.Matches {
		m.Matches.WithLabelValues(RadiusLabels[i]).Add(float64(n))
	}
	m.JoinDuration.Observe(stats.Elapsed.Seconds())
}

// JobStarted and JobFinished track serve-mode jobs.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.Jobs.Inc()
}

func (m *Metrics) JobFinished(status string) {
	if m == nil {
		return
	}
	m.Jobs.Dec()
	m.JobsFinished.WithLabelValues(status).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Package metrics provides Prometheus metrics for gitgood runs. A CLI run is
// short-lived, so metrics are exported as a node-exporter textfile rather than
// served.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gitgood"

var (
	enabled         bool
	enabledMutex    sync.RWMutex
	defaultRegistry *Registry
)

// Init initializes the metrics system.
func Init() {
	enabledMutex.Lock()
	defer enabledMutex.Unlock()
	enabled = true
	defaultRegistry = NewRegistry()
}

// Enabled returns true if metrics are enabled.
func Enabled() bool {
	enabledMutex.RLock()
	defer enabledMutex.RUnlock()
	return enabled
}

// Default returns the default metrics registry.
func Default() *Registry {
	enabledMutex.RLock()
	r := defaultRegistry
	enabledMutex.RUnlock()
	if r == nil {
		Init()
		return Default()
	}
	return r
}

// Registry holds all gitgood metrics.
type Registry struct {
	reg        *prometheus.Registry
	anchors    *prometheus.CounterVec
	verifies   *prometheus.CounterVec
	submitSecs *prometheus.HistogramVec
	lastRun    prometheus.Gauge
}

// NewRegistry creates a new metrics registry.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		anchors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anchor_runs_total",
			Help:      "Anchor runs by outcome.",
		}, []string{"project", "status"}),
		verifies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Onchain verifications by status.",
		}, []string{"status"}),
		submitSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_duration_seconds",
			Help:      "Time spent building and submitting anchor transactions.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"result"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last anchor run.",
		}),
	}
	r.reg.MustRegister(r.anchors, r.verifies, r.submitSecs, r.lastRun)
	return r
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// RecordAnchor records the outcome of an anchor run.
func (r *Registry) RecordAnchor(project, status string) {
	r.anchors.WithLabelValues(project, status).Inc()
	r.lastRun.SetToCurrentTime()
}

// AnchorRuns returns the run counter for project and status.
func (r *Registry) AnchorRuns(project, status string) prometheus.Counter {
	return r.anchors.WithLabelValues(project, status)
}

// RecordSubmission records a submission attempt.
func (r *Registry) RecordSubmission(success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	r.submitSecs.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordVerification records a verification result.
func (r *Registry) RecordVerification(status string) {
	r.verifies.WithLabelValues(status).Inc()
}

// WriteTextfile writes the registry in the text exposition format to path.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}

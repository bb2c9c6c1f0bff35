// Package metrics records fleet operation outcomes and writes them to a
// Prometheus textfile for the node exporter's textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Recorder holds one invocation's metrics on a private registry. A nil
// *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry
	path     string

	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	hosts       *prometheus.GaugeVec
	phaseHosts  *prometheus.GaugeVec
}

// New returns a Recorder that flushes to path. An empty path disables
// flushing but still records in memory.
func New(path string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		path:     path,
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fleet",
				Name:      "operations_total",
				Help:      "Fleet operations by result",
			},
			[]string{"operation", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fleet",
				Name:      "operation_duration_seconds",
				Help:      "Duration of fleet operations in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
			},
			[]string{"operation"},
		),
		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "fleet",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful run of an operation",
			},
			[]string{"operation"},
		),
		hosts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "fleet",
				Name:      "hosts",
				Help:      "Inventory servers by environment and status",
			},
			[]string{"environment", "status"},
		),
		phaseHosts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "fleet",
				Subsystem: "deploy",
				Name:      "phase_hosts",
				Help:      "Hosts touched by each deploy phase",
			},
			[]string{"environment", "phase"},
		),
	}
	r.registry.MustRegister(r.operations, r.duration, r.lastSuccess, r.hosts, r.phaseHosts)
	return r
}

// Observe records the outcome of an operation that began at start.
func (r *Recorder) Observe(operation string, start time.Time, err error) {
	if r == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	r.operations.WithLabelValues(operation, result).Inc()
	r.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err == nil {
		r.lastSuccess.WithLabelValues(operation).Set(float64(time.Now().Unix()))
	}
}

// SetHosts records the number of servers in an environment with a status.
func (r *Recorder) SetHosts(environment, status string, n int) {
	if r == nil {
		return
	}
	r.hosts.WithLabelValues(environment, status).Set(float64(n))
}

// SetPhaseHosts records how many hosts a deploy phase touched.
func (r *Recorder) SetPhaseHosts(environment, phase string, n int) {
	if r == nil {
		return
	}
	r.phaseHosts.WithLabelValues(environment, phase).Set(float64(n))
}

// Gatherer exposes the registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.registry }

// Flush writes the textfile atomically. It is a no-op without a path.
func (r *Recorder) Flush() error {
	if r == nil || r.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := prometheus.WriteToTextfile(r.path, r.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", r.path, err)
	}
	return nil
}

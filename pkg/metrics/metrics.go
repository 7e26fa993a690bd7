// Package metrics provides Prometheus instrumentation for vecops kernels.
//
// # Overview
//
// The kernel reports every column it processes through the Recorder
// interface. NopRecorder is the default; PrometheusRecorder registers
// collectors on a caller supplied registry so several kernels, or tests,
// never collide on the default registry.
//
// # Basic Usage
//
//	reg := prometheus.NewRegistry()
//	recorder := metrics.NewPrometheusRecorder(reg, "vecops")
//	kernel := vecops.New(vecops.WithRecorder(recorder))
//
// # Metric Types
//
// Counter: kernel calls by operation and status, rows and positions folded
// Histogram: per-column kernel latency in seconds
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Recorder receives one observation per processed column.
type Recorder interface {
	ObserveKernel(op, status string, rows, positions int, elapsed time.Duration)
}

// NopRecorder discards observations.
type NopRecorder struct{}

// ObserveKernel implements Recorder.
func (NopRecorder) ObserveKernel(string, string, int, int, time.Duration) {}

// PrometheusRecorder records kernel observations as Prometheus metrics.
type PrometheusRecorder struct {
	calls     *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	rows      *prometheus.CounterVec
	positions *prometheus.CounterVec
}

// NewPrometheusRecorder registers the kernel collectors on reg under the
// given namespace.
//
// Example:
//
//	recorder := metrics.NewPrometheusRecorder(prometheus.DefaultRegisterer, "vecops")
//	recorder.ObserveKernel("sum", metrics.StatusSuccess, 1000, 3, time.Millisecond)
func NewPrometheusRecorder(reg prometheus.Registerer, namespace string) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "kernel_calls_total",
				Help:      "Total number of list columns processed by a vertical kernel",
			},
			[]string{"op", "status"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "kernel_latency_seconds",
				Help:      "Per-column kernel latency in seconds",
				Buckets: []float64{
					1e-6, // 1μs - tiny columns
					1e-5, // 10μs
					1e-4, // 100μs
					1e-3, // 1ms
					1e-2, // 10ms
					1e-1, // 100ms
					1,    // 1s - very large columns
				},
			},
			[]string{"op"},
		),
		rows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_processed_total",
				Help:      "Total number of input rows read by vertical kernels",
			},
			[]string{"op"},
		),
		positions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "positions_processed_total",
				Help:      "Total number of list positions produced per column",
			},
			[]string{"op"},
		),
	}
}

// ObserveKernel implements Recorder.
func (r *PrometheusRecorder) ObserveKernel(op, status string, rows, positions int, elapsed time.Duration) {
	r.calls.WithLabelValues(op, status).Inc()
	r.latency.WithLabelValues(op).Observe(elapsed.Seconds())
	if status != StatusSuccess {
		return
	}
	r.rows.WithLabelValues(op).Add(float64(rows))
	r.positions.WithLabelValues(op).Add(float64(positions))
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the name the timer was created with.
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It can be called
// repeatedly.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

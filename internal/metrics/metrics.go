// Package metrics records per-run Prometheus metrics on a private registry
// and writes them out in the node-exporter textfile format.
//
// All methods are safe on a nil *Recorder, which records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bitshrink"

// Recorder holds the run's collectors.
type Recorder struct {
	registry *prometheus.Registry

	files          *prometheus.CounterVec
	conversions    *prometheus.CounterVec
	encodeDuration prometheus.Histogram
	workersBusy    prometheus.Gauge
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		files: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Scanned entries by classification result.",
		}, []string{"result"}),
		conversions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Finished conversions by reason and status.",
		}, []string{"reason", "status"}),
		encodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "encode_duration_seconds",
			Help:      "Wall time of a single conversion.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		workersBusy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_busy",
			Help:      "Workers currently running a conversion.",
		}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveFile counts one scanned entry under result (e.g. "not_audio").
func (r *Recorder) ObserveFile(result string) {
	if r == nil {
		return
	}
	r.files.WithLabelValues(result).Inc()
}

// ObserveConversion counts one finished conversion and its duration.
func (r *Recorder) ObserveConversion(reason string, ok bool, d time.Duration) {
	if r == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	r.conversions.WithLabelValues(reason, status).Inc()
	r.encodeDuration.Observe(d.Seconds())
}

// WorkerBusy marks a worker as running a conversion.
func (r *Recorder) WorkerBusy() {
	if r == nil {
		return
	}
	r.workersBusy.Inc()
}

// WorkerIdle reverses WorkerBusy.
func (r *Recorder) WorkerIdle() {
	if r == nil {
		return
	}
	r.workersBusy.Dec()
}

// WriteTextfile writes the registry to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}

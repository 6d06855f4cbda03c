// Package metrics records per-run generator metrics in a dedicated
// Prometheus registry and optionally pushes them to a Pushgateway.
//
// A generation run is a batch job, so metrics are pushed once at the end
// of the run instead of being scraped. All methods are safe on a nil
// *Recorder, which disables recording.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "propgen"

// Recorder holds the collectors of one run.
type Recorder struct {
	registry *prometheus.Registry

	chunksFetched *prometheus.CounterVec
	rowsFetched   *prometheus.CounterVec
	bufferPeak    *prometheus.GaugeVec
	windows       prometheus.Counter
	values        *prometheus.CounterVec
	saves         *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	lastSuccess   prometheus.Gauge
}

// New creates a recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		chunksFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_fetched_total",
			Help:      "Chunks fetched from the store, by series.",
		}, []string{"series"}),

		rowsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_fetched_total",
			Help:      "Rows fetched from the store, by series.",
		}, []string{"series"}),

		bufferPeak: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffer_peak_rows",
			Help:      "Largest number of rows buffered at once, by series.",
		}, []string{"series"}),

		windows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_total",
			Help:      "Interval windows dispatched to processors.",
		}),

		values: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "property_values_total",
			Help:      "Property values emitted, by property.",
		}, []string{"property"}),

		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "property_saves_total",
			Help:      "Property series saves, by property and outcome.",
		}, []string{"property", "outcome"}),

		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of generation runs, by outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}, []string{"outcome"}),

		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}

	r.registry.MustRegister(
		r.chunksFetched,
		r.rowsFetched,
		r.bufferPeak,
		r.windows,
		r.values,
		r.saves,
		r.runDuration,
		r.lastSuccess,
	)

	return r
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ChunkFetched records one fetched chunk of series holding rows rows.
func (r *Recorder) ChunkFetched(series string, rows int) {
	if r == nil {
		return
	}
	r.chunksFetched.WithLabelValues(series).Inc()
	r.rowsFetched.WithLabelValues(series).Add(float64(rows))
}

// BufferPeak records the peak buffer length of series.
func (r *Recorder) BufferPeak(series string, rows int) {
	if r == nil {
		return
	}
	r.bufferPeak.WithLabelValues(series).Set(float64(rows))
}

// WindowDispatched records one dispatched window.
func (r *Recorder) WindowDispatched() {
	if r == nil {
		return
	}
	r.windows.Inc()
}

// ValueEmitted records one emitted property value.
func (r *Recorder) ValueEmitted(property string) {
	if r == nil {
		return
	}
	r.values.WithLabelValues(property).Inc()
}

// SaveCompleted records the outcome of persisting one property series.
func (r *Recorder) SaveCompleted(property string, err error) {
	if r == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	r.saves.WithLabelValues(property, outcome).Inc()
}

// RunCompleted records the duration and outcome of a run.
func (r *Recorder) RunCompleted(d time.Duration, err error) {
	if r == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	} else {
		r.lastSuccess.SetToCurrentTime()
	}
	r.runDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// Push sends every collected metric to the Pushgateway at url under job.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if r == nil || url == "" {
		return nil
	}

	err := push.New(url, job).
		Gatherer(r.registry).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

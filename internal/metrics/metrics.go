// Package metrics exposes Prometheus collectors for the analysis service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "emotion"

// Metrics holds the service collectors on a private registry.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	analyses      *prometheus.CounterVec
	predictions   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	inputBytes    prometheus.Histogram
	audioSeconds  prometheus.Histogram
	rejected      *prometheus.CounterVec
	activeStreams prometheus.Gauge
	modelUp       prometheus.Gauge
}

// New constructs a Metrics collection with Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Completed analyses by outcome (success or failure kind).",
		}, []string{"outcome"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Successful classifications by emotion label.",
		}, []string{"label"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		inputBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "input_bytes",
			Help:      "Size of uploaded audio payloads.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		audioSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audio_duration_seconds",
			Help:      "Duration of decoded audio.",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 10, 20, 30, 60, 120},
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_requests_total",
			Help:      "Requests refused before analysis.",
		}, []string{"reason"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Open WebSocket analysis streams.",
		}),
		modelUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_available",
			Help:      "1 when the classifier model is loaded.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.analyses,
		m.predictions,
		m.stageDuration,
		m.inputBytes,
		m.audioSeconds,
		m.rejected,
		m.activeStreams,
		m.modelUp,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveOutcome counts a finished analysis.
func (m *Metrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(outcome).Inc()
}

// ObservePrediction counts a classification result.
func (m *Metrics) ObservePrediction(label string) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(label).Inc()
}

// ObserveStage records the time spent in a pipeline stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveInput records the payload size of a request.
func (m *Metrics) ObserveInput(bytes int) {
	if m == nil {
		return
	}
	m.inputBytes.Observe(float64(bytes))
}

// ObserveAudio records the decoded duration of a clip.
func (m *Metrics) ObserveAudio(d time.Duration) {
	if m == nil {
		return
	}
	m.audioSeconds.Observe(d.Seconds())
}

// IncRejected counts a request refused for reason.
func (m *Metrics) IncRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

// IncActiveStreams increments the active stream gauge.
func (m *Metrics) IncActiveStreams() {
	if m == nil {
		return
	}
	m.activeStreams.Inc()
}

// DecActiveStreams decrements the active stream gauge.
func (m *Metrics) DecActiveStreams() {
	if m == nil {
		return
	}
	m.activeStreams.Dec()
}

// SetModelAvailable records whether the classifier is usable.
func (m *Metrics) SetModelAvailable(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.modelUp.Set(1)
		return
	}
	m.modelUp.Set(0)
}

// RegisterPool exposes worker pool occupancy through gauge functions.
func (m *Metrics) RegisterPool(active, queued func() int) {
	if m == nil {
		return
	}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_active_jobs",
			Help:      "Analyses currently running on a worker.",
		}, func() float64 { return float64(active()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_queued_jobs",
			Help:      "Analyses waiting for a worker.",
		}, func() float64 { return float64(queued()) }),
	)
}

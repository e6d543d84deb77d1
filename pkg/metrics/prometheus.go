package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	eventsIngested   *prometheus.CounterVec
	eventsDropped    *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	activeSpikes     prometheus.Gauge
	alertsEmitted    *prometheus.CounterVec
	alertsSuppressed *prometheus.CounterVec
	lastPrice        *prometheus.GaugeVec
	latency          *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		eventsIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spikewatch_events_ingested_total",
				Help: "Total number of market events ingested",
			},
			[]string{"kind", "symbol"},
		),
		eventsDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spikewatch_events_dropped_total",
				Help: "Total number of market events dropped before detection",
			},
			[]string{"reason"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spikewatch_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		activeSpikes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "spikewatch_active_spikes",
				Help: "Number of symbols currently in an active spike episode",
			},
		),
		alertsEmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spikewatch_alerts_emitted_total",
				Help: "Alert events delivered, by kind and sink",
			},
			[]string{"kind", "sink"},
		),
		alertsSuppressed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spikewatch_alerts_suppressed_total",
				Help: "Alert events suppressed by cooldown",
			},
			[]string{"kind"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "spikewatch_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spikewatch_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordEventIngested counts an accepted market event.
func (r *Recorder) RecordEventIngested(kind, symbol string) {
	r.eventsIngested.WithLabelValues(kind, symbol).Inc()
}

// RecordEventDropped counts a dropped market event.
func (r *Recorder) RecordEventDropped(reason string) {
	r.eventsDropped.WithLabelValues(reason).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordActiveSpikes sets the active spike gauge.
func (r *Recorder) RecordActiveSpikes(n int) {
	r.activeSpikes.Set(float64(n))
}

// RecordAlertEmitted counts a delivered alert.
func (r *Recorder) RecordAlertEmitted(kind, sink string) {
	r.alertsEmitted.WithLabelValues(kind, sink).Inc()
}

// RecordAlertSuppressed counts an alert swallowed by cooldown.
func (r *Recorder) RecordAlertSuppressed(kind string) {
	r.alertsSuppressed.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

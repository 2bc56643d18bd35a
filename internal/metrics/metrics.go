package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	CardsSent        *prometheus.CounterVec
	CardsFailed      *prometheus.CounterVec
	DeliveryLatency  *prometheus.HistogramVec
	QueueDepthHigh   prometheus.GaugeFunc
	QueueDepthNormal prometheus.GaugeFunc
	QueueDepthLow    prometheus.GaugeFunc
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
//
// depths samples the current queue tiers; the queue-depth gauges close over
// it so every scrape reports live values without a polling goroutine.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer, depths func() (high, normal, low int)) *Metrics {
	m := &Metrics{
		CardsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cards_sent_total",
			Help: "Total number of successfully delivered cards.",
		}, []string{"target_host"}),

		CardsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cards_failed_total",
			Help: "Total number of failed card deliveries (failures are terminal).",
		}, []string{"target_host"}),

		DeliveryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "card_delivery_seconds",
			Help:    "End-to-end delivery latency from dequeue to webhook ack.",
			Buckets: prometheus.DefBuckets,
		}, []string{"target_host"}),

		QueueDepthHigh: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "queue_depth_high",
			Help: "Current number of items in the high-priority queue.",
		}, func() float64 {
			high, _, _ := depths()
			return float64(high)
		}),
		QueueDepthNormal: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "queue_depth_normal",
			Help: "Current number of items in the normal-priority queue.",
		}, func() float64 {
			_, normal, _ := depths()
			return float64(normal)
		}),
		QueueDepthLow: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "queue_depth_low",
			Help: "Current number of items in the low-priority queue.",
		}, func() float64 {
			_, _, low := depths()
			return float64(low)
		}),
	}

	reg.MustRegister(
		m.CardsSent,
		m.CardsFailed,
		m.DeliveryLatency,
		m.QueueDepthHigh,
		m.QueueDepthNormal,
		m.QueueDepthLow,
	)

	return m
}

// WorkerHooks returns the metric callback functions expected by worker.MetricHooks.
// Centralises the prometheus observation calls so worker.go stays import-free.
func (m *Metrics) WorkerHooks() (
	onSent func(host string, latency time.Duration),
	onFailed func(host string),
) {
	onSent = func(host string, latency time.Duration) {
		m.CardsSent.WithLabelValues(host).Inc()
		m.DeliveryLatency.WithLabelValues(host).Observe(latency.Seconds())
	}
	onFailed = func(host string) {
		m.CardsFailed.WithLabelValues(host).Inc()
	}
	return
}

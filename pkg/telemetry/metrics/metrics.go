// Package metrics exposes Prometheus collectors for the translation layer:
// request outcomes, latencies, token throughput, and live stream counts.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles the translation-layer metrics. Register it once per
// process against the registry of your choice.
type Collector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	activeStreams   prometheus.Gauge
}

// NewCollector creates and registers the collectors on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartchat",
			Name:      "requests_total",
			Help:      "Chat requests by provider, operation, and outcome.",
		}, []string{"provider", "operation", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "smartchat",
			Name:      "request_duration_seconds",
			Help:      "Chat request latency by provider and operation.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"provider", "operation"}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartchat",
			Name:      "tokens_total",
			Help:      "Token throughput by provider and direction.",
		}, []string{"provider", "direction"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smartchat",
			Name:      "active_streams",
			Help:      "Streams currently open.",
		}),
	}
	reg.MustRegister(c.requestsTotal, c.requestDuration, c.tokensTotal, c.activeStreams)
	return c
}

// ObserveRequest records one finished request.
func (c *Collector) ObserveRequest(provider, operation, status string, elapsed time.Duration) {
	c.requestsTotal.WithLabelValues(provider, operation, status).Inc()
	c.requestDuration.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
}

// AddTokens records token throughput.
func (c *Collector) AddTokens(provider string, prompt, completion int) {
	if prompt > 0 {
		c.tokensTotal.WithLabelValues(provider, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		c.tokensTotal.WithLabelValues(provider, "completion").Add(float64(completion))
	}
}

// StreamOpened and StreamClosed track the live stream gauge.
func (c *Collector) StreamOpened() { c.activeStreams.Inc() }

// StreamClosed decrements the live stream gauge.
func (c *Collector) StreamClosed() { c.activeStreams.Dec() }

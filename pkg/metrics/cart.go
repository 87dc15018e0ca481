package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultOK    = "ok"
	ResultError = "error"
)

// CartMetrics records cart store activity. A nil *CartMetrics is a valid no-op.
type CartMetrics struct {
	operations     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	remoteFailures *prometheus.CounterVec
	activeStores   prometheus.Gauge
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Cart store operations by outcome.",
	}, []string{"operation", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_operation_duration_seconds",
		Help:    "Duration of cart store operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	remoteFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_remote_failures_total",
		Help: "Remote cart document failures recovered by falling back to local storage.",
	}, []string{"op"})
	activeStores := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cart_active_stores",
		Help: "Cart stores currently held in memory.",
	})
	reg.MustRegister(operations, duration, remoteFailures, activeStores)
	return &CartMetrics{
		operations:     operations,
		duration:       duration,
		remoteFailures: remoteFailures,
		activeStores:   activeStores,
	}
}

// Observe records the outcome and duration of a cart operation.
func (c *CartMetrics) Observe(operation string, started time.Time, err error) {
	if c == nil || c.operations == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	op := normalizeLabel(operation)
	c.operations.WithLabelValues(op, result).Inc()
	c.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// IncRemoteFailure counts a recovered remote store failure.
func (c *CartMetrics) IncRemoteFailure(op string) {
	if c == nil || c.remoteFailures == nil {
		return
	}
	c.remoteFailures.WithLabelValues(normalizeLabel(op)).Inc()
}

// SetActiveStores reports the registry size.
func (c *CartMetrics) SetActiveStores(n int) {
	if c == nil || c.activeStores == nil {
		return
	}
	c.activeStores.Set(float64(n))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

// Package metrics exposes the Prometheus instrumentation for the network
// manager and codec: socket lifecycle counters, a gauge tracking the live
// registry size, and a histogram of exchange counts per encode, grounded
// on the promauto.With(registry) factory pattern used throughout the
// retrieval pack's metrics package.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iosb-ics/opcua-gonm/socket"
	"github.com/iosb-ics/opcua-gonm/statuscode"
)

// Config tunes how Metrics names the collectors it registers.
type Config struct {
	// Namespace prefixes every metric name. Defaults to "opcuagonm".
	Namespace string
}

// Metrics bundles every metric this repository emits. Safe for concurrent
// use — every field is a prometheus collector, which are themselves
// concurrency-safe.
type Metrics struct {
	SocketsRegistered   prometheus.Counter
	SocketsReaped       prometheus.Counter
	ActivityErrors      prometheus.Counter
	RegisteredSockets   prometheus.Gauge
	EncodeExchangeCount prometheus.Histogram
	ProcessDuration     prometheus.Histogram
}

// NewMetrics registers every metric against the default registerer with
// default configuration.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer, Config{})
}

// NewMetricsWithConfig registers every metric against the default
// registerer with the given configuration.
func NewMetricsWithConfig(cfg Config) *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer, cfg)
}

// NewMetricsWithRegistry registers every metric against reg, letting
// callers isolate metrics in tests via a fresh prometheus.Registry.
func NewMetricsWithRegistry(reg prometheus.Registerer, cfg Config) *Metrics {
	ns := cfg.Namespace
	if ns == "" {
		ns = "opcuagonm"
	}
	factory := promauto.With(reg)

	return &Metrics{
		SocketsRegistered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "netmgr",
			Name:      "sockets_registered_total",
			Help:      "Total number of sockets registered with the network manager, including accepted connections.",
		}),
		SocketsReaped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "netmgr",
			Name:      "sockets_reaped_total",
			Help:      "Total number of sockets closed and freed after reporting MayDelete.",
		}),
		ActivityErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "netmgr",
			Name:      "activity_errors_total",
			Help:      "Total number of Activity calls that returned a non-Good status.",
		}),
		RegisteredSockets: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "netmgr",
			Name:      "registered_sockets",
			Help:      "Current number of sockets registered with the network manager.",
		}),
		EncodeExchangeCount: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "codec",
			Name:      "encode_exchange_count",
			Help:      "Number of exchange callback invocations per EncodeBinary call.",
			Buckets:   prometheus.LinearBuckets(0, 1, 10),
		}),
		ProcessDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "netmgr",
			Name:      "process_duration_seconds",
			Help:      "Wall-clock duration of one network manager Process pass.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// SocketRegistered implements netmgr.Observer.
func (m *Metrics) SocketRegistered(isListener bool) {
	m.SocketsRegistered.Inc()
	m.RegisteredSockets.Inc()
}

// SocketReaped implements netmgr.Observer.
func (m *Metrics) SocketReaped(isListener bool) {
	m.SocketsReaped.Inc()
	m.RegisteredSockets.Dec()
}

// ActivityFailed implements netmgr.Observer.
func (m *Metrics) ActivityFailed(id socket.ID, status statuscode.Code) {
	m.ActivityErrors.Inc()
}

// ProcessCompleted implements netmgr.Observer, recording one observation
// per Process pass.
func (m *Metrics) ProcessCompleted(d time.Duration) {
	m.ProcessDuration.Observe(d.Seconds())
}

// ExchangeObserved records one EncodeBinary call's exchange count. Called
// by session after a reply finishes encoding.
func (m *Metrics) ExchangeObserved(count int) {
	m.EncodeExchangeCount.Observe(float64(count))
}

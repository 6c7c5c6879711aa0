// Package metrics provides Prometheus telemetry for the engine boundary:
// initialise attempts, lifecycle state, the update tick, reconnects and
// capability refreshes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the interface components report through.
type Recorder interface {
	RecordInitAttempt(outcome string, duration time.Duration)
	RecordState(state int)
	RecordUpdate(duration time.Duration, err error)
	RecordReconnect(err error)
	RecordCapabilityRefresh(types int, err error)
}

// Collector records metrics into its own registry.
type Collector struct {
	registry *prometheus.Registry

	initAttempts *prometheus.CounterVec
	initLatency  prometheus.Histogram
	state        prometheus.Gauge

	updates       *prometheus.CounterVec
	updateLatency prometheus.Histogram
	reconnects    *prometheus.CounterVec

	capabilityRefreshes *prometheus.CounterVec
	capabilityTypes     prometheus.Gauge
}

// NewCollector creates a collector with metrics under namespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "hvr"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.initAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "init_attempts_total",
			Help:      "Total number of initialise calls by outcome",
		},
		[]string{"outcome"},
	)

	c.initLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "init_duration_seconds",
			Help:      "Time spent in initialise calls",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	c.state = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "state",
			Help:      "Lifecycle state (0=uninitialized, 1=initializing, 2=ready, 3=unsupported)",
		},
	)

	c.updates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "updates_total",
			Help:      "Total number of native update calls",
		},
		[]string{"result"},
	)

	c.updateLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "update_duration_seconds",
			Help:      "Time spent in native update calls",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 100us to ~200ms
		},
	)

	c.reconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "reconnects_total",
			Help:      "Total number of reconnect requests issued",
		},
		[]string{"result"},
	)

	c.capabilityRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capability",
			Name:      "refreshes_total",
			Help:      "Total number of capability cache rebuilds",
		},
		[]string{"result"},
	)

	c.capabilityTypes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "capability",
			Name:      "types",
			Help:      "Render methods in the published capability set",
		},
	)

	c.registry.MustRegister(
		c.initAttempts,
		c.initLatency,
		c.state,
		c.updates,
		c.updateLatency,
		c.reconnects,
		c.capabilityRefreshes,
		c.capabilityTypes,
	)

	return c
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordInitAttempt records one initialise call and its outcome.
func (c *Collector) RecordInitAttempt(outcome string, duration time.Duration) {
	c.initAttempts.WithLabelValues(outcome).Inc()
	c.initLatency.Observe(duration.Seconds())
}

// RecordState records the current lifecycle state.
func (c *Collector) RecordState(state int) {
	c.state.Set(float64(state))
}

// RecordUpdate records a native update call.
func (c *Collector) RecordUpdate(duration time.Duration, err error) {
	c.updates.WithLabelValues(result(err)).Inc()
	c.updateLatency.Observe(duration.Seconds())
}

// RecordReconnect records a reconnect request.
func (c *Collector) RecordReconnect(err error) {
	c.reconnects.WithLabelValues(result(err)).Inc()
}

// RecordCapabilityRefresh records a capability rebuild and the size of the
// published set.
func (c *Collector) RecordCapabilityRefresh(types int, err error) {
	c.capabilityRefreshes.WithLabelValues(result(err)).Inc()
	if err == nil {
		c.capabilityTypes.Set(float64(types))
	}
}

// NoOpCollector is a metrics collector that discards all metrics.
type NoOpCollector struct{}

// NewNoOpCollector creates a no-op metrics collector.
func NewNoOpCollector() *NoOpCollector {
	return &NoOpCollector{}
}

func (*NoOpCollector) RecordInitAttempt(outcome string, d time.Duration) {}
func (*NoOpCollector) RecordState(state int)                             {}
func (*NoOpCollector) RecordUpdate(d time.Duration, err error)           {}
func (*NoOpCollector) RecordReconnect(err error)                         {}
func (*NoOpCollector) RecordCapabilityRefresh(types int, err error)      {}

// OrNoOp returns r, or a no-op recorder when r is nil.
func OrNoOp(r Recorder) Recorder {
	if r == nil {
		return NewNoOpCollector()
	}
	return r
}

// Verify interface compliance
var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = (*NoOpCollector)(nil)
)

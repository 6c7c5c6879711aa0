package runtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/wippyai/hvr-interface/metrics"
	"github.com/wippyai/hvr-interface/native"
)

// DefaultReconnectInterval is the minimum time between reconnect requests.
const DefaultReconnectInterval = 3 * time.Second

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	Clock    clock.PassiveClock
	Interval time.Duration
	Logger   *zap.Logger
	Metrics  metrics.Recorder
}

// Monitor gates reconnect requests to at most one per interval. It has no
// goroutine of its own; Check is driven from the host's update tick.
type Monitor struct {
	eng      native.Engine
	clock    clock.PassiveClock
	logger   *zap.Logger
	metrics  metrics.Recorder
	last     time.Time
	interval time.Duration
	mu       sync.Mutex
}

func NewMonitor(eng native.Engine, opts MonitorOptions) *Monitor {
	m := &Monitor{
		eng:      eng,
		clock:    opts.Clock,
		logger:   opts.Logger,
		metrics:  metrics.OrNoOp(opts.Metrics),
		interval: opts.Interval,
	}
	if m.clock == nil {
		m.clock = clock.RealClock{}
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.interval <= 0 {
		m.interval = DefaultReconnectInterval
	}
	return m
}

// Reset zeroes the last-check time so the next Check fires.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.last = time.Time{}
	m.mu.Unlock()
}

// Check requests a reconnect if at least one interval has passed since the
// last request. It reports whether a request was issued.
func (m *Monitor) Check(ctx context.Context) bool {
	m.mu.Lock()
	now := m.clock.Now()
	if now.Before(m.last.Add(m.interval)) {
		m.mu.Unlock()
		return false
	}
	m.last = now
	m.mu.Unlock()

	err := m.eng.Reconnect(ctx)
	m.metrics.RecordReconnect(err)
	if err != nil {
		m.logger.Warn("reconnect failed", zap.Error(err))
	}
	return true
}

// LastCheck returns when the last reconnect request was issued. The zero time
// means none since the last Reset.
func (m *Monitor) LastCheck() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *Monitor) Interval() time.Duration {
	return m.interval
}

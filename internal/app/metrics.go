package app

import (
	"sync/atomic"
	"time"
)

// Metrics counts plugin lifecycle activity.
type Metrics struct {
	enableCount    atomic.Uint64
	enableFailures atomic.Uint64
	enableTotalNs  atomic.Int64
	enableMaxNs    atomic.Int64

	disableCount atomic.Uint64
	pluginErrors atomic.Uint64
	eventCount   atomic.Uint64

	startTime atomic.Int64
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.startTime.Store(time.Now().UnixNano())
	return m
}

// RecordEnable records one enable attempt and how long it took.
func (m *Metrics) RecordEnable(duration time.Duration, err error) {
	if err != nil {
		m.enableFailures.Add(1)
		return
	}
	ns := duration.Nanoseconds()
	m.enableCount.Add(1)
	m.enableTotalNs.Add(ns)
	for {
		old := m.enableMaxNs.Load()
		if ns <= old || m.enableMaxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordDisable records a completed disable.
func (m *Metrics) RecordDisable() {
	m.disableCount.Add(1)
}

// RecordPluginError records a plugin runtime failure.
func (m *Metrics) RecordPluginError() {
	m.pluginErrors.Add(1)
}

// RecordEvent records a lifecycle event seen on the bus.
func (m *Metrics) RecordEvent() {
	m.eventCount.Add(1)
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	enables := m.enableCount.Load()
	var avg int64
	if enables > 0 {
		avg = m.enableTotalNs.Load() / int64(enables)
	}
	return MetricsSnapshot{
		Uptime:         time.Since(time.Unix(0, m.startTime.Load())),
		Enables:        enables,
		EnableFailures: m.enableFailures.Load(),
		AvgEnableNs:    avg,
		MaxEnableNs:    m.enableMaxNs.Load(),
		Disables:       m.disableCount.Load(),
		PluginErrors:   m.pluginErrors.Load(),
		Events:         m.eventCount.Load(),
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.enableCount.Store(0)
	m.enableFailures.Store(0)
	m.enableTotalNs.Store(0)
	m.enableMaxNs.Store(0)
	m.disableCount.Store(0)
	m.pluginErrors.Store(0)
	m.eventCount.Store(0)
	m.startTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	Uptime         time.Duration `json:"uptime"`
	Enables        uint64        `json:"enables"`
	EnableFailures uint64        `json:"enableFailures"`
	AvgEnableNs    int64         `json:"avgEnableNs"`
	MaxEnableNs    int64         `json:"maxEnableNs"`
	Disables       uint64        `json:"disables"`
	PluginErrors   uint64        `json:"pluginErrors"`
	Events         uint64        `json:"events"`
}

// FailureRate returns the percentage of enable attempts that failed.
func (s MetricsSnapshot) FailureRate() float64 {
	total := s.Enables + s.EnableFailures
	if total == 0 {
		return 0
	}
	return float64(s.EnableFailures) / float64(total) * 100
}

// Timer provides a simple way to measure elapsed time.
type Timer struct {
	start time.Time
}

// StartTimer creates a new timer.
func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the elapsed time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// Stop returns the elapsed time and resets the timer.
func (t *Timer) Stop() time.Duration {
	elapsed := t.Elapsed()
	t.start = time.Now()
	return elapsed
}

package build

import (
	"sync"
	"time"
)

// Metrics counts runs across the life of a Runner. Watch mode surfaces it on
// the health endpoint.
type Metrics struct {
	mutex sync.RWMutex
	snap  MetricsSnapshot
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	TotalRuns       int64         `json:"total_runs"`
	SuccessfulRuns  int64         `json:"successful_runs"`
	FailedRuns      int64         `json:"failed_runs"`
	TotalDuration   time.Duration `json:"total_duration"`
	AverageDuration time.Duration `json:"average_duration"`
	LastTask        string        `json:"last_task,omitempty"`
	LastRun         time.Time     `json:"last_run"`
}

// NewMetrics creates an empty tracker.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Record adds one finished run.
func (m *Metrics) Record(task string, d time.Duration, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.snap.TotalRuns++
	m.snap.TotalDuration += d
	if err != nil {
		m.snap.FailedRuns++
	} else {
		m.snap.SuccessfulRuns++
	}
	m.snap.AverageDuration = m.snap.TotalDuration / time.Duration(m.snap.TotalRuns)
	m.snap.LastTask = task
	m.snap.LastRun = time.Now()
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.snap
}

// SuccessRate returns the share of successful runs as a percentage.
func (s MetricsSnapshot) SuccessRate() float64 {
	if s.TotalRuns == 0 {
		return 0
	}
	return float64(s.SuccessfulRuns) / float64(s.TotalRuns) * 100
}

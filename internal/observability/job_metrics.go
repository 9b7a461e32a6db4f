package observability

import (
	"sync/atomic"
	"time"
)

// JobMetrics holds per-process worker counters, served on the worker's side
// port next to its health checks.
type JobMetrics struct {
	claimed      atomic.Uint64
	done         atomic.Uint64
	retried      atomic.Uint64
	deadLettered atomic.Uint64
	requeued     atomic.Uint64

	// nanoseconds
	durationCount atomic.Uint64
	durationTotal atomic.Int64
	durationMax   atomic.Int64
}

func NewJobMetrics() *JobMetrics {
	return &JobMetrics{}
}

func (m *JobMetrics) IncClaimed()         { m.claimed.Add(1) }
func (m *JobMetrics) IncDone()            { m.done.Add(1) }
func (m *JobMetrics) IncRetried()         { m.retried.Add(1) }
func (m *JobMetrics) IncDeadLettered()    { m.deadLettered.Add(1) }
func (m *JobMetrics) AddRequeued(n int64) { m.requeued.Add(uint64(max(n, 0))) }

func (m *JobMetrics) ObserveDuration(d time.Duration) {
	ns := d.Nanoseconds()
	m.durationCount.Add(1)
	m.durationTotal.Add(ns)

	for {
		curr := m.durationMax.Load()
		if ns <= curr {
			return
		}
		if m.durationMax.CompareAndSwap(curr, ns) {
			return
		}
	}
}

type JobMetricsSnapshot struct {
	Claimed           uint64 `json:"claimed"`
	Done              uint64 `json:"done"`
	Retried           uint64 `json:"retried"`
	DeadLettered      uint64 `json:"deadLettered"`
	RequeuedStale     uint64 `json:"requeuedStale"`
	DurationCount     uint64 `json:"durationCount"`
	AverageDurationMs int64  `json:"averageDurationMs"`
	MaxDurationMs     int64  `json:"maxDurationMs"`
}

func (m *JobMetrics) Snapshot() JobMetricsSnapshot {
	count := m.durationCount.Load()
	total := m.durationTotal.Load()

	var avg time.Duration
	if count > 0 {
		avg = time.Duration(total / int64(count))
	}

	return JobMetricsSnapshot{
		Claimed:           m.claimed.Load(),
		Done:              m.done.Load(),
		Retried:           m.retried.Load(),
		DeadLettered:      m.deadLettered.Load(),
		RequeuedStale:     m.requeued.Load(),
		DurationCount:     count,
		AverageDurationMs: avg.Milliseconds(),
		MaxDurationMs:     time.Duration(m.durationMax.Load()).Milliseconds(),
	}
}

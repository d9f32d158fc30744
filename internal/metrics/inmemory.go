package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	GraphRequests       map[string]uint64 // keyed by "endpoint:outcome"
	ReportsGenerated    map[string]uint64 // keyed by "source:outcome"
	ReportCacheHits     uint64
	ReportCacheMisses   uint64
	ReportsDegraded     uint64
	UnclassifiedActions int64
	SchedulerTicks      uint64
	SchedulerJobs       map[string]uint64 // keyed by status
	WebhookDeliveries   map[string]uint64 // keyed by outcome
}

var _ Recorder = (*InMemoryRecorder)(nil)

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu                sync.Mutex
	graphRequests     map[string]uint64
	reportsGenerated  map[string]uint64
	schedulerJobs     map[string]uint64
	webhookDeliveries map[string]uint64

	reportCacheHits     uint64
	reportCacheMisses   uint64
	reportsDegraded     uint64
	unclassifiedActions int64
	schedulerTicks      uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		graphRequests:     make(map[string]uint64),
		reportsGenerated:  make(map[string]uint64),
		schedulerJobs:     make(map[string]uint64),
		webhookDeliveries: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		GraphRequests:       copyCounts(m.graphRequests),
		ReportsGenerated:    copyCounts(m.reportsGenerated),
		ReportCacheHits:     atomic.LoadUint64(&m.reportCacheHits),
		ReportCacheMisses:   atomic.LoadUint64(&m.reportCacheMisses),
		ReportsDegraded:     atomic.LoadUint64(&m.reportsDegraded),
		UnclassifiedActions: atomic.LoadInt64(&m.unclassifiedActions),
		SchedulerTicks:      atomic.LoadUint64(&m.schedulerTicks),
		SchedulerJobs:       copyCounts(m.schedulerJobs),
		WebhookDeliveries:   copyCounts(m.webhookDeliveries),
	}
}

// ObserveGraphRequest counts an ads platform call.
func (m *InMemoryRecorder) ObserveGraphRequest(endpoint, outcome string, duration time.Duration) {
	m.inc(m.graphRequests, endpoint+":"+outcome)
}

// ObserveReportGenerated counts a report generation.
func (m *InMemoryRecorder) ObserveReportGenerated(source, outcome string, duration time.Duration) {
	m.inc(m.reportsGenerated, source+":"+outcome)
}

// IncReportCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncReportCacheHit() {
	atomic.AddUint64(&m.reportCacheHits, 1)
}

// IncReportCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncReportCacheMiss() {
	atomic.AddUint64(&m.reportCacheMisses, 1)
}

// IncReportDegraded counts a report with a defaulted field.
func (m *InMemoryRecorder) IncReportDegraded(field string) {
	atomic.AddUint64(&m.reportsDegraded, 1)
}

// AddUnclassifiedActions adds to the unclassified action total.
func (m *InMemoryRecorder) AddUnclassifiedActions(n int64) {
	atomic.AddInt64(&m.unclassifiedActions, n)
}

// ObserveSchedulerTick counts a tick.
func (m *InMemoryRecorder) ObserveSchedulerTick(duration time.Duration, active int) {
	atomic.AddUint64(&m.schedulerTicks, 1)
}

// IncSchedulerJob counts a processed job by status.
func (m *InMemoryRecorder) IncSchedulerJob(status string) {
	m.inc(m.schedulerJobs, status)
}

// ObserveWebhookDelivery counts a delivery attempt.
func (m *InMemoryRecorder) ObserveWebhookDelivery(outcome string, duration time.Duration) {
	m.inc(m.webhookDeliveries, outcome)
}

func (m *InMemoryRecorder) inc(counts map[string]uint64, key string) {
	m.mu.Lock()
	counts[key]++
	m.mu.Unlock()
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

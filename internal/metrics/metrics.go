// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Outcome labels shared by recorders.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Report sources.
const (
	SourceOnDemand  = "on_demand"
	SourceScheduled = "scheduled"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory.
type Recorder interface {
	// Ads platform calls
	ObserveGraphRequest(endpoint, outcome string, duration time.Duration)

	// Report generation
	ObserveReportGenerated(source, outcome string, duration time.Duration)
	IncReportCacheHit()
	IncReportCacheMiss()
	IncReportDegraded(field string)
	AddUnclassifiedActions(n int64)

	// Scheduler
	ObserveSchedulerTick(duration time.Duration, active int)
	IncSchedulerJob(status string)

	// Webhook delivery
	ObserveWebhookDelivery(outcome string, duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}

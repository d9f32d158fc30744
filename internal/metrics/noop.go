package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// ObserveGraphRequest is a no-op.
func (n *NoopRecorder) ObserveGraphRequest(endpoint, outcome string, duration time.Duration) {}

// ObserveReportGenerated is a no-op.
func (n *NoopRecorder) ObserveReportGenerated(source, outcome string, duration time.Duration) {}

// IncReportCacheHit is a no-op.
func (n *NoopRecorder) IncReportCacheHit() {}

// IncReportCacheMiss is a no-op.
func (n *NoopRecorder) IncReportCacheMiss() {}

// IncReportDegraded is a no-op.
func (n *NoopRecorder) IncReportDegraded(field string) {}

// AddUnclassifiedActions is a no-op.
func (n *NoopRecorder) AddUnclassifiedActions(count int64) {}

// ObserveSchedulerTick is a no-op.
func (n *NoopRecorder) ObserveSchedulerTick(duration time.Duration, active int) {}

// IncSchedulerJob is a no-op.
func (n *NoopRecorder) IncSchedulerJob(status string) {}

// ObserveWebhookDelivery is a no-op.
func (n *NoopRecorder) ObserveWebhookDelivery(outcome string, duration time.Duration) {}

package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncAdServed is a no-op.
func (n *NoopRecorder) IncAdServed() {}

// IncServeEmpty is a no-op.
func (n *NoopRecorder) IncServeEmpty() {}

// IncBotBlocked is a no-op.
func (n *NoopRecorder) IncBotBlocked() {}

// ObserveServeDuration is a no-op.
func (n *NoopRecorder) ObserveServeDuration(duration time.Duration) {}

// IncImpressionRecorded is a no-op.
func (n *NoopRecorder) IncImpressionRecorded() {}

// IncClickRecorded is a no-op.
func (n *NoopRecorder) IncClickRecorded() {}

// IncTrackingEventPublished is a no-op.
func (n *NoopRecorder) IncTrackingEventPublished(status string) {}

// IncTrackingEventProcessed is a no-op.
func (n *NoopRecorder) IncTrackingEventProcessed(status string) {}

// ObserveTrackingBatchSize is a no-op.
func (n *NoopRecorder) ObserveTrackingBatchSize(size int) {}

// ObserveTrackingBatchDuration is a no-op.
func (n *NoopRecorder) ObserveTrackingBatchDuration(duration time.Duration) {}

// SetTrackingQueueDepth is a no-op.
func (n *NoopRecorder) SetTrackingQueueDepth(depth int64) {}

// ObserveTrackingIngestLag is a no-op.
func (n *NoopRecorder) ObserveTrackingIngestLag(lag time.Duration) {}

// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Serve path metrics
	IncAdServed()
	IncServeEmpty()
	IncBotBlocked()
	ObserveServeDuration(duration time.Duration)

	// Recording metrics
	IncImpressionRecorded()
	IncClickRecorded()

	// Tracking pipeline metrics
	IncTrackingEventPublished(status string) // status: "success" or "dropped"
	IncTrackingEventProcessed(status string) // status: "success", "failed", "dead_lettered"
	ObserveTrackingBatchSize(size int)
	ObserveTrackingBatchDuration(duration time.Duration)
	SetTrackingQueueDepth(depth int64)
	ObserveTrackingIngestLag(lag time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}

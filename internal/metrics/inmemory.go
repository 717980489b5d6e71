package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	AdsServed            uint64
	ServesEmpty          uint64
	BotsBlocked          uint64
	ServeDurationCount   uint64
	ServeDurationTotalNs int64

	ImpressionsRecorded uint64
	ClicksRecorded      uint64

	TrackingEventsPublished        uint64
	TrackingEventsDropped          uint64
	TrackingEventsProcessed        uint64
	TrackingEventsProcessedFailed  uint64
	TrackingEventsDeadLettered     uint64
	TrackingBatchCount             uint64
	TrackingBatchDurationCount     uint64
	TrackingBatchDurationTotalNs   int64
	TrackingQueueDepth             int64
	TrackingIngestLagCount         uint64
	TrackingIngestLagTotalNs       int64
}

// InMemoryRecorder stores metrics in memory.
type InMemoryRecorder struct {
	adsServed            uint64
	servesEmpty          uint64
	botsBlocked          uint64
	serveDurationCount   uint64
	serveDurationTotalNs int64

	impressionsRecorded uint64
	clicksRecorded      uint64

	trackingEventsPublished       uint64
	trackingEventsDropped         uint64
	trackingEventsProcessed       uint64
	trackingEventsProcessedFailed uint64
	trackingEventsDeadLettered    uint64
	trackingBatchCount            uint64
	trackingBatchDurationCount    uint64
	trackingBatchDurationTotalNs  int64
	trackingQueueDepth            int64
	trackingIngestLagCount        uint64
	trackingIngestLagTotalNs      int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		AdsServed:            atomic.LoadUint64(&m.adsServed),
		ServesEmpty:          atomic.LoadUint64(&m.servesEmpty),
		BotsBlocked:          atomic.LoadUint64(&m.botsBlocked),
		ServeDurationCount:   atomic.LoadUint64(&m.serveDurationCount),
		ServeDurationTotalNs: atomic.LoadInt64(&m.serveDurationTotalNs),

		ImpressionsRecorded: atomic.LoadUint64(&m.impressionsRecorded),
		ClicksRecorded:      atomic.LoadUint64(&m.clicksRecorded),

		TrackingEventsPublished:       atomic.LoadUint64(&m.trackingEventsPublished),
		TrackingEventsDropped:         atomic.LoadUint64(&m.trackingEventsDropped),
		TrackingEventsProcessed:       atomic.LoadUint64(&m.trackingEventsProcessed),
		TrackingEventsProcessedFailed: atomic.LoadUint64(&m.trackingEventsProcessedFailed),
		TrackingEventsDeadLettered:    atomic.LoadUint64(&m.trackingEventsDeadLettered),
		TrackingBatchCount:            atomic.LoadUint64(&m.trackingBatchCount),
		TrackingBatchDurationCount:    atomic.LoadUint64(&m.trackingBatchDurationCount),
		TrackingBatchDurationTotalNs:  atomic.LoadInt64(&m.trackingBatchDurationTotalNs),
		TrackingQueueDepth:            atomic.LoadInt64(&m.trackingQueueDepth),
		TrackingIngestLagCount:        atomic.LoadUint64(&m.trackingIngestLagCount),
		TrackingIngestLagTotalNs:      atomic.LoadInt64(&m.trackingIngestLagTotalNs),
	}
}

// IncAdServed increments the served-ad counter.
func (m *InMemoryRecorder) IncAdServed() {
	atomic.AddUint64(&m.adsServed, 1)
}

// IncServeEmpty increments the empty-serve counter.
func (m *InMemoryRecorder) IncServeEmpty() {
	atomic.AddUint64(&m.servesEmpty, 1)
}

// IncBotBlocked increments the blocked-bot counter.
func (m *InMemoryRecorder) IncBotBlocked() {
	atomic.AddUint64(&m.botsBlocked, 1)
}

// ObserveServeDuration records serve request duration.
func (m *InMemoryRecorder) ObserveServeDuration(duration time.Duration) {
	atomic.AddUint64(&m.serveDurationCount, 1)
	atomic.AddInt64(&m.serveDurationTotalNs, duration.Nanoseconds())
}

// IncImpressionRecorded increments the impression counter.
func (m *InMemoryRecorder) IncImpressionRecorded() {
	atomic.AddUint64(&m.impressionsRecorded, 1)
}

// IncClickRecorded increments the click counter.
func (m *InMemoryRecorder) IncClickRecorded() {
	atomic.AddUint64(&m.clicksRecorded, 1)
}

// IncTrackingEventPublished increments publish counters by status.
func (m *InMemoryRecorder) IncTrackingEventPublished(status string) {
	switch status {
	case "success":
		atomic.AddUint64(&m.trackingEventsPublished, 1)
	case "dropped":
		atomic.AddUint64(&m.trackingEventsDropped, 1)
	}
}

// IncTrackingEventProcessed increments processed counters by status.
func (m *InMemoryRecorder) IncTrackingEventProcessed(status string) {
	switch status {
	case "success":
		atomic.AddUint64(&m.trackingEventsProcessed, 1)
	case "failed":
		atomic.AddUint64(&m.trackingEventsProcessedFailed, 1)
	case "dead_lettered":
		atomic.AddUint64(&m.trackingEventsDeadLettered, 1)
	}
}

// ObserveTrackingBatchSize counts processed batches.
func (m *InMemoryRecorder) ObserveTrackingBatchSize(size int) {
	atomic.AddUint64(&m.trackingBatchCount, 1)
}

// ObserveTrackingBatchDuration records batch processing duration.
func (m *InMemoryRecorder) ObserveTrackingBatchDuration(duration time.Duration) {
	atomic.AddUint64(&m.trackingBatchDurationCount, 1)
	atomic.AddInt64(&m.trackingBatchDurationTotalNs, duration.Nanoseconds())
}

// SetTrackingQueueDepth records the current stream backlog.
func (m *InMemoryRecorder) SetTrackingQueueDepth(depth int64) {
	atomic.StoreInt64(&m.trackingQueueDepth, depth)
}

// ObserveTrackingIngestLag records event-to-insert lag.
func (m *InMemoryRecorder) ObserveTrackingIngestLag(lag time.Duration) {
	atomic.AddUint64(&m.trackingIngestLagCount, 1)
	atomic.AddInt64(&m.trackingIngestLagTotalNs, lag.Nanoseconds())
}

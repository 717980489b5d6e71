package handler

import (
	"fmt"
	"net/http"

	"github.com/soundstage/adserve/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "adserve_ads_served_total %d\n", snap.AdsServed)
	writeMetric(w, "adserve_serves_empty_total %d\n", snap.ServesEmpty)
	writeMetric(w, "adserve_bots_blocked_total %d\n", snap.BotsBlocked)
	writeMetric(w, "adserve_serve_duration_seconds_count %d\n", snap.ServeDurationCount)
	writeMetric(w, "adserve_serve_duration_seconds_sum %.6f\n", float64(snap.ServeDurationTotalNs)/1e9)

	writeMetric(w, "adserve_impressions_recorded_total %d\n", snap.ImpressionsRecorded)
	writeMetric(w, "adserve_clicks_recorded_total %d\n", snap.ClicksRecorded)

	writeMetric(w, "adserve_tracking_events_published_total{status=\"success\"} %d\n", snap.TrackingEventsPublished)
	writeMetric(w, "adserve_tracking_events_published_total{status=\"dropped\"} %d\n", snap.TrackingEventsDropped)

	writeMetric(w, "adserve_tracking_events_processed_total{status=\"success\"} %d\n", snap.TrackingEventsProcessed)
	writeMetric(w, "adserve_tracking_events_processed_total{status=\"failed\"} %d\n", snap.TrackingEventsProcessedFailed)
	writeMetric(w, "adserve_tracking_events_processed_total{status=\"dead_lettered\"} %d\n", snap.TrackingEventsDeadLettered)

	writeMetric(w, "adserve_tracking_batches_total %d\n", snap.TrackingBatchCount)
	writeMetric(w, "adserve_tracking_queue_depth %d\n", snap.TrackingQueueDepth)
	writeMetric(w, "adserve_tracking_batch_duration_seconds_count %d\n", snap.TrackingBatchDurationCount)
	writeMetric(w, "adserve_tracking_batch_duration_seconds_sum %.6f\n", float64(snap.TrackingBatchDurationTotalNs)/1e9)
	writeMetric(w, "adserve_tracking_ingest_lag_seconds_count %d\n", snap.TrackingIngestLagCount)
	writeMetric(w, "adserve_tracking_ingest_lag_seconds_sum %.6f\n", float64(snap.TrackingIngestLagTotalNs)/1e9)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

// Package model defines domain entities for the application.
package model

import "time"

// EventType distinguishes impression and click events.
type EventType string

const (
	EventImpression EventType = "impression"
	EventClick      EventType = "click"
)

// IsValid checks if the event type is a recognized value.
func (t EventType) IsValid() bool {
	return t == EventImpression || t == EventClick
}

// AdEvent represents a single recorded impression or click.
type AdEvent struct {
	ID      string `json:"id"`       // ULID (time-sortable)
	EventID string `json:"event_id"` // Idempotency key (Redis stream ID)

	// Ad reference
	AdID      string    `json:"ad_id"`
	Type      EventType `json:"type"`
	Placement Placement `json:"placement"`

	// Request metadata
	PageURL    string `json:"page_url,omitempty"`    // Hosting page (truncated 500 chars)
	DeviceType string `json:"device_type,omitempty"` // desktop / mobile / tablet
	UserAgent  string `json:"user_agent,omitempty"`  // UA string (truncated 500 chars)

	// Privacy-safe viewer identification
	ViewerHash string `json:"viewer_hash"` // SHA256(IP + UA + daily_salt)[0:16]

	// Timestamps
	OccurredAt time.Time `json:"occurred_at"` // Event timestamp
	CreatedAt  time.Time `json:"created_at"`  // DB insertion time
}

// DailyAdStats represents pre-aggregated daily statistics for an ad.
type DailyAdStats struct {
	Date        time.Time `json:"date"` // UTC date (time component zeroed)
	AdID        string    `json:"ad_id"`
	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	UniqueViews int64     `json:"unique_viewers"`
}

// AdStatsSummary aggregates lifetime and windowed stats for an ad.
type AdStatsSummary struct {
	AdID             string         `json:"ad_id"`
	Title            string         `json:"title"`
	TotalImpressions int64          `json:"total_impressions"`
	TotalClicks      int64          `json:"total_clicks"`
	CTR              float64        `json:"ctr"` // clicks / impressions, 0 when no impressions
	Daily            []DailyAdStats `json:"daily,omitempty"`
	GeneratedAt      time.Time      `json:"generated_at"`
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/soundstage/adserve/internal/model"
)

// BulkInsertEvents inserts multiple ad events with idempotency via
// ON CONFLICT DO NOTHING on the stream-derived event_id.
func (r *Repository) BulkInsertEvents(ctx context.Context, events []*model.AdEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	query := `
		INSERT INTO ad_events (
			id, event_id, ad_id, event_type, placement, page_url,
			device_type, user_agent, viewer_hash, occurred_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`

	for _, event := range events {
		batch.Queue(query,
			event.ID,
			event.EventID,
			event.AdID,
			event.Type,
			event.Placement,
			nullableString(event.PageURL),
			nullableString(event.DeviceType),
			nullableString(event.UserAgent),
			event.ViewerHash,
			event.OccurredAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	// Check for errors in batch execution
	for i := 0; i < len(events); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert event %d: %w", i, err)
		}
	}

	return nil
}

// GetDailyStats aggregates per-day impression/click totals for an ad
// within a date range, newest first.
func (r *Repository) GetDailyStats(ctx context.Context, adID string, from, to time.Time) ([]model.DailyAdStats, error) {
	query := `
		SELECT date_trunc('day', occurred_at) AS day,
		       COUNT(*) FILTER (WHERE event_type = 'impression'),
		       COUNT(*) FILTER (WHERE event_type = 'click'),
		       COUNT(DISTINCT viewer_hash) FILTER (WHERE event_type = 'impression')
		FROM ad_events
		WHERE ad_id = $1 AND occurred_at >= $2 AND occurred_at < $3
		GROUP BY day
		ORDER BY day DESC
	`

	rows, err := r.pool.Query(ctx, query, adID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query daily stats: %w", err)
	}
	defer rows.Close()

	var stats []model.DailyAdStats
	for rows.Next() {
		stat := model.DailyAdStats{AdID: adID}
		if err := rows.Scan(&stat.Date, &stat.Impressions, &stat.Clicks, &stat.UniqueViews); err != nil {
			return nil, fmt.Errorf("scan daily stat: %w", err)
		}
		stats = append(stats, stat)
	}

	return stats, rows.Err()
}

// nullableString converts empty strings to nil for nullable columns.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/soundstage/adserve/internal/model"
)

// Common errors for ad repository operations.
var (
	ErrAdNotFound = errors.New("ad not found")
)

const adColumns = `id, title, description, image_url, target_url, advertiser,
	placement, size, priority, status, rotation_mode, frequency_cap,
	start_date, end_date, impression_count, click_count, created_at, updated_at`

// CreateAd inserts a new advertisement. Ads are provisioned by the
// platform's campaign tooling, not the serve path.
func (r *Repository) CreateAd(ctx context.Context, ad *model.Ad) error {
	if err := ad.Validate(); err != nil {
		return fmt.Errorf("invalid ad: %w", err)
	}

	query := `
		INSERT INTO advertisements (
			id, title, description, image_url, target_url, advertiser,
			placement, size, priority, status, rotation_mode, frequency_cap,
			start_date, end_date, impression_count, click_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	var rotationMode *string
	if ad.RotationMode != "" {
		mode := string(ad.RotationMode)
		rotationMode = &mode
	}

	_, err := r.pool.Exec(ctx, query,
		ad.ID,
		ad.Title,
		ad.Description,
		ad.ImageURL,
		ad.TargetURL,
		ad.Advertiser,
		ad.Placement,
		ad.Size,
		ad.Priority,
		ad.Status,
		rotationMode,
		ad.FrequencyCap,
		ad.StartDate,
		ad.EndDate,
		ad.ImpressionCount,
		ad.ClickCount,
		ad.CreatedAt,
		ad.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create ad: %w", err)
	}

	return nil
}

// ListServable retrieves all ads servable for a placement on the given
// date: servable status, start_date <= date <= end_date, ordered by
// priority descending. No limit: the rotation selector needs every
// candidate.
func (r *Repository) ListServable(ctx context.Context, placement model.Placement, date time.Time) ([]*model.Ad, error) {
	query := `
		SELECT ` + adColumns + `
		FROM advertisements
		WHERE placement = $1
		  AND status IN ('active', 'approved')
		  AND start_date <= $2
		  AND end_date >= $2
		ORDER BY priority DESC, created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, placement, date.Truncate(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to list servable ads: %w", err)
	}
	defer rows.Close()

	var ads []*model.Ad
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ad: %w", err)
		}
		ads = append(ads, ad)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ads: %w", err)
	}

	return ads, nil
}

// ListAdsByAdvertiser retrieves all ads owned by an advertiser,
// newest first. Backs the advertiser stats API.
func (r *Repository) ListAdsByAdvertiser(ctx context.Context, advertiser string) ([]*model.Ad, error) {
	query := `
		SELECT ` + adColumns + `
		FROM advertisements
		WHERE advertiser = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, advertiser)
	if err != nil {
		return nil, fmt.Errorf("failed to list advertiser ads: %w", err)
	}
	defer rows.Close()

	var ads []*model.Ad
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ad: %w", err)
		}
		ads = append(ads, ad)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ads: %w", err)
	}

	return ads, nil
}

// GetAdByID retrieves a single ad by its ID.
func (r *Repository) GetAdByID(ctx context.Context, id string) (*model.Ad, error) {
	query := `
		SELECT ` + adColumns + `
		FROM advertisements
		WHERE id = $1
	`

	ad, err := scanAd(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdNotFound
		}
		return nil, fmt.Errorf("failed to get ad by ID: %w", err)
	}

	return ad, nil
}

// ApplyCounterDeltas applies aggregated impression and click increments
// in a single transaction. Called from the tracking worker, never the
// serve path.
func (r *Repository) ApplyCounterDeltas(ctx context.Context, impressions, clicks map[string]int64) error {
	if len(impressions) == 0 && len(clicks) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin counter tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for adID, count := range impressions {
		_, err := tx.Exec(ctx,
			`UPDATE advertisements SET impression_count = impression_count + $2 WHERE id = $1`,
			adID, count,
		)
		if err != nil {
			return fmt.Errorf("increment impressions for %s: %w", adID, err)
		}
	}

	for adID, count := range clicks {
		_, err := tx.Exec(ctx,
			`UPDATE advertisements SET click_count = click_count + $2 WHERE id = $1`,
			adID, count,
		)
		if err != nil {
			return fmt.Errorf("increment clicks for %s: %w", adID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit counter tx: %w", err)
	}

	return nil
}

// scanAd scans a single row into an Ad model.
func scanAd(row pgx.Row) (*model.Ad, error) {
	var ad model.Ad
	var rotationMode *string
	err := row.Scan(
		&ad.ID,
		&ad.Title,
		&ad.Description,
		&ad.ImageURL,
		&ad.TargetURL,
		&ad.Advertiser,
		&ad.Placement,
		&ad.Size,
		&ad.Priority,
		&ad.Status,
		&rotationMode,
		&ad.FrequencyCap,
		&ad.StartDate,
		&ad.EndDate,
		&ad.ImpressionCount,
		&ad.ClickCount,
		&ad.CreatedAt,
		&ad.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if rotationMode != nil {
		ad.RotationMode = model.RotationMode(*rotationMode)
	}
	return &ad, nil
}

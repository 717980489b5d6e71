package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/soundstage/adserve/internal/model"
)

// ErrSettingNotFound indicates the named setting does not exist.
var ErrSettingNotFound = errors.New("setting not found")

// GetSetting retrieves a single site setting by name.
func (r *Repository) GetSetting(ctx context.Context, name string) (*model.SiteSetting, error) {
	query := `
		SELECT name, value, updated_at
		FROM site_settings
		WHERE name = $1
	`

	var setting model.SiteSetting
	err := r.pool.QueryRow(ctx, query, name).Scan(&setting.Name, &setting.Value, &setting.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingNotFound
		}
		return nil, fmt.Errorf("failed to get setting %s: %w", name, err)
	}

	return &setting, nil
}

// GetRotationIntervalSeconds returns the configured rotation interval.
// Any retrieval or parse failure falls back to the default: a broken
// settings row must never break ad serving.
func (r *Repository) GetRotationIntervalSeconds(ctx context.Context) int {
	setting, err := r.GetSetting(ctx, model.SettingRotationInterval)
	if err != nil {
		return model.DefaultRotationIntervalSeconds
	}

	seconds, err := strconv.Atoi(setting.Value)
	if err != nil || seconds <= 0 {
		return model.DefaultRotationIntervalSeconds
	}

	return seconds
}

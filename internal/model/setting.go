// Package model defines domain entities for the application.
package model

import "time"

// Site setting names used by the serving engine.
const (
	// SettingRotationInterval is the rotation interval in seconds.
	SettingRotationInterval = "ad_rotation_interval"
)

// DefaultRotationIntervalSeconds is used when the setting is missing
// or cannot be read.
const DefaultRotationIntervalSeconds = 10

// SiteSetting is a single named site-wide configuration value.
type SiteSetting struct {
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

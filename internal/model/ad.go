// Package model defines domain entities for the application.
package model

import (
	"fmt"
	"time"
)

// Placement identifies the page slot an ad may be served into.
type Placement string

const (
	PlacementHeader           Placement = "header"
	PlacementSidebar          Placement = "sidebar"
	PlacementEventPage        Placement = "event_page"
	PlacementMobileBanner     Placement = "mobile_banner"
	PlacementFooter           Placement = "footer"
	PlacementDirectoryListing Placement = "directory_listing"
	PlacementSearchResults    Placement = "search_results"
)

// ValidPlacements contains all recognized placement values.
var ValidPlacements = []Placement{
	PlacementHeader,
	PlacementSidebar,
	PlacementEventPage,
	PlacementMobileBanner,
	PlacementFooter,
	PlacementDirectoryListing,
	PlacementSearchResults,
}

// IsValid checks if the placement is a recognized value.
func (p Placement) IsValid() bool {
	for _, valid := range ValidPlacements {
		if p == valid {
			return true
		}
	}
	return false
}

// ParsePlacement converts a raw string into a Placement.
// Unknown values are a construction-time error, not a silent skip.
func ParsePlacement(raw string) (Placement, error) {
	p := Placement(raw)
	if !p.IsValid() {
		return "", fmt.Errorf("unknown placement %q", raw)
	}
	return p, nil
}

// AdSize is a declared creative size mapping to fixed pixel dimensions.
type AdSize string

const (
	SizeLeaderboard  AdSize = "leaderboard"   // 728x90
	SizeMediumRect   AdSize = "medium_rect"   // 300x250
	SizeWideSky      AdSize = "wide_sky"      // 160x600
	SizeMobileBanner AdSize = "mobile_banner" // 320x50
	SizeFullBanner   AdSize = "full_banner"   // 468x60
)

// Dimensions holds pixel width and height for a declared size.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

var sizeDimensions = map[AdSize]Dimensions{
	SizeLeaderboard:  {Width: 728, Height: 90},
	SizeMediumRect:   {Width: 300, Height: 250},
	SizeWideSky:      {Width: 160, Height: 600},
	SizeMobileBanner: {Width: 320, Height: 50},
	SizeFullBanner:   {Width: 468, Height: 60},
}

// IsValid checks if the size is a recognized value.
func (s AdSize) IsValid() bool {
	_, ok := sizeDimensions[s]
	return ok
}

// Dimensions returns the pixel dimensions for the size.
// The second return is false for unknown sizes; such ads are not rendered.
func (s AdSize) Dimensions() (Dimensions, bool) {
	d, ok := sizeDimensions[s]
	return d, ok
}

// AdStatus represents the moderation lifecycle state of an ad.
type AdStatus string

const (
	StatusPending  AdStatus = "pending"
	StatusActive   AdStatus = "active"
	StatusApproved AdStatus = "approved"
	StatusPaused   AdStatus = "paused"
	StatusRejected AdStatus = "rejected"
	StatusExpired  AdStatus = "expired"
)

// IsValid checks if the status is a recognized value.
func (s AdStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusApproved, StatusPaused, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// Servable returns true if the status allows the ad to be served.
func (s AdStatus) Servable() bool {
	return s == StatusActive || s == StatusApproved
}

// RotationMode selects how the next displayed ad is chosen.
type RotationMode string

const (
	// RotationTimer advances round-robin on each tick.
	RotationTimer RotationMode = "timer"
	// RotationPriority picks a weighted-random ad on each tick.
	RotationPriority RotationMode = "priority"
)

// IsValid checks if the rotation mode is a recognized value.
// The empty string is valid and means "no declared mode".
func (m RotationMode) IsValid() bool {
	return m == "" || m == RotationTimer || m == RotationPriority
}

// Ad represents one campaign creative eligible for a placement.
type Ad struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	ImageURL     string       `json:"image_url,omitempty"`
	TargetURL    string       `json:"target_url"`
	Advertiser   string       `json:"advertiser"`
	Placement    Placement    `json:"placement"`
	Size         AdSize       `json:"size"`
	Priority     int          `json:"priority"`
	Status       AdStatus     `json:"status"`
	RotationMode RotationMode `json:"rotation_mode,omitempty"`

	// FrequencyCap is the max impressions per viewer per calendar day.
	// 0 means unlimited.
	FrequencyCap int `json:"frequency_cap,omitempty"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	ImpressionCount int64 `json:"impression_count"`
	ClickCount      int64 `json:"click_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Weight returns the rotation weight for weighted-random selection.
// Every ad carries weight >= 1 so a zero-priority ad can still win a draw.
func (a *Ad) Weight() int {
	if a.Priority < 1 {
		return 1
	}
	return a.Priority
}

// ServableOn returns true if the ad may be served on the given date:
// servable status and start_date <= date <= end_date.
func (a *Ad) ServableOn(date time.Time) bool {
	if !a.Status.Servable() {
		return false
	}
	day := date.Truncate(24 * time.Hour)
	return !a.StartDate.After(date) && !day.After(a.EndDate)
}

// Validate checks the ad's closed fields at construction time.
func (a *Ad) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("ad id is required")
	}
	if !a.Placement.IsValid() {
		return fmt.Errorf("unknown placement %q", a.Placement)
	}
	if !a.Size.IsValid() {
		return fmt.Errorf("unknown size %q", a.Size)
	}
	if !a.Status.IsValid() {
		return fmt.Errorf("unknown status %q", a.Status)
	}
	if !a.RotationMode.IsValid() {
		return fmt.Errorf("unknown rotation mode %q", a.RotationMode)
	}
	if a.Priority < 0 {
		return fmt.Errorf("priority must be >= 0, got %d", a.Priority)
	}
	if a.FrequencyCap < 0 {
		return fmt.Errorf("frequency cap must be >= 0, got %d", a.FrequencyCap)
	}
	return nil
}

package model

import (
	"testing"
	"time"
)

func TestPlacement_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		placement Placement
		want      bool
	}{
		{"header", PlacementHeader, true},
		{"sidebar", PlacementSidebar, true},
		{"event page", PlacementEventPage, true},
		{"mobile banner", PlacementMobileBanner, true},
		{"footer", PlacementFooter, true},
		{"directory listing", PlacementDirectoryListing, true},
		{"search results", PlacementSearchResults, true},
		{"unknown", Placement("popup"), false},
		{"empty", Placement(""), false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.placement.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParsePlacement_Unknown(t *testing.T) {
	t.Parallel()

	if _, err := ParsePlacement("interstitial"); err == nil {
		t.Error("ParsePlacement should reject unknown values")
	}

	p, err := ParsePlacement("sidebar")
	if err != nil {
		t.Fatalf("ParsePlacement(sidebar) error = %v", err)
	}
	if p != PlacementSidebar {
		t.Errorf("ParsePlacement(sidebar) = %v, want %v", p, PlacementSidebar)
	}
}

func TestAdSize_Dimensions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		size   AdSize
		width  int
		height int
		ok     bool
	}{
		{"leaderboard", SizeLeaderboard, 728, 90, true},
		{"medium rect", SizeMediumRect, 300, 250, true},
		{"wide sky", SizeWideSky, 160, 600, true},
		{"mobile banner", SizeMobileBanner, 320, 50, true},
		{"full banner", SizeFullBanner, 468, 60, true},
		{"unknown", AdSize("billboard"), 0, 0, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d, ok := tt.size.Dimensions()
			if ok != tt.ok {
				t.Fatalf("Dimensions() ok = %v, want %v", ok, tt.ok)
			}
			if d.Width != tt.width || d.Height != tt.height {
				t.Errorf("Dimensions() = %dx%d, want %dx%d", d.Width, d.Height, tt.width, tt.height)
			}
		})
	}
}

func TestAdStatus_Servable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status AdStatus
		want   bool
	}{
		{StatusActive, true},
		{StatusApproved, true},
		{StatusPending, false},
		{StatusPaused, false},
		{StatusRejected, false},
		{StatusExpired, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()

			if got := tt.status.Servable(); got != tt.want {
				t.Errorf("Servable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAd_Weight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		priority int
		want     int
	}{
		{"default priority", 1, 1},
		{"high priority", 5, 5},
		{"zero priority floors to one", 0, 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ad := &Ad{Priority: tt.priority}
			if got := ad.Weight(); got != tt.want {
				t.Errorf("Weight() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAd_ServableOn(t *testing.T) {
	t.Parallel()

	today := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		ad    Ad
		want  bool
	}{
		{
			name: "active within window",
			ad: Ad{
				Status:    StatusActive,
				StartDate: today.AddDate(0, 0, -5),
				EndDate:   today.AddDate(0, 0, 5),
			},
			want: true,
		},
		{
			name: "approved on end date",
			ad: Ad{
				Status:    StatusApproved,
				StartDate: today.AddDate(0, 0, -5),
				EndDate:   today.Truncate(24 * time.Hour),
			},
			want: true,
		},
		{
			name: "not yet started",
			ad: Ad{
				Status:    StatusActive,
				StartDate: today.AddDate(0, 0, 1),
				EndDate:   today.AddDate(0, 0, 10),
			},
			want: false,
		},
		{
			name: "already ended",
			ad: Ad{
				Status:    StatusActive,
				StartDate: today.AddDate(0, 0, -10),
				EndDate:   today.AddDate(0, 0, -1),
			},
			want: false,
		},
		{
			name: "paused within window",
			ad: Ad{
				Status:    StatusPaused,
				StartDate: today.AddDate(0, 0, -5),
				EndDate:   today.AddDate(0, 0, 5),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.ad.ServableOn(today); got != tt.want {
				t.Errorf("ServableOn() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAd_Validate(t *testing.T) {
	t.Parallel()

	valid := Ad{
		ID:        "ad-1",
		Placement: PlacementSidebar,
		Size:      SizeMediumRect,
		Status:    StatusActive,
		Priority:  1,
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() on valid ad = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Ad)
	}{
		{"missing id", func(a *Ad) { a.ID = "" }},
		{"unknown placement", func(a *Ad) { a.Placement = "popup" }},
		{"unknown size", func(a *Ad) { a.Size = "billboard" }},
		{"unknown status", func(a *Ad) { a.Status = "draft" }},
		{"unknown rotation mode", func(a *Ad) { a.RotationMode = "random" }},
		{"negative priority", func(a *Ad) { a.Priority = -1 }},
		{"negative cap", func(a *Ad) { a.FrequencyCap = -2 }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ad := valid
			tt.mutate(&ad)
			if err := ad.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

package tracking

import (
	"testing"
	"time"

	"github.com/soundstage/adserve/internal/model"
)

func TestGenerateViewerHash_Deterministic(t *testing.T) {
	t.Parallel()

	ip := "192.168.1.100"
	userAgent := "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
	at := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	hash1 := GenerateViewerHash("", ip, userAgent, at)
	hash2 := GenerateViewerHash("", ip, userAgent, at)

	if hash1 != hash2 {
		t.Error("Same inputs should produce same hash")
	}

	// Hash should be 16 hex chars
	if len(hash1) != 16 {
		t.Errorf("Hash length = %d, want 16", len(hash1))
	}
}

func TestGenerateViewerHash_DailyRotation(t *testing.T) {
	t.Parallel()

	ip := "192.168.1.100"
	userAgent := "Mozilla/5.0"

	day1 := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 16, 12, 0, 0, 0, time.UTC) // Next day

	hash1 := GenerateViewerHash("", ip, userAgent, day1)
	hash2 := GenerateViewerHash("", ip, userAgent, day2)

	if hash1 == hash2 {
		t.Error("Different days should produce different hashes to prevent cross-day tracking")
	}
}

func TestGenerateViewerHash_SameDayDifferentTime(t *testing.T) {
	t.Parallel()

	ip := "192.168.1.100"
	userAgent := "Mozilla/5.0"

	morning := time.Date(2026, 8, 15, 6, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 8, 15, 18, 0, 0, 0, time.UTC)

	hash1 := GenerateViewerHash("", ip, userAgent, morning)
	hash2 := GenerateViewerHash("", ip, userAgent, evening)

	if hash1 != hash2 {
		t.Error("Same day should produce same hash regardless of time")
	}
}

func TestGenerateViewerHash_SecretChangesHash(t *testing.T) {
	t.Parallel()

	ip := "192.168.1.100"
	userAgent := "Mozilla/5.0"
	at := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	withSecret := GenerateViewerHash("deployment-secret", ip, userAgent, at)
	withOther := GenerateViewerHash("other-secret", ip, userAgent, at)
	withDefault := GenerateViewerHash("", ip, userAgent, at)

	if withSecret == withOther {
		t.Error("Different secrets should produce different hashes")
	}
	if withSecret == withDefault {
		t.Error("Configured secret should produce a different hash than the default")
	}
	if len(withSecret) != 16 {
		t.Errorf("Hash length = %d, want 16", len(withSecret))
	}
}

func TestNewImpressionPayload(t *testing.T) {
	t.Parallel()

	ad := &model.Ad{
		ID:        "ad-1",
		Placement: model.PlacementSidebar,
	}
	at := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	payload := NewImpressionPayload(ad, "https://example.com/events", "desktop", "Mozilla/5.0", "0123456789abcdef", at)

	if payload.Type != "impression" {
		t.Errorf("Type = %q, want impression", payload.Type)
	}
	if payload.AdID != "ad-1" {
		t.Errorf("AdID = %q, want ad-1", payload.AdID)
	}
	if payload.Placement != "sidebar" {
		t.Errorf("Placement = %q, want sidebar", payload.Placement)
	}
	if payload.OccurredAt != at.UnixMilli() {
		t.Errorf("OccurredAt = %d, want %d", payload.OccurredAt, at.UnixMilli())
	}
	if err := ValidateAdEventPayload(payload); err != nil {
		t.Errorf("built payload should validate, got %v", err)
	}
}

func TestNewClickPayload(t *testing.T) {
	t.Parallel()

	ad := &model.Ad{
		ID:        "ad-2",
		Placement: model.PlacementHeader,
	}
	at := time.Now()

	payload := NewClickPayload(ad, "https://example.com", "mobile", "Mozilla/5.0", "0123456789abcdef", at)

	if payload.Type != "click" {
		t.Errorf("Type = %q, want click", payload.Type)
	}
	if err := ValidateAdEventPayload(payload); err != nil {
		t.Errorf("built payload should validate, got %v", err)
	}
}

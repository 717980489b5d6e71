package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/soundstage/adserve/internal/frequency"
	"github.com/soundstage/adserve/internal/model"
	"github.com/soundstage/adserve/internal/repository"
	"github.com/soundstage/adserve/internal/serving"
)

const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// stubAdSource serves a fixed ad list per placement.
type stubAdSource struct {
	ads map[model.Placement][]*model.Ad
}

func (s *stubAdSource) ListServable(ctx context.Context, placement model.Placement, date time.Time) ([]*model.Ad, error) {
	return s.ads[placement], nil
}

func (s *stubAdSource) GetAdByID(ctx context.Context, id string) (*model.Ad, error) {
	for _, ads := range s.ads {
		for _, ad := range ads {
			if ad.ID == id {
				return ad, nil
			}
		}
	}
	return nil, repository.ErrAdNotFound
}

func (s *stubAdSource) GetRotationIntervalSeconds(ctx context.Context) int {
	return 8
}

func sidebarAd(id string) *model.Ad {
	now := time.Now().UTC()
	return &model.Ad{
		ID:         id,
		Title:      "Summer Bass Nationals",
		ImageURL:   "https://cdn.example.com/" + id + ".png",
		TargetURL:  "https://basshaven.example.com/promo",
		Advertiser: "Bass Haven Audio",
		Placement:  model.PlacementSidebar,
		Size:       model.SizeMediumRect,
		Status:     model.StatusActive,
		StartDate:  now.AddDate(0, 0, -1),
		EndDate:    now.AddDate(0, 0, 7),
	}
}

func newServeTestService(t *testing.T, source *stubAdSource) *serving.AdService {
	t.Helper()

	svc := serving.NewAdService(serving.AdServiceConfig{
		Repo:      source,
		Frequency: frequency.NewStore(frequency.NewMemoryKV()),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(svc.Sessions().Shutdown)
	return svc
}

func TestServeHandler_ReturnsAd(t *testing.T) {
	source := &stubAdSource{ads: map[model.Placement][]*model.Ad{
		model.PlacementSidebar: {sidebarAd("ad-1")},
	}}
	h := NewServeHandler(newServeTestService(t, source), slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/serve?placement=sidebar", nil)
	req.Header.Set("User-Agent", browserUA)
	rec := httptest.NewRecorder()

	h.Serve(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	if cc := rec.Header().Get("Cache-Control"); cc != "private, no-store" {
		t.Errorf("expected no-store Cache-Control, got %q", cc)
	}

	var response ServeResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(response.Ads) != 1 {
		t.Fatalf("expected 1 ad, got %d", len(response.Ads))
	}

	ad := response.Ads[0]
	if ad.ID != "ad-1" {
		t.Errorf("unexpected ad id: %s", ad.ID)
	}
	if ad.ClickURL != "/ads/ad-1/click" {
		t.Errorf("unexpected click url: %s", ad.ClickURL)
	}
	if ad.Width != 300 || ad.Height != 250 {
		t.Errorf("expected 300x250, got %dx%d", ad.Width, ad.Height)
	}
}

func TestServeHandler_InvalidPlacement(t *testing.T) {
	source := &stubAdSource{ads: map[model.Placement][]*model.Ad{}}
	h := NewServeHandler(newServeTestService(t, source), slog.New(slog.NewTextHandler(io.Discard, nil)))

	for _, raw := range []string{"", "popup", "side bar"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/serve?placement="+url.QueryEscape(raw), nil)
		req.Header.Set("User-Agent", browserUA)
		rec := httptest.NewRecorder()

		h.Serve(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("placement %q: expected status 400, got %d", raw, rec.Code)
		}

		var response ErrorResponse
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Code != "INVALID_PLACEMENT" {
			t.Errorf("placement %q: unexpected error code %s", raw, response.Code)
		}
	}
}

func TestServeHandler_EmptyPlacementIsOK(t *testing.T) {
	source := &stubAdSource{ads: map[model.Placement][]*model.Ad{}}
	h := NewServeHandler(newServeTestService(t, source), slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/serve?placement=footer", nil)
	req.Header.Set("User-Agent", browserUA)
	rec := httptest.NewRecorder()

	h.Serve(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var response ServeResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(response.Ads) != 0 {
		t.Errorf("expected no ads, got %d", len(response.Ads))
	}
}

func TestServeHandler_BotGetsEmptyResponse(t *testing.T) {
	source := &stubAdSource{ads: map[model.Placement][]*model.Ad{
		model.PlacementSidebar: {sidebarAd("ad-1")},
	}}
	h := NewServeHandler(newServeTestService(t, source), slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/serve?placement=sidebar", nil)
	req.Header.Set("User-Agent", "Googlebot/2.1 (+http://www.google.com/bot.html)")
	rec := httptest.NewRecorder()

	h.Serve(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var response ServeResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(response.Ads) != 0 {
		t.Errorf("expected no ads for a bot, got %d", len(response.Ads))
	}
}

func TestServeHandler_MaxParamReturnsMultiple(t *testing.T) {
	source := &stubAdSource{ads: map[model.Placement][]*model.Ad{
		model.PlacementSidebar: {sidebarAd("ad-1"), sidebarAd("ad-2"), sidebarAd("ad-3")},
	}}
	h := NewServeHandler(newServeTestService(t, source), slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/serve?placement=sidebar&max=3", nil)
	req.Header.Set("User-Agent", browserUA)
	rec := httptest.NewRecorder()

	h.Serve(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var response ServeResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(response.Ads) != 3 {
		t.Errorf("expected 3 ads, got %d", len(response.Ads))
	}
}

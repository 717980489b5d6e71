package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/soundstage/adserve/internal/model"
)

func newClickRouter(t *testing.T, source *stubAdSource) *chi.Mux {
	t.Helper()

	h := NewClickHandler(newServeTestService(t, source), slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Get("/ads/{adID}/click", h.Click)
	return r
}

func TestClickHandler_Redirects(t *testing.T) {
	source := &stubAdSource{ads: map[model.Placement][]*model.Ad{
		model.PlacementSidebar: {sidebarAd("ad-1")},
	}}
	r := newClickRouter(t, source)

	req := httptest.NewRequest(http.MethodGet, "/ads/ad-1/click", nil)
	req.Header.Set("User-Agent", browserUA)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected status 302, got %d", rec.Code)
	}

	location := rec.Header().Get("Location")
	if location != "https://basshaven.example.com/promo" {
		t.Errorf("unexpected redirect target: %s", location)
	}

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected nosniff header on redirect")
	}
}

func TestClickHandler_UnknownAd(t *testing.T) {
	source := &stubAdSource{ads: map[model.Placement][]*model.Ad{}}
	r := newClickRouter(t, source)

	req := httptest.NewRequest(http.MethodGet, "/ads/missing/click", nil)
	req.Header.Set("User-Agent", browserUA)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var response ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Code != "AD_NOT_FOUND" {
		t.Errorf("unexpected error code: %s", response.Code)
	}
}

func TestClickHandler_BotStillRedirects(t *testing.T) {
	source := &stubAdSource{ads: map[model.Placement][]*model.Ad{
		model.PlacementSidebar: {sidebarAd("ad-1")},
	}}
	r := newClickRouter(t, source)

	req := httptest.NewRequest(http.MethodGet, "/ads/ad-1/click", nil)
	req.Header.Set("User-Agent", "curl/8.0.1")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	// A bot click is not tracked, but the redirect still happens.
	if rec.Code != http.StatusFound {
		t.Fatalf("expected status 302, got %d", rec.Code)
	}
}

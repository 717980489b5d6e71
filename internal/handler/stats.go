package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/soundstage/adserve/internal/auth"
	"github.com/soundstage/adserve/internal/model"
	"github.com/soundstage/adserve/internal/repository"
)

// StatsSource provides the reads backing the reporting API.
// Implemented by repository.Repository.
type StatsSource interface {
	ListAdsByAdvertiser(ctx context.Context, advertiser string) ([]*model.Ad, error)
	GetAdByID(ctx context.Context, id string) (*model.Ad, error)
	GetDailyStats(ctx context.Context, adID string, from, to time.Time) ([]model.DailyAdStats, error)
}

// StatsHandler handles advertiser reporting API requests.
type StatsHandler struct {
	repo   StatsSource
	logger *slog.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(repo StatsSource, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		repo:   repo,
		logger: logger.With("component", "handler.stats"),
	}
}

// AdListItem is one ad in the advertiser's campaign list.
type AdListItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Placement   string    `json:"placement"`
	Status      string    `json:"status"`
	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
}

// ListAds handles GET /api/v1/stats/ads.
// Returns the authenticated advertiser's campaigns with lifetime counters.
func (h *StatsHandler) ListAds(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustAuthFromContext(r.Context())

	ads, err := h.repo.ListAdsByAdvertiser(r.Context(), authCtx.Advertiser)
	if err != nil {
		h.logger.Error("failed to list advertiser ads",
			"advertiser", authCtx.Advertiser,
			"error", err,
		)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch ads")
		return
	}

	items := make([]AdListItem, 0, len(ads))
	for _, ad := range ads {
		items = append(items, AdListItem{
			ID:          ad.ID,
			Title:       ad.Title,
			Placement:   string(ad.Placement),
			Status:      string(ad.Status),
			Impressions: ad.ImpressionCount,
			Clicks:      ad.ClickCount,
			StartDate:   ad.StartDate,
			EndDate:     ad.EndDate,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"ads": items})
}

// GetAdStats handles GET /api/v1/stats/ads/{adID}.
// Returns lifetime totals plus a daily breakdown for the date range.
func (h *StatsHandler) GetAdStats(w http.ResponseWriter, r *http.Request) {
	adID := chi.URLParam(r, "adID")
	if adID == "" {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Ad ID is required")
		return
	}

	authCtx := auth.MustAuthFromContext(r.Context())

	ad, err := h.repo.GetAdByID(r.Context(), adID)
	if err != nil {
		if errors.Is(err, repository.ErrAdNotFound) {
			h.writeError(w, http.StatusNotFound, "AD_NOT_FOUND", "Ad not found")
			return
		}
		h.logger.Error("failed to get ad", "ad_id", adID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch stats")
		return
	}

	// Advertisers only see their own campaigns; admin keys see all.
	if ad.Advertiser != authCtx.Advertiser && !slices.Contains(authCtx.Scopes, model.ScopeAdmin) {
		// 404 rather than 403: don't reveal other advertisers' ad IDs.
		h.writeError(w, http.StatusNotFound, "AD_NOT_FOUND", "Ad not found")
		return
	}

	from, to := h.parseTimeRange(r)

	daily, err := h.repo.GetDailyStats(r.Context(), adID, from, to)
	if err != nil {
		h.logger.Error("failed to get daily stats", "ad_id", adID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch stats")
		return
	}

	summary := model.AdStatsSummary{
		AdID:             ad.ID,
		Title:            ad.Title,
		TotalImpressions: ad.ImpressionCount,
		TotalClicks:      ad.ClickCount,
		Daily:            daily,
		GeneratedAt:      time.Now().UTC(),
	}
	if summary.TotalImpressions > 0 {
		summary.CTR = float64(summary.TotalClicks) / float64(summary.TotalImpressions)
	}

	writeJSON(w, http.StatusOK, summary)
}

// parseTimeRange extracts from/to dates from query params.
// Defaults to the trailing 7 days.
func (h *StatsHandler) parseTimeRange(r *http.Request) (time.Time, time.Time) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -7)
	to := now

	if raw := r.URL.Query().Get("from"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			from = parsed
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			// Inclusive end date
			to = parsed.AddDate(0, 0, 1)
		}
	}

	return from, to
}

func (h *StatsHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

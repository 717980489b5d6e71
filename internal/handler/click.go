package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/soundstage/adserve/internal/serving"
)

// ClickHandler handles ad click-through requests.
type ClickHandler struct {
	svc    *serving.AdService
	logger *slog.Logger
}

// NewClickHandler creates a new ClickHandler.
func NewClickHandler(svc *serving.AdService, logger *slog.Logger) *ClickHandler {
	return &ClickHandler{
		svc:    svc,
		logger: logger.With("component", "handler.click"),
	}
}

// Click handles GET /ads/{adID}/click.
//
// The click is recorded fire-and-forget and the viewer is redirected
// to the advertiser regardless of the ad's current status. Tracking
// failures never block the redirect.
func (h *ClickHandler) Click(w http.ResponseWriter, r *http.Request) {
	adID := chi.URLParam(r, "adID")
	if adID == "" {
		h.writeError(w, http.StatusNotFound, "AD_NOT_FOUND", "Ad not found")
		return
	}

	pageURL := r.URL.Query().Get("page")
	if pageURL == "" {
		pageURL = r.Header.Get("Referer")
	}

	start := time.Now()

	target, err := h.svc.Click(r.Context(), serving.ClickInput{
		AdID:      adID,
		PageURL:   pageURL,
		UserAgent: r.Header.Get("User-Agent"),
		ClientIP:  getClientIP(r),
	})
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, serving.ErrAdNotFound) {
			h.logger.Info("click_not_found",
				"ad_id", adID,
				"duration_ms", float64(duration.Microseconds())/1000,
			)
			h.writeError(w, http.StatusNotFound, "AD_NOT_FOUND", "Ad not found")
			return
		}

		h.logger.Error("click_error",
			"ad_id", adID,
			"error", err,
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	h.logger.Info("click_redirect",
		"ad_id", adID,
		"duration_ms", float64(duration.Microseconds())/1000,
	)

	// Set security headers
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Cache-Control", "private, max-age=0")

	http.Redirect(w, r, target, http.StatusFound)
}

// writeError writes a JSON error response for click failures.
func (h *ClickHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	// Set security headers even on errors
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=0")

	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

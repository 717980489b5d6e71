package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/soundstage/adserve/internal/model"
	"github.com/soundstage/adserve/internal/serving"
)

// debugBypassCaps is the query value that disables frequency capping
// for one request. Operator tooling only; it never persists counters.
const debugBypassCaps = "bypass-caps"

// ServeHandler handles ad serve requests.
type ServeHandler struct {
	svc    *serving.AdService
	logger *slog.Logger
}

// NewServeHandler creates a new ServeHandler.
func NewServeHandler(svc *serving.AdService, logger *slog.Logger) *ServeHandler {
	return &ServeHandler{
		svc:    svc,
		logger: logger.With("component", "handler.serve"),
	}
}

// ServedAdResponse is one ad in a serve response.
type ServedAdResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url"`
	ClickURL    string `json:"click_url"`
	Advertiser  string `json:"advertiser"`
	Size        string `json:"size"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// ServeResponse is the serve endpoint envelope. An empty Ads slice is
// a normal response, not an error.
type ServeResponse struct {
	Ads  []ServedAdResponse `json:"ads"`
	Mode string             `json:"mode,omitempty"`
}

// Serve handles GET /api/v1/serve.
//
// Query parameters:
//   - placement: required, the slot to fill
//   - max: optional, number of ads for multi-slot placements
//   - page: optional, the hosting page URL (falls back to Referer)
//   - debug: optional, "bypass-caps" disables frequency capping
func (h *ServeHandler) Serve(w http.ResponseWriter, r *http.Request) {
	placement, err := model.ParsePlacement(r.URL.Query().Get("placement"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_PLACEMENT", "Unknown or missing placement")
		return
	}

	maxAds := 1
	if raw := r.URL.Query().Get("max"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			maxAds = parsed
		}
	}

	pageURL := r.URL.Query().Get("page")
	if pageURL == "" {
		pageURL = r.Header.Get("Referer")
	}

	input := serving.ServeInput{
		Placement:  placement,
		PageURL:    pageURL,
		UserAgent:  r.Header.Get("User-Agent"),
		ClientIP:   getClientIP(r),
		MaxAds:     maxAds,
		BypassCaps: r.URL.Query().Get("debug") == debugBypassCaps,
	}

	start := time.Now()
	out, err := h.svc.Serve(r.Context(), input)
	if err != nil {
		if err == serving.ErrInvalidPlacement {
			h.writeError(w, http.StatusBadRequest, "INVALID_PLACEMENT", "Unknown or missing placement")
			return
		}
		// Serving degrades to empty rather than erroring the page.
		h.logger.Error("serve_error",
			"placement", placement,
			"error", err,
			"duration_ms", float64(time.Since(start).Microseconds())/1000,
		)
		writeJSON(w, http.StatusOK, ServeResponse{Ads: []ServedAdResponse{}})
		return
	}

	response := ServeResponse{
		Ads:  make([]ServedAdResponse, 0, len(out.Ads)),
		Mode: string(out.Mode),
	}
	for _, served := range out.Ads {
		response.Ads = append(response.Ads, ServedAdResponse{
			ID:          served.Ad.ID,
			Title:       served.Ad.Title,
			Description: served.Ad.Description,
			ImageURL:    served.Ad.ImageURL,
			ClickURL:    "/ads/" + served.Ad.ID + "/click",
			Advertiser:  served.Ad.Advertiser,
			Size:        string(served.Ad.Size),
			Width:       served.Width,
			Height:      served.Height,
		})
	}

	// Per-viewer responses must never be cached by intermediaries.
	w.Header().Set("Cache-Control", "private, no-store")

	writeJSON(w, http.StatusOK, response)
}

func (h *ServeHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

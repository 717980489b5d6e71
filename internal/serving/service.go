// Package serving implements the ad selection pipeline: bot gating,
// candidate fetch, frequency cap filtering, and rotation.
package serving

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/soundstage/adserve/internal/cache"
	"github.com/soundstage/adserve/internal/frequency"
	"github.com/soundstage/adserve/internal/metrics"
	"github.com/soundstage/adserve/internal/model"
	"github.com/soundstage/adserve/internal/repository"
	"github.com/soundstage/adserve/internal/rotation"
	"github.com/soundstage/adserve/internal/tracking"
	"github.com/soundstage/adserve/internal/traffic"
)

// Service errors.
var (
	ErrAdNotFound       = errors.New("ad not found")
	ErrInvalidPlacement = errors.New("invalid placement")
)

const (
	// maxAdsCeiling bounds the multi-slot request size.
	maxAdsCeiling = 10

	// recordTimeout bounds background impression recording.
	recordTimeout = 2 * time.Second
)

// AdSource provides ad and settings reads. Implemented by
// repository.Repository.
type AdSource interface {
	ListServable(ctx context.Context, placement model.Placement, date time.Time) ([]*model.Ad, error)
	GetAdByID(ctx context.Context, id string) (*model.Ad, error)
	GetRotationIntervalSeconds(ctx context.Context) int
}

// AdCache provides the serve-path read cache. Implemented by
// cache.Cache. Nil disables caching.
type AdCache interface {
	GetServableAds(ctx context.Context, placement model.Placement) ([]*model.Ad, error)
	SetServableAds(ctx context.Context, placement model.Placement, ads []*model.Ad) error
	IsNegativelyCached(ctx context.Context, placement model.Placement) (bool, error)
	SetNegativeCache(ctx context.Context, placement model.Placement) error
	GetRotationInterval(ctx context.Context) (int, error)
	SetRotationInterval(ctx context.Context, seconds int) error
}

// EventPublisher enqueues tracking events. Implemented by
// tracking.Publisher. Nil disables tracking.
type EventPublisher interface {
	PublishAsync(event tracking.AdEventPayload)
}

// AdService handles ad serving business logic.
type AdService struct {
	repo      AdSource
	cache     AdCache
	freq      *frequency.Store
	publisher EventPublisher
	sessions  *SessionManager
	metrics    metrics.Recorder
	logger     *slog.Logger
	settle     time.Duration
	hashSecret string
	now        func() time.Time
}

// AdServiceConfig holds dependencies for NewAdService.
type AdServiceConfig struct {
	Repo      AdSource
	Cache     AdCache
	Frequency *frequency.Store
	Publisher EventPublisher
	Sessions  *SessionManager
	Metrics   metrics.Recorder
	Logger    *slog.Logger
	// SettleDelay is how long an ad must stay current before its
	// impression counts. Zero uses DefaultSettleDelay.
	SettleDelay time.Duration
	// ViewerHashSecret seeds the daily viewer-hash salt. Empty uses a
	// fixed default.
	ViewerHashSecret string
}

// NewAdService creates a new AdService.
func NewAdService(cfg AdServiceConfig) *AdService {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.Sessions == nil {
		cfg.Sessions = NewSessionManager(DefaultIdleTTL, nil)
	}
	return &AdService{
		repo:       cfg.Repo,
		cache:      cfg.Cache,
		freq:       cfg.Frequency,
		publisher:  cfg.Publisher,
		sessions:   cfg.Sessions,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With("component", "serving"),
		settle:     cfg.SettleDelay,
		hashSecret: cfg.ViewerHashSecret,
		now:        time.Now,
	}
}

// SetNow overrides the clock. Used by tests.
func (s *AdService) SetNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Sessions returns the session manager, for shutdown wiring.
func (s *AdService) Sessions() *SessionManager {
	return s.sessions
}

// ServeInput defines one serve request.
type ServeInput struct {
	Placement  model.Placement
	PageURL    string
	UserAgent  string
	ClientIP   string
	MaxAds     int
	BypassCaps bool
}

// ServedAd pairs an ad with its rendered pixel dimensions.
type ServedAd struct {
	Ad     *model.Ad
	Width  int
	Height int
}

// ServeOutput is the result of a serve request. Empty Ads with a nil
// error means nothing to show; the caller responds 200 with no ad.
type ServeOutput struct {
	Ads        []ServedAd
	Mode       model.RotationMode
	ViewerHash string
}

// Serve runs the selection pipeline for one request.
//
// The pipeline never fails the viewer: every internal error degrades to
// an empty response. Bots get the empty response before any work.
func (s *AdService) Serve(ctx context.Context, input ServeInput) (*ServeOutput, error) {
	start := s.now()
	defer func() {
		s.metrics.ObserveServeDuration(time.Since(start))
	}()

	if !input.Placement.IsValid() {
		return nil, ErrInvalidPlacement
	}

	// Bot gate runs before any fetch. An empty user agent is a bot.
	if traffic.IsBot(input.UserAgent) {
		s.metrics.IncBotBlocked()
		return &ServeOutput{}, nil
	}

	viewerHash := tracking.GenerateViewerHash(s.hashSecret, input.ClientIP, input.UserAgent, s.now())

	ads := s.servableAds(ctx, input.Placement)
	if len(ads) == 0 {
		s.metrics.IncServeEmpty()
		return &ServeOutput{ViewerHash: viewerHash}, nil
	}

	counters, err := s.freq.Load(ctx, viewerHash)
	if err != nil {
		// Fail open: a broken counter store must not blank the placement.
		s.logger.Warn("frequency counters unavailable",
			"viewer_hash", viewerHash,
			"error", err,
		)
		counters = frequency.Counters{}
	}

	eligible := s.freq.Filter(ads, counters, input.BypassCaps)
	if len(eligible) == 0 {
		s.metrics.IncServeEmpty()
		return &ServeOutput{ViewerHash: viewerHash}, nil
	}

	meta := s.requestMeta(input)

	if input.MaxAds > 1 {
		return s.serveMulti(ctx, input, eligible, viewerHash, counters, meta), nil
	}

	return s.serveRotated(ctx, input, eligible, viewerHash, meta), nil
}

// serveRotated returns the single ad currently in rotation for this
// viewer's session, arming the impression settle timer.
func (s *AdService) serveRotated(ctx context.Context, input ServeInput, eligible []*model.Ad, viewerHash string, meta requestMeta) *ServeOutput {
	interval := s.rotationInterval(ctx)

	session := s.sessions.GetOrCreate(viewerHash, input.Placement, eligible, interval)

	ad, ok := session.Current()
	if !ok {
		s.metrics.IncServeEmpty()
		return &ServeOutput{ViewerHash: viewerHash}
	}

	session.ScheduleImpression(ad, s.settle, func(settled *model.Ad) {
		s.recordImpression(viewerHash, settled, meta)
	})

	s.metrics.IncAdServed()

	return &ServeOutput{
		Ads:        []ServedAd{s.servedAd(ad)},
		Mode:       session.Mode(),
		ViewerHash: viewerHash,
	}
}

// serveMulti returns up to MaxAds eligible ads at once, bypassing the
// rotation session. Impressions are recorded immediately: a grid of
// banners has no "current" slot to settle.
func (s *AdService) serveMulti(ctx context.Context, input ServeInput, eligible []*model.Ad, viewerHash string, counters frequency.Counters, meta requestMeta) *ServeOutput {
	limit := input.MaxAds
	if limit > maxAdsCeiling {
		limit = maxAdsCeiling
	}
	if limit > len(eligible) {
		limit = len(eligible)
	}

	served := make([]ServedAd, 0, limit)
	for _, ad := range eligible[:limit] {
		served = append(served, s.servedAd(ad))

		if err := s.freq.Record(ctx, viewerHash, ad.ID, counters); err != nil {
			s.logger.Warn("failed to record frequency counter",
				"ad_id", ad.ID,
				"viewer_hash", viewerHash,
				"error", err,
			)
		}
		if s.publisher != nil {
			s.publisher.PublishAsync(tracking.NewImpressionPayload(
				ad, meta.pageURL, meta.deviceType, meta.userAgent, viewerHash, s.now(),
			))
		}
		s.metrics.IncImpressionRecorded()
		s.metrics.IncAdServed()
	}

	return &ServeOutput{
		Ads:        served,
		Mode:       rotation.ModeFor(eligible),
		ViewerHash: viewerHash,
	}
}

// ClickInput defines one click-through request.
type ClickInput struct {
	AdID      string
	PageURL   string
	UserAgent string
	ClientIP  string
}

// Click records a click event and returns the ad's target URL. The
// redirect is unconditional: paused, expired, or capped ads still send
// the viewer through, because a stale banner in an open tab must not
// dead-end.
func (s *AdService) Click(ctx context.Context, input ClickInput) (string, error) {
	ad, err := s.repo.GetAdByID(ctx, input.AdID)
	if err != nil {
		if errors.Is(err, repository.ErrAdNotFound) {
			return "", ErrAdNotFound
		}
		return "", err
	}

	viewerHash := tracking.GenerateViewerHash(s.hashSecret, input.ClientIP, input.UserAgent, s.now())

	if s.publisher != nil && !traffic.IsBot(input.UserAgent) {
		s.publisher.PublishAsync(tracking.NewClickPayload(
			ad,
			traffic.TruncatePageURL(input.PageURL),
			traffic.DeviceType(input.UserAgent),
			traffic.TruncateUserAgent(input.UserAgent),
			viewerHash,
			s.now(),
		))
	}
	s.metrics.IncClickRecorded()

	return ad.TargetURL, nil
}

// requestMeta carries the truncated request attributes attached to
// tracking events.
type requestMeta struct {
	pageURL    string
	deviceType string
	userAgent  string
}

func (s *AdService) requestMeta(input ServeInput) requestMeta {
	return requestMeta{
		pageURL:    traffic.TruncatePageURL(input.PageURL),
		deviceType: traffic.DeviceType(input.UserAgent),
		userAgent:  traffic.TruncateUserAgent(input.UserAgent),
	}
}

// recordImpression persists the frequency counter and publishes the
// impression event. Runs off the request path when the settle timer
// fires.
func (s *AdService) recordImpression(viewerHash string, ad *model.Ad, meta requestMeta) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	counters, err := s.freq.Load(ctx, viewerHash)
	if err != nil {
		s.logger.Warn("frequency counters unavailable for impression",
			"ad_id", ad.ID,
			"viewer_hash", viewerHash,
			"error", err,
		)
		counters = frequency.Counters{}
	}

	if err := s.freq.Record(ctx, viewerHash, ad.ID, counters); err != nil {
		s.logger.Warn("failed to record frequency counter",
			"ad_id", ad.ID,
			"viewer_hash", viewerHash,
			"error", err,
		)
	}

	if s.publisher != nil {
		s.publisher.PublishAsync(tracking.NewImpressionPayload(
			ad, meta.pageURL, meta.deviceType, meta.userAgent, viewerHash, s.now(),
		))
	}

	s.metrics.IncImpressionRecorded()
}

// servableAds returns the servable candidates for a placement,
// cache-first, dropping ads whose size has no known dimensions.
func (s *AdService) servableAds(ctx context.Context, placement model.Placement) []*model.Ad {
	ads, err := s.fetchServable(ctx, placement)
	if err != nil {
		s.logger.Error("failed to fetch servable ads",
			"placement", placement,
			"error", err,
		)
		return nil
	}

	usable := make([]*model.Ad, 0, len(ads))
	for _, ad := range ads {
		if _, ok := ad.Size.Dimensions(); !ok {
			s.logger.Warn("skipping ad with unknown size",
				"ad_id", ad.ID,
				"size", ad.Size,
			)
			continue
		}
		usable = append(usable, ad)
	}

	return usable
}

func (s *AdService) fetchServable(ctx context.Context, placement model.Placement) ([]*model.Ad, error) {
	today := s.now().UTC()

	if s.cache == nil {
		return s.repo.ListServable(ctx, placement, today)
	}

	// Step 1: Try cache
	cached, err := s.cache.GetServableAds(ctx, placement)
	if err == nil {
		return cached, nil
	}

	// Step 2: Check negative cache
	if errors.Is(err, cache.ErrCacheMiss) {
		isNegative, _ := s.cache.IsNegativelyCached(ctx, placement)
		if isNegative {
			return nil, nil
		}
	}

	// Step 3: DB lookup
	ads, err := s.repo.ListServable(ctx, placement, today)
	if err != nil {
		return nil, err
	}

	// Step 4: Backfill cache
	if len(ads) == 0 {
		_ = s.cache.SetNegativeCache(ctx, placement)
	} else if err := s.cache.SetServableAds(ctx, placement, ads); err != nil {
		s.logger.Warn("failed to cache ad list",
			"placement", placement,
			"error", err,
		)
	}

	return ads, nil
}

// rotationInterval returns the site-wide rotation interval, cache-first.
func (s *AdService) rotationInterval(ctx context.Context) time.Duration {
	if s.cache != nil {
		if seconds, err := s.cache.GetRotationInterval(ctx); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	seconds := s.repo.GetRotationIntervalSeconds(ctx)

	if s.cache != nil {
		_ = s.cache.SetRotationInterval(ctx, seconds)
	}

	return time.Duration(seconds) * time.Second
}

func (s *AdService) servedAd(ad *model.Ad) ServedAd {
	dims, _ := ad.Size.Dimensions()
	return ServedAd{Ad: ad, Width: dims.Width, Height: dims.Height}
}

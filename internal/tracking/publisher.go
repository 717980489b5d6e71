// Package tracking provides best-effort impression and click recording.
//
// Writes go through a Redis stream acting as an explicit outbox: the
// serve and click paths publish fire-and-forget, a background worker
// drains the stream into Postgres. Publish failures are logged and
// dropped, never retried, never surfaced to the viewer.
package tracking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/soundstage/adserve/internal/metrics"
	"github.com/soundstage/adserve/internal/model"
)

const (
	// StreamKey is the Redis stream for ad events.
	StreamKey = "stream:ad_events"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:ad_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// AdEventPayload is the compressed event format for the Redis stream.
type AdEventPayload struct {
	AdID       string `json:"aid"`
	Type       string `json:"ty"`           // "impression" or "click"
	Placement  string `json:"pl"`
	PageURL    string `json:"pg,omitempty"` // truncated
	DeviceType string `json:"dv,omitempty"`
	UserAgent  string `json:"ua,omitempty"` // truncated
	ViewerHash string `json:"vh"`
	OccurredAt int64  `json:"t"` // Unix milliseconds
}

// Publisher enqueues ad events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new tracking event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "tracking.publisher"),
		metrics: recorder,
	}
}

// Publish adds an ad event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event AdEventPayload) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true, // ~MAXLEN for performance
		ID:     "*",  // Auto-generate ID
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()

	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged but not returned (fire-and-forget).
func (p *Publisher) PublishAsync(event AdEventPayload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish ad event",
				"ad_id", event.AdID,
				"type", event.Type,
				"error", err,
			)
			p.metrics.IncTrackingEventPublished("dropped")
			return
		}

		p.logger.Debug("ad event published",
			"ad_id", event.AdID,
			"type", event.Type,
			"stream_id", streamID,
		)
		p.metrics.IncTrackingEventPublished("success")
	}()
}

// defaultHashSecret seeds the daily salt when no deployment secret is
// configured.
const defaultHashSecret = "adserve"

// GenerateViewerHash creates a privacy-safe viewer identifier.
// Uses SHA256(IP + UserAgent + daily_salt) truncated to 16 hex chars.
// The daily salt is secret:date and rotates at midnight UTC so hashes
// cannot be joined across days; with a deployment secret set, hashes
// cannot be recomputed by anyone who only knows the date.
func GenerateViewerHash(secret, ip, userAgent string, at time.Time) string {
	if secret == "" {
		secret = defaultHashSecret
	}
	dailySalt := fmt.Sprintf("%s:%s", secret, at.UTC().Format("2006-01-02"))

	data := ip + userAgent + dailySalt
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])[:16]
}

// NewImpressionPayload builds an impression event payload.
func NewImpressionPayload(ad *model.Ad, pageURL, deviceType, userAgent, viewerHash string, at time.Time) AdEventPayload {
	return AdEventPayload{
		AdID:       ad.ID,
		Type:       string(model.EventImpression),
		Placement:  string(ad.Placement),
		PageURL:    pageURL,
		DeviceType: deviceType,
		UserAgent:  userAgent,
		ViewerHash: viewerHash,
		OccurredAt: at.UnixMilli(),
	}
}

// NewClickPayload builds a click event payload.
func NewClickPayload(ad *model.Ad, pageURL, deviceType, userAgent, viewerHash string, at time.Time) AdEventPayload {
	return AdEventPayload{
		AdID:       ad.ID,
		Type:       string(model.EventClick),
		Placement:  string(ad.Placement),
		PageURL:    pageURL,
		DeviceType: deviceType,
		UserAgent:  userAgent,
		ViewerHash: viewerHash,
		OccurredAt: at.UnixMilli(),
	}
}

package tracking

import (
	"testing"
	"time"

	"github.com/soundstage/adserve/internal/model"
)

func TestCounterDeltas(t *testing.T) {
	t.Parallel()

	now := time.Now()
	events := []*model.AdEvent{
		{AdID: "ad-1", Type: model.EventImpression, OccurredAt: now},
		{AdID: "ad-1", Type: model.EventImpression, OccurredAt: now},
		{AdID: "ad-2", Type: model.EventImpression, OccurredAt: now},
		{AdID: "ad-1", Type: model.EventClick, OccurredAt: now},
		{AdID: "ad-3", Type: "bogus", OccurredAt: now},
	}

	impressions, clicks := CounterDeltas(events)

	if impressions["ad-1"] != 2 {
		t.Errorf("expected 2 impressions for ad-1, got %d", impressions["ad-1"])
	}
	if impressions["ad-2"] != 1 {
		t.Errorf("expected 1 impression for ad-2, got %d", impressions["ad-2"])
	}
	if clicks["ad-1"] != 1 {
		t.Errorf("expected 1 click for ad-1, got %d", clicks["ad-1"])
	}
	if len(clicks) != 1 {
		t.Errorf("expected 1 ad with clicks, got %d", len(clicks))
	}
	if _, ok := impressions["ad-3"]; ok {
		t.Error("unknown event type should not count")
	}
}

func TestCounterDeltas_Empty(t *testing.T) {
	t.Parallel()

	impressions, clicks := CounterDeltas(nil)

	if len(impressions) != 0 || len(clicks) != 0 {
		t.Errorf("expected empty maps, got %d impressions and %d clicks", len(impressions), len(clicks))
	}
}

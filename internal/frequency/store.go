package frequency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/soundstage/adserve/internal/model"
)

const (
	// keyPrefix namespaces cap counters in the KV store.
	keyPrefix = "freqcap:"

	// counterTTL keeps a viewer's map around long enough to survive a
	// day rollover, after which pruning drops the stale entries anyway.
	counterTTL = 48 * time.Hour

	// DateLayout is the calendar-date format stored with each counter.
	DateLayout = "2006-01-02"
)

// Counter tracks impressions shown for one ad on one calendar day.
type Counter struct {
	Impressions int    `json:"impressions"`
	Date        string `json:"date"` // DateLayout, viewer-local calendar date
}

// Counters maps ad ID to its counter for the current day.
type Counters map[string]Counter

// Store reads and writes per-viewer cap counters through an injected KV.
//
// Load/Record do read-modify-write without locking the viewer key: two
// concurrent requests for the same viewer can both increment from the
// same base and undercount by one. The cap is a soft throttle, so this
// race is accepted.
type Store struct {
	kv  KV
	now func() time.Time
}

// NewStore creates a Store over the given KV.
func NewStore(kv KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

// SetNow overrides the clock. Used by tests to drive day rollover.
func (s *Store) SetNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Today returns the current calendar date in DateLayout.
func (s *Store) Today() string {
	return s.now().Format(DateLayout)
}

// Load reads the viewer's counters, drops any whose date is not today,
// persists the pruned map back, and returns it. A missing or unreadable
// value yields an empty map.
func (s *Store) Load(ctx context.Context, viewerKey string) (Counters, error) {
	raw, err := s.kv.Get(ctx, keyPrefix+viewerKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Counters{}, nil
		}
		return nil, fmt.Errorf("load counters: %w", err)
	}

	var counters Counters
	if err := json.Unmarshal([]byte(raw), &counters); err != nil {
		// Corrupt value: start fresh rather than fail the serve path.
		return Counters{}, nil
	}

	today := s.Today()
	pruned := make(Counters, len(counters))
	dropped := false
	for adID, counter := range counters {
		if counter.Date == today {
			pruned[adID] = counter
		} else {
			dropped = true
		}
	}

	if dropped {
		if err := s.save(ctx, viewerKey, pruned); err != nil {
			return nil, err
		}
	}

	return pruned, nil
}

// HasReachedCap returns true iff the ad declares a positive cap, a
// counter exists for today, and that counter has reached the cap. An ad
// with no cap, a cap of 0, or no counter today is never capped.
func (s *Store) HasReachedCap(ad *model.Ad, counters Counters) bool {
	if ad.FrequencyCap <= 0 {
		return false
	}
	counter, ok := counters[ad.ID]
	if !ok || counter.Date != s.Today() {
		return false
	}
	return counter.Impressions >= ad.FrequencyCap
}

// Record increments today's counter for adID, creating it at 1 if
// absent or stale, and persists the updated map.
func (s *Store) Record(ctx context.Context, viewerKey, adID string, counters Counters) error {
	today := s.Today()

	counter, ok := counters[adID]
	if !ok || counter.Date != today {
		counter = Counter{Impressions: 0, Date: today}
	}
	counter.Impressions++
	counters[adID] = counter

	return s.save(ctx, viewerKey, counters)
}

// save persists the counters map as JSON.
func (s *Store) save(ctx context.Context, viewerKey string, counters Counters) error {
	data, err := json.Marshal(counters)
	if err != nil {
		return fmt.Errorf("marshal counters: %w", err)
	}
	if err := s.kv.Set(ctx, keyPrefix+viewerKey, string(data), counterTTL); err != nil {
		return fmt.Errorf("save counters: %w", err)
	}
	return nil
}

// Filter returns the ads not at their cap. When bypass is true every ad
// passes; this backs the debug=bypass-caps operator override.
func (s *Store) Filter(ads []*model.Ad, counters Counters, bypass bool) []*model.Ad {
	if bypass {
		return ads
	}
	eligible := make([]*model.Ad, 0, len(ads))
	for _, ad := range ads {
		if !s.HasReachedCap(ad, counters) {
			eligible = append(eligible, ad)
		}
	}
	return eligible
}

// Package rotation selects which eligible ad is currently displayed.
package rotation

import (
	"math/rand"
	"sync"

	"github.com/soundstage/adserve/internal/model"
)

// ModeFor decides the rotation mode for a whole eligible set: priority
// if any member declares it, timer otherwise. Mixing modes across ads
// resolves to priority for the entire rotation.
func ModeFor(ads []*model.Ad) model.RotationMode {
	for _, ad := range ads {
		if ad.RotationMode == model.RotationPriority {
			return model.RotationPriority
		}
	}
	return model.RotationTimer
}

// Rotator tracks the current index into an eligible ad set and advances
// it on ticks, either round-robin or by weighted random draw.
type Rotator struct {
	mu       sync.Mutex
	eligible []*model.Ad
	mode     model.RotationMode
	index    int
	rng      *rand.Rand
}

// NewRotator creates a rotator over the eligible set. rng may be nil,
// in which case a time-seeded source is used; tests pass a fixed seed.
func NewRotator(eligible []*model.Ad, rng *rand.Rand) *Rotator {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Rotator{
		eligible: eligible,
		mode:     ModeFor(eligible),
		rng:      rng,
	}
}

// Mode returns the whole-set rotation mode.
func (r *Rotator) Mode() model.RotationMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// Len returns the eligible set size.
func (r *Rotator) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.eligible)
}

// SetEligible replaces the eligible set, recomputing the mode. The
// index resets to 0 when it is out of bounds for the new set.
func (r *Rotator) SetEligible(eligible []*model.Ad) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eligible = eligible
	r.mode = ModeFor(eligible)
	if r.index >= len(eligible) {
		r.index = 0
	}
}

// Advance moves to the next ad. Timer mode steps the index by one
// modulo the set size; priority mode draws a weighted-random index.
// With 0 or 1 eligible ads this is a no-op.
func (r *Rotator) Advance() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.eligible) <= 1 {
		r.index = 0
		return
	}

	if r.mode == model.RotationPriority {
		r.index = weightedIndex(r.eligible, r.rng)
		return
	}
	r.index = (r.index + 1) % len(r.eligible)
}

// Current returns the displayed ad. The index is clamped modulo the
// current eligible length so a set that shrank between ticks can never
// index out of bounds. Returns false when no ad is eligible.
func (r *Rotator) Current() (*model.Ad, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.eligible) == 0 {
		return nil, false
	}
	return r.eligible[r.index%len(r.eligible)], true
}

// weightedIndex draws an index proportional to ad weight: sum the
// weights (each >= 1), draw uniformly in [0, total), and walk the ads
// in array order subtracting each weight until the remainder goes
// negative.
func weightedIndex(ads []*model.Ad, rng *rand.Rand) int {
	total := 0
	for _, ad := range ads {
		total += ad.Weight()
	}

	remainder := rng.Intn(total)
	for i, ad := range ads {
		remainder -= ad.Weight()
		if remainder < 0 {
			return i
		}
	}
	// Unreachable: the walk always terminates inside the loop.
	return len(ads) - 1
}

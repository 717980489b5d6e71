package rotation

import (
	"math"
	"math/rand"
	"testing"

	"github.com/soundstage/adserve/internal/model"
)

func makeAds(priorities []int, modes []model.RotationMode) []*model.Ad {
	ads := make([]*model.Ad, len(priorities))
	for i, p := range priorities {
		ad := &model.Ad{ID: string(rune('A' + i)), Priority: p}
		if modes != nil {
			ad.RotationMode = modes[i]
		}
		ads[i] = ad
	}
	return ads
}

func TestModeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		modes []model.RotationMode
		want  model.RotationMode
	}{
		{"no declared modes", []model.RotationMode{"", ""}, model.RotationTimer},
		{"all timer", []model.RotationMode{model.RotationTimer, model.RotationTimer}, model.RotationTimer},
		{"one priority wins for the whole set", []model.RotationMode{"", model.RotationPriority}, model.RotationPriority},
		{"all priority", []model.RotationMode{model.RotationPriority, model.RotationPriority}, model.RotationPriority},
		{"empty set", nil, model.RotationTimer},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ads := makeAds(make([]int, len(tt.modes)), tt.modes)
			if got := ModeFor(ads); got != tt.want {
				t.Errorf("ModeFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRotator_TimerAdvancesInStrictOrder(t *testing.T) {
	t.Parallel()

	ads := makeAds([]int{1, 1, 1}, nil)
	r := NewRotator(ads, rand.New(rand.NewSource(1)))

	if r.Mode() != model.RotationTimer {
		t.Fatalf("mode = %v, want timer", r.Mode())
	}

	wantOrder := []string{"A", "B", "C", "A", "B", "C", "A"}
	for tick, want := range wantOrder {
		ad, ok := r.Current()
		if !ok {
			t.Fatal("Current() returned no ad")
		}
		if ad.ID != want {
			t.Fatalf("tick %d: displayed %s, want %s", tick, ad.ID, want)
		}
		r.Advance()
	}
}

func TestRotator_WeightedDrawMatchesPriorities(t *testing.T) {
	t.Parallel()

	// Priorities [1, 3]: the second ad should win ~75% of draws.
	ads := makeAds([]int{1, 3}, []model.RotationMode{"", model.RotationPriority})
	rng := rand.New(rand.NewSource(42))

	const draws = 10000
	hits := 0
	for i := 0; i < draws; i++ {
		if weightedIndex(ads, rng) == 1 {
			hits++
		}
	}

	got := float64(hits) / draws
	if math.Abs(got-0.75) > 0.03 {
		t.Errorf("second ad selected %.3f of draws, want 0.75 +/- 0.03", got)
	}
}

func TestRotator_ZeroPriorityStillDrawable(t *testing.T) {
	t.Parallel()

	// All-zero priorities weight to 1 each; every ad must be reachable.
	ads := makeAds([]int{0, 0, 0}, nil)
	rng := rand.New(rand.NewSource(7))

	seen := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		seen[weightedIndex(ads, rng)] = true
	}
	if len(seen) != 3 {
		t.Errorf("weighted draw reached %d of 3 zero-priority ads", len(seen))
	}
}

func TestRotator_PriorityModeSelectedByAnyMember(t *testing.T) {
	t.Parallel()

	ads := makeAds([]int{1, 1}, []model.RotationMode{"", model.RotationPriority})
	r := NewRotator(ads, rand.New(rand.NewSource(1)))

	if r.Mode() != model.RotationPriority {
		t.Errorf("mode = %v, want priority when any member declares it", r.Mode())
	}
}

func TestRotator_SingleAdIsNoOp(t *testing.T) {
	t.Parallel()

	ads := makeAds([]int{5}, []model.RotationMode{model.RotationPriority})
	r := NewRotator(ads, rand.New(rand.NewSource(1)))

	for i := 0; i < 5; i++ {
		r.Advance()
		ad, ok := r.Current()
		if !ok || ad.ID != "A" {
			t.Fatal("single-ad rotation must stay on index 0")
		}
	}
}

func TestRotator_CurrentClampsWhenSetShrinks(t *testing.T) {
	t.Parallel()

	ads := makeAds([]int{1, 1, 1}, nil)
	r := NewRotator(ads, rand.New(rand.NewSource(1)))

	r.Advance()
	r.Advance() // index 2

	// A cap trip between ticks shrinks the set to one ad.
	r.SetEligible(ads[:1])

	ad, ok := r.Current()
	if !ok {
		t.Fatal("Current() returned no ad")
	}
	if ad.ID != "A" {
		t.Errorf("Current() = %s, want clamped to A", ad.ID)
	}
}

func TestRotator_SetEligibleKeepsInBoundsIndex(t *testing.T) {
	t.Parallel()

	ads := makeAds([]int{1, 1, 1}, nil)
	r := NewRotator(ads, rand.New(rand.NewSource(1)))
	r.Advance() // index 1

	r.SetEligible(ads[:2]) // index 1 still valid

	ad, _ := r.Current()
	if ad.ID != "B" {
		t.Errorf("in-bounds index should be preserved, got %s", ad.ID)
	}
}

func TestRotator_EmptySet(t *testing.T) {
	t.Parallel()

	r := NewRotator(nil, rand.New(rand.NewSource(1)))
	r.Advance()
	if _, ok := r.Current(); ok {
		t.Error("Current() on empty set should report no ad")
	}
}

package serving

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/soundstage/adserve/internal/model"
	"github.com/soundstage/adserve/internal/rotation"
)

func manualTickFactory(_ time.Duration) rotation.TickSource {
	return rotation.NewManualTicks()
}

func TestSessionManager_GetOrCreateReuses(t *testing.T) {
	t.Parallel()

	m := NewSessionManager(time.Minute, manualTickFactory)
	defer m.Shutdown()

	ads := []*model.Ad{testAd("ad1", model.PlacementHeader, 0, 0)}

	first := m.GetOrCreate("viewer1", model.PlacementHeader, ads, time.Second)
	second := m.GetOrCreate("viewer1", model.PlacementHeader, ads, time.Second)

	if first != second {
		t.Error("same viewer and placement should share a session")
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 session, got %d", m.Len())
	}
}

func TestSessionManager_KeyedByViewerAndPlacement(t *testing.T) {
	t.Parallel()

	m := NewSessionManager(time.Minute, manualTickFactory)
	defer m.Shutdown()

	ads := []*model.Ad{testAd("ad1", model.PlacementHeader, 0, 0)}

	a := m.GetOrCreate("viewer1", model.PlacementHeader, ads, time.Second)
	b := m.GetOrCreate("viewer1", model.PlacementSidebar, ads, time.Second)
	c := m.GetOrCreate("viewer2", model.PlacementHeader, ads, time.Second)

	if a == b || a == c || b == c {
		t.Error("sessions must be distinct per viewer and placement")
	}
	if m.Len() != 3 {
		t.Errorf("expected 3 sessions, got %d", m.Len())
	}
}

func TestSessionManager_EvictsIdle(t *testing.T) {
	t.Parallel()

	m := NewSessionManager(time.Minute, manualTickFactory)
	defer m.Shutdown()

	ads := []*model.Ad{testAd("ad1", model.PlacementHeader, 0, 0)}
	m.GetOrCreate("viewer1", model.PlacementHeader, ads, time.Second)

	// A cutoff in the future makes every session idle.
	m.evictIdle(time.Now().Add(time.Hour))

	if m.Len() != 0 {
		t.Errorf("expected eviction, %d sessions remain", m.Len())
	}
	if m.Get("viewer1", model.PlacementHeader) != nil {
		t.Error("evicted session still retrievable")
	}
}

func TestSession_ScheduleImpressionOncePerAd(t *testing.T) {
	t.Parallel()

	m := NewSessionManager(time.Minute, manualTickFactory)
	defer m.Shutdown()

	ad := testAd("ad1", model.PlacementHeader, 0, 0)
	s := m.GetOrCreate("viewer1", model.PlacementHeader, []*model.Ad{ad}, time.Second)

	var fired atomic.Int32
	record := func(*model.Ad) { fired.Add(1) }

	s.ScheduleImpression(ad, time.Millisecond, record)
	time.Sleep(50 * time.Millisecond)
	s.ScheduleImpression(ad, time.Millisecond, record)
	time.Sleep(50 * time.Millisecond)

	if got := fired.Load(); got != 1 {
		t.Errorf("impression fired %d times, want 1", got)
	}
	if !s.HasRecorded("ad1") {
		t.Error("impression should be marked recorded")
	}
}

func TestSession_SettleCancelledByReplacement(t *testing.T) {
	t.Parallel()

	m := NewSessionManager(time.Minute, manualTickFactory)
	defer m.Shutdown()

	adA := testAd("a", model.PlacementHeader, 0, 0)
	adB := testAd("b", model.PlacementHeader, 0, 0)
	s := m.GetOrCreate("viewer1", model.PlacementHeader, []*model.Ad{adA, adB}, time.Second)

	var firedA, firedB atomic.Int32

	// Arm for A with a long settle, then replace with B before it fires.
	s.ScheduleImpression(adA, 5*time.Second, func(*model.Ad) { firedA.Add(1) })
	s.ScheduleImpression(adB, time.Millisecond, func(*model.Ad) { firedB.Add(1) })

	time.Sleep(50 * time.Millisecond)

	if firedA.Load() != 0 {
		t.Error("replaced ad's impression should have been cancelled")
	}
	if firedB.Load() != 1 {
		t.Errorf("current ad's impression fired %d times, want 1", firedB.Load())
	}
}

func TestSessionManager_Shutdown(t *testing.T) {
	t.Parallel()

	m := NewSessionManager(time.Minute, manualTickFactory)

	ads := []*model.Ad{testAd("ad1", model.PlacementHeader, 0, 0)}
	m.GetOrCreate("viewer1", model.PlacementHeader, ads, time.Second)
	m.GetOrCreate("viewer2", model.PlacementHeader, ads, time.Second)

	m.Shutdown()

	if m.Len() != 0 {
		t.Errorf("expected no sessions after shutdown, got %d", m.Len())
	}

	// Double shutdown must not panic.
	m.Shutdown()
}

package serving

import (
	"sync"
	"time"

	"github.com/soundstage/adserve/internal/model"
	"github.com/soundstage/adserve/internal/rotation"
)

// Session defaults.
const (
	// DefaultIdleTTL is how long a serving session survives without a
	// request before the janitor evicts it.
	DefaultIdleTTL = 10 * time.Minute

	// DefaultSettleDelay is how long an ad must stay current before its
	// impression is recorded. Filters out instant bounces.
	DefaultSettleDelay = time.Second

	janitorInterval = time.Minute
)

// TickFactory builds a tick source for a new session's rotation timer.
// Swapped for manual ticks in tests.
type TickFactory func(interval time.Duration) rotation.TickSource

// Session holds the rotation state for one viewer on one placement.
// It owns a rotator, the timer driving it, and the set of ads whose
// impressions have already been recorded this session.
type Session struct {
	mu sync.Mutex

	rotator *rotation.Rotator
	ticks   rotation.TickSource
	done    chan struct{}

	lastSeen time.Time

	// seen tracks ad IDs with a recorded impression. At most one
	// impression per ad per session.
	seen map[string]bool

	// settleTimer is the pending impression timer. Replacing the current
	// ad before it fires cancels the impression.
	settleTimer *time.Timer
}

func newSession(eligible []*model.Ad, ticks rotation.TickSource) *Session {
	s := &Session{
		rotator:  rotation.NewRotator(eligible, nil),
		ticks:    ticks,
		done:     make(chan struct{}),
		lastSeen: time.Now(),
		seen:     make(map[string]bool),
	}

	go s.run()

	return s
}

// run advances the rotator on every tick until the session closes.
func (s *Session) run() {
	for {
		select {
		case <-s.ticks.Ticks():
			s.mu.Lock()
			s.rotator.Advance()
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}

// Current returns the ad currently in rotation.
func (s *Session) Current() (*model.Ad, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotator.Current()
}

// SetEligible replaces the session's eligible ad set.
func (s *Session) SetEligible(ads []*model.Ad) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotator.SetEligible(ads)
}

// Mode returns the session's rotation mode.
func (s *Session) Mode() model.RotationMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotator.Mode()
}

// ScheduleImpression arms the settle timer for the given ad. When the
// delay elapses the record callback fires, once per ad per session. Any
// previously pending timer is cancelled first.
func (s *Session) ScheduleImpression(ad *model.Ad, delay time.Duration, record func(*model.Ad)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settleTimer != nil {
		s.settleTimer.Stop()
	}

	if s.seen[ad.ID] {
		return
	}

	s.settleTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.seen[ad.ID] {
			s.mu.Unlock()
			return
		}
		s.seen[ad.ID] = true
		s.mu.Unlock()

		record(ad)
	})
}

// HasRecorded reports whether an impression was recorded for the ad.
func (s *Session) HasRecorded(adID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[adID]
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen.Before(cutoff)
}

// close stops the session's timer goroutine and pending impression.
func (s *Session) close() {
	s.mu.Lock()
	if s.settleTimer != nil {
		s.settleTimer.Stop()
		s.settleTimer = nil
	}
	s.mu.Unlock()

	s.ticks.Stop()
	close(s.done)
}

// SessionManager tracks serving sessions keyed by viewer and placement.
// A janitor goroutine evicts sessions idle past the TTL.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	idleTTL  time.Duration
	newTicks TickFactory

	stopJanitor chan struct{}
	stopOnce    sync.Once
}

// NewSessionManager creates a session manager. A nil tick factory uses
// real interval timers.
func NewSessionManager(idleTTL time.Duration, newTicks TickFactory) *SessionManager {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if newTicks == nil {
		newTicks = func(interval time.Duration) rotation.TickSource {
			return rotation.NewIntervalTicks(interval)
		}
	}

	m := &SessionManager{
		sessions:    make(map[string]*Session),
		idleTTL:     idleTTL,
		newTicks:    newTicks,
		stopJanitor: make(chan struct{}),
	}

	go m.janitor()

	return m
}

func sessionKey(viewerHash string, placement model.Placement) string {
	return viewerHash + "|" + string(placement)
}

// GetOrCreate returns the session for a viewer and placement, creating
// it with the given eligible set and rotation interval if absent. An
// existing session gets its eligible set refreshed instead; the
// rotation interval is fixed for the session's lifetime.
func (m *SessionManager) GetOrCreate(viewerHash string, placement model.Placement, eligible []*model.Ad, interval time.Duration) *Session {
	key := sessionKey(viewerHash, placement)

	m.mu.Lock()
	s, ok := m.sessions[key]
	if !ok {
		s = newSession(eligible, m.newTicks(interval))
		m.sessions[key] = s
		m.mu.Unlock()
		return s
	}
	m.mu.Unlock()

	s.touch()
	s.SetEligible(eligible)
	return s
}

// Get returns an existing session, or nil.
func (m *SessionManager) Get(viewerHash string, placement model.Placement) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionKey(viewerHash, placement)]
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// janitor periodically evicts idle sessions.
func (m *SessionManager) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictIdle(time.Now().Add(-m.idleTTL))
		case <-m.stopJanitor:
			return
		}
	}
}

func (m *SessionManager) evictIdle(cutoff time.Time) {
	m.mu.Lock()
	var stale []*Session
	for key, s := range m.sessions {
		if s.idleSince(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, key)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.close()
	}
}

// Shutdown stops the janitor and closes all sessions.
func (m *SessionManager) Shutdown() {
	m.stopOnce.Do(func() {
		close(m.stopJanitor)
	})

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for key, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, key)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

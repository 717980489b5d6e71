package rotation

import "time"

// TickSource is what triggers a re-pick, decoupled from how the re-pick
// is computed. Production uses an interval ticker; tests drive ticks by
// hand without wall-clock waits.
type TickSource interface {
	// Ticks returns the channel the rotator loop selects on.
	Ticks() <-chan time.Time
	// Stop releases the source. The channel is not closed.
	Stop()
}

// intervalTicks adapts time.Ticker to TickSource.
type intervalTicks struct {
	ticker *time.Ticker
}

// NewIntervalTicks returns a TickSource firing every interval.
func NewIntervalTicks(interval time.Duration) TickSource {
	return &intervalTicks{ticker: time.NewTicker(interval)}
}

func (t *intervalTicks) Ticks() <-chan time.Time {
	return t.ticker.C
}

func (t *intervalTicks) Stop() {
	t.ticker.Stop()
}

// ManualTicks is a TickSource driven explicitly by tests.
type ManualTicks struct {
	ch chan time.Time
}

// NewManualTicks creates a ManualTicks with a small buffer.
func NewManualTicks() *ManualTicks {
	return &ManualTicks{ch: make(chan time.Time, 1)}
}

// Ticks returns the tick channel.
func (t *ManualTicks) Ticks() <-chan time.Time {
	return t.ch
}

// Tick delivers one tick, blocking until the subscriber is ready.
func (t *ManualTicks) Tick() {
	t.ch <- time.Now()
}

// Stop is a no-op.
func (t *ManualTicks) Stop() {}

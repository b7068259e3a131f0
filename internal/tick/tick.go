// Package tick provides the sampling clock: a periodic producer that arms a
// single-slot signal, and a wrapping millisecond clock for interval checks.
package tick

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultPeriod samples buttons at 100 Hz.
const DefaultPeriod = 10 * time.Millisecond

// Signal is a binary hand-off between a producer and one consumer.
// Giving an already set signal does nothing; ticks are never queued.
type Signal struct {
	set atomic.Bool
}

// Give arms the signal.
func (s *Signal) Give() {
	s.set.Store(true)
}

// Take clears the signal and reports whether it was set. It never blocks.
func (s *Signal) Take() bool {
	return s.set.Swap(false)
}

// Sampler gives a Signal at a fixed period.
type Sampler struct {
	clock  clockwork.Clock
	period time.Duration
	signal *Signal
	ticks  atomic.Uint64
}

// NewSampler returns a sampler for signal. A zero period means DefaultPeriod.
func NewSampler(clock clockwork.Clock, period time.Duration, signal *Signal) *Sampler {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Sampler{clock: clock, period: period, signal: signal}
}

// Period returns the sampling period.
func (s *Sampler) Period() time.Duration {
	return s.period
}

// Ticks returns how many times the sampler has fired.
func (s *Sampler) Ticks() uint64 {
	return s.ticks.Load()
}

// Run gives the signal every period until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) {
	t := s.clock.NewTicker(s.period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.Chan():
			s.ticks.Add(1)
			s.signal.Give()
		}
	}
}

// Millis is a millisecond counter that wraps at 2^32, like a
// microcontroller's uptime counter.
type Millis uint32

// Elapsed returns the milliseconds from since to now, correct across one
// wraparound.
func Elapsed(now, since Millis) uint32 {
	return uint32(now - since)
}

// Clock reports milliseconds since it was created.
type Clock struct {
	clock clockwork.Clock
	start time.Time
}

// NewClock starts a millisecond clock.
func NewClock(clock clockwork.Clock) *Clock {
	return &Clock{clock: clock, start: clock.Now()}
}

// Now returns the current millisecond count.
func (c *Clock) Now() Millis {
	return Millis(uint64(c.clock.Since(c.start) / time.Millisecond))
}

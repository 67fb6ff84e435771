// Package retry provides the small time-budget bookkeeping the tracker
// client needs to implement spec's "divide the remaining budget across
// untried sub-trackers" rule (§4.3.4). The division itself is a plain
// arithmetic rule mandated by the spec, not a retry policy, but elapsed-time
// measurement is built on backoff.Clock so tests can substitute a fake
// clock instead of sleeping (see budget_test.go's fakeClock), the same
// seam github.com/cenkalti/backoff/v4 exposes for its own retry loops.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Stopwatch measures elapsed time against a backoff.Clock, defaulting to
// the real system clock outside of tests.
type Stopwatch struct {
	clock backoff.Clock
	start time.Time
}

// NewStopwatch starts a Stopwatch against clock. If clock is nil, the
// system clock is used.
func NewStopwatch(clock backoff.Clock) *Stopwatch {
	if clock == nil {
		clock = backoff.SystemClock
	}
	return &Stopwatch{clock: clock, start: clock.Now()}
}

// Elapsed returns the time since the Stopwatch was created.
func (s *Stopwatch) Elapsed() time.Duration {
	return s.clock.Now().Sub(s.start)
}

// reset restarts the Stopwatch's clock from now, for reuse across the
// legs of a Budget.
func (s *Stopwatch) reset() {
	s.start = s.clock.Now()
}

// Budget tracks a shrinking time allowance across a sequence of attempts,
// per spec §4.3.4: "remaining = budget... allocate remaining/left to each
// sub-tracker; subtract actual elapsed; decrement left." It times each leg
// itself against sw rather than trusting the caller to measure elapsed
// time independently, so a caller only needs to bracket Share/Spend around
// one attempt.
type Budget struct {
	sw        *Stopwatch
	remaining time.Duration
}

// NewBudget starts a Budget of total duration, timed against clock (nil for
// the system clock).
func NewBudget(total time.Duration, clock backoff.Clock) *Budget {
	return &Budget{sw: NewStopwatch(clock), remaining: total}
}

// Remaining returns the time left in the budget, floored at zero.
func (b *Budget) Remaining() time.Duration {
	if b.remaining < 0 {
		return 0
	}
	return b.remaining
}

// Exhausted reports whether the budget has run out.
func (b *Budget) Exhausted() bool {
	return b.Remaining() <= 0
}

// Share divides the remaining budget evenly across n untried attempts. It
// returns 0 if n <= 0 or the budget is exhausted.
func (b *Budget) Share(n int) time.Duration {
	if n <= 0 || b.Exhausted() {
		return 0
	}
	return b.Remaining() / time.Duration(n)
}

// Spend subtracts the actual elapsed time since Budget was created or last
// Spend was called, measured against the Budget's own Stopwatch, and
// starts timing the next leg. Call this once per attempt, after the
// attempt completes.
func (b *Budget) Spend() {
	b.remaining -= b.sw.Elapsed()
	b.sw.reset()
}

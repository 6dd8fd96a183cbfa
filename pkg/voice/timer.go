package voice

import (
	"runtime"
	"time"
)

// Sleeper drives the mixer's absolute 20 ms deadline discipline. The
// deadline always advances by exactly one step per cycle, regardless of how
// long the cycle's work took: an overrun makes the next sleep zero and the
// clock catches up over subsequent cycles instead of drifting.
//
// Plain time.Sleep wakes late by scheduler granularity, which accumulates
// audibly at 50 packets per second, so Wait parks for most of the interval
// and spins across the final stretch.
type Sleeper struct {
	deadline time.Time
	step     time.Duration
}

// NewSleeper starts the deadline clock at now + step.
func NewSleeper(step time.Duration) *Sleeper {
	return &Sleeper{deadline: time.Now().Add(step), step: step}
}

// Deadline returns the current cycle deadline.
func (s *Sleeper) Deadline() time.Time { return s.deadline }

// Wait blocks until the current deadline, then advances it by one step.
func (s *Sleeper) Wait() {
	const spinWindow = time.Millisecond

	if remaining := time.Until(s.deadline); remaining > spinWindow {
		time.Sleep(remaining - spinWindow)
	}
	for time.Now().Before(s.deadline) {
		runtime.Gosched()
	}

	s.deadline = s.deadline.Add(s.step)
}

// Advance moves the deadline forward one step without sleeping. Used when a
// cycle is skipped entirely.
func (s *Sleeper) Advance() {
	s.deadline = s.deadline.Add(s.step)
}

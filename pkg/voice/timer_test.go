package voice

import (
	"testing"
	"time"
)

func TestSleeperHoldsCadence(t *testing.T) {
	t.Parallel()

	const step = 5 * time.Millisecond
	start := time.Now()
	s := NewSleeper(step)
	for range 5 {
		s.Wait()
	}

	elapsed := time.Since(start)
	if elapsed < 5*step-time.Millisecond {
		t.Errorf("5 waits took %v, want at least %v", elapsed, 5*step)
	}
	if elapsed > 5*step+100*time.Millisecond {
		t.Errorf("5 waits took %v, scheduler jitter too large", elapsed)
	}
}

func TestSleeperDeadlineIsAbsolute(t *testing.T) {
	t.Parallel()

	const step = 10 * time.Millisecond
	s := NewSleeper(step)
	d0 := s.Deadline()

	// Overrun one full cycle; the deadline clock must not drift with it.
	time.Sleep(2 * step)
	s.Wait()
	s.Wait()

	if got, want := s.Deadline(), d0.Add(2*step); !got.Equal(want) {
		t.Errorf("deadline = %v, want %v", got, want)
	}
}

func TestSleeperAdvanceSkipsWithoutSleeping(t *testing.T) {
	t.Parallel()

	s := NewSleeper(time.Hour)
	d0 := s.Deadline()

	start := time.Now()
	s.Advance()
	if time.Since(start) > 50*time.Millisecond {
		t.Fatal("Advance slept")
	}
	if got, want := s.Deadline(), d0.Add(time.Hour); !got.Equal(want) {
		t.Errorf("deadline = %v, want %v", got, want)
	}
}

package voice

import (
	"sync"
	"time"
)

// TrackHandle is the user-facing control surface of a [Track]. Commands are
// queued into the track's inbox and applied by the mixer once per cycle, in
// the order they were sent. Handles are safe for concurrent use.
type TrackHandle struct {
	cmds chan<- trackCommand
	meta Metadata

	done     chan struct{}
	doneOnce sync.Once
}

// Metadata returns the descriptive metadata of the underlying input.
func (h *TrackHandle) Metadata() Metadata { return h.meta }

// Done returns a channel closed once the track reaches a terminal state.
func (h *TrackHandle) Done() <-chan struct{} { return h.done }

func (h *TrackHandle) markDone() {
	h.doneOnce.Do(func() { close(h.done) })
}

// send queues a command, failing with ErrTrackStopped once the track has
// ended or if its inbox is saturated.
func (h *TrackHandle) send(cmd trackCommand) error {
	select {
	case <-h.done:
		return ErrTrackStopped
	default:
	}

	select {
	case h.cmds <- cmd:
		return nil
	case <-h.done:
		return ErrTrackStopped
	}
}

// Play resumes playback.
func (h *TrackHandle) Play() error { return h.send(playCmd{}) }

// Pause suspends playback, holding the current position.
func (h *TrackHandle) Pause() error { return h.send(pauseCmd{}) }

// Stop ends the track. The transition is terminal: the mixer notifies
// observers and removes the track.
func (h *TrackHandle) Stop() error { return h.send(stopCmd{}) }

// SetVolume adjusts the track's gain. 1.0 is unity.
func (h *TrackHandle) SetVolume(v float32) error {
	return h.send(volumeCmd{volume: v})
}

// Seek repositions the track to t. The returned channel receives the
// outcome once the mixer has applied the seek.
func (h *TrackHandle) Seek(t time.Duration) (<-chan SeekResult, error) {
	reply := make(chan SeekResult, 1)
	if err := h.send(seekCmd{to: t, reply: reply}); err != nil {
		return nil, err
	}
	return reply, nil
}

// SetLoops replaces the track's loop budget.
func (h *TrackHandle) SetLoops(l LoopState) error {
	return h.send(loopCmd{loops: l})
}

// AddEvent subscribes an event on this track.
func (h *TrackHandle) AddEvent(e EventData) error {
	return h.send(addEventCmd{event: e})
}

// MakeEphemeral silences the track's lifecycle event reporting to the host.
func (h *TrackHandle) MakeEphemeral() error {
	return h.send(ephemeralCmd{ephemeral: true})
}

// MakePermanent restores the track's lifecycle event reporting.
func (h *TrackHandle) MakePermanent() error {
	return h.send(ephemeralCmd{ephemeral: false})
}

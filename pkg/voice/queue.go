package voice

import (
	"sync"
)

// Queue plays inputs through a driver one at a time. Each track's end event
// triggers the next enqueue, so a queue and direct driver use of the same
// mixer do not conflict; the queue only ever owns its own tracks.
type Queue struct {
	mu    sync.Mutex
	d     *Driver
	items []queueItem
}

type queueItem struct {
	track  *Track
	handle *TrackHandle
}

// NewQueue creates an empty queue feeding d.
func NewQueue(d *Driver) *Queue {
	return &Queue{d: d}
}

// Enqueue appends in to the queue and returns the track's handle. The track
// starts immediately when the queue is idle.
func (q *Queue) Enqueue(in *Input, opts ...TrackOption) *TrackHandle {
	t, h := NewTrack(in, opts...)

	q.mu.Lock()
	q.items = append(q.items, queueItem{track: t, handle: h})
	if len(q.items) == 1 {
		q.startLocked()
	}
	q.mu.Unlock()
	return h
}

// startLocked plays the head of the queue, chaining the advance on its end.
// The end subscription is attached before the track reaches the mixer, so no
// command round-trip can race it.
func (q *Queue) startLocked() {
	head := q.items[0]
	head.track.events.add(OnTrackEvent(TrackEnd, func(EventContext) {
		q.advance()
	}), 0)
	q.d.Play(head.track)
}

// advance drops the finished head and starts the next track, if any.
func (q *Queue) advance() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return
	}
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.startLocked()
	}
}

// Current returns the handle of the playing track, or nil when idle.
func (q *Queue) Current() *TrackHandle {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0].handle
}

// Len reports the number of tracks in the queue, the playing one included.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Skip stops the playing track; its end event starts the next one.
func (q *Queue) Skip() error {
	h := q.Current()
	if h == nil {
		return nil
	}
	return h.Stop()
}

// Pause pauses the playing track.
func (q *Queue) Pause() error {
	h := q.Current()
	if h == nil {
		return nil
	}
	return h.Pause()
}

// Resume resumes the playing track.
func (q *Queue) Resume() error {
	h := q.Current()
	if h == nil {
		return nil
	}
	return h.Play()
}

// Clear stops playback and empties the queue.
func (q *Queue) Clear() {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	for i, it := range items {
		if i == 0 {
			// The head lives on the mixer; stop it there.
			_ = it.handle.Stop()
			continue
		}
		// Pending tracks never reached the mixer, so their inputs are
		// still ours to release.
		it.handle.markDone()
		_ = it.track.input.Close()
	}
}

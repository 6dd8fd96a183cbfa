package voice

import (
	"errors"
	"testing"

	"github.com/kestrelvoice/kestrel/pkg/audio"
)

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	d, err := NewDriver()
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func newQueueInput(t *testing.T, frames int) *Input {
	t.Helper()
	data := f32leBytes(make([]float32, audio.StereoFrameSize*frames)...)
	return newRawInput(t, data, CodecPCMF32, true)
}

func TestQueueEnqueueTracksLength(t *testing.T) {
	t.Parallel()

	q := NewQueue(newTestDriver(t))
	if q.Len() != 0 || q.Current() != nil {
		t.Fatal("fresh queue not empty")
	}

	h1 := q.Enqueue(newQueueInput(t, 2))
	h2 := q.Enqueue(newQueueInput(t, 2))

	if q.Len() != 2 {
		t.Fatalf("Len = %d, want 2", q.Len())
	}
	if q.Current() != h1 {
		t.Error("Current is not the first enqueued handle")
	}
	if h1 == h2 {
		t.Error("distinct enqueues share a handle")
	}
}

func TestQueueAdvanceStartsNext(t *testing.T) {
	t.Parallel()

	q := NewQueue(newTestDriver(t))
	q.Enqueue(newQueueInput(t, 2))
	h2 := q.Enqueue(newQueueInput(t, 2))

	q.advance()
	if q.Len() != 1 {
		t.Fatalf("Len after advance = %d, want 1", q.Len())
	}
	if q.Current() != h2 {
		t.Error("Current did not move to the second handle")
	}

	q.advance()
	if q.Len() != 0 || q.Current() != nil {
		t.Error("queue not empty after final advance")
	}

	// Advancing an empty queue is a no-op.
	q.advance()
}

func TestQueueClearReleasesPendingTracks(t *testing.T) {
	t.Parallel()

	q := NewQueue(newTestDriver(t))
	q.Enqueue(newQueueInput(t, 2))
	h2 := q.Enqueue(newQueueInput(t, 2))
	h3 := q.Enqueue(newQueueInput(t, 2))

	q.Clear()
	if q.Len() != 0 {
		t.Fatalf("Len after Clear = %d, want 0", q.Len())
	}

	// Pending tracks never reach the mixer; Clear marks their handles done
	// directly.
	for _, h := range []*TrackHandle{h2, h3} {
		select {
		case <-h.Done():
		default:
			t.Error("pending handle not done after Clear")
		}
		if err := h.Play(); !errors.Is(err, ErrTrackStopped) {
			t.Errorf("command on cleared handle = %v, want ErrTrackStopped", err)
		}
	}
}

func TestQueueControlsIdleQueue(t *testing.T) {
	t.Parallel()

	q := NewQueue(newTestDriver(t))
	if err := q.Skip(); err != nil {
		t.Errorf("Skip on empty queue: %v", err)
	}
	if err := q.Pause(); err != nil {
		t.Errorf("Pause on empty queue: %v", err)
	}
	if err := q.Resume(); err != nil {
		t.Errorf("Resume on empty queue: %v", err)
	}
	q.Clear()
}

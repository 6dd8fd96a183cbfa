package voice

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/kestrelvoice/kestrel/pkg/audio"
)

// rampRecreator builds raw f32 inputs over a shared sample ramp and records
// every recreate call.
type rampRecreator struct {
	data  []byte
	calls []time.Duration
}

func newRampRecreator(frames int) *rampRecreator {
	samples := make([]float32, audio.StereoFrameSize*frames)
	for i := range samples {
		samples[i] = float32(i) / float32(len(samples))
	}
	return &rampRecreator{data: f32leBytes(samples...)}
}

func (r *rampRecreator) recreate(pos time.Duration) (*Input, error) {
	r.calls = append(r.calls, pos)
	offset := audio.ByteCount(pos, true, audio.SampleWidthF32)
	return NewInput(Extend(bytes.NewReader(r.data[offset:])), CodecPCMF32, RawContainer(), true)
}

func TestRestartableForwardSeekDiscards(t *testing.T) {
	t.Parallel()

	rec := newRampRecreator(5)
	in, err := NewRestartableInput(rec.recreate)
	if err != nil {
		t.Fatalf("NewRestartableInput: %v", err)
	}

	pos, err := in.Seek(40 * time.Millisecond)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if pos != 40*time.Millisecond {
		t.Fatalf("position = %v, want 40ms", pos)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("recreate called %d times, want 1 (construction only)", len(rec.calls))
	}
}

func TestRestartableBackwardSeekRecreatesExactlyOnce(t *testing.T) {
	t.Parallel()

	rec := newRampRecreator(5)
	in, err := NewRestartableInput(rec.recreate)
	if err != nil {
		t.Fatalf("NewRestartableInput: %v", err)
	}

	if _, err := in.Seek(60 * time.Millisecond); err != nil {
		t.Fatalf("forward seek: %v", err)
	}
	pos, err := in.Seek(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("backward seek: %v", err)
	}
	if pos != 20*time.Millisecond {
		t.Fatalf("position = %v, want 20ms", pos)
	}

	if len(rec.calls) != 2 {
		t.Fatalf("recreate called %d times, want 2", len(rec.calls))
	}
	if rec.calls[1] != 20*time.Millisecond {
		t.Errorf("recreate invoked at %v, want 20ms", rec.calls[1])
	}

	// The stream now reads from the recreated offset.
	out := make([]float32, 2)
	if _, err := in.Mix(out, 1.0); err != nil {
		t.Fatalf("Mix: %v", err)
	}
	want := float32(audio.StereoFrameSize) / float32(audio.StereoFrameSize*5)
	if !almostEqual(out[0], want) {
		t.Errorf("sample after backward seek = %v, want %v", out[0], want)
	}
}

func TestRestartableRejectsFramedSources(t *testing.T) {
	t.Parallel()

	_, err := NewRestartable(func(time.Duration) (*Input, error) {
		return NewInput(Extend(bytes.NewReader(framedStream([]byte{1}))), CodecOpus, FramedContainer(0), true)
	})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("error = %v, want ErrUnsupported", err)
	}
}

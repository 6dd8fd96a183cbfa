package audio_test

import (
	"math"
	"testing"
	"time"

	"github.com/kestrelvoice/kestrel/pkg/audio"
)

func TestFrameGeometry(t *testing.T) {
	t.Parallel()

	if audio.MonoFrameSize != 960 {
		t.Fatalf("MonoFrameSize = %d, want 960", audio.MonoFrameSize)
	}
	if audio.StereoFrameSize != 1920 {
		t.Fatalf("StereoFrameSize = %d, want 1920", audio.StereoFrameSize)
	}
	if audio.StereoFrameBytes != 7680 {
		t.Fatalf("StereoFrameBytes = %d, want 7680", audio.StereoFrameBytes)
	}
}

func TestSampleCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		d      time.Duration
		stereo bool
		want   int64
	}{
		{"one frame mono", audio.FrameTime, false, 960},
		{"one frame stereo", audio.FrameTime, true, 1920},
		{"one second stereo", time.Second, true, 96000},
		{"zero", 0, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := audio.SampleCount(tt.d, tt.stereo); got != tt.want {
				t.Errorf("SampleCount(%v, %v) = %d, want %d", tt.d, tt.stereo, got, tt.want)
			}
		})
	}
}

// Byte→time→byte must be the identity for byte counts on the sample grid;
// time→byte→time must be the identity for times on the sample grid.
func TestByteTimeRoundTrip(t *testing.T) {
	t.Parallel()

	for _, stereo := range []bool{false, true} {
		for _, d := range []time.Duration{
			0,
			audio.FrameTime,
			500 * time.Millisecond,
			time.Second,
			2*time.Second + 20*time.Millisecond,
		} {
			n := audio.ByteCount(d, stereo, audio.SampleWidthF32)
			back := audio.ByteDuration(n, stereo, audio.SampleWidthF32)
			if back != d {
				t.Errorf("ByteDuration(ByteCount(%v, stereo=%v)) = %v", d, stereo, back)
			}
		}
	}
}

func TestF32BytesRoundTrip(t *testing.T) {
	t.Parallel()

	var b [4]byte
	for _, s := range []float32{0, 1, -1, 0.25, -0.125} {
		audio.F32ToBytes(b[:], s)
		if got := audio.F32FromBytes(b[:]); got != s {
			t.Errorf("F32FromBytes(F32ToBytes(%v)) = %v", s, got)
		}
	}
}

func TestF32ToS16Clamps(t *testing.T) {
	t.Parallel()

	src := []float32{0, 0.5, 1.5, -2, -1}
	dst := make([]int16, len(src))
	n := audio.F32ToS16(dst, src)
	if n != len(src) {
		t.Fatalf("F32ToS16 wrote %d samples, want %d", n, len(src))
	}
	if dst[2] != 32767 {
		t.Errorf("over-range sample = %d, want 32767", dst[2])
	}
	if dst[3] != -32768 {
		t.Errorf("under-range sample = %d, want -32768", dst[3])
	}
}

func TestSoftClipBounds(t *testing.T) {
	t.Parallel()

	var sc audio.SoftClip
	buf := []float32{0, 0.5, 1.5, 3, -3, -1.5}
	sc.Apply(buf)

	for i, s := range buf {
		if s <= -1 || s >= 1 {
			t.Errorf("sample %d = %v, want within (-1, 1)", i, s)
		}
	}
	// Monotone: larger input maps to larger output.
	if !(buf[1] < buf[2] && buf[2] < buf[3]) {
		t.Errorf("soft clip not monotone: %v", buf)
	}
	if math.Abs(float64(buf[0])) > 1e-9 {
		t.Errorf("zero sample moved to %v", buf[0])
	}
}

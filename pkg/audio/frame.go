// Package audio provides the sample-geometry constants and PCM helpers shared
// by the voice pipeline: frame sizing, time/byte/sample conversions, float
// sample conversion, and the soft clipper applied to mixed output.
//
// All internal mixing uses 48 kHz interleaved 32-bit float PCM at a fixed
// 20 ms frame size. Every higher-level count in the pipeline derives from the
// constants below.
package audio

import "time"

const (
	// SampleRate is the fixed sample rate of the pipeline in Hz.
	SampleRate = 48000

	// FrameTime is the fixed output cadence: one frame every 20 ms.
	FrameTime = 20 * time.Millisecond

	// MonoFrameSize is the number of samples per channel in one 20 ms
	// frame. Kept untyped: it feeds int64 byte cursors and uint32 RTP
	// timestamps alike.
	MonoFrameSize = SampleRate / 50 // 960

	// StereoFrameSize is the number of interleaved samples in one stereo frame.
	StereoFrameSize = 2 * MonoFrameSize // 1920

	// SampleWidthF32 is the byte width of a 32-bit float sample.
	SampleWidthF32 = 4

	// SampleWidthS16 is the byte width of a 16-bit integer sample.
	SampleWidthS16 = 2

	// StereoFrameBytes is the byte length of one stereo f32 frame (7680).
	StereoFrameBytes = StereoFrameSize * SampleWidthF32
)

// SampleCount returns the number of interleaved samples spanning d at the
// pipeline sample rate. Stereo doubles the count for the second lane.
func SampleCount(d time.Duration, stereo bool) int64 {
	n := int64(d) * SampleRate / int64(time.Second)
	if stereo {
		n *= 2
	}
	return n
}

// SampleDuration returns the duration covered by n interleaved samples.
// It is the inverse of [SampleCount], truncated to the sample grid.
func SampleDuration(n int64, stereo bool) time.Duration {
	if stereo {
		n /= 2
	}
	return time.Duration(n * int64(time.Second) / SampleRate)
}

// ByteCount returns the number of bytes spanning d for samples of the given
// byte width.
func ByteCount(d time.Duration, stereo bool, sampleWidth int) int64 {
	return SampleCount(d, stereo) * int64(sampleWidth)
}

// ByteDuration returns the duration covered by n bytes of samples of the
// given byte width, truncated to the sample grid.
func ByteDuration(n int64, stereo bool, sampleWidth int) time.Duration {
	return SampleDuration(n/int64(sampleWidth), stereo)
}

package audio

import (
	"encoding/binary"
	"math"
)

// S16ToF32 converts a little-endian int16 sample to a float in [-1, 1).
func S16ToF32(lo, hi byte) float32 {
	return float32(int16(lo)|int16(hi)<<8) / 32768
}

// F32FromBytes decodes a little-endian 32-bit float sample.
func F32FromBytes(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

// F32ToBytes encodes a 32-bit float sample as little-endian bytes into dst.
// dst must be at least 4 bytes.
func F32ToBytes(dst []byte, s float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(s))
}

// F32ToS16 converts float samples to int16 with clamping, writing into dst.
// dst must be at least len(src) long. Returns the number of samples written.
func F32ToS16(dst []int16, src []float32) int {
	n := len(src)
	if len(dst) < n {
		n = len(dst)
	}
	for i := range n {
		s := src[i] * 32767
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		dst[i] = int16(s)
	}
	return n
}

// S16ToF32Slice converts int16 samples to floats in [-1, 1), writing into dst.
// dst must be at least len(src) long. Returns the number of samples written.
func S16ToF32Slice(dst []float32, src []int16) int {
	n := len(src)
	if len(dst) < n {
		n = len(dst)
	}
	for i := range n {
		dst[i] = float32(src[i]) / 32768
	}
	return n
}

// MonoToStereoF32 duplicates each mono float sample into a stereo L+R pair.
func MonoToStereoF32(pcm []float32) []float32 {
	out := make([]float32, len(pcm)*2)
	for i, s := range pcm {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}

package audio

import "math"

// SoftClip smoothly saturates float samples into (-1, 1). Summing several
// unit-amplitude tracks can push the mix outside the representable range;
// hard truncation there produces audible distortion, so the clipper applies a
// monotonic, continuous tanh curve instead.
//
// The zero value is ready to use. SoftClip is stateless and safe to copy, but
// a single instance is intended to live with the mixer that owns the buffer
// it is applied to.
type SoftClip struct{}

// Apply saturates buf in place.
func (SoftClip) Apply(buf []float32) {
	for i, s := range buf {
		buf[i] = float32(math.Tanh(float64(s)))
	}
}

package voice

import (
	"fmt"
	"log/slog"
	"sync"

	"layeh.com/gopus"

	"github.com/kestrelvoice/kestrel/pkg/audio"
)

// opusState is the decode-side state of an Opus input: the shared decoder,
// the current decoded frame, and the emit cursor within it.
//
// The decoder itself is guarded by a mutex because handles may inspect it
// while the mixer drives decoding. The frame buffer and cursor are touched
// only by the mixer.
type opusState struct {
	mu       sync.Mutex
	dec      *gopus.Decoder
	channels int

	// passthrough is a caller-asserted promise that the stream is already
	// 48 kHz / 20 ms / stereo and may be forwarded without re-encoding.
	passthrough bool

	// frame holds the most recently decoded samples as interleaved
	// floats; framePos is the next sample to emit from it.
	frame    []float32
	framePos int

	// pendingReset forces a decoder reset before the next decode,
	// re-syncing codec state after frames were skipped undecoded.
	pendingReset bool

	// scratch receives one framed packet at a time.
	scratch [dcaFrameScratch]byte
}

const dcaFrameScratch = 4000

func newOpusState(stereo, passthrough bool) (*opusState, error) {
	channels := 1
	if stereo {
		channels = 2
	}
	dec, err := gopus.NewDecoder(audio.SampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("voice: create opus decoder: %w", err)
	}
	return &opusState{
		dec:         dec,
		channels:    channels,
		passthrough: passthrough,
	}, nil
}

// reset clears the decoder's codec state in place.
func (s *opusState) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dec.ResetState()
	s.pendingReset = false
}

// decode decodes pkt into the current frame buffer and rewinds the emit
// cursor. Decode errors substitute one frame of silence: the track skips a
// beat instead of dying.
func (s *opusState) decode(pkt []byte) {
	s.mu.Lock()
	pcm, err := s.dec.Decode(pkt, audio.MonoFrameSize, false)
	s.mu.Unlock()

	if err != nil {
		slog.Warn("voice: opus decode error, substituting silence", "error", err)
		n := audio.MonoFrameSize * s.channels
		if cap(s.frame) < n {
			s.frame = make([]float32, n)
		}
		s.frame = s.frame[:n]
		clear(s.frame)
		s.framePos = 0
		return
	}

	if cap(s.frame) < len(pcm) {
		s.frame = make([]float32, len(pcm))
	}
	s.frame = s.frame[:len(pcm)]
	audio.S16ToF32Slice(s.frame, pcm)
	s.framePos = 0
}

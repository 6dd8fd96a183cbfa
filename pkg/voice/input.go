package voice

import (
	"fmt"
	"io"
	"time"

	"github.com/kestrelvoice/kestrel/pkg/audio"
)

// Metadata carries descriptive information about an input. It is opaque to
// the pipeline and surfaced only through handles.
type Metadata struct {
	Title    string
	Source   string
	Duration time.Duration
}

// InputOption configures an [Input] during construction.
type InputOption func(*Input)

// WithMetadata attaches descriptive metadata to the input.
func WithMetadata(m Metadata) InputOption {
	return func(i *Input) { i.Metadata = m }
}

// WithPassthrough asserts that an Opus input is already 48 kHz / 20 ms /
// stereo and may be forwarded to the wire without re-encoding. Violating the
// promise produces bad audio on the far end, not a crash.
func WithPassthrough(allowed bool) InputOption {
	return func(i *Input) {
		if i.opus != nil {
			i.opus.passthrough = allowed
		}
	}
}

// Input is a byte [Reader] bundled with the codec and container information
// needed to turn its stream into mixable 48 kHz stereo float samples. Inputs
// are owned by a single [Track]; none of their methods are safe for
// concurrent use.
type Input struct {
	Metadata Metadata

	stereo    bool
	reader    Reader
	codec     Codec
	opus      *opusState // non-nil iff codec == CodecOpus
	container Container

	// pos is the byte cursor past the container's input start. For Opus
	// it is virtual: one stereo f32 frame (7680 bytes) per packet, so
	// byte↔time mapping stays uniform across codecs.
	pos int64

	scratch []byte
}

// NewInput assembles an input from a reader, codec, and container.
// CodecOpus requires a framed container: raw Opus byte streams have no frame
// boundaries to decode along.
func NewInput(r Reader, codec Codec, container Container, stereo bool, opts ...InputOption) (*Input, error) {
	in := &Input{
		stereo:    stereo,
		reader:    r,
		codec:     codec,
		container: container,
	}

	if codec == CodecOpus {
		if !container.Framed() {
			return nil, fmt.Errorf("%w: opus requires a framed container", ErrUnsupported)
		}
		st, err := newOpusState(stereo, false)
		if err != nil {
			return nil, err
		}
		in.opus = st
	}

	for _, o := range opts {
		o(in)
	}
	return in, nil
}

// Stereo reports whether the source is stereo.
func (i *Input) Stereo() bool { return i.stereo }

// Codec returns the input's codec.
func (i *Input) Codec() Codec { return i.codec }

// Container returns the input's container.
func (i *Input) Container() Container { return i.container }

// SupportsPassthrough reports whether raw Opus packets from this input may
// be forwarded without re-encoding.
func (i *Input) SupportsPassthrough() bool {
	return i.opus != nil && i.opus.passthrough
}

// Position returns the cursor as a duration on the sample grid.
func (i *Input) Position() time.Duration {
	return i.byteDuration(i.pos)
}

// Close releases the reader if it holds resources (files, subprocesses).
func (i *Input) Close() error {
	if c, ok := i.reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// byteDuration maps cursor bytes to time. Opus cursors are virtual stereo
// f32 bytes regardless of the stream's channel count.
func (i *Input) byteDuration(n int64) time.Duration {
	if i.codec == CodecOpus {
		return audio.ByteDuration(n, true, audio.SampleWidthF32)
	}
	return audio.ByteDuration(n, i.stereo, i.codec.SampleWidth())
}

// byteCount maps a time to cursor bytes, inverse of byteDuration.
func (i *Input) byteCount(d time.Duration) int64 {
	if i.codec == CodecOpus {
		return audio.ByteCount(d, true, audio.SampleWidthF32)
	}
	return audio.ByteCount(d, i.stereo, i.codec.SampleWidth())
}

// Mix reads samples, converts them to stereo floats, scales by volume, and
// adds them into out. Mono sources duplicate each sample across both lanes.
// It returns the number of floats written into out; a short or ended source
// returns the partial count without error.
func (i *Input) Mix(out []float32, volume float32) (int, error) {
	if i.opus != nil {
		return i.mixOpus(out, volume)
	}
	return i.mixPCM(out, volume)
}

func (i *Input) mixPCM(out []float32, volume float32) (int, error) {
	width := i.codec.SampleWidth()

	srcSamples := len(out)
	if !i.stereo {
		srcSamples = len(out) / 2
	}
	need := srcSamples * width
	if cap(i.scratch) < need {
		i.scratch = make([]byte, need)
	}
	buf := i.scratch[:need]

	n, err := io.ReadFull(i.reader, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, fmt.Errorf("voice: read source: %w", err)
	}
	n -= n % width
	i.pos += int64(n)

	samples := n / width
	for s := range samples {
		var f float32
		switch i.codec {
		case CodecPCMS16:
			f = audio.S16ToF32(buf[s*width], buf[s*width+1])
		default:
			f = audio.F32FromBytes(buf[s*width:])
		}
		f *= volume

		if i.stereo {
			out[s] += f
		} else {
			out[s*2] += f
			out[s*2+1] += f
		}
	}

	if i.stereo {
		return samples, nil
	}
	return samples * 2, nil
}

func (i *Input) mixOpus(out []float32, volume float32) (int, error) {
	st := i.opus
	written := 0

	for written < len(out) {
		if st.framePos == len(st.frame) {
			if st.pendingReset {
				st.reset()
			}

			fi, err := i.container.NextFrame(i.reader)
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			if err != nil {
				return written, err
			}
			if fi.FrameLen > len(st.scratch) {
				return written, fmt.Errorf("voice: opus frame of %d bytes exceeds scratch", fi.FrameLen)
			}
			if _, err := io.ReadFull(i.reader, st.scratch[:fi.FrameLen]); err != nil {
				break
			}

			st.decode(st.scratch[:fi.FrameLen])
			i.pos += audio.StereoFrameBytes
		}

		if i.stereo {
			n := min(len(out)-written, len(st.frame)-st.framePos)
			for k := range n {
				out[written+k] += st.frame[st.framePos+k] * volume
			}
			written += n
			st.framePos += n
		} else {
			// Mono frame: each decoded sample covers one stereo pair.
			n := min((len(out)-written)/2, len(st.frame)-st.framePos)
			for k := range n {
				f := st.frame[st.framePos+k] * volume
				out[written+k*2] += f
				out[written+k*2+1] += f
			}
			written += n * 2
			st.framePos += n
			if n == 0 {
				break
			}
		}
	}

	return written, nil
}

// ReadOpusFrame reads one framed Opus packet into buf without decoding it
// and returns the payload length. The virtual cursor advances by one 20 ms
// frame. Only valid for Opus inputs.
func (i *Input) ReadOpusFrame(buf []byte) (int, error) {
	if i.opus == nil {
		return 0, fmt.Errorf("%w: not an opus input", ErrUnsupported)
	}

	fi, err := i.container.NextFrame(i.reader)
	if err != nil {
		return 0, err
	}
	if fi.FrameLen > len(buf) {
		return 0, fmt.Errorf("voice: opus frame of %d bytes exceeds buffer", fi.FrameLen)
	}
	if _, err := io.ReadFull(i.reader, buf[:fi.FrameLen]); err != nil {
		return 0, fmt.Errorf("voice: read opus frame: %w", err)
	}

	i.pos += audio.StereoFrameBytes
	return fi.FrameLen, nil
}

// ignoreFrame consumes one framed packet without decoding, advancing the
// virtual cursor by a full frame and flagging the decoder for a reset so the
// next true decode resynchronises.
func (i *Input) ignoreFrame() error {
	fi, err := i.container.NextFrame(i.reader)
	if err != nil {
		return err
	}
	if _, err := io.CopyN(io.Discard, i.reader, int64(fi.FrameLen)); err != nil {
		return err
	}

	i.pos += audio.StereoFrameBytes
	st := i.opus
	st.framePos = len(st.frame)
	st.pendingReset = true
	return nil
}

// Seek repositions the cursor to t and returns the position actually
// reached. Three strategies are tried in order: a direct byte seek when the
// container admits a linear byte↔time mapping, a forward read-and-discard,
// and a rewind-to-start replay for backward seeks on framed streams.
func (i *Input) Seek(t time.Duration) (time.Duration, error) {
	if t < 0 {
		t = 0
	}
	target := i.byteCount(t)

	// (a) Raw container: byte offsets map linearly to time.
	if !i.container.Framed() {
		if s, ok := seekReader(i.reader); ok {
			abs, err := s.Seek(i.container.InputStart()+target, io.SeekStart)
			if err != nil {
				return i.Position(), fmt.Errorf("voice: seek: %w", err)
			}
			i.pos = max(abs-i.container.InputStart(), 0)
			return i.Position(), nil
		}
		if target < i.pos {
			return i.Position(), ErrNotSeekable
		}
		return i.discardTo(target)
	}

	// (b) Forward on a framed stream: skip packets undecoded.
	if target >= i.pos {
		return i.discardTo(target)
	}

	// (c) Backward on a framed stream: rewind to the first frame and
	// replay from zero.
	s, ok := seekReader(i.reader)
	if !ok {
		return i.Position(), ErrNotSeekable
	}
	if _, err := s.Seek(i.container.InputStart(), io.SeekStart); err != nil {
		return i.Position(), fmt.Errorf("voice: rewind: %w", err)
	}
	i.pos = 0
	if st := i.opus; st != nil {
		st.frame = st.frame[:0]
		st.framePos = 0
		st.pendingReset = true
	}
	return i.discardTo(target)
}

// discardTo consumes bytes (or, for Opus, whole frames) until the cursor
// reaches target. Hitting EOF first leaves the cursor where the stream
// ended.
func (i *Input) discardTo(target int64) (time.Duration, error) {
	if i.opus != nil {
		for i.pos < target {
			if err := i.ignoreFrame(); err != nil {
				if err == io.EOF || err == io.ErrUnexpectedEOF {
					break
				}
				return i.Position(), err
			}
		}
		return i.Position(), nil
	}

	n, err := io.CopyN(io.Discard, i.reader, target-i.pos)
	i.pos += n
	if err != nil && err != io.EOF {
		return i.Position(), fmt.Errorf("voice: discard: %w", err)
	}
	return i.Position(), nil
}

package voice

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"layeh.com/gopus"

	"github.com/kestrelvoice/kestrel/pkg/audio"
)

// MemorySource caches the raw byte stream of another input in RAM as it is
// read, making the audio byte-addressable and shareable: every call to
// [MemorySource.NewInput] yields an independent seekable cursor over the
// same lazily-filled buffer.
type MemorySource struct {
	store       *memoryStore
	meta        Metadata
	stereo      bool
	codec       Codec
	cont        Container
	passthrough bool
}

type memoryStore struct {
	mu   sync.Mutex
	buf  []byte
	src  *Input
	done bool
}

// NewMemorySource wraps src. The source input must be freshly constructed:
// caching begins at its current read position. Ownership of src transfers to
// the cache, which closes it once fully drained.
func NewMemorySource(src *Input) *MemorySource {
	cont := RawContainer()
	if src.Container().Framed() {
		// The source constructor already consumed the stream header, so
		// the cached copy starts at its first frame.
		cont = FramedContainer(0)
	}
	return &MemorySource{
		store:       &memoryStore{src: src},
		meta:        src.Metadata,
		stereo:      src.Stereo(),
		codec:       src.Codec(),
		cont:        cont,
		passthrough: src.SupportsPassthrough(),
	}
}

// NewInput returns a new seekable input over the cached bytes. A source that
// promised wire-ready Opus keeps that promise through the cache.
func (m *MemorySource) NewInput(opts ...InputOption) (*Input, error) {
	opts = append([]InputOption{WithMetadata(m.meta), WithPassthrough(m.passthrough)}, opts...)
	return NewInput(&memoryReader{store: m.store}, m.codec, m.cont, m.stereo, opts...)
}

// load pulls bytes from the source until the buffer covers target or the
// source ends. Must be called with the store lock held.
func (s *memoryStore) load(target int64) {
	var chunk [16384]byte
	for !s.done && int64(len(s.buf)) < target {
		n, err := s.src.reader.Read(chunk[:])
		s.buf = append(s.buf, chunk[:n]...)
		if err != nil {
			s.done = true
			s.src.Close()
		}
	}
}

type memoryReader struct {
	store *memoryStore
	pos   int64
}

func (r *memoryReader) Read(p []byte) (int, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(r.pos + int64(len(p)))
	if r.pos >= int64(len(s.buf)) {
		return 0, io.EOF
	}
	n := copy(p, s.buf[r.pos:])
	r.pos += int64(n)
	return n, nil
}

func (r *memoryReader) Seekable() bool { return true }

func (r *memoryReader) Seek(offset int64, whence int) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += r.pos
	case io.SeekEnd:
		s.load(1 << 62)
		offset += int64(len(s.buf))
	default:
		return r.pos, fmt.Errorf("voice: invalid seek whence %d", whence)
	}
	if offset < 0 {
		return r.pos, fmt.Errorf("voice: seek before start")
	}
	r.pos = offset
	return r.pos, nil
}

// CompressedSource caches another input as a framed Opus stream, re-encoded
// at a fixed bitrate. Memory use is bounded by the compressed size rather
// than the raw PCM, and the cached stream qualifies for passthrough since it
// is produced at exactly the pipeline's frame geometry.
type CompressedSource struct {
	store *compressedStore
	meta  Metadata
}

type compressedStore struct {
	mu   sync.Mutex
	buf  []byte
	src  *Input
	enc  *gopus.Encoder
	done bool

	mix [audio.StereoFrameSize]float32
	pcm [audio.StereoFrameSize]int16
}

// NewCompressedSource wraps src, re-encoding it to Opus at bitrate as it is
// first read. Ownership of src transfers to the cache.
func NewCompressedSource(src *Input, bitrate int) (*CompressedSource, error) {
	enc, err := gopus.NewEncoder(audio.SampleRate, 2, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("voice: create cache encoder: %w", err)
	}
	enc.SetBitrate(bitrate)

	return &CompressedSource{
		store: &compressedStore{src: src, enc: enc},
		meta:  src.Metadata,
	}, nil
}

// NewInput returns a new seekable Opus input over the cached stream.
// Passthrough is enabled: the cache encodes at the pipeline's own geometry.
func (c *CompressedSource) NewInput(opts ...InputOption) (*Input, error) {
	opts = append([]InputOption{WithMetadata(c.meta), WithPassthrough(true)}, opts...)
	return NewInput(&compressedReader{store: c.store}, CodecOpus, FramedContainer(0), true, opts...)
}

// load encodes frames from the source until the buffer covers target or the
// source ends. Must be called with the store lock held.
func (s *compressedStore) load(target int64) {
	for !s.done && int64(len(s.buf)) < target {
		clear(s.mix[:])
		n, err := s.src.Mix(s.mix[:], 1.0)
		if n == 0 || err != nil {
			s.done = true
			s.src.Close()
			return
		}
		// A trailing partial frame is padded with silence.
		clear(s.mix[n:])

		audio.F32ToS16(s.pcm[:], s.mix[:])
		pkt, err := s.enc.Encode(s.pcm[:], audio.MonoFrameSize, dcaFrameScratch)
		if err != nil {
			s.done = true
			s.src.Close()
			return
		}

		var hdr [2]byte
		binary.LittleEndian.PutUint16(hdr[:], uint16(len(pkt)))
		s.buf = append(s.buf, hdr[:]...)
		s.buf = append(s.buf, pkt...)
	}
}

type compressedReader struct {
	store *compressedStore
	pos   int64
}

func (r *compressedReader) Read(p []byte) (int, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load(r.pos + int64(len(p)))
	if r.pos >= int64(len(s.buf)) {
		return 0, io.EOF
	}
	n := copy(p, s.buf[r.pos:])
	r.pos += int64(n)
	return n, nil
}

func (r *compressedReader) Seekable() bool { return true }

func (r *compressedReader) Seek(offset int64, whence int) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += r.pos
	case io.SeekEnd:
		s.load(1 << 62)
		offset += int64(len(s.buf))
	default:
		return r.pos, fmt.Errorf("voice: invalid seek whence %d", whence)
	}
	if offset < 0 {
		return r.pos, fmt.Errorf("voice: seek before start")
	}
	r.pos = offset
	return r.pos, nil
}

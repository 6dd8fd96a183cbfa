package voice

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/kestrelvoice/kestrel/pkg/audio"
)

// Codec identifies the encoding of the bytes an input's reader produces.
type Codec int

const (
	// CodecOpus is framed Opus packets. Requires a framed container.
	CodecOpus Codec = iota

	// CodecPCMS16 is interleaved little-endian signed 16-bit PCM.
	CodecPCMS16

	// CodecPCMF32 is interleaved little-endian 32-bit float PCM.
	CodecPCMF32
)

// SampleWidth returns the per-sample byte width of the codec. For Opus this
// is the width of the decoded float samples, so that the virtual byte cursor
// of an Opus input advances by one stereo f32 frame per packet.
func (c Codec) SampleWidth() int {
	if c == CodecPCMS16 {
		return audio.SampleWidthS16
	}
	return audio.SampleWidthF32
}

func (c Codec) String() string {
	switch c {
	case CodecOpus:
		return "opus"
	case CodecPCMS16:
		return "pcm-s16le"
	case CodecPCMF32:
		return "pcm-f32le"
	}
	return fmt.Sprintf("codec(%d)", int(c))
}

// Container describes how codec packets are laid out in the byte stream.
//
// A raw container has no per-frame structure: byte offsets map linearly to
// time. A framed container prefixes every packet with a little-endian 16-bit
// length, preceded by a fixed header (e.g. DCA1 magic and metadata) that ends
// at the first frame offset.
type Container struct {
	framed           bool
	firstFrameOffset int64
}

// RawContainer returns the container for unframed PCM streams.
func RawContainer() Container {
	return Container{}
}

// FramedContainer returns a container whose first length-prefixed frame
// starts at offset.
func FramedContainer(offset int64) Container {
	return Container{framed: true, firstFrameOffset: offset}
}

// Framed reports whether the stream is length-prefixed.
func (c Container) Framed() bool { return c.framed }

// InputStart returns the byte offset of the first audio payload.
func (c Container) InputStart() int64 { return c.firstFrameOffset }

// FrameInfo describes one frame consumed from a framed stream.
type FrameInfo struct {
	// HeaderLen is the length of the frame header in bytes (2 for the
	// little-endian length prefix, 0 for raw streams).
	HeaderLen int

	// FrameLen is the payload length in bytes.
	FrameLen int
}

// NextFrame reads the header of the next frame from r and returns its
// descriptor. For raw containers it returns ErrUnsupported: raw streams have
// no frame boundaries to advance over.
func (c Container) NextFrame(r io.Reader) (FrameInfo, error) {
	if !c.framed {
		return FrameInfo{}, ErrUnsupported
	}

	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return FrameInfo{}, err
	}

	n := int16(binary.LittleEndian.Uint16(hdr[:]))
	if n < 0 {
		return FrameInfo{}, fmt.Errorf("voice: negative frame length %d", n)
	}
	return FrameInfo{HeaderLen: 2, FrameLen: int(n)}, nil
}

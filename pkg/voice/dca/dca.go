// Package dca reads and writes the DCA1 framed-Opus container: a 4-byte
// "DCA1" magic, a 4-byte little-endian metadata length, that many bytes of
// JSON metadata, then repeating [len:int16 LE][opus payload] frames until
// EOF.
package dca

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Magic is the DCA1 file signature.
const Magic = "DCA1"

// MaxFrameLen is the largest representable frame payload (int16 length
// prefix).
const MaxFrameLen = 32767

// Metadata is the JSON document embedded in a DCA1 header. Unknown fields
// are preserved only by tools that rewrite the header wholesale; this
// structure covers the fields the pipeline cares about.
type Metadata struct {
	Dca  *ToolInfo `json:"dca,omitempty"`
	Opus *OpusInfo `json:"opus,omitempty"`
}

// ToolInfo identifies the encoder that produced the file.
type ToolInfo struct {
	Version int    `json:"version"`
	Tool    string `json:"tool,omitempty"`
}

// OpusInfo describes the Opus stream parameters.
type OpusInfo struct {
	Bitrate    int  `json:"abr,omitempty"`
	SampleRate int  `json:"sample_rate,omitempty"`
	Channels   int  `json:"channels,omitempty"`
	FrameSize  int  `json:"frame_size,omitempty"`
	VBR        bool `json:"vbr,omitempty"`
}

// ReadHeader consumes the magic and metadata from r. It returns the parsed
// metadata and the offset of the first frame (8 + metadata length).
func ReadHeader(r io.Reader) (*Metadata, int64, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, 0, fmt.Errorf("dca: read magic: %w", err)
	}
	if string(magic[:]) != Magic {
		return nil, 0, fmt.Errorf("dca: bad magic %q", magic[:])
	}

	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return nil, 0, fmt.Errorf("dca: read metadata length: %w", err)
	}
	n := int32(binary.LittleEndian.Uint32(size[:]))
	if n < 0 {
		return nil, 0, fmt.Errorf("dca: negative metadata length %d", n)
	}

	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, 0, fmt.Errorf("dca: read metadata: %w", err)
	}

	meta := &Metadata{}
	if n > 0 {
		if err := json.Unmarshal(raw, meta); err != nil {
			return nil, 0, fmt.Errorf("dca: parse metadata: %w", err)
		}
	}
	return meta, 8 + int64(n), nil
}

// WriteHeader writes the magic and metadata to w and returns the offset of
// the first frame.
func WriteHeader(w io.Writer, meta *Metadata) (int64, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("dca: marshal metadata: %w", err)
	}

	if _, err := io.WriteString(w, Magic); err != nil {
		return 0, fmt.Errorf("dca: write magic: %w", err)
	}
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(raw)))
	if _, err := w.Write(size[:]); err != nil {
		return 0, fmt.Errorf("dca: write metadata length: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return 0, fmt.Errorf("dca: write metadata: %w", err)
	}
	return 8 + int64(len(raw)), nil
}

// ReadFrame reads one length-prefixed Opus frame into buf and returns the
// payload length. io.EOF is returned cleanly at the end of the stream; a
// truncated frame yields io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader, buf []byte) (int, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return 0, io.ErrUnexpectedEOF
		}
		return 0, err
	}

	n := int16(binary.LittleEndian.Uint16(hdr[:]))
	if n < 0 {
		return 0, fmt.Errorf("dca: negative frame length %d", n)
	}
	if int(n) > len(buf) {
		return 0, fmt.Errorf("dca: frame length %d exceeds buffer %d", n, len(buf))
	}
	if _, err := io.ReadFull(r, buf[:n]); err != nil {
		return 0, fmt.Errorf("dca: read frame payload: %w", err)
	}
	return int(n), nil
}

// WriteFrame writes one length-prefixed Opus frame to w.
func WriteFrame(w io.Writer, frame []byte) error {
	if len(frame) > MaxFrameLen {
		return fmt.Errorf("dca: frame length %d exceeds %d", len(frame), MaxFrameLen)
	}
	var hdr [2]byte
	binary.LittleEndian.PutUint16(hdr[:], uint16(len(frame)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("dca: write frame header: %w", err)
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("dca: write frame payload: %w", err)
	}
	return nil
}

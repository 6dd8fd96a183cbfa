package voice

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/jonas747/ogg"

	"github.com/kestrelvoice/kestrel/pkg/voice/dca"
)

// ffmpegArgs builds the transcoder invocation: decode whatever src is, emit
// interleaved 48 kHz stereo f32 PCM on stdout, and start at offset when
// nonzero. -ss precedes -i so ffmpeg seeks in the demuxer instead of
// decoding and discarding.
func ffmpegArgs(src string, offset time.Duration) []string {
	args := make([]string, 0, 16)
	if offset > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.4f", offset.Seconds()))
	}
	return append(args,
		"-i", src,
		"-vn",
		"-f", "f32le",
		"-ac", "2",
		"-ar", "48000",
		"-acodec", "pcm_f32le",
		"pipe:1",
	)
}

func ffmpegInput(src string, offset time.Duration, opts ...InputOption) (*Input, error) {
	cmd := exec.Command("ffmpeg", ffmpegArgs(src, offset)...)
	r, err := NewPipeReader(cmd)
	if err != nil {
		return nil, err
	}

	opts = append([]InputOption{WithMetadata(Metadata{Source: src})}, opts...)
	in, err := NewInput(r, CodecPCMF32, RawContainer(), true, opts...)
	if err != nil {
		r.Close()
		return nil, err
	}
	return in, nil
}

// FFmpegSource transcodes a local file or URL through an ffmpeg subprocess
// into raw PCM. The result only seeks forward; use [RestartableFFmpegSource]
// when backward seeks are needed.
func FFmpegSource(src string, opts ...InputOption) (*Input, error) {
	return ffmpegInput(src, 0, opts...)
}

// RestartableFFmpegSource transcodes src like [FFmpegSource] but supports
// backward seeks by relaunching the transcoder at the target time.
func RestartableFFmpegSource(src string, opts ...InputOption) (*Input, error) {
	return NewRestartableInput(func(pos time.Duration) (*Input, error) {
		return ffmpegInput(src, pos)
	}, opts...)
}

// PCMFileSource plays a headerless PCM file of the given codec and channel
// layout. The file is fully seekable.
func PCMFileSource(path string, codec Codec, stereo bool, opts ...InputOption) (*Input, error) {
	if codec == CodecOpus {
		return nil, fmt.Errorf("%w: raw files cannot carry opus", ErrUnsupported)
	}
	r, err := NewFileReader(path)
	if err != nil {
		return nil, err
	}
	in, err := NewInput(r, codec, RawContainer(), stereo, opts...)
	if err != nil {
		r.(io.Closer).Close()
		return nil, err
	}
	return in, nil
}

// NewDCAInput reads the DCA1 header from r and returns a passthrough-capable
// Opus input positioned at the first audio frame. Metadata recorded by the
// encoding tool is surfaced on the input.
func NewDCAInput(r Reader, opts ...InputOption) (*Input, error) {
	meta, offset, err := dca.ReadHeader(r)
	if err != nil {
		return nil, err
	}

	md := Metadata{}
	if meta.Dca != nil {
		md.Source = meta.Dca.Tool
	}
	stereo := true
	if meta.Opus != nil {
		stereo = meta.Opus.Channels == 2
	}

	opts = append([]InputOption{WithMetadata(md), WithPassthrough(stereo)}, opts...)
	return NewInput(r, CodecOpus, FramedContainer(offset), stereo, opts...)
}

// DCAFileSource opens a DCA1 file as a seekable, passthrough-capable input.
func DCAFileSource(path string, opts ...InputOption) (*Input, error) {
	r, err := NewFileReader(path)
	if err != nil {
		return nil, err
	}
	in, err := NewDCAInput(r, opts...)
	if err != nil {
		r.(io.Closer).Close()
		return nil, err
	}
	return in, nil
}

// OggOpusSource reframes an Ogg Opus stream (what ffmpeg's libopus muxer
// and most stream rippers produce) into length-prefixed packets the
// pipeline can play without re-encoding. Packets above 20 ms or non-48 kHz
// streams break the passthrough promise; feed those through ffmpeg instead.
//
// The returned input does not seek backward: the Ogg layer reads strictly
// forward.
func OggOpusSource(r io.Reader, opts ...InputOption) (*Input, error) {
	pr, pw := io.Pipe()

	go func() {
		dec := ogg.NewPacketDecoder(ogg.NewDecoder(r))

		// The first two packets are the OpusHead and OpusTags headers.
		skip := 2
		var prefix [2]byte
		for {
			packet, _, err := dec.Decode()
			if err != nil {
				if err != io.EOF {
					slog.Warn("voice: ogg decode failed", "error", err)
				}
				pw.CloseWithError(io.EOF)
				return
			}
			if skip > 0 {
				skip--
				continue
			}
			if len(packet) > dca.MaxFrameLen {
				pw.CloseWithError(fmt.Errorf("voice: ogg packet of %d bytes too large", len(packet)))
				return
			}
			binary.LittleEndian.PutUint16(prefix[:], uint16(len(packet)))
			if _, err := pw.Write(prefix[:]); err != nil {
				return
			}
			if _, err := pw.Write(packet); err != nil {
				return
			}
		}
	}()

	opts = append([]InputOption{WithPassthrough(true)}, opts...)
	in, err := NewInput(oggPipeReader{pr}, CodecOpus, FramedContainer(0), true, opts...)
	if err != nil {
		pr.Close()
		return nil, err
	}
	return in, nil
}

// oggPipeReader exposes the reframing pipe as a closeable, non-seekable
// Reader. Closing it unblocks the decode goroutine.
type oggPipeReader struct{ *io.PipeReader }

func (oggPipeReader) Seekable() bool { return false }

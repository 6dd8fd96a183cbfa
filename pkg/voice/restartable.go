package voice

import (
	"fmt"
	"io"
	"time"

	"github.com/kestrelvoice/kestrel/pkg/audio"
)

// RecreateFunc produces a fresh [Input] positioned at the given time. It is
// invoked by a [Restartable] whenever playback must move backward over a
// source that cannot rewind natively, such as a transcoder pipe.
type RecreateFunc func(pos time.Duration) (*Input, error)

// Restartable adapts a non-rewindable source into a seekable [Reader] by
// recreating it. Forward seeks consume bytes into a sink; backward seeks
// close the current source and invoke the recreate function with the target
// time.
//
// The recreated input must use a raw container: the restartable operates in
// the byte domain and relies on the linear byte↔time mapping raw streams
// provide.
type Restartable struct {
	inner    *Input
	recreate RecreateFunc
	pos      int64
}

// NewRestartable builds a restartable around recreate, immediately invoking
// it at time zero.
func NewRestartable(recreate RecreateFunc) (*Restartable, error) {
	inner, err := recreate(0)
	if err != nil {
		return nil, fmt.Errorf("voice: restartable create: %w", err)
	}
	if inner.Container().Framed() {
		inner.Close()
		return nil, fmt.Errorf("%w: restartable requires a raw container", ErrUnsupported)
	}
	return &Restartable{inner: inner, recreate: recreate}, nil
}

// NewRestartableInput wraps a [Restartable] in an [Input] that mirrors the
// recreated source's codec, container, and channel layout.
func NewRestartableInput(recreate RecreateFunc, opts ...InputOption) (*Input, error) {
	r, err := NewRestartable(recreate)
	if err != nil {
		return nil, err
	}
	opts = append([]InputOption{WithMetadata(r.inner.Metadata)}, opts...)
	return NewInput(r, r.inner.Codec(), r.inner.Container(), r.inner.Stereo(), opts...)
}

func (r *Restartable) Read(p []byte) (int, error) {
	n, err := r.inner.reader.Read(p)
	r.pos += int64(n)
	return n, err
}

// Seekable always reports true: that is the point of the adapter.
func (r *Restartable) Seekable() bool { return true }

// Seek repositions to an absolute byte offset. Offsets behind the current
// position rebuild the inner input via the recreate function; offsets ahead
// consume the delta into a sink. Only io.SeekStart is supported.
func (r *Restartable) Seek(offset int64, whence int) (int64, error) {
	if whence != io.SeekStart {
		return r.pos, fmt.Errorf("%w: restartable supports absolute seeks only", ErrUnsupported)
	}
	rel := max(offset-r.inner.Container().InputStart(), 0)

	if rel < r.pos {
		t := audio.ByteDuration(rel, r.inner.Stereo(), r.inner.Codec().SampleWidth())
		fresh, err := r.recreate(t)
		if err != nil {
			return r.pos, fmt.Errorf("voice: restartable recreate: %w", err)
		}
		if fresh.Container().Framed() {
			fresh.Close()
			return r.pos, fmt.Errorf("%w: restartable requires a raw container", ErrUnsupported)
		}
		r.inner.Close()
		r.inner = fresh
		r.pos = rel
		return offset, nil
	}

	n, err := io.CopyN(io.Discard, r.inner.reader, rel-r.pos)
	r.pos += n
	if err != nil && err != io.EOF {
		return r.pos, fmt.Errorf("voice: restartable discard: %w", err)
	}
	return r.inner.Container().InputStart() + r.pos, nil
}

// Close releases the current inner input.
func (r *Restartable) Close() error { return r.inner.Close() }

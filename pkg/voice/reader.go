package voice

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Reader is the byte source feeding an [Input]. Built-in implementations
// cover files, transcoder subprocess pipes, in-memory caches, and the
// restartable adapter; arbitrary user sources plug in through [Extend] and
// [ExtendSeekable].
type Reader interface {
	io.Reader

	// Seekable reports whether the reader supports Seek. Callers must
	// check this before type-asserting to io.Seeker.
	Seekable() bool
}

// fileReader is a buffered, seekable reader over a local file.
type fileReader struct {
	f   *os.File
	buf *bufio.Reader
}

// NewFileReader opens path for buffered, seekable reading.
func NewFileReader(path string) (Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("voice: open %s: %w", path, err)
	}
	return &fileReader{f: f, buf: bufio.NewReader(f)}, nil
}

func (r *fileReader) Read(p []byte) (int, error) { return r.buf.Read(p) }

func (r *fileReader) Seekable() bool { return true }

// Seek repositions the underlying file and discards buffered bytes.
// Relative seeks account for the bytes the buffer has read ahead.
func (r *fileReader) Seek(offset int64, whence int) (int64, error) {
	if whence == io.SeekCurrent {
		offset -= int64(r.buf.Buffered())
	}
	pos, err := r.f.Seek(offset, whence)
	if err != nil {
		return 0, err
	}
	r.buf.Reset(r.f)
	return pos, nil
}

// Close closes the underlying file.
func (r *fileReader) Close() error { return r.f.Close() }

// extensionReader adapts a caller-provided io.Reader; never seekable.
type extensionReader struct {
	io.Reader
}

func (extensionReader) Seekable() bool { return false }

// Extend wraps an arbitrary io.Reader as a non-seekable [Reader].
func Extend(r io.Reader) Reader {
	return extensionReader{r}
}

// seekableExtensionReader adapts a caller-provided io.ReadSeeker.
type seekableExtensionReader struct {
	io.ReadSeeker
}

func (seekableExtensionReader) Seekable() bool { return true }

// ExtendSeekable wraps an arbitrary io.ReadSeeker as a seekable [Reader].
func ExtendSeekable(rs io.ReadSeeker) Reader {
	return seekableExtensionReader{rs}
}

// seekReader returns the reader's seek interface if it is seekable.
func seekReader(r Reader) (io.Seeker, bool) {
	if !r.Seekable() {
		return nil, false
	}
	s, ok := r.(io.Seeker)
	return s, ok
}

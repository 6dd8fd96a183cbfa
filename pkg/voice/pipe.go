package voice

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
)

// PipeReader is the buffered stdout of a transcoder subprocess. It is never
// seekable, and Close terminates the child; a leaked transcoder keeps
// producing audio into a dead pipe.
type PipeReader struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	buf    *bufio.Reader
}

// NewPipeReader starts cmd with its stdout piped into the returned reader.
// Stdin and stderr are left disconnected per the subprocess contract. The
// command must already be configured to emit the pipeline's PCM format.
func NewPipeReader(cmd *exec.Cmd) (*PipeReader, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("voice: pipe stdout: %w", err)
	}
	cmd.Stdin = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("voice: start %s: %w", cmd.Path, err)
	}

	return &PipeReader{
		cmd:    cmd,
		stdout: stdout,
		buf:    bufio.NewReaderSize(stdout, 16384),
	}, nil
}

func (r *PipeReader) Read(p []byte) (int, error) { return r.buf.Read(p) }

// Seekable always reports false: a pipe cannot rewind. Wrap the source in a
// [Restartable] to seek over pipe-backed audio.
func (r *PipeReader) Seekable() bool { return false }

// Close kills the child process and reaps it.
func (r *PipeReader) Close() error {
	if err := r.cmd.Process.Kill(); err != nil {
		slog.Warn("voice: kill transcoder", "path", r.cmd.Path, "error", err)
	}
	// Wait returns the kill signal as an error; only the reap matters.
	_ = r.cmd.Wait()
	return r.stdout.Close()
}

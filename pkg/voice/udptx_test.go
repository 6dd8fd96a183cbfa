package voice

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"
)

// chanWriter records every write and can be told to start failing.
type chanWriter struct {
	mu     sync.Mutex
	writes [][]byte
	err    error
	wrote  chan struct{}
}

func newChanWriter() *chanWriter {
	return &chanWriter{wrote: make(chan struct{}, 16)}
}

func (w *chanWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return 0, w.err
	}
	w.writes = append(w.writes, bytes.Clone(p))
	select {
	case w.wrote <- struct{}{}:
	default:
	}
	return len(p), nil
}

func (w *chanWriter) fail(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
}

func (w *chanWriter) all() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]byte(nil), w.writes...)
}

// runSender starts the UDP sender and reports on a channel when it returns.
func runSender(w *chanWriter, rx chan UDPMessage, ssrc uint32) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		runUDPSender(w, rx, ssrc, nil)
		close(done)
	}()
	return done
}

func awaitExit(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sender did not exit")
	}
}

func TestUDPSenderForwardsPackets(t *testing.T) {
	t.Parallel()

	w := newChanWriter()
	rx := make(chan UDPMessage, 8)
	done := runSender(w, rx, 1)

	pkts := [][]byte{{0x01, 0x02}, {0x03}, {0x04, 0x05, 0x06}}
	for _, p := range pkts {
		rx <- UDPPacket{Data: p}
	}
	for range pkts {
		select {
		case <-w.wrote:
		case <-time.After(2 * time.Second):
			t.Fatal("packet never written")
		}
	}

	got := w.all()
	if len(got) != len(pkts) {
		t.Fatalf("wrote %d packets, want %d", len(got), len(pkts))
	}
	for i := range pkts {
		if !bytes.Equal(got[i], pkts[i]) {
			t.Errorf("packet %d = %x, want %x", i, got[i], pkts[i])
		}
	}

	rx <- UDPPoison{}
	awaitExit(t, done)
}

func TestUDPSenderExitsOnPoison(t *testing.T) {
	t.Parallel()

	rx := make(chan UDPMessage, 1)
	done := runSender(newChanWriter(), rx, 1)
	rx <- UDPPoison{}
	awaitExit(t, done)
}

func TestUDPSenderExitsOnChannelClose(t *testing.T) {
	t.Parallel()

	rx := make(chan UDPMessage)
	done := runSender(newChanWriter(), rx, 1)
	close(rx)
	awaitExit(t, done)
}

func TestUDPSenderExitsOnWriteError(t *testing.T) {
	t.Parallel()

	w := newChanWriter()
	w.fail(errors.New("socket closed"))
	rx := make(chan UDPMessage, 1)
	done := runSender(w, rx, 1)

	rx <- UDPPacket{Data: []byte{0x01}}
	awaitExit(t, done)
}

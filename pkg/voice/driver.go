package voice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kestrelvoice/kestrel/internal/observe"
)

// Driver is the top-level handle of one voice session. It owns the mixer,
// the event dispatch task, and (while connected) the gateway and UDP tasks,
// and survives reconnects: tracks keep their state across a resumed or
// re-established session.
//
// All methods are safe for concurrent use.
type Driver struct {
	mu        sync.Mutex
	ic        *Interconnect
	core      chan CoreStatus
	conn      *connection
	udpCh     chan UDPMessage
	info      SessionInfo
	connected bool
	closed    bool

	met     *observe.Metrics
	retries int
	done    chan struct{}
}

// DriverOption configures a driver at creation.
type DriverOption func(*Driver)

// WithMetrics attaches pipeline metrics. A nil metrics value is valid and
// records nothing.
func WithMetrics(m *observe.Metrics) DriverOption {
	return func(d *Driver) { d.met = m }
}

// WithResumeRetries sets how many resume attempts precede a full reconnect.
func WithResumeRetries(n int) DriverOption {
	return func(d *Driver) { d.retries = n }
}

// NewDriver creates a disconnected driver. The mixer and event tasks start
// immediately and park until a session is connected.
func NewDriver(opts ...DriverOption) (*Driver, error) {
	d := &Driver{
		core:    make(chan CoreStatus, 8),
		retries: 3,
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(d)
	}
	d.ic = newInterconnect(d.core)

	m, err := newMixer(d.ic, d.met)
	if err != nil {
		return nil, fmt.Errorf("voice: create mixer: %w", err)
	}
	go runEvents(d.ic.Events)
	go m.run()
	go d.watchCore()
	return d, nil
}

// Connect establishes a voice session from the credentials handed over by
// the main gateway. An existing session is torn down first.
func (d *Driver) Connect(ctx context.Context, info SessionInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("voice: driver closed")
	}
	if d.connected {
		d.teardownLocked()
	}

	conn, err := connect(ctx, info)
	if err != nil {
		return err
	}
	d.info = info
	d.wireLocked(conn)
	d.met.SessionStarted()
	slog.Info("voice: session connected", "guild", info.GuildID, "ssrc", conn.ssrc)
	return nil
}

// wireLocked activates a fresh connection: it spawns the aux and UDP sender
// tasks and points the mixer at the new transmission path.
func (d *Driver) wireLocked(conn *connection) {
	d.conn = conn
	d.connected = true
	d.udpCh = make(chan UDPMessage, 512)
	d.ic.UDP = d.udpCh

	go runAux(conn, d.ic)
	go runUDPSender(conn.udp, d.udpCh, conn.ssrc, d.met)
	d.ic.Mixer <- MixSetConn{Cipher: conn.cipher, SSRC: conn.ssrc, UDP: d.udpCh}
}

// teardownLocked stops the per-session tasks in dependency order: first the
// mixer's transmission path, then the aux task, then the UDP sender.
func (d *Driver) teardownLocked() {
	if !d.connected {
		return
	}
	d.ic.Mixer <- MixDropConn{}
	select {
	case d.ic.Aux <- AuxPoison{}:
	default:
	}
	select {
	case d.udpCh <- UDPPoison{}:
	default:
	}
	d.conn.close()
	d.conn = nil
	d.connected = false
	d.met.SessionEnded()
}

// Disconnect leaves the voice session but keeps the driver (and its tracks)
// alive for a later Connect.
func (d *Driver) Disconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.teardownLocked()
}

// Close disconnects and stops all driver tasks. The driver cannot be reused.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.done)
	d.teardownLocked()
	d.ic.Mixer <- MixPoison{}
	d.ic.Events <- Poison{}
}

// Play adds a track to the mix alongside whatever is already playing.
func (d *Driver) Play(t *Track) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ic.Mixer <- MixAddTrack{Track: t}
}

// PlayInput wraps in in a new track, plays it, and returns its handle.
func (d *Driver) PlayInput(in *Input, opts ...TrackOption) *TrackHandle {
	t, h := NewTrack(in, opts...)
	d.Play(t)
	return h
}

// SetTrack replaces the entire mix with the given track; nil just clears.
func (d *Driver) SetTrack(t *Track) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ic.Mixer <- MixSetTrack{Track: t}
}

// Stop clears all tracks.
func (d *Driver) Stop() { d.SetTrack(nil) }

// SetBitrate changes the Opus encoder bitrate in bits per second.
func (d *Driver) SetBitrate(bitrate int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ic.Mixer <- MixSetBitrate{Bitrate: bitrate}
}

// Mute stops transmission while tracks keep advancing.
func (d *Driver) Mute(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ic.Mixer <- MixSetMute{Mute: on}
}

// Reconnect asks the driver to recover the session: resume first, then a
// full reconnect. It returns immediately; recovery runs on the core watcher.
// A no-op while disconnected.
func (d *Driver) Reconnect() {
	select {
	case d.core <- StatusReconnect:
	default:
	}
}

// RebuildInterconnect replaces the inter-task channel set and then recovers
// the session like [Driver.Reconnect]. It is the remedy for a wedged event or
// aux task. It returns immediately.
func (d *Driver) RebuildInterconnect() {
	select {
	case d.core <- StatusRebuildInterconnect:
	default:
	}
}

// AddGlobalEvent subscribes a session-wide event: untimed track events fire
// for every track, core events for control-plane updates.
func (d *Driver) AddGlobalEvent(ev EventData) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ic.Events <- AddGlobalEvent{Event: ev}
}

// watchCore reacts to terminal status signals from the session tasks.
func (d *Driver) watchCore() {
	for {
		select {
		case status := <-d.core:
			switch status {
			case StatusReconnect:
				d.reconnect()
			case StatusRebuildInterconnect:
				d.rebuildInterconnect()
			}
		case <-d.done:
			return
		}
	}
}

// reconnect recovers a faulted session: resume first, which keeps the mixer
// and UDP path intact, then a full reconnect, and finally gives up and
// disconnects.
func (d *Driver) reconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected || d.closed {
		return
	}
	d.met.RecordReconnect()

	for attempt := range d.retries {
		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		nc, err := resume(ctx, d.info, d.conn)
		cancel()
		if err == nil {
			d.conn.ws.Close(4000, "resuming")
			d.conn = nc
			go runAux(nc, d.ic)
			slog.Info("voice: session resumed", "guild", d.info.GuildID)
			return
		}
		slog.Warn("voice: resume failed", "attempt", attempt, "error", err)
		time.Sleep(time.Duration(attempt+1) * 250 * time.Millisecond)
	}

	// Resume exhausted: rebuild the whole session.
	d.teardownLocked()
	ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
	conn, err := connect(ctx, d.info)
	cancel()
	if err != nil {
		slog.Error("voice: reconnect failed, disconnecting", "guild", d.info.GuildID, "error", err)
		return
	}
	d.wireLocked(conn)
	d.met.SessionStarted()
	slog.Info("voice: session reconnected", "guild", d.info.GuildID)
}

// rebuildInterconnect replaces the inter-task channel set after an endpoint
// fault. The mixer migrates in place; the aux task is restarted through the
// normal reconnect path since it captured the old channels at spawn.
func (d *Driver) rebuildInterconnect() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	old := d.ic
	d.ic = newInterconnect(d.core)
	go runEvents(d.ic.Events)
	old.Mixer <- MixReplaceInterconnect{IC: d.ic}
	select {
	case old.Events <- Poison{}:
	default:
	}
	select {
	case old.Aux <- AuxPoison{}:
	default:
	}
	connected := d.connected
	d.mu.Unlock()

	if connected {
		d.reconnect()
	}
}

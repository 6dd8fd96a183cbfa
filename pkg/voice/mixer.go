package voice

import (
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"time"

	"layeh.com/gopus"

	"github.com/kestrelvoice/kestrel/internal/observe"
	"github.com/kestrelvoice/kestrel/pkg/audio"
)

// maxOpusPayload is the per-packet payload capacity after the RTP header and
// the Poly1305 tag.
const maxOpusPayload = VoicePacketMax - RTPHeaderLen - TagLen

// mixConn is the active transmission path handed over by the aux task once
// the handshake completes.
type mixConn struct {
	cipher *Cipher
	ssrc   uint32
	udp    chan<- UDPMessage
}

// opusEncoder is the encode surface the mixer drives each cycle.
// *gopus.Encoder satisfies it.
type opusEncoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
	SetBitrate(bitrate int)
}

func newOpusEncoder() (opusEncoder, error) {
	enc, err := gopus.NewEncoder(audio.SampleRate, 2, gopus.Audio)
	if err != nil {
		return nil, err
	}
	return enc, nil
}

// mixer owns the tracks and produces one encrypted RTP packet per 20 ms
// cycle. It runs on a dedicated, OS-locked goroutine; everything else talks
// to it through the interconnect.
type mixer struct {
	ic  *Interconnect
	met *observe.Metrics

	tracks []*Track
	conn   *mixConn
	mute   bool

	enc     opusEncoder
	newEnc  func() (opusEncoder, error)
	bitrate int

	seq uint16
	ts  uint32

	// silence counts down the comfort-noise trailer emitted after the last
	// audible frame, so remote decoders wind down cleanly.
	silence  int
	speaking bool

	clip   audio.SoftClip
	mixBuf [audio.StereoFrameSize]float32
	s16Buf [audio.StereoFrameSize]int16
	pkt    [VoicePacketMax]byte

	sleep *Sleeper
}

func newMixer(ic *Interconnect, met *observe.Metrics) (*mixer, error) {
	m := &mixer{
		ic:      ic,
		met:     met,
		newEnc:  newOpusEncoder,
		bitrate: DefaultBitrate,
	}
	if err := m.rebuildEncoder(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *mixer) rebuildEncoder() error {
	enc, err := m.newEnc()
	if err != nil {
		return err
	}
	enc.SetBitrate(m.bitrate)
	m.enc = enc
	return nil
}

// run is the mixer task. With no transmission path it parks on the message
// channel; with one it holds a strict 20 ms cadence. Packet timing is what
// the remote end hears, so the goroutine is pinned to an OS thread to keep
// scheduler jitter out of the loop.
func (m *mixer) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer m.clearTracks()

	for {
		if m.conn == nil {
			msg, ok := <-m.ic.Mixer
			if !ok || !m.handleMessage(msg) {
				return
			}
			continue
		}

	drain:
		for {
			select {
			case msg, ok := <-m.ic.Mixer:
				if !ok || !m.handleMessage(msg) {
					return
				}
			default:
				break drain
			}
		}
		if m.conn == nil {
			continue
		}

		start := time.Now()
		m.tick()
		m.met.RecordTick(time.Since(start))
		m.sleep.Wait()
	}
}

// handleMessage applies one control message, reporting false when the mixer
// should exit.
func (m *mixer) handleMessage(msg MixerMessage) bool {
	switch c := msg.(type) {
	case MixAddTrack:
		m.addTrack(c.Track)

	case MixSetTrack:
		m.clearTracks()
		m.ic.sendEvent(RemoveAllTracks{})
		if c.Track != nil {
			m.addTrack(c.Track)
		}

	case MixSetBitrate:
		m.bitrate = c.Bitrate
		m.enc.SetBitrate(c.Bitrate)

	case MixSetMute:
		m.mute = c.Mute

	case MixSetConn:
		m.conn = &mixConn{cipher: c.Cipher, ssrc: c.SSRC, udp: c.UDP}
		initRTPHeader(m.pkt[:], c.SSRC)
		// Random initial sequence and timestamp, standard RTP practice.
		m.seq = uint16(rand.Uint32())
		m.ts = rand.Uint32()
		m.silence = 0
		m.speaking = false
		m.sleep = NewSleeper(FrameTime)

	case MixDropConn:
		m.conn = nil
		m.speaking = false

	case MixReplaceInterconnect:
		m.ic = c.IC

	case MixRebuildEncoder:
		if err := m.rebuildEncoder(); err != nil {
			slog.Error("voice: encoder rebuild failed", "error", err)
		}

	case MixPoison:
		return false
	}
	return true
}

func (m *mixer) addTrack(t *Track) {
	m.tracks = append(m.tracks, t)
	m.ic.sendEvent(AddTrack{Store: t.events, State: t.State(), Handle: t.handle})
}

func (m *mixer) clearTracks() {
	for _, t := range m.tracks {
		t.handle.markDone()
		if err := t.input.Close(); err != nil {
			slog.Warn("voice: close input", "error", err)
		}
	}
	m.tracks = m.tracks[:0]
}

// tick performs one 20 ms cycle: apply handle commands, mix or pass through
// one frame, transmit it (or the silence trailer), and reap finished tracks.
// Requires an active connection.
func (m *mixer) tick() {
	for idx, t := range m.tracks {
		t.processCommands(m.ic, idx)
	}

	payloadLen, audible := m.prepareFrame()
	if m.mute {
		// Tracks advanced above; suppress the frame but let the silence
		// trailer run so remote decoders wind down.
		audible = false
	}

	switch {
	case audible:
		m.silence = silenceTrailerFrames
		m.setSpeaking(true)
		m.transmit(payloadLen)

	case m.silence > 0:
		m.silence--
		n := copy(m.payload(), SilenceFrame)
		m.transmit(n)
		m.met.RecordSilencePacket()
		if m.silence == 0 {
			m.setSpeaking(false)
		}

	default:
		m.setSpeaking(false)
	}

	m.ic.sendEvent(Tick{})
	m.reapTracks()
}

// payload is the plaintext region of the packet buffer, after the header and
// the reserved tag bytes.
func (m *mixer) payload() []byte {
	return m.pkt[RTPHeaderLen+TagLen:]
}

// prepareFrame fills the packet payload for this cycle and reports whether
// any track produced audio. The single-track passthrough path copies the
// source's own Opus packet straight into the payload; the general path mixes
// every playing track into float samples, soft-clips, and encodes.
func (m *mixer) prepareFrame() (int, bool) {
	if idx, t, ok := m.passthroughTrack(); ok {
		n, err := t.input.ReadOpusFrame(m.payload())
		if err == nil {
			t.position += FrameTime
			return n, true
		}
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			slog.Warn("voice: passthrough read failed", "error", err)
		}
		m.trackEnded(idx)
		return 0, false
	}

	mix := m.mixBuf[:]
	clear(mix)

	audible := false
	for idx, t := range m.tracks {
		if t.playing != ModePlay {
			continue
		}
		n, err := t.input.Mix(mix, t.volume)
		if err != nil {
			slog.Warn("voice: track mix failed", "error", err)
			m.trackEnded(idx)
			continue
		}
		if n == 0 {
			m.trackEnded(idx)
			continue
		}
		t.position += FrameTime
		audible = true
	}
	if !audible {
		return 0, false
	}

	m.clip.Apply(mix)
	audio.F32ToS16(m.s16Buf[:], mix)
	return m.encodeFrame()
}

// passthroughTrack reports whether this cycle qualifies for the passthrough
// fast path: exactly one track, playing at unity gain, whose input promises
// wire-ready Opus packets.
func (m *mixer) passthroughTrack() (int, *Track, bool) {
	if len(m.tracks) != 1 {
		return 0, nil, false
	}
	t := m.tracks[0]
	if t.playing != ModePlay || t.volume != 1.0 || !t.input.SupportsPassthrough() {
		return 0, nil, false
	}
	return 0, t, true
}

// encodeFrame Opus-encodes the staged s16 frame into the payload. A failed
// encode gets one retry on a fresh encoder at the default bitrate; a second
// failure drops the frame and asks the driver to reconnect.
func (m *mixer) encodeFrame() (int, bool) {
	pkt, err := m.enc.Encode(m.s16Buf[:], audio.MonoFrameSize, maxOpusPayload)
	if err == nil {
		return copy(m.payload(), pkt), true
	}
	slog.Warn("voice: opus encode failed, rebuilding encoder", "error", err)

	m.bitrate = DefaultBitrate
	if rerr := m.rebuildEncoder(); rerr == nil {
		pkt, err = m.enc.Encode(m.s16Buf[:], audio.MonoFrameSize, maxOpusPayload)
		if err == nil {
			return copy(m.payload(), pkt), true
		}
	} else {
		err = rerr
	}

	slog.Error("voice: opus encode failed after rebuild", "error", err)
	select {
	case m.ic.Core <- StatusReconnect:
	default:
	}
	return 0, false
}

// transmit encrypts the staged payload in place and hands the packet to the
// UDP sender. The sequence advances by one and the timestamp by one frame of
// samples per packet, silence included.
func (m *mixer) transmit(payloadLen int) {
	setRTPSeqTimestamp(m.pkt[:], m.seq, m.ts)
	total, err := m.conn.cipher.EncryptRTP(m.pkt[:], payloadLen)
	if err != nil {
		slog.Error("voice: packet encryption failed", "error", err)
		return
	}

	data := make([]byte, total)
	copy(data, m.pkt[:total])
	select {
	case m.conn.udp <- UDPPacket{Data: data}:
	default:
		slog.Warn("voice: udp queue full, packet dropped")
	}

	m.seq++
	m.ts += audio.MonoFrameSize
}

func (m *mixer) setSpeaking(on bool) {
	if m.speaking == on {
		return
	}
	m.speaking = on
	select {
	case m.ic.Aux <- AuxSpeaking{Speaking: on}:
	default:
		slog.Warn("voice: aux queue full, speaking update dropped")
	}
}

// trackEnded handles a track hitting end of stream: consume a loop iteration
// and restart, or transition it toward removal.
func (m *mixer) trackEnded(idx int) {
	t := m.tracks[idx]
	if t.doLoop() && t.restart(m.ic, idx) {
		return
	}
	t.setMode(ModeEnd, m.ic, idx)
}

// reapTracks promotes ended tracks to done and removes the first done track.
// One removal per cycle keeps indices stable for messages already queued at
// the events task.
func (m *mixer) reapTracks() {
	for idx, t := range m.tracks {
		if t.playing == ModeEnd {
			t.setMode(ModeDone, m.ic, idx)
		}
	}
	for idx, t := range m.tracks {
		if t.playing != ModeDone {
			continue
		}
		if err := t.input.Close(); err != nil {
			slog.Warn("voice: close input", "error", err)
		}
		m.tracks = append(m.tracks[:idx], m.tracks[idx+1:]...)
		m.ic.sendEvent(RemoveTrack{Index: idx})
		return
	}
}

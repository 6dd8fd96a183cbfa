// Package voice implements a soft-real-time voice transmission pipeline: it
// ingests media sources, decodes and mixes them into a single 48 kHz stereo
// stream, Opus-encodes (or passes pre-encoded Opus through), encrypts, and
// emits RTP packets on a fixed 20 ms cadence over UDP, while a control-plane
// WebSocket session handles the handshake, keepalives, and resumption.
//
// The package is organised around a [Driver] per voice session. The driver
// spawns three long-lived tasks (the mixer, the UDP sender, and the
// auxiliary packet task) and wires them together with an [Interconnect] of
// channels. Audio enters the pipeline as an [Input] (a byte [Reader] plus
// codec and container information) wrapped in a [Track] that carries playback
// state and a user-facing [TrackHandle].
package voice

import (
	"errors"
	"time"

	"github.com/kestrelvoice/kestrel/pkg/audio"
)

const (
	// VoicePacketMax is the size of the persistent packet buffer: large
	// enough for the RTP header, the authentication tag, and the biggest
	// payload the encoder may produce.
	VoicePacketMax = 1460

	// DefaultBitrate is the Opus encoder bitrate used until the host
	// selects another one, and the fallback after an encoder rebuild
	// failure.
	DefaultBitrate = 128_000

	// RTPHeaderLen is the fixed RTP header length in bytes.
	RTPHeaderLen = 12

	// RTPPayloadType is the payload type the voice server expects.
	RTPPayloadType = 0x78

	// TagLen is the length of the Poly1305 authentication tag reserved
	// directly after the RTP header.
	TagLen = 16

	// KeyLen is the required secret key length for the session cipher.
	KeyLen = 32

	// EncryptionMode is the payload encryption mode this implementation
	// supports. The handshake rejects servers that do not offer it.
	EncryptionMode = "xsalsa20_poly1305"

	// udpKeepaliveInterval is the absolute-time cadence of UDP keepalives.
	udpKeepaliveInterval = 5 * time.Second

	// silenceTrailerFrames is the number of silence frames transmitted
	// after audio ceases, per the voice server's guidelines.
	silenceTrailerFrames = 5
)

// SilenceFrame is the canonical Opus comfort-silence payload transmitted
// during the trailer after audio stops.
var SilenceFrame = []byte{0xF8, 0xFF, 0xFE}

// Errors returned by the pipeline. Transport and handshake failures carry
// additional context wrapped around these sentinels.
var (
	// ErrEndOfTrack signals that an input has no further samples.
	ErrEndOfTrack = errors.New("voice: end of track")

	// ErrNotSeekable is returned by seek operations on sources that do
	// not support repositioning.
	ErrNotSeekable = errors.New("voice: source does not support seeking")

	// ErrUnsupported is returned when an operation is invalid for the
	// input's codec or container, such as reading Opus frames from a
	// stream with no frame boundaries.
	ErrUnsupported = errors.New("voice: operation unsupported for this input")

	// ErrTrackStopped is returned by handle operations on a track that
	// has already ended.
	ErrTrackStopped = errors.New("voice: track has been stopped")
)

// SessionInfo carries everything the core needs to open a voice session.
// All fields are opaque strings handed over by the host platform.
type SessionInfo struct {
	// Endpoint is the voice gateway host, with or without a scheme.
	Endpoint string

	// GuildID identifies the server the session belongs to.
	GuildID string

	// SessionID is the host gateway session identifier.
	SessionID string

	// UserID is the connecting user.
	UserID string

	// Token authorises the voice session.
	Token string
}

// FrameTime re-exports the pipeline cadence for callers that schedule
// against it.
const FrameTime = audio.FrameTime

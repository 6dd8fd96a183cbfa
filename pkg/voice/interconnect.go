package voice

// Interconnect bundles the long-lived channels between the driver, the
// mixer, the UDP sender, the auxiliary packet task, and the event task.
// Channels cannot be partially replaced, so a rebuild recreates the whole
// set and broadcasts the new endpoints.
type Interconnect struct {
	Events chan EventMessage
	Mixer  chan MixerMessage
	Aux    chan AuxMessage
	UDP    chan UDPMessage

	// Core carries terminal status signals back to the driver.
	Core chan CoreStatus
}

func newInterconnect(core chan CoreStatus) *Interconnect {
	return &Interconnect{
		Events: make(chan EventMessage, 128),
		Mixer:  make(chan MixerMessage, 32),
		Aux:    make(chan AuxMessage, 32),
		// The mixer→UDP channel is unbounded in spirit: at one ~100-byte
		// packet per 20 ms a large buffer never fills, and packet order
		// is preserved rather than dropped under pressure.
		UDP:  make(chan UDPMessage, 512),
		Core: core,
	}
}

// sendEvent forwards a message to the event task, dropping it if the task
// has stopped accepting. Event loss is tolerable; blocking the mixer is not.
func (ic *Interconnect) sendEvent(m EventMessage) {
	select {
	case ic.Events <- m:
	default:
	}
}

// CoreStatus is a terminal signal the host must act on.
type CoreStatus int

const (
	// StatusReconnect: the session lost its transport and needs to be
	// re-established.
	StatusReconnect CoreStatus = iota

	// StatusRebuildInterconnect: an inter-task channel endpoint has died
	// and the channel set must be recreated.
	StatusRebuildInterconnect
)

// ── Mixer messages ─────────────────────────────────────────────────────────

// MixerMessage is a command consumed by the mixer between cycles.
type MixerMessage interface{ isMixerMessage() }

// MixAddTrack appends a track to the mix.
type MixAddTrack struct{ Track *Track }

// MixSetTrack clears all tracks, then adds the given one (nil clears only).
type MixSetTrack struct{ Track *Track }

// MixSetBitrate changes the Opus encoder bitrate.
type MixSetBitrate struct{ Bitrate int }

// MixSetMute toggles transmission while keeping tracks advancing.
type MixSetMute struct{ Mute bool }

// MixSetConn activates a transmission path: the session cipher, the
// server-assigned ssrc, and the UDP sender's inbox.
type MixSetConn struct {
	Cipher *Cipher
	SSRC   uint32
	UDP    chan<- UDPMessage
}

// MixDropConn deactivates the transmission path, keeping tracks intact.
type MixDropConn struct{}

// MixReplaceInterconnect points the mixer at a rebuilt channel set.
type MixReplaceInterconnect struct{ IC *Interconnect }

// MixRebuildEncoder recreates the Opus encoder at the current bitrate.
type MixRebuildEncoder struct{}

// MixPoison stops the mixer.
type MixPoison struct{}

func (MixAddTrack) isMixerMessage()            {}
func (MixSetTrack) isMixerMessage()            {}
func (MixSetBitrate) isMixerMessage()          {}
func (MixSetMute) isMixerMessage()             {}
func (MixSetConn) isMixerMessage()             {}
func (MixDropConn) isMixerMessage()            {}
func (MixReplaceInterconnect) isMixerMessage() {}
func (MixRebuildEncoder) isMixerMessage()      {}
func (MixPoison) isMixerMessage()              {}

// ── Aux task messages ──────────────────────────────────────────────────────

// AuxMessage is a command consumed by the auxiliary packet task.
type AuxMessage interface{ isAuxMessage() }

// AuxSpeaking asks the aux task to publish a speaking-state change.
type AuxSpeaking struct{ Speaking bool }

// AuxPoison stops the aux task.
type AuxPoison struct{}

func (AuxSpeaking) isAuxMessage() {}
func (AuxPoison) isAuxMessage()   {}

// ── UDP sender messages ────────────────────────────────────────────────────

// UDPMessage is a command consumed by the UDP sender task.
type UDPMessage interface{ isUDPMessage() }

// UDPPacket is an owned, ready-to-send datagram.
type UDPPacket struct{ Data []byte }

// UDPPoison stops the UDP sender.
type UDPPoison struct{}

func (UDPPacket) isUDPMessage() {}
func (UDPPoison) isUDPMessage() {}

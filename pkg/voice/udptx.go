package voice

import (
	"io"
	"log/slog"
	"time"

	"github.com/kestrelvoice/kestrel/internal/observe"
)

// runUDPSender owns the write half of the UDP socket. It forwards packets
// supplied by the mixer and emits a NAT keepalive when idle. Keepalive
// deadlines are absolute rather than idle-reset: the cadence stays fixed no
// matter how much audio traffic interleaves, which keeps clock behaviour
// easy to reason about.
//
// The task exits on UDPPoison, channel close, or any send error.
func runUDPSender(w io.Writer, rx <-chan UDPMessage, ssrc uint32, met *observe.Metrics) {
	var keepalive [keepaliveLen]byte
	buildKeepalive(keepalive[:], ssrc)

	kaTime := time.Now().Add(udpKeepaliveInterval)
	timer := time.NewTimer(udpKeepaliveInterval)
	defer timer.Stop()

	for {
		select {
		case msg, ok := <-rx:
			if !ok {
				return
			}
			switch m := msg.(type) {
			case UDPPacket:
				if _, err := w.Write(m.Data); err != nil {
					slog.Warn("voice: udp send failed", "error", err)
					return
				}
				met.RecordPacketSent(len(m.Data))
			case UDPPoison:
				return
			}

		case <-timer.C:
			if _, err := w.Write(keepalive[:]); err != nil {
				slog.Warn("voice: udp keepalive failed", "error", err)
				return
			}
			met.RecordKeepalive()
			kaTime = kaTime.Add(udpKeepaliveInterval)
			timer.Reset(time.Until(kaTime))
		}
	}
}

package voice

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// RTP header layout (RFC 3550, no CSRCs or extensions):
//
//	[0]    version/flags (0x80: version 2)
//	[1]    payload type (0x78)
//	[2:4]  sequence, big-endian
//	[4:8]  timestamp, big-endian
//	[8:12] ssrc, big-endian

// initRTPHeader writes the static RTP header fields into the first 12 bytes
// of buf.
func initRTPHeader(buf []byte, ssrc uint32) {
	buf[0] = 0x80
	buf[1] = RTPPayloadType
	binary.BigEndian.PutUint32(buf[8:12], ssrc)
}

// setRTPSeqTimestamp stamps the per-packet sequence and timestamp fields.
func setRTPSeqTimestamp(buf []byte, seq uint16, ts uint32) {
	binary.BigEndian.PutUint16(buf[2:4], seq)
	binary.BigEndian.PutUint32(buf[4:8], ts)
}

// rtpSSRC reads the ssrc field back out of a packet buffer.
func rtpSSRC(buf []byte) uint32 {
	return binary.BigEndian.Uint32(buf[8:12])
}

// ── UDP keepalive ──────────────────────────────────────────────────────────

// keepaliveLen is the fixed size of the NAT keepalive packet: the ssrc and
// nothing else.
const keepaliveLen = 4

// buildKeepalive writes the keepalive packet for ssrc into buf.
func buildKeepalive(buf []byte, ssrc uint32) {
	binary.BigEndian.PutUint32(buf[:keepaliveLen], ssrc)
}

// ── IP discovery ───────────────────────────────────────────────────────────

// The IP discovery exchange is a 74-byte frame in both directions:
//
//	[type:u16 BE][length:u16 BE = 70][ssrc:u32 BE][address: 64 bytes, zero-padded ASCII][port:u16 BE]
//
// Type 1 is the request, type 2 the response.
const (
	discoveryLen         = 74
	discoveryPayloadLen  = 70
	discoveryRequestType = 1
	discoveryReplyType   = 2
)

// buildDiscoveryRequest returns the discovery request frame for ssrc.
func buildDiscoveryRequest(ssrc uint32) []byte {
	buf := make([]byte, discoveryLen)
	binary.BigEndian.PutUint16(buf[0:2], discoveryRequestType)
	binary.BigEndian.PutUint16(buf[2:4], discoveryPayloadLen)
	binary.BigEndian.PutUint32(buf[4:8], ssrc)
	return buf
}

// parseDiscoveryResponse extracts the externally visible address and port
// from a discovery response frame.
func parseDiscoveryResponse(buf []byte) (addr string, port uint16, err error) {
	if len(buf) < discoveryLen {
		return "", 0, fmt.Errorf("voice: discovery response of %d bytes, want %d", len(buf), discoveryLen)
	}
	if t := binary.BigEndian.Uint16(buf[0:2]); t != discoveryReplyType {
		return "", 0, fmt.Errorf("voice: discovery response type %d, want %d", t, discoveryReplyType)
	}

	raw := buf[8:72]
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	if len(raw) == 0 {
		return "", 0, fmt.Errorf("voice: discovery response carries no address")
	}

	return string(raw), binary.BigEndian.Uint16(buf[72:74]), nil
}

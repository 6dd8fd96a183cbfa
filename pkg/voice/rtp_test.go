package voice

import (
	"encoding/binary"
	"testing"
)

func TestRTPHeaderLayout(t *testing.T) {
	t.Parallel()

	var buf [RTPHeaderLen]byte
	initRTPHeader(buf[:], 0x11223344)
	setRTPSeqTimestamp(buf[:], 0xABCD, 0xDEADBEEF)

	if buf[0] != 0x80 {
		t.Errorf("version byte = %#x, want 0x80", buf[0])
	}
	if buf[1] != RTPPayloadType {
		t.Errorf("payload type = %#x, want %#x", buf[1], RTPPayloadType)
	}
	if got := binary.BigEndian.Uint16(buf[2:4]); got != 0xABCD {
		t.Errorf("sequence = %#x, want 0xABCD", got)
	}
	if got := binary.BigEndian.Uint32(buf[4:8]); got != 0xDEADBEEF {
		t.Errorf("timestamp = %#x, want 0xDEADBEEF", got)
	}
	if got := rtpSSRC(buf[:]); got != 0x11223344 {
		t.Errorf("ssrc = %#x, want 0x11223344", got)
	}
}

func TestKeepalivePacket(t *testing.T) {
	t.Parallel()

	var buf [keepaliveLen]byte
	buildKeepalive(buf[:], 0xCAFEF00D)
	if got := binary.BigEndian.Uint32(buf[:]); got != 0xCAFEF00D {
		t.Errorf("keepalive ssrc = %#x, want 0xCAFEF00D", got)
	}
}

func TestDiscoveryRequestLayout(t *testing.T) {
	t.Parallel()

	req := buildDiscoveryRequest(777)
	if len(req) != discoveryLen {
		t.Fatalf("request length = %d, want %d", len(req), discoveryLen)
	}
	if got := binary.BigEndian.Uint16(req[0:2]); got != discoveryRequestType {
		t.Errorf("type = %d, want %d", got, discoveryRequestType)
	}
	if got := binary.BigEndian.Uint16(req[2:4]); got != discoveryPayloadLen {
		t.Errorf("length = %d, want %d", got, discoveryPayloadLen)
	}
	if got := binary.BigEndian.Uint32(req[4:8]); got != 777 {
		t.Errorf("ssrc = %d, want 777", got)
	}
}

func TestParseDiscoveryResponse(t *testing.T) {
	t.Parallel()

	resp := make([]byte, discoveryLen)
	binary.BigEndian.PutUint16(resp[0:2], discoveryReplyType)
	binary.BigEndian.PutUint16(resp[2:4], discoveryPayloadLen)
	binary.BigEndian.PutUint32(resp[4:8], 777)
	copy(resp[8:], "203.0.113.9")
	binary.BigEndian.PutUint16(resp[72:74], 50004)

	addr, port, err := parseDiscoveryResponse(resp)
	if err != nil {
		t.Fatalf("parseDiscoveryResponse: %v", err)
	}
	if addr != "203.0.113.9" {
		t.Errorf("addr = %q, want 203.0.113.9", addr)
	}
	if port != 50004 {
		t.Errorf("port = %d, want 50004", port)
	}
}

func TestParseDiscoveryResponseRejects(t *testing.T) {
	t.Parallel()

	good := make([]byte, discoveryLen)
	binary.BigEndian.PutUint16(good[0:2], discoveryReplyType)
	copy(good[8:], "10.0.0.1")

	t.Run("truncated", func(t *testing.T) {
		t.Parallel()
		if _, _, err := parseDiscoveryResponse(good[:discoveryLen-1]); err == nil {
			t.Fatal("accepted truncated response")
		}
	})
	t.Run("wrong type", func(t *testing.T) {
		t.Parallel()
		bad := append([]byte(nil), good...)
		binary.BigEndian.PutUint16(bad[0:2], discoveryRequestType)
		if _, _, err := parseDiscoveryResponse(bad); err == nil {
			t.Fatal("accepted request-typed response")
		}
	})
	t.Run("empty address", func(t *testing.T) {
		t.Parallel()
		bad := append([]byte(nil), good...)
		for i := 8; i < 72; i++ {
			bad[i] = 0
		}
		if _, _, err := parseDiscoveryResponse(bad); err == nil {
			t.Fatal("accepted empty address")
		}
	})
}

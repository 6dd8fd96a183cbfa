package voice

import (
	"bytes"
	"testing"
)

func TestCipherRoundTrip(t *testing.T) {
	t.Parallel()
	c := newTestCipher(t)

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03}
	var pkt [VoicePacketMax]byte
	initRTPHeader(pkt[:], 0xCAFEBABE)
	setRTPSeqTimestamp(pkt[:], 42, 96000)
	copy(pkt[RTPHeaderLen+TagLen:], payload)

	total, err := c.EncryptRTP(pkt[:], len(payload))
	if err != nil {
		t.Fatalf("EncryptRTP: %v", err)
	}
	if want := RTPHeaderLen + TagLen + len(payload); total != want {
		t.Fatalf("total = %d, want %d", total, want)
	}
	if bytes.Equal(pkt[RTPHeaderLen+TagLen:total], payload) {
		t.Fatal("payload left in plaintext")
	}

	plain, err := c.DecryptRTP(nil, pkt[:total])
	if err != nil {
		t.Fatalf("DecryptRTP: %v", err)
	}
	if !bytes.Equal(plain, payload) {
		t.Fatalf("decrypted payload = %x, want %x", plain, payload)
	}
}

func TestCipherRejectsBadKeySize(t *testing.T) {
	t.Parallel()
	for _, n := range []int{0, 16, 31, 33} {
		if _, err := NewCipher(make([]byte, n)); err == nil {
			t.Errorf("NewCipher accepted a %d-byte key", n)
		}
	}
}

func TestCipherRejectsTamperedPacket(t *testing.T) {
	t.Parallel()
	c := newTestCipher(t)

	var pkt [VoicePacketMax]byte
	initRTPHeader(pkt[:], 1)
	setRTPSeqTimestamp(pkt[:], 1, 960)
	copy(pkt[RTPHeaderLen+TagLen:], []byte{1, 2, 3})
	total, err := c.EncryptRTP(pkt[:], 3)
	if err != nil {
		t.Fatalf("EncryptRTP: %v", err)
	}

	pkt[total-1] ^= 0x01
	if _, err := c.DecryptRTP(nil, pkt[:total]); err == nil {
		t.Fatal("DecryptRTP accepted a tampered packet")
	}
}

func TestDecryptRejectsShortPacket(t *testing.T) {
	t.Parallel()
	c := newTestCipher(t)
	if _, err := c.DecryptRTP(nil, make([]byte, RTPHeaderLen+TagLen-1)); err == nil {
		t.Fatal("DecryptRTP accepted a truncated packet")
	}
}

package voice

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
)

// nonceLen is the XSalsa20 nonce length. The nonce for each packet is the
// 12-byte RTP header zero-padded to this length.
const nonceLen = 24

// Cipher encrypts RTP payloads with the session's secret key using
// XSalsa20-Poly1305. The aux task establishes it during the handshake; the
// mixer uses it once per emitted packet. The mutex covers that sharing plus
// the internal scratch buffer.
type Cipher struct {
	mu      sync.Mutex
	key     [KeyLen]byte
	scratch [VoicePacketMax]byte
}

// NewCipher builds a cipher from the session-description key, which must be
// exactly KeyLen bytes.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("voice: secret key of %d bytes, want %d", len(key), KeyLen)
	}
	c := &Cipher{}
	copy(c.key[:], key)
	return c, nil
}

// EncryptRTP encrypts the payload of the packet in buf in place. The
// plaintext payload occupies buf[RTPHeaderLen+TagLen : RTPHeaderLen+TagLen+payloadLen];
// the Poly1305 tag is written into the TagLen bytes reserved directly after
// the header. Returns the total packet length.
func (c *Cipher) EncryptRTP(buf []byte, payloadLen int) (int, error) {
	total := RTPHeaderLen + TagLen + payloadLen
	if len(buf) < total {
		return 0, fmt.Errorf("voice: packet buffer of %d bytes, need %d", len(buf), total)
	}

	var nonce [nonceLen]byte
	copy(nonce[:], buf[:RTPHeaderLen])

	c.mu.Lock()
	defer c.mu.Unlock()

	// Seal requires non-overlapping input and output; stage the plaintext
	// through the scratch buffer.
	plain := c.scratch[:payloadLen]
	copy(plain, buf[RTPHeaderLen+TagLen:total])
	secretbox.Seal(buf[RTPHeaderLen:RTPHeaderLen], plain, &nonce, &c.key)

	return total, nil
}

// DecryptRTP verifies and decrypts a packet produced by EncryptRTP,
// returning the plaintext payload appended to out.
func (c *Cipher) DecryptRTP(out, pkt []byte) ([]byte, error) {
	if len(pkt) < RTPHeaderLen+TagLen {
		return nil, fmt.Errorf("voice: packet of %d bytes too short to decrypt", len(pkt))
	}

	var nonce [nonceLen]byte
	copy(nonce[:], pkt[:RTPHeaderLen])

	c.mu.Lock()
	defer c.mu.Unlock()

	plain, ok := secretbox.Open(out, pkt[RTPHeaderLen:], &nonce, &c.key)
	if !ok {
		return nil, fmt.Errorf("voice: packet failed authentication")
	}
	return plain, nil
}

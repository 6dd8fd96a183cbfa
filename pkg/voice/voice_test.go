package voice

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// testKey returns a fixed 32-byte session key.
func testKey() []byte {
	key := make([]byte, KeyLen)
	for i := range key {
		key[i] = byte(i + 1)
	}
	return key
}

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipher(testKey())
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	return c
}

// s16leBytes encodes samples as interleaved little-endian signed 16-bit PCM.
func s16leBytes(samples ...int16) []byte {
	buf := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// f32leBytes encodes samples as interleaved little-endian float32 PCM.
func f32leBytes(samples ...float32) []byte {
	buf := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return buf
}

// framedStream concatenates frames as length-prefixed packets.
func framedStream(frames ...[]byte) []byte {
	var buf bytes.Buffer
	var hdr [2]byte
	for _, f := range frames {
		binary.LittleEndian.PutUint16(hdr[:], uint16(len(f)))
		buf.Write(hdr[:])
		buf.Write(f)
	}
	return buf.Bytes()
}

// newRawInput wraps data in a seekable raw-container input.
func newRawInput(t *testing.T, data []byte, codec Codec, stereo bool) *Input {
	t.Helper()
	in, err := NewInput(ExtendSeekable(bytes.NewReader(data)), codec, RawContainer(), stereo)
	if err != nil {
		t.Fatalf("NewInput: %v", err)
	}
	return in
}

// newFramedOpusInput wraps a framed packet stream in a seekable,
// passthrough-capable Opus input.
func newFramedOpusInput(t *testing.T, data []byte) *Input {
	t.Helper()
	in, err := NewInput(ExtendSeekable(bytes.NewReader(data)), CodecOpus, FramedContainer(0), true, WithPassthrough(true))
	if err != nil {
		t.Fatalf("NewInput: %v", err)
	}
	return in
}

func almostEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

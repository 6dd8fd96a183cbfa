package voice

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestBuildIdentifyShape(t *testing.T) {
	t.Parallel()

	data, err := buildIdentify(SessionInfo{
		GuildID:   "g1",
		UserID:    "u1",
		SessionID: "s1",
		Token:     "tok",
	})
	if err != nil {
		t.Fatalf("buildIdentify: %v", err)
	}

	f, err := parseFrame(data)
	if err != nil {
		t.Fatalf("parseFrame: %v", err)
	}
	if f.Op != opIdentify {
		t.Fatalf("op = %d, want %d", f.Op, opIdentify)
	}

	var p identifyPayload
	if err := parseD(f, &p); err != nil {
		t.Fatalf("parseD: %v", err)
	}
	want := identifyPayload{ServerID: "g1", UserID: "u1", SessionID: "s1", Token: "tok"}
	if p != want {
		t.Errorf("payload = %+v, want %+v", p, want)
	}
}

func TestBuildSelectProtocolShape(t *testing.T) {
	t.Parallel()

	data, err := buildSelectProtocol("203.0.113.9", 50004, EncryptionMode)
	if err != nil {
		t.Fatalf("buildSelectProtocol: %v", err)
	}

	f, err := parseFrame(data)
	if err != nil {
		t.Fatalf("parseFrame: %v", err)
	}
	if f.Op != opSelectProtocol {
		t.Fatalf("op = %d, want %d", f.Op, opSelectProtocol)
	}

	var p selectProtocolPayload
	if err := parseD(f, &p); err != nil {
		t.Fatalf("parseD: %v", err)
	}
	if p.Protocol != "udp" {
		t.Errorf("protocol = %q, want udp", p.Protocol)
	}
	if p.Data.Address != "203.0.113.9" || p.Data.Port != 50004 || p.Data.Mode != EncryptionMode {
		t.Errorf("data = %+v", p.Data)
	}
}

func TestBuildHeartbeatCarriesBareNonce(t *testing.T) {
	t.Parallel()

	data, err := buildHeartbeat(1234567890123)
	if err != nil {
		t.Fatalf("buildHeartbeat: %v", err)
	}

	// The d field is the nonce itself, not an object wrapping it.
	if !bytes.Contains(data, []byte(`"d":1234567890123`)) {
		t.Fatalf("heartbeat frame = %s, want bare numeric d", data)
	}

	f, err := parseFrame(data)
	if err != nil {
		t.Fatalf("parseFrame: %v", err)
	}
	var nonce uint64
	if err := parseD(f, &nonce); err != nil {
		t.Fatalf("parseD: %v", err)
	}
	if nonce != 1234567890123 {
		t.Errorf("nonce = %d, want 1234567890123", nonce)
	}
}

func TestBuildResumeOmitsUserID(t *testing.T) {
	t.Parallel()

	data, err := buildResume(SessionInfo{
		GuildID:   "g1",
		UserID:    "u1",
		SessionID: "s1",
		Token:     "tok",
	})
	if err != nil {
		t.Fatalf("buildResume: %v", err)
	}

	f, err := parseFrame(data)
	if err != nil {
		t.Fatalf("parseFrame: %v", err)
	}
	if f.Op != opResume {
		t.Fatalf("op = %d, want %d", f.Op, opResume)
	}

	var raw map[string]json.RawMessage
	if err := parseD(f, &raw); err != nil {
		t.Fatalf("parseD: %v", err)
	}
	if _, ok := raw["user_id"]; ok {
		t.Error("resume payload carries user_id")
	}
	for _, field := range []string{"server_id", "session_id", "token"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("resume payload missing %q", field)
		}
	}
}

func TestSessionDescriptionKeyBytes(t *testing.T) {
	t.Parallel()

	var p sessionDescriptionPayload
	raw := []byte(`{"mode":"xsalsa20_poly1305","secret_key":[1,2,3,255,0]}`)
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Mode != EncryptionMode {
		t.Errorf("mode = %q, want %q", p.Mode, EncryptionMode)
	}
	if want := []byte{1, 2, 3, 255, 0}; !bytes.Equal(p.key(), want) {
		t.Errorf("key = %v, want %v", p.key(), want)
	}
}

func TestHelloAcceptsFractionalInterval(t *testing.T) {
	t.Parallel()

	var p helloPayload
	if err := json.Unmarshal([]byte(`{"heartbeat_interval":41250.5}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.HeartbeatInterval != 41250.5 {
		t.Errorf("interval = %v, want 41250.5", p.HeartbeatInterval)
	}
}

func TestParseFrameRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := parseFrame([]byte("not json")); err == nil {
		t.Fatal("parseFrame accepted garbage")
	}
}

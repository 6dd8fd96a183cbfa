package voice

import (
	"encoding/json"
	"fmt"
)

// Voice gateway opcodes.
const (
	opIdentify           = 0
	opSelectProtocol     = 1
	opReady              = 2
	opHeartbeat          = 3
	opSessionDescription = 4
	opSpeaking           = 5
	opHeartbeatAck       = 6
	opResume             = 7
	opHello              = 8
	opResumed            = 9
	opClientDisconnect   = 13
)

// gatewayFrame is the envelope of every voice gateway message.
type gatewayFrame struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
}

func marshalFrame(op int, d any) ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("voice: marshal op %d: %w", op, err)
	}
	return json.Marshal(gatewayFrame{Op: op, D: raw})
}

// ── Outbound payloads ──────────────────────────────────────────────────────

type identifyPayload struct {
	ServerID  string `json:"server_id"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

func buildIdentify(info SessionInfo) ([]byte, error) {
	return marshalFrame(opIdentify, identifyPayload{
		ServerID:  info.GuildID,
		UserID:    info.UserID,
		SessionID: info.SessionID,
		Token:     info.Token,
	})
}

type selectProtocolPayload struct {
	Protocol string             `json:"protocol"`
	Data     selectProtocolData `json:"data"`
}

type selectProtocolData struct {
	Address string `json:"address"`
	Port    uint16 `json:"port"`
	Mode    string `json:"mode"`
}

func buildSelectProtocol(addr string, port uint16, mode string) ([]byte, error) {
	return marshalFrame(opSelectProtocol, selectProtocolPayload{
		Protocol: "udp",
		Data:     selectProtocolData{Address: addr, Port: port, Mode: mode},
	})
}

func buildHeartbeat(nonce uint64) ([]byte, error) {
	return marshalFrame(opHeartbeat, nonce)
}

type speakingPayload struct {
	Speaking bool   `json:"speaking"`
	Delay    int    `json:"delay"`
	SSRC     uint32 `json:"ssrc"`
}

func buildSpeaking(speaking bool, ssrc uint32) ([]byte, error) {
	return marshalFrame(opSpeaking, speakingPayload{Speaking: speaking, SSRC: ssrc})
}

type resumePayload struct {
	ServerID  string `json:"server_id"`
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

func buildResume(info SessionInfo) ([]byte, error) {
	return marshalFrame(opResume, resumePayload{
		ServerID:  info.GuildID,
		SessionID: info.SessionID,
		Token:     info.Token,
	})
}

// ── Inbound payloads ───────────────────────────────────────────────────────

type readyPayload struct {
	SSRC  uint32   `json:"ssrc"`
	IP    string   `json:"ip"`
	Port  uint16   `json:"port"`
	Modes []string `json:"modes"`
}

type helloPayload struct {
	// HeartbeatInterval is in milliseconds; some servers send it as a
	// float.
	HeartbeatInterval float64 `json:"heartbeat_interval"`
}

type sessionDescriptionPayload struct {
	Mode string `json:"mode"`

	// RawKey receives the secret key as a JSON array of byte values.
	RawKey []int `json:"secret_key"`
}

func (p *sessionDescriptionPayload) key() []byte {
	key := make([]byte, len(p.RawKey))
	for i, v := range p.RawKey {
		key[i] = byte(v)
	}
	return key
}

type speakingEventPayload struct {
	UserID   string `json:"user_id"`
	SSRC     uint32 `json:"ssrc"`
	Speaking bool   `json:"speaking"`
}

type clientDisconnectPayload struct {
	UserID string `json:"user_id"`
}

// parseFrame decodes a gateway envelope.
func parseFrame(data []byte) (gatewayFrame, error) {
	var f gatewayFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("voice: parse gateway frame: %w", err)
	}
	return f, nil
}

// parseD decodes the inner payload of a frame into v.
func parseD(f gatewayFrame, v any) error {
	if err := json.Unmarshal(f.D, v); err != nil {
		return fmt.Errorf("voice: parse op %d payload: %w", f.Op, err)
	}
	return nil
}

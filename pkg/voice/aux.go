package voice

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const (
	// gatewayVersion is the voice gateway protocol version we speak.
	gatewayVersion = "4"

	// handshakeTimeout bounds the whole connect sequence: both gateway
	// round-trips and the UDP discovery exchange.
	handshakeTimeout = 10 * time.Second

	wsWriteTimeout = 5 * time.Second
)

// connection is the established transport pair of one voice session: the
// gateway websocket for control traffic and the UDP socket for audio.
type connection struct {
	ws  *websocket.Conn
	udp *net.UDPConn

	ssrc      uint32
	cipher    *Cipher
	heartbeat time.Duration
}

// gatewayURL derives the websocket URL from the endpoint announced by the
// main gateway. A literal ":80" suffix is a known quirk of the announcement
// and must be stripped; the gateway only accepts TLS.
func gatewayURL(endpoint string) string {
	return "wss://" + strings.TrimSuffix(endpoint, ":80") + "/?v=" + gatewayVersion
}

// connect performs the full voice handshake: identify on the gateway, await
// Hello and Ready (either order), discover our external address over UDP,
// select the encryption protocol, and derive the session cipher from the
// resulting session description.
func connect(ctx context.Context, info SessionInfo) (*connection, error) {
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, gatewayURL(info.Endpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("voice: dial gateway: %w", err)
	}
	conn, err := finishConnect(ctx, ws, info)
	if err != nil {
		ws.Close(websocket.StatusInternalError, "handshake failed")
		return nil, err
	}
	return conn, nil
}

func finishConnect(ctx context.Context, ws *websocket.Conn, info SessionInfo) (*connection, error) {
	identify, err := buildIdentify(info)
	if err != nil {
		return nil, err
	}
	if err := ws.Write(ctx, websocket.MessageText, identify); err != nil {
		return nil, fmt.Errorf("voice: send identify: %w", err)
	}

	// Hello and Ready arrive in either order.
	var (
		ready *readyPayload
		hello *helloPayload
	)
	for ready == nil || hello == nil {
		f, err := readGatewayFrame(ctx, ws)
		if err != nil {
			return nil, err
		}
		switch f.Op {
		case opReady:
			ready = &readyPayload{}
			if err := parseD(f, ready); err != nil {
				return nil, err
			}
		case opHello:
			hello = &helloPayload{}
			if err := parseD(f, hello); err != nil {
				return nil, err
			}
		default:
			slog.Debug("voice: ignoring pre-ready frame", "op", f.Op)
		}
	}

	if !slices.Contains(ready.Modes, EncryptionMode) {
		return nil, fmt.Errorf("voice: server offers no %s support (modes %v)", EncryptionMode, ready.Modes)
	}

	udp, addr, port, err := discoverUDP(ready)
	if err != nil {
		return nil, err
	}

	selectProto, err := buildSelectProtocol(addr, port, EncryptionMode)
	if err != nil {
		udp.Close()
		return nil, err
	}
	if err := ws.Write(ctx, websocket.MessageText, selectProto); err != nil {
		udp.Close()
		return nil, fmt.Errorf("voice: send select protocol: %w", err)
	}

	// Await the session description; the gateway may interleave unrelated
	// frames (speaking state of users already in the channel).
	var desc sessionDescriptionPayload
	for {
		f, err := readGatewayFrame(ctx, ws)
		if err != nil {
			udp.Close()
			return nil, err
		}
		if f.Op != opSessionDescription {
			slog.Debug("voice: ignoring pre-description frame", "op", f.Op)
			continue
		}
		if err := parseD(f, &desc); err != nil {
			udp.Close()
			return nil, err
		}
		break
	}

	if desc.Mode != EncryptionMode {
		udp.Close()
		return nil, fmt.Errorf("voice: server selected mode %q, want %q", desc.Mode, EncryptionMode)
	}
	cipher, err := NewCipher(desc.key())
	if err != nil {
		udp.Close()
		return nil, err
	}

	return &connection{
		ws:        ws,
		udp:       udp,
		ssrc:      ready.SSRC,
		cipher:    cipher,
		heartbeat: time.Duration(hello.HeartbeatInterval * float64(time.Millisecond)),
	}, nil
}

// discoverUDP opens the audio socket and runs the IP discovery exchange,
// returning the socket and our externally visible address and port.
func discoverUDP(ready *readyPayload) (*net.UDPConn, string, uint16, error) {
	raddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(ready.IP, strconv.Itoa(int(ready.Port))))
	if err != nil {
		return nil, "", 0, fmt.Errorf("voice: resolve udp endpoint: %w", err)
	}
	udp, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, "", 0, fmt.Errorf("voice: dial udp: %w", err)
	}

	if _, err := udp.Write(buildDiscoveryRequest(ready.SSRC)); err != nil {
		udp.Close()
		return nil, "", 0, fmt.Errorf("voice: send discovery request: %w", err)
	}

	udp.SetReadDeadline(time.Now().Add(handshakeTimeout))
	var buf [discoveryLen]byte
	n, err := udp.Read(buf[:])
	udp.SetReadDeadline(time.Time{})
	if err != nil {
		udp.Close()
		return nil, "", 0, fmt.Errorf("voice: read discovery response: %w", err)
	}

	addr, port, err := parseDiscoveryResponse(buf[:n])
	if err != nil {
		udp.Close()
		return nil, "", 0, err
	}
	return udp, addr, port, nil
}

// resume re-establishes only the gateway websocket after a control-plane
// failure, keeping the UDP socket, ssrc, and cipher of the existing session.
func resume(ctx context.Context, info SessionInfo, old *connection) (*connection, error) {
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, gatewayURL(info.Endpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("voice: dial gateway: %w", err)
	}

	payload, err := buildResume(info)
	if err != nil {
		ws.Close(websocket.StatusInternalError, "resume failed")
		return nil, err
	}
	if err := ws.Write(ctx, websocket.MessageText, payload); err != nil {
		ws.Close(websocket.StatusInternalError, "resume failed")
		return nil, fmt.Errorf("voice: send resume: %w", err)
	}

	heartbeat := old.heartbeat
	for {
		f, err := readGatewayFrame(ctx, ws)
		if err != nil {
			ws.Close(websocket.StatusInternalError, "resume failed")
			return nil, err
		}
		switch f.Op {
		case opHello:
			var hello helloPayload
			if err := parseD(f, &hello); err != nil {
				ws.Close(websocket.StatusInternalError, "resume failed")
				return nil, err
			}
			heartbeat = time.Duration(hello.HeartbeatInterval * float64(time.Millisecond))
		case opResumed:
			return &connection{
				ws:        ws,
				udp:       old.udp,
				ssrc:      old.ssrc,
				cipher:    old.cipher,
				heartbeat: heartbeat,
			}, nil
		default:
			slog.Debug("voice: ignoring pre-resumed frame", "op", f.Op)
		}
	}
}

func readGatewayFrame(ctx context.Context, ws *websocket.Conn) (gatewayFrame, error) {
	_, data, err := ws.Read(ctx)
	if err != nil {
		return gatewayFrame{}, fmt.Errorf("voice: read gateway: %w", err)
	}
	return parseFrame(data)
}

// close tears down both transports. Safe on a partially failed session.
func (c *connection) close() {
	if c.ws != nil {
		c.ws.Close(websocket.StatusNormalClosure, "session closed")
	}
	if c.udp != nil {
		c.udp.Close()
	}
}

func (c *connection) write(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	return c.ws.Write(ctx, websocket.MessageText, data)
}

// runAux is the auxiliary packet task: it owns the gateway websocket in the
// steady state, sending heartbeats and speaking updates and surfacing
// inbound control events. Any transport fault is converted into a single
// StatusReconnect signal to the driver, then the task exits.
func runAux(conn *connection, ic *Interconnect) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := make(chan gatewayFrame, 16)
	readErr := make(chan error, 1)
	go func() {
		for {
			f, err := readGatewayFrame(ctx, conn.ws)
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	hb := time.NewTicker(conn.heartbeat)
	defer hb.Stop()

	var (
		nonce       uint64
		awaitingAck bool
		hbSent      time.Time
	)

	signalReconnect := func(reason string, err error) {
		slog.Warn("voice: gateway fault", "reason", reason, "error", err)
		select {
		case ic.Core <- StatusReconnect:
		default:
		}
	}

	// handleFrame applies one inbound gateway frame, reporting false when the
	// task must exit.
	handleFrame := func(f gatewayFrame) bool {
		switch f.Op {
		case opHeartbeatAck:
			var got uint64
			if err := parseD(f, &got); err != nil {
				slog.Warn("voice: bad heartbeat ack", "error", err)
				return true
			}
			if got != nonce {
				signalReconnect("heartbeat nonce mismatch", nil)
				return false
			}
			awaitingAck = false
			slog.Debug("voice: gateway heartbeat", "latency", time.Since(hbSent))

		case opSpeaking:
			var p speakingEventPayload
			if err := parseD(f, &p); err != nil {
				slog.Warn("voice: bad speaking event", "error", err)
				return true
			}
			ic.sendEvent(FireCoreEvent{Event: CoreEvent{Speaking: &SpeakingUpdate{
				UserID:   p.UserID,
				SSRC:     p.SSRC,
				Speaking: p.Speaking,
			}}})

		case opClientDisconnect:
			var p clientDisconnectPayload
			if err := parseD(f, &p); err != nil {
				slog.Warn("voice: bad client disconnect event", "error", err)
				return true
			}
			ic.sendEvent(FireCoreEvent{Event: CoreEvent{ClientDisconnect: &ClientDisconnect{
				UserID: p.UserID,
			}}})

		default:
			slog.Debug("voice: unhandled gateway frame", "op", f.Op)
		}
		return true
	}

	for {
		select {
		case msg, ok := <-ic.Aux:
			if !ok {
				return
			}
			switch m := msg.(type) {
			case AuxSpeaking:
				data, err := buildSpeaking(m.Speaking, conn.ssrc)
				if err != nil {
					slog.Error("voice: build speaking", "error", err)
					continue
				}
				if err := conn.write(data); err != nil {
					signalReconnect("speaking send failed", err)
					return
				}
			case AuxPoison:
				return
			}

		case <-hb.C:
			// The ack may already sit in the frame queue, racing the
			// ticker. Process everything pending before judging it missed.
		pending:
			for awaitingAck {
				select {
				case f := <-frames:
					if !handleFrame(f) {
						return
					}
				default:
					break pending
				}
			}
			if awaitingAck {
				signalReconnect("heartbeat ack missed", nil)
				return
			}
			nonce = rand.Uint64()
			data, err := buildHeartbeat(nonce)
			if err != nil {
				slog.Error("voice: build heartbeat", "error", err)
				continue
			}
			if err := conn.write(data); err != nil {
				signalReconnect("heartbeat send failed", err)
				return
			}
			hbSent = time.Now()
			awaitingAck = true

		case f := <-frames:
			if !handleFrame(f) {
				return
			}

		case err := <-readErr:
			signalReconnect("gateway read failed", err)
			return
		}
	}
}

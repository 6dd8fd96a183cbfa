// Package observe provides the application's observability primitives:
// OpenTelemetry metric instruments for the voice pipeline and a Prometheus
// exporter bridge so they can be scraped via a standard /metrics endpoint.
//
// A nil *Metrics is valid and records nothing, so library code can thread
// metrics through unconditionally; tests and embedders that do not care
// simply pass nil.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all pipeline metrics.
const meterName = "github.com/kestrelvoice/kestrel"

// Metrics holds the metric instruments of the voice pipeline. All fields
// are safe for concurrent use; the OTel types synchronise internally.
type Metrics struct {
	// TickDuration tracks how long one mixer cycle's work takes, sleep
	// excluded. Sustained values near 20 ms mean the mixer cannot hold
	// its cadence.
	TickDuration metric.Float64Histogram

	// PacketsSent counts transmitted audio packets.
	PacketsSent metric.Int64Counter

	// BytesSent counts transmitted audio bytes.
	BytesSent metric.Int64Counter

	// Keepalives counts UDP NAT keepalive packets.
	Keepalives metric.Int64Counter

	// SilencePackets counts transmitted comfort-silence packets.
	SilencePackets metric.Int64Counter

	// Reconnects counts voice session reconnection attempts.
	Reconnects metric.Int64Counter

	// ActiveSessions tracks the number of live voice sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// tickBuckets are histogram boundaries (in seconds) sized for a 20 ms
// cycle budget.
var tickBuckets = []float64{
	0.0005, 0.001, 0.002, 0.005, 0.01, 0.015, 0.02, 0.05, 0.1,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TickDuration, err = m.Float64Histogram("kestrel.mixer.tick.duration",
		metric.WithDescription("Duration of one mixer cycle's work, sleep excluded."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(tickBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PacketsSent, err = m.Int64Counter("kestrel.udp.packets",
		metric.WithDescription("Transmitted audio packets."),
	); err != nil {
		return nil, err
	}
	if met.BytesSent, err = m.Int64Counter("kestrel.udp.bytes",
		metric.WithDescription("Transmitted audio bytes."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.Keepalives, err = m.Int64Counter("kestrel.udp.keepalives",
		metric.WithDescription("UDP NAT keepalive packets."),
	); err != nil {
		return nil, err
	}
	if met.SilencePackets, err = m.Int64Counter("kestrel.mixer.silence_packets",
		metric.WithDescription("Comfort-silence packets in post-audio trailers."),
	); err != nil {
		return nil, err
	}
	if met.Reconnects, err = m.Int64Counter("kestrel.session.reconnects",
		metric.WithDescription("Voice session reconnection attempts."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("kestrel.session.active",
		metric.WithDescription("Live voice sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordTick records one mixer cycle's work duration.
func (m *Metrics) RecordTick(d time.Duration) {
	if m == nil {
		return
	}
	m.TickDuration.Record(context.Background(), d.Seconds())
}

// RecordPacketSent records one transmitted audio packet of n bytes.
func (m *Metrics) RecordPacketSent(n int) {
	if m == nil {
		return
	}
	ctx := context.Background()
	m.PacketsSent.Add(ctx, 1)
	m.BytesSent.Add(ctx, int64(n))
}

// RecordKeepalive records one UDP keepalive.
func (m *Metrics) RecordKeepalive() {
	if m == nil {
		return
	}
	m.Keepalives.Add(context.Background(), 1)
}

// RecordSilencePacket records one comfort-silence packet.
func (m *Metrics) RecordSilencePacket() {
	if m == nil {
		return
	}
	m.SilencePackets.Add(context.Background(), 1)
}

// RecordReconnect records one reconnection attempt.
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.Reconnects.Add(context.Background(), 1)
}

// SessionStarted marks a session as live.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(context.Background(), 1)
}

// SessionEnded marks a session as finished.
func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(context.Background(), -1)
}

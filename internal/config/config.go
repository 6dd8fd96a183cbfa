// Package config provides the configuration schema and loader for the
// kestrel voice transmitter.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SourceKind selects how a playlist entry is opened.
type SourceKind string

const (
	// SourceDCA plays a DCA1 file with Opus passthrough.
	SourceDCA SourceKind = "dca"

	// SourceFFmpeg transcodes any file or URL through an ffmpeg
	// subprocess.
	SourceFFmpeg SourceKind = "ffmpeg"

	// SourcePCMS16 plays a headerless 48 kHz signed 16-bit PCM file.
	SourcePCMS16 SourceKind = "pcm_s16"

	// SourcePCMF32 plays a headerless 48 kHz float32 PCM file.
	SourcePCMF32 SourceKind = "pcm_f32"

	// SourceOggOpus plays an Ogg Opus file with passthrough.
	SourceOggOpus SourceKind = "ogg_opus"
)

// IsValid reports whether k is a recognised source kind.
func (k SourceKind) IsValid() bool {
	switch k {
	case SourceDCA, SourceFFmpeg, SourcePCMS16, SourcePCMF32, SourceOggOpus:
		return true
	}
	return false
}

// Config is the root configuration structure for kestrel. It is typically
// loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Session  SessionConfig  `yaml:"session"`
	Audio    AudioConfig    `yaml:"audio"`
	Playlist []SourceConfig `yaml:"playlist"`
}

// ServerConfig holds logging and telemetry settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address the Prometheus /metrics endpoint
	// listens on (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// SessionConfig carries the voice session credentials handed over by the
// main gateway.
type SessionConfig struct {
	// Endpoint is the voice gateway host, as announced (a trailing ":80"
	// is tolerated and stripped).
	Endpoint string `yaml:"endpoint"`

	// GuildID identifies the guild whose channel the session joins.
	GuildID string `yaml:"guild_id"`

	// SessionID is the session identifier from the main gateway's voice
	// state update.
	SessionID string `yaml:"session_id"`

	// UserID is the connecting user's identifier.
	UserID string `yaml:"user_id"`

	// Token is the voice connection token. Not the bot token.
	Token string `yaml:"token"`
}

// AudioConfig tunes the transmit pipeline.
type AudioConfig struct {
	// Bitrate is the Opus encoder bitrate in bits per second.
	// 0 selects the default of 128 kbit/s.
	Bitrate int `yaml:"bitrate"`

	// ResumeRetries is how many gateway resume attempts precede a full
	// reconnect. 0 selects the driver default.
	ResumeRetries int `yaml:"resume_retries"`
}

// SourceConfig describes one playlist entry.
type SourceConfig struct {
	// Path is the file path or URL of the source.
	Path string `yaml:"path"`

	// Kind selects how the source is opened.
	Kind SourceKind `yaml:"kind"`

	// Stereo marks headerless PCM sources as stereo. Ignored for the
	// other kinds, which carry their own channel layout.
	Stereo bool `yaml:"stereo"`

	// Volume scales the track; 0 selects unity gain.
	Volume float32 `yaml:"volume"`

	// Loops replays the track that many extra times; -1 loops forever.
	Loops int `yaml:"loops"`
}

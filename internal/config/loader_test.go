package config

import (
	"strings"
	"testing"
)

const validYAML = `
server:
  log_level: info
  metrics_addr: ":9090"
session:
  endpoint: voice.example.com:80
  guild_id: "123"
  session_id: "abc"
  user_id: "456"
  token: "tok"
audio:
  bitrate: 96000
  resume_retries: 5
playlist:
  - path: intro.dca
    kind: dca
  - path: loop.raw
    kind: pcm_f32
    stereo: true
    volume: 0.5
    loops: -1
`

func TestLoadFromReaderValid(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.LogLevel != LogInfo {
		t.Errorf("log level = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Server.MetricsAddr != ":9090" {
		t.Errorf("metrics addr = %q", cfg.Server.MetricsAddr)
	}
	if cfg.Session.Endpoint != "voice.example.com:80" || cfg.Session.Token != "tok" {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Audio.Bitrate != 96000 || cfg.Audio.ResumeRetries != 5 {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if len(cfg.Playlist) != 2 {
		t.Fatalf("playlist has %d entries, want 2", len(cfg.Playlist))
	}
	if cfg.Playlist[0].Kind != SourceDCA {
		t.Errorf("playlist[0].kind = %q, want dca", cfg.Playlist[0].Kind)
	}
	if e := cfg.Playlist[1]; e.Kind != SourcePCMF32 || !e.Stereo || e.Volume != 0.5 || e.Loops != -1 {
		t.Errorf("playlist[1] = %+v", e)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	yaml := strings.Replace(validYAML, "metrics_addr", "metrics_address", 1)
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestValidateFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "verbose" },
			wantErr: "server.log_level",
		},
		{
			name:    "missing endpoint",
			mutate:  func(c *Config) { c.Session.Endpoint = "" },
			wantErr: "session.endpoint is required",
		},
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.Session.Token = "" },
			wantErr: "session.token is required",
		},
		{
			name:    "bitrate too low",
			mutate:  func(c *Config) { c.Audio.Bitrate = 100 },
			wantErr: "audio.bitrate",
		},
		{
			name:    "bitrate too high",
			mutate:  func(c *Config) { c.Audio.Bitrate = 600_000 },
			wantErr: "audio.bitrate",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Audio.ResumeRetries = -1 },
			wantErr: "audio.resume_retries",
		},
		{
			name:    "playlist entry without path",
			mutate:  func(c *Config) { c.Playlist[0].Path = "" },
			wantErr: "playlist[0].path is required",
		},
		{
			name:    "playlist entry with bad kind",
			mutate:  func(c *Config) { c.Playlist[0].Kind = "mp3" },
			wantErr: `playlist[0].kind "mp3" is invalid`,
		},
		{
			name:    "negative volume",
			mutate:  func(c *Config) { c.Playlist[1].Volume = -0.1 },
			wantErr: "playlist[1].volume",
		},
		{
			name:    "loops below forever",
			mutate:  func(c *Config) { c.Playlist[1].Loops = -2 },
			wantErr: "playlist[1].loops",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := LoadFromReader(strings.NewReader(validYAML))
			if err != nil {
				t.Fatalf("base config invalid: %v", err)
			}
			tt.mutate(cfg)

			err = Validate(cfg)
			if err == nil {
				t.Fatal("Validate accepted the config")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportsAllFailures(t *testing.T) {
	t.Parallel()

	err := Validate(&Config{})
	if err == nil {
		t.Fatal("empty config accepted")
	}
	for _, want := range []string{
		"session.endpoint", "session.guild_id", "session.session_id",
		"session.user_id", "session.token",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error does not mention %s", want)
		}
	}
}

func TestZeroValuesSelectDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	cfg.Audio.Bitrate = 0
	cfg.Audio.ResumeRetries = 0
	cfg.Server.LogLevel = ""

	if err := Validate(cfg); err != nil {
		t.Fatalf("zero defaults rejected: %v", err)
	}
}

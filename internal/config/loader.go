package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Opus accepts bitrates in this range; values outside it are configuration
// mistakes rather than taste.
const (
	minBitrate = 500
	maxBitrate = 512_000
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Session.Endpoint == "" {
		errs = append(errs, errors.New("session.endpoint is required"))
	}
	if cfg.Session.GuildID == "" {
		errs = append(errs, errors.New("session.guild_id is required"))
	}
	if cfg.Session.SessionID == "" {
		errs = append(errs, errors.New("session.session_id is required"))
	}
	if cfg.Session.UserID == "" {
		errs = append(errs, errors.New("session.user_id is required"))
	}
	if cfg.Session.Token == "" {
		errs = append(errs, errors.New("session.token is required"))
	}

	if b := cfg.Audio.Bitrate; b != 0 && (b < minBitrate || b > maxBitrate) {
		errs = append(errs, fmt.Errorf("audio.bitrate %d is out of range [%d, %d]", b, minBitrate, maxBitrate))
	}
	if cfg.Audio.ResumeRetries < 0 {
		errs = append(errs, fmt.Errorf("audio.resume_retries %d is negative", cfg.Audio.ResumeRetries))
	}

	for i, src := range cfg.Playlist {
		prefix := fmt.Sprintf("playlist[%d]", i)
		if src.Path == "" {
			errs = append(errs, fmt.Errorf("%s.path is required", prefix))
		}
		if src.Kind == "" {
			errs = append(errs, fmt.Errorf("%s.kind is required", prefix))
		} else if !src.Kind.IsValid() {
			errs = append(errs, fmt.Errorf("%s.kind %q is invalid; valid values: dca, ffmpeg, pcm_s16, pcm_f32, ogg_opus", prefix, src.Kind))
		}
		if src.Volume < 0 {
			errs = append(errs, fmt.Errorf("%s.volume %.2f is negative", prefix, src.Volume))
		}
		if src.Loops < -1 {
			errs = append(errs, fmt.Errorf("%s.loops %d is invalid; use -1 for forever", prefix, src.Loops))
		}
	}

	return errors.Join(errs...)
}

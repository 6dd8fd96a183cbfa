// Command kestrel joins a voice channel with credentials handed over by the
// main gateway and transmits a configured playlist until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/kestrelvoice/kestrel/internal/config"
	"github.com/kestrelvoice/kestrel/internal/observe"
	"github.com/kestrelvoice/kestrel/pkg/voice"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "kestrel: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "kestrel: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("kestrel starting",
		"config", *configPath,
		"endpoint", cfg.Session.Endpoint,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "kestrel"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	met, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	g, gctx := errgroup.WithContext(ctx)

	var metricsSrv *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux}
		g.Go(func() error {
			slog.Info("metrics endpoint listening", "addr", cfg.Server.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	// ── Voice session ─────────────────────────────────────────────────────────
	opts := []voice.DriverOption{voice.WithMetrics(met)}
	if cfg.Audio.ResumeRetries > 0 {
		opts = append(opts, voice.WithResumeRetries(cfg.Audio.ResumeRetries))
	}
	driver, err := voice.NewDriver(opts...)
	if err != nil {
		slog.Error("failed to create driver", "err", err)
		return 1
	}
	defer driver.Close()

	if err := driver.Connect(ctx, voice.SessionInfo{
		Endpoint:  cfg.Session.Endpoint,
		GuildID:   cfg.Session.GuildID,
		SessionID: cfg.Session.SessionID,
		UserID:    cfg.Session.UserID,
		Token:     cfg.Session.Token,
	}); err != nil {
		slog.Error("failed to connect voice session", "err", err)
		return 1
	}

	if cfg.Audio.Bitrate > 0 {
		driver.SetBitrate(cfg.Audio.Bitrate)
	}

	driver.AddGlobalEvent(voice.OnCoreEvent(func(ev voice.EventContext) {
		switch {
		case ev.Core.Speaking != nil:
			slog.Debug("speaking update",
				"user", ev.Core.Speaking.UserID,
				"speaking", ev.Core.Speaking.Speaking,
			)
		case ev.Core.ClientDisconnect != nil:
			slog.Info("user left channel", "user", ev.Core.ClientDisconnect.UserID)
		}
	}))

	// ── Playlist ──────────────────────────────────────────────────────────────
	queue := voice.NewQueue(driver)
	for _, src := range cfg.Playlist {
		in, err := openSource(src)
		if err != nil {
			slog.Error("failed to open source", "path", src.Path, "err", err)
			return 1
		}

		var topts []voice.TrackOption
		if src.Volume > 0 {
			topts = append(topts, voice.WithVolume(src.Volume))
		}
		if src.Loops != 0 {
			topts = append(topts, voice.WithLoops(voice.LoopState(src.Loops)))
		}
		queue.Enqueue(in, topts...)
		slog.Info("queued source", "path", src.Path, "kind", src.Kind)
	}

	slog.Info("session ready; press Ctrl+C to shut down")
	<-gctx.Done()

	slog.Info("shutdown signal received, stopping…")
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown error", "err", err)
		}
	}
	if err := g.Wait(); err != nil {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// openSource opens one playlist entry as a playable input.
func openSource(src config.SourceConfig) (*voice.Input, error) {
	switch src.Kind {
	case config.SourceDCA:
		return voice.DCAFileSource(src.Path)
	case config.SourceFFmpeg:
		return voice.RestartableFFmpegSource(src.Path)
	case config.SourcePCMS16:
		return voice.PCMFileSource(src.Path, voice.CodecPCMS16, src.Stereo)
	case config.SourcePCMF32:
		return voice.PCMFileSource(src.Path, voice.CodecPCMF32, src.Stereo)
	case config.SourceOggOpus:
		f, err := os.Open(src.Path)
		if err != nil {
			return nil, fmt.Errorf("open %q: %w", src.Path, err)
		}
		return voice.OggOpusSource(f)
	}
	return nil, fmt.Errorf("unknown source kind %q", src.Kind)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

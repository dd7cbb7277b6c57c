package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/speechbox/speechbox/internal/api"
	"github.com/speechbox/speechbox/internal/cache"
	"github.com/speechbox/speechbox/internal/config"
	"github.com/speechbox/speechbox/internal/engine"
	"github.com/speechbox/speechbox/internal/metrics"
	"github.com/speechbox/speechbox/internal/mqttclient"
	"github.com/speechbox/speechbox/internal/probe"
	"github.com/speechbox/speechbox/internal/profile"
	"github.com/speechbox/speechbox/internal/stt"
	"github.com/speechbox/speechbox/internal/tts"
)

var version = "dev"

func main() {
	startTime := time.Now()

	envFile := flag.String("env", "", "path to .env file")
	port := flag.Int("port", 0, "listen port (overrides PORT)")
	logLevel := flag.String("log-level", "", "log level (overrides LOG_LEVEL)")
	profilePath := flag.String("profile", "", "profile path (overrides PROFILE_PATH)")
	cacheDir := flag.String("cache-dir", "", "cache directory (overrides CACHE_DIR)")
	flag.Parse()

	// Config
	cfg, err := config.Load(config.Overrides{
		EnvFile:     *envFile,
		Port:        *port,
		LogLevel:    *logLevel,
		ProfilePath: *profilePath,
		CacheDir:    *cacheDir,
	})
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	log := newLogger(cfg)
	log.Info().Str("version", version).Msg("speechboxd starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Profile: missing file is fine, a malformed one is not
	prof, err := profile.Load(cfg.ProfilePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load profile")
	}
	profiles := profile.NewHolder(prof)
	if watcher, err := profile.NewWatcher(cfg.ProfilePath, profiles, log); err != nil {
		log.Warn().Err(err).Msg("profile watching disabled")
	} else {
		watcher.Start()
		defer watcher.Stop()
	}

	// Synthesis cache
	cacheLog := log.With().Str("component", "cache").Logger()
	store, services, err := cache.New(cache.Options{
		Dir:       cfg.CacheDir,
		Retention: cfg.CacheRetention,
		MaxMB:     cfg.CacheMaxMB,
		S3:        cfg.S3,
	}, cacheLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up cache")
	}
	for _, svc := range services {
		svc.Start()
		defer svc.Stop()
	}
	metrics.RegisterCacheCollector(cfg.CacheDir)

	// Engine registries
	network := probe.Network(cfg.ProbeHost, cfg.ProbeTimeout)
	sttReg := stt.NewRegistry(stt.Options{Profiles: profiles, Network: network, Log: log})
	ttsReg := tts.NewRegistry(tts.Options{Profiles: profiles, Network: network, Log: log})
	speaker := tts.NewSpeaker(ttsReg, store, log)

	go sweepAvailability(ctx, sttReg, ttsReg)

	// MQTT
	var mqtt *mqttclient.Client
	if cfg.MQTTEnabled {
		mqttLog := log.With().Str("component", "mqtt").Logger()
		mqtt, err = mqttclient.Connect(mqttclient.Options{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			Speaker:     speaker,
			Profiles:    profiles,
			Log:         mqttLog,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mqtt broker")
		}
		defer mqtt.Close()
	}

	// HTTP server
	httpLog := log.With().Str("component", "http").Logger()
	opts := api.Options{
		Config:    cfg,
		Profiles:  profiles,
		STT:       sttReg,
		TTS:       ttsReg,
		Speaker:   speaker,
		Version:   version,
		StartTime: startTime,
		Log:       httpLog,
	}
	if mqtt != nil {
		opts.Transcripts = mqtt
		opts.MQTT = mqtt
	}
	srv := api.NewServer(opts)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("speechboxd stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var out io.Writer = os.Stdout
	if cfg.LogFormat == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	return zerolog.New(out).With().Timestamp().Logger().Level(level)
}

// sweepAvailability keeps the engine_available gauge current. Remote engine
// probes dial out, so the sweep is paced rather than per scrape.
func sweepAvailability(ctx context.Context, sttReg *engine.Registry[stt.Engine], ttsReg *engine.Registry[tts.Engine]) {
	record := func() {
		recordAvailability(ctx, sttReg)
		recordAvailability(ctx, ttsReg)
	}
	record()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			record()
		}
	}
}

func recordAvailability[T any](ctx context.Context, reg *engine.Registry[T]) {
	for _, s := range reg.Availability(ctx) {
		v := 0.0
		if s.Err == nil {
			v = 1.0
		}
		metrics.EngineAvailable.WithLabelValues(s.Slug, s.Kind.String()).Set(v)
	}
}

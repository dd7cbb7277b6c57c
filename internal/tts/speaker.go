package tts

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/speechbox/speechbox/internal/cache"
	"github.com/speechbox/speechbox/internal/engine"
	"github.com/speechbox/speechbox/internal/metrics"
)

// Speaker fronts the TTS registry with optional artifact caching. All say
// entry points (HTTP, MQTT, CLI) go through it so cache behavior and metrics
// stay in one place.
type Speaker struct {
	registry *engine.Registry[Engine]
	store    cache.Store // nil disables cache mode
	log      zerolog.Logger
}

func NewSpeaker(registry *engine.Registry[Engine], store cache.Store, log zerolog.Logger) *Speaker {
	return &Speaker{
		registry: registry,
		store:    store,
		log:      log.With().Str("component", "speaker").Logger(),
	}
}

// Say selects the engine for slug and speaks phrase, blocking until playback
// completes. With cached set, the synthesized artifact is stored and reused
// for repeated phrases. Selection errors and empty phrases propagate;
// synthesis and playback failures are absorbed per the engine contract.
func (s *Speaker) Say(ctx context.Context, slug, phrase string, cached bool) error {
	if err := checkPhrase(phrase); err != nil {
		return err
	}
	eng, err := s.registry.Select(ctx, slug)
	if err != nil {
		return err
	}
	defer eng.Close()

	start := time.Now()
	defer func() {
		metrics.SynthesisDuration.WithLabelValues(eng.Slug()).Observe(time.Since(start).Seconds())
	}()

	syn, isSynth := eng.(Synthesizer)
	if !cached || s.store == nil || !isSynth {
		err := eng.Say(ctx, phrase)
		metrics.SayTotal.WithLabelValues(eng.Slug(), outcomeLabel(err)).Inc()
		return err
	}

	s.sayCached(ctx, eng.Slug(), syn, phrase)
	return nil
}

// sayCached plays from the artifact cache, synthesizing only on a miss. The
// new artifact is persisted instead of deleted so the next call skips
// synthesis.
func (s *Speaker) sayCached(ctx context.Context, slug string, syn Synthesizer, phrase string) {
	key := cache.Key(slug, phrase, syn.ArtifactExt())

	path := s.store.LocalPath(key)
	if path == "" && s.store.Exists(ctx, key) {
		// Backup-tier hit: Open re-materializes the local copy.
		if rc, err := s.store.Open(ctx, key); err == nil {
			rc.Close()
			path = s.store.LocalPath(key)
		}
	}
	if path != "" {
		metrics.CacheEvents.WithLabelValues("hit").Inc()
		s.log.Debug().Str("key", key).Msg("serving cached artifact")
		outcome := "ok"
		if err := syn.PlayArtifact(ctx, path); err != nil {
			s.log.Error().Err(err).Msg("playback failed")
			outcome = "error"
		}
		metrics.SayTotal.WithLabelValues(slug, outcome).Inc()
		return
	}

	metrics.CacheEvents.WithLabelValues("miss").Inc()
	data, err := syn.Synthesize(ctx, phrase)
	if err != nil {
		s.log.Error().Err(err).Msg("synthesis failed")
		metrics.SayTotal.WithLabelValues(slug, "error").Inc()
		return
	}

	if err := s.store.Save(ctx, key, data, contentTypeFor(syn.ArtifactExt())); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cannot persist artifact")
		playBytes(ctx, syn, s.log, data)
		metrics.SayTotal.WithLabelValues(slug, "ok").Inc()
		return
	}
	metrics.CacheEvents.WithLabelValues("store").Inc()

	outcome := "ok"
	if path := s.store.LocalPath(key); path != "" {
		if err := syn.PlayArtifact(ctx, path); err != nil {
			s.log.Error().Err(err).Msg("playback failed")
			outcome = "error"
		}
	} else {
		playBytes(ctx, syn, s.log, data)
	}
	metrics.SayTotal.WithLabelValues(slug, outcome).Inc()
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

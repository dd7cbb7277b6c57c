// Package tts holds the text-to-speech engines, their registration table,
// and the cache-aware Speaker that fronts them.
//
// Like the speech-to-text side, per-call failures never escape an engine:
// synthesis and playback errors are logged and swallowed, so Say only errors
// on an empty phrase.
package tts

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strings"

	"github.com/rs/zerolog"

	"github.com/speechbox/speechbox/internal/engine"
	"github.com/speechbox/speechbox/internal/probe"
	"github.com/speechbox/speechbox/internal/profile"
)

// Engine slugs, exact and case-sensitive.
const (
	SlugDummy  = "dummy-tts"
	SlugEspeak = "espeak-tts"
	SlugMac    = "osx-tts"
	SlugGoogle = "google-tts"
	SlugBaidu  = "baidu-tts"
)

// ErrEmptyPhrase rejects say calls with nothing to speak.
var ErrEmptyPhrase = errors.New("phrase must not be empty")

// Engine is one text-to-speech backend.
type Engine interface {
	// Slug returns the engine's registry identifier.
	Slug() string
	// Say synthesizes phrase and blocks until playback completes. The only
	// error is an empty phrase; synthesis and playback failures are logged
	// and swallowed.
	Say(ctx context.Context, phrase string) error
	// Close releases per-instance resources.
	Close() error
}

// Synthesizer is implemented by engines whose synthesis step produces a
// reusable artifact. The Speaker uses it for cache-mode playback.
type Synthesizer interface {
	// Synthesize produces the artifact bytes for phrase.
	Synthesize(ctx context.Context, phrase string) ([]byte, error)
	// ArtifactExt is the artifact's file extension, ".wav" or ".mp3".
	ArtifactExt() string
	// PlayArtifact plays a previously synthesized artifact file.
	PlayArtifact(ctx context.Context, path string) error
}

// Options configure the registry assembly.
type Options struct {
	Profiles *profile.Holder
	// Network gates the remote engines.
	Network probe.Probe
	Log     zerolog.Logger
}

// NewRegistry builds the TTS registry. This literal list is the complete set
// of known engines; there is no runtime discovery.
func NewRegistry(o Options) *engine.Registry[Engine] {
	r := engine.NewRegistry[Engine](engine.TTS, o.Log)
	r.Register(dummyDescriptor(o))
	r.Register(espeakDescriptor(o))
	r.Register(macDescriptor(o))
	r.Register(googleDescriptor(o))
	r.Register(baiduDescriptor(o))
	return r
}

// DefaultSlug is used when the profile names no TTS engine. macOS ships a
// usable voice out of the box, everything else gets espeak.
func DefaultSlug() string {
	if runtime.GOOS == "darwin" {
		return SlugMac
	}
	return SlugEspeak
}

// EngineSlug returns the profile's active TTS engine, or the platform default.
func EngineSlug(p *profile.Profile) string {
	return p.String(profile.KeyTTSEngine, DefaultSlug())
}

func checkPhrase(phrase string) error {
	if strings.TrimSpace(phrase) == "" {
		return ErrEmptyPhrase
	}
	return nil
}

func contentTypeFor(ext string) string {
	if ext == ".mp3" {
		return "audio/mpeg"
	}
	return "audio/wav"
}

// sayOnce is the uncached say path shared by the artifact-producing engines:
// synthesize, play from a temporary file, remove it on every exit path.
func sayOnce(ctx context.Context, s Synthesizer, log zerolog.Logger, phrase string) error {
	if err := checkPhrase(phrase); err != nil {
		return err
	}
	data, err := s.Synthesize(ctx, phrase)
	if err != nil {
		log.Error().Err(err).Msg("synthesis failed")
		return nil
	}
	playBytes(ctx, s, log, data)
	return nil
}

// playBytes plays artifact bytes through a temporary file, removed on every
// exit path.
func playBytes(ctx context.Context, s Synthesizer, log zerolog.Logger, data []byte) {
	f, err := os.CreateTemp("", "speech-*"+s.ArtifactExt())
	if err != nil {
		log.Error().Err(err).Msg("creating artifact file")
		return
	}
	path := f.Name()
	defer os.Remove(path)
	if _, err := f.Write(data); err != nil {
		f.Close()
		log.Error().Err(err).Msg("writing artifact file")
		return
	}
	if err := f.Close(); err != nil {
		log.Error().Err(err).Msg("writing artifact file")
		return
	}
	if err := s.PlayArtifact(ctx, path); err != nil {
		log.Error().Err(err).Msg("playback failed")
	}
}

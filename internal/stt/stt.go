// Package stt holds the speech-to-text engines and their registration table.
//
// Every engine consumes single-channel linear PCM in the format it declares
// and returns candidate transcripts best-first. Per-call failures never
// escape an engine: they are logged and collapsed into an empty candidate
// list, so a constructed engine's Transcribe only errors on bad arguments.
package stt

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/speechbox/speechbox/internal/engine"
	"github.com/speechbox/speechbox/internal/probe"
	"github.com/speechbox/speechbox/internal/profile"
)

// Engine slugs, exact and case-sensitive.
const (
	SlugSphinx = "sphinx"
	SlugJulius = "julius"
	SlugGoogle = "google"
	SlugBaidu  = "baidu-stt"
)

// DefaultSlug is used when the profile names no STT engine.
const DefaultSlug = SlugSphinx

// Engine is one speech-to-text backend.
type Engine interface {
	// Slug returns the engine's registry identifier.
	Slug() string
	// Transcribe reads one utterance of audio and returns candidate
	// transcripts, best first. The result may be empty but is never nil.
	// The only error is a nil stream; engine and upstream failures are
	// logged and yield an empty result.
	Transcribe(ctx context.Context, r io.Reader) ([]string, error)
	// Close releases per-instance resources such as decoder log files.
	Close() error
}

// Options configure the registry assembly.
type Options struct {
	// Profiles supplies the current profile snapshot; factories resolve
	// their configuration from it at selection time.
	Profiles *profile.Holder
	// Network gates the remote engines. Built once from process config so
	// every remote engine shares the same reachability target and timeout.
	Network probe.Probe
	Log     zerolog.Logger
}

// NewRegistry builds the STT registry. This literal list is the complete set
// of known engines; there is no runtime discovery.
func NewRegistry(o Options) *engine.Registry[Engine] {
	r := engine.NewRegistry[Engine](engine.STT, o.Log)
	r.Register(sphinxDescriptor(o))
	r.Register(juliusDescriptor(o))
	r.Register(googleDescriptor(o))
	r.Register(baiduDescriptor(o))
	return r
}

// EngineSlug returns the profile's active STT engine, or DefaultSlug.
func EngineSlug(p *profile.Profile) string {
	return p.String(profile.KeySTTEngine, DefaultSlug)
}

// PassiveEngineSlug returns the engine used for passive keyword listening:
// stt_passive_engine when set, otherwise the active engine.
func PassiveEngineSlug(p *profile.Profile) string {
	return p.String(profile.KeySTTPassiveEngine, EngineSlug(p))
}

// defaultVocabularyDir is where the external vocabulary compiler drops its
// output when the profile doesn't say otherwise.
func defaultVocabularyDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".speechbox", "vocabularies", "default")
	}
	return filepath.Join(home, ".speechbox", "vocabularies", "default")
}

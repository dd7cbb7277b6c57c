package tts

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/speechbox/speechbox/internal/engine"
	"github.com/speechbox/speechbox/internal/probe"
)

// DummyEngine prints the phrase instead of speaking it. Useful on headless
// boxes and in smoke tests.
type DummyEngine struct {
	log zerolog.Logger
}

func dummyDescriptor(o Options) engine.Descriptor[Engine] {
	return engine.Descriptor[Engine]{
		Slug:  SlugDummy,
		Probe: probe.Always(),
		New: func(ctx context.Context) (Engine, error) {
			return &DummyEngine{log: o.Log.With().Str("engine", SlugDummy).Logger()}, nil
		},
	}
}

func (e *DummyEngine) Slug() string { return SlugDummy }

func (e *DummyEngine) Say(ctx context.Context, phrase string) error {
	if err := checkPhrase(phrase); err != nil {
		return err
	}
	e.log.Info().Str("phrase", phrase).Msg("say")
	return nil
}

func (e *DummyEngine) Close() error { return nil }

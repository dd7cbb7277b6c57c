package tts

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/speechbox/speechbox/internal/engine"
	"github.com/speechbox/speechbox/internal/probe"
)

// MacEngine speaks through the macOS say command, which handles both
// synthesis and playback in one shot. No artifact, so no cache mode.
type MacEngine struct {
	log zerolog.Logger
}

func macDescriptor(o Options) engine.Descriptor[Engine] {
	return engine.Descriptor[Engine]{
		Slug:  SlugMac,
		Probe: probe.Executable("say"),
		New: func(ctx context.Context) (Engine, error) {
			return &MacEngine{log: o.Log.With().Str("engine", SlugMac).Logger()}, nil
		},
	}
}

func (e *MacEngine) Slug() string { return SlugMac }

func (e *MacEngine) Say(ctx context.Context, phrase string) error {
	if err := checkPhrase(phrase); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, "say", phrase)
	if out, err := cmd.CombinedOutput(); err != nil {
		e.log.Error().Err(fmt.Errorf("say: %w (%s)", err, strings.TrimSpace(string(out)))).Msg("playback failed")
	}
	return nil
}

func (e *MacEngine) Close() error { return nil }

package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/speechbox/speechbox/internal/engine"
	"github.com/speechbox/speechbox/internal/probe"
)

// EspeakEngine synthesizes offline with the espeak binary. The robotic voice
// is what it is, but it works everywhere without credentials.
type EspeakEngine struct {
	voice  string
	pitch  int
	wpm    int
	player Player
	log    zerolog.Logger
}

func espeakDescriptor(o Options) engine.Descriptor[Engine] {
	return engine.Descriptor[Engine]{
		Slug: SlugEspeak,
		Probe: probe.All(
			probe.Executable("espeak"),
			probe.Executable("aplay"),
		),
		New: func(ctx context.Context) (Engine, error) {
			p := o.Profiles.Current()
			frag := p.Section("espeak-tts")
			return &EspeakEngine{
				voice:  frag.String("voice", "default+m3"),
				pitch:  frag.Int("pitch_adjustment", 40),
				wpm:    frag.Int("words_per_minute", 160),
				player: newPlayer(p, o.Log),
				log:    o.Log.With().Str("engine", SlugEspeak).Logger(),
			}, nil
		},
	}
}

func (e *EspeakEngine) Slug() string { return SlugEspeak }

func (e *EspeakEngine) Synthesize(ctx context.Context, phrase string) ([]byte, error) {
	f, err := os.CreateTemp("", "espeak-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create synthesis target: %w", err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	cmd := exec.CommandContext(ctx, "espeak",
		"-v", e.voice,
		"-p", strconv.Itoa(e.pitch),
		"-s", strconv.Itoa(e.wpm),
		"-w", path,
		phrase,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("espeak: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return os.ReadFile(path)
}

func (e *EspeakEngine) ArtifactExt() string { return ".wav" }

func (e *EspeakEngine) PlayArtifact(ctx context.Context, path string) error {
	return e.player.Play(ctx, path)
}

func (e *EspeakEngine) Say(ctx context.Context, phrase string) error {
	return sayOnce(ctx, e, e.log, phrase)
}

func (e *EspeakEngine) Close() error { return nil }

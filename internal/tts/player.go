package tts

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/speechbox/speechbox/internal/profile"
)

// Player plays a wav file on the audio output.
type Player interface {
	Play(ctx context.Context, wavPath string) error
}

// aplayPlayer shells out to alsa's aplay.
type aplayPlayer struct {
	device string
	log    zerolog.Logger
}

// newPlayer builds the playback collaborator. The output device comes from
// the profile's audio section and defaults to alsa's "default".
func newPlayer(p *profile.Profile, log zerolog.Logger) Player {
	return &aplayPlayer{
		device: p.Section("audio").String("output_device", "default"),
		log:    log.With().Str("component", "player").Logger(),
	}
}

func (p *aplayPlayer) Play(ctx context.Context, wavPath string) error {
	cmd := exec.CommandContext(ctx, "aplay", "-D", p.device, wavPath)
	out, err := cmd.CombinedOutput()
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			p.log.Debug().Msg(line)
		}
	}
	if err != nil {
		return fmt.Errorf("aplay %s: %w", wavPath, err)
	}
	return nil
}

// decodeAndPlay converts an mp3 artifact to wav with madplay and plays the
// result. The intermediate wav is removed on every exit path.
func decodeAndPlay(ctx context.Context, p Player, mp3Path string) error {
	wav, err := os.CreateTemp("", "speech-*.wav")
	if err != nil {
		return fmt.Errorf("create decode target: %w", err)
	}
	wavPath := wav.Name()
	wav.Close()
	defer os.Remove(wavPath)

	cmd := exec.CommandContext(ctx, "madplay", "-o", "wave:"+wavPath, mp3Path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("madplay %s: %w (%s)", mp3Path, err, strings.TrimSpace(string(out)))
	}
	return p.Play(ctx, wavPath)
}

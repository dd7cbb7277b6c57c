package stt

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/speechbox/speechbox/internal/audio"
	"github.com/speechbox/speechbox/internal/credential"
	"github.com/speechbox/speechbox/internal/engine"
	"github.com/speechbox/speechbox/internal/probe"
	"github.com/speechbox/speechbox/internal/profile"
)

func testProfile(t *testing.T, yaml string) *profile.Profile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := profile.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return p
}

// buildWAV renders samples as a playable mono 16-bit stream.
func buildWAV(t *testing.T, rate int, samples []byte) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	info := audio.Info{SampleRate: rate, Channels: 1, BitsPerSample: 16}
	if err := audio.WriteWAV(&buf, info, samples); err != nil {
		t.Fatalf("WriteWAV() error = %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func testRegistry(t *testing.T) *engine.Registry[Engine] {
	t.Helper()
	return NewRegistry(Options{
		Profiles: profile.NewHolder(profile.Empty()),
		Network:  probe.Always(),
		Log:      zerolog.Nop(),
	})
}

func TestEngineSlug(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		active  string
		passive string
	}{
		{"defaults", "", SlugSphinx, SlugSphinx},
		{"active set", "stt_engine: google\n", SlugGoogle, SlugGoogle},
		{"passive override", "stt_engine: google\nstt_passive_engine: sphinx\n", SlugGoogle, SlugSphinx},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := profile.Empty()
			if tt.yaml != "" {
				p = testProfile(t, tt.yaml)
			}
			if got := EngineSlug(p); got != tt.active {
				t.Errorf("EngineSlug() = %q, want %q", got, tt.active)
			}
			if got := PassiveEngineSlug(p); got != tt.passive {
				t.Errorf("PassiveEngineSlug() = %q, want %q", got, tt.passive)
			}
		})
	}
}

func TestRegistryListsAllEngines(t *testing.T) {
	r := testRegistry(t)
	want := []string{SlugSphinx, SlugJulius, SlugGoogle, SlugBaidu}
	descs := r.Descriptors()
	if len(descs) != len(want) {
		t.Fatalf("Descriptors() returned %d entries, want %d", len(descs), len(want))
	}
	for i, d := range descs {
		if d.Slug != want[i] {
			t.Errorf("Descriptors()[%d].Slug = %q, want %q", i, d.Slug, want[i])
		}
	}
}

func TestSelectRejectsEmptySlug(t *testing.T) {
	_, err := testRegistry(t).Select(context.Background(), "")
	if !errors.Is(err, engine.ErrInvalidSelector) {
		t.Errorf("Select(\"\") error = %v, want ErrInvalidSelector", err)
	}
}

func TestSelectUnknownSlug(t *testing.T) {
	_, err := testRegistry(t).Select(context.Background(), "whisper")
	var nf *engine.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Select(\"whisper\") error = %v, want NotFoundError", err)
	}
	if nf.Slug != "whisper" {
		t.Errorf("NotFoundError.Slug = %q, want %q", nf.Slug, "whisper")
	}
}

func TestSelectUnavailableEngine(t *testing.T) {
	// An empty PATH guarantees the sphinx binary probe fails.
	t.Setenv("PATH", t.TempDir())
	t.Setenv("LD_LIBRARY_PATH", t.TempDir())
	_, err := testRegistry(t).Select(context.Background(), SlugSphinx)
	var ua *engine.UnavailableError
	if !errors.As(err, &ua) {
		t.Fatalf("Select(%q) error = %v, want UnavailableError", SlugSphinx, err)
	}
	if ua.Slug != SlugSphinx {
		t.Errorf("UnavailableError.Slug = %q, want %q", ua.Slug, SlugSphinx)
	}
}

func TestTranscribeNilStream(t *testing.T) {
	engines := []Engine{
		&SphinxEngine{log: zerolog.Nop()},
		&JuliusEngine{log: zerolog.Nop()},
		newGoogleSTT("key", "en-us", zerolog.Nop()),
		newBaiduSTT(credential.NewTokenSource("http://127.0.0.1:0", "k", "s", zerolog.Nop()), zerolog.Nop()),
	}
	for _, e := range engines {
		if _, err := e.Transcribe(context.Background(), nil); err == nil {
			t.Errorf("%s: Transcribe(nil) error = nil, want non-nil", e.Slug())
		}
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/speechbox/speechbox/internal/engine"
	"github.com/speechbox/speechbox/internal/probe"
	"github.com/speechbox/speechbox/internal/profile"
	"github.com/speechbox/speechbox/internal/stt"
	"github.com/speechbox/speechbox/internal/tts"
)

type fakeMQTT struct{ connected bool }

func (f *fakeMQTT) IsConnected() bool { return f.connected }

// healthRegistries returns registries whose default engines pass or fail
// their probes on demand.
func healthRegistries(sttErr, ttsErr error) (*engine.Registry[stt.Engine], *engine.Registry[tts.Engine]) {
	sttReg := engine.NewRegistry[stt.Engine](engine.STT, zerolog.Nop())
	sttReg.Register(engine.Descriptor[stt.Engine]{
		Slug:  stt.DefaultSlug,
		Probe: probe.Func(func(ctx context.Context) error { return sttErr }),
	})
	ttsReg := engine.NewRegistry[tts.Engine](engine.TTS, zerolog.Nop())
	ttsReg.Register(engine.Descriptor[tts.Engine]{
		Slug:  tts.DefaultSlug(),
		Probe: probe.Func(func(ctx context.Context) error { return ttsErr }),
	})
	return sttReg, ttsReg
}

func runHealth(t *testing.T, h *HealthHandler) (int, HealthResponse) {
	t.Helper()
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return rec.Code, resp
}

func TestHealth_Healthy(t *testing.T) {
	sttReg, ttsReg := healthRegistries(nil, nil)
	holder := profile.NewHolder(profile.Empty())
	h := NewHealthHandler(holder, t.TempDir(), sttReg, ttsReg, nil, "v1.0-test", time.Now().Add(-90*time.Second))

	code, resp := runHealth(t, h)

	if code != http.StatusOK {
		t.Fatalf("status = %d, want %d; resp = %+v", code, http.StatusOK, resp)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Version != "v1.0-test" {
		t.Errorf("version = %q", resp.Version)
	}
	if resp.UptimeSeconds < 90 {
		t.Errorf("uptime = %d, want >= 90", resp.UptimeSeconds)
	}
	for _, check := range []string{"cache_dir", "stt_engine", "tts_engine"} {
		if resp.Checks[check] != "ok" {
			t.Errorf("checks[%s] = %q, want ok", check, resp.Checks[check])
		}
	}
	if resp.Checks["profile"] != "defaults" {
		t.Errorf("checks[profile] = %q, want defaults", resp.Checks["profile"])
	}
	if resp.Checks["mqtt"] != "not_configured" {
		t.Errorf("checks[mqtt] = %q, want not_configured", resp.Checks["mqtt"])
	}
}

func TestHealth_DegradedEngine(t *testing.T) {
	sttReg, ttsReg := healthRegistries(errors.New("missing executable pocketsphinx_continuous"), nil)
	holder := profile.NewHolder(profile.Empty())
	h := NewHealthHandler(holder, t.TempDir(), sttReg, ttsReg, nil, "v1.0-test", time.Now())

	code, resp := runHealth(t, h)

	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
	if !strings.Contains(resp.Checks["stt_engine"], "pocketsphinx_continuous") {
		t.Errorf("checks[stt_engine] = %q, want probe diagnostic", resp.Checks["stt_engine"])
	}
	if resp.Checks["tts_engine"] != "ok" {
		t.Errorf("checks[tts_engine] = %q, want ok", resp.Checks["tts_engine"])
	}
}

func TestHealth_DegradedCacheDir(t *testing.T) {
	sttReg, ttsReg := healthRegistries(nil, nil)
	holder := profile.NewHolder(profile.Empty())
	h := NewHealthHandler(holder, "/nonexistent/cache/dir", sttReg, ttsReg, nil, "v1.0-test", time.Now())

	code, resp := runHealth(t, h)

	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if resp.Checks["cache_dir"] != "error" {
		t.Errorf("checks[cache_dir] = %q, want error", resp.Checks["cache_dir"])
	}
}

func TestHealth_MQTT(t *testing.T) {
	t.Run("connected", func(t *testing.T) {
		sttReg, ttsReg := healthRegistries(nil, nil)
		holder := profile.NewHolder(profile.Empty())
		h := NewHealthHandler(holder, t.TempDir(), sttReg, ttsReg, &fakeMQTT{connected: true}, "v1.0-test", time.Now())

		code, resp := runHealth(t, h)
		if code != http.StatusOK || resp.Checks["mqtt"] != "ok" {
			t.Errorf("code = %d, checks[mqtt] = %q", code, resp.Checks["mqtt"])
		}
	})

	t.Run("disconnected_degrades", func(t *testing.T) {
		sttReg, ttsReg := healthRegistries(nil, nil)
		holder := profile.NewHolder(profile.Empty())
		h := NewHealthHandler(holder, t.TempDir(), sttReg, ttsReg, &fakeMQTT{}, "v1.0-test", time.Now())

		code, resp := runHealth(t, h)
		if code != http.StatusServiceUnavailable || resp.Status != "degraded" {
			t.Errorf("code = %d, status = %q", code, resp.Status)
		}
		if resp.Checks["mqtt"] != "disconnected" {
			t.Errorf("checks[mqtt] = %q", resp.Checks["mqtt"])
		}
	})
}

func TestHealth_ProfileStates(t *testing.T) {
	t.Run("absent_file_means_defaults", func(t *testing.T) {
		sttReg, ttsReg := healthRegistries(nil, nil)
		p, err := profile.Load(filepath.Join(t.TempDir(), "profile.yml"))
		if err != nil {
			t.Fatal(err)
		}
		h := NewHealthHandler(profile.NewHolder(p), t.TempDir(), sttReg, ttsReg, nil, "v1.0-test", time.Now())

		code, resp := runHealth(t, h)

		// Running on built-in defaults is a legal, healthy setup.
		if code != http.StatusOK {
			t.Fatalf("status = %d, want %d", code, http.StatusOK)
		}
		if resp.Checks["profile"] != "defaults" {
			t.Errorf("checks[profile] = %q, want defaults", resp.Checks["profile"])
		}
	})

	t.Run("present_file_is_ok", func(t *testing.T) {
		sttReg, ttsReg := healthRegistries(nil, nil)
		path := filepath.Join(t.TempDir(), "profile.yml")
		if err := os.WriteFile(path, []byte("stt_engine: sphinx\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		p, err := profile.Load(path)
		if err != nil {
			t.Fatal(err)
		}
		h := NewHealthHandler(profile.NewHolder(p), t.TempDir(), sttReg, ttsReg, nil, "v1.0-test", time.Now())

		code, resp := runHealth(t, h)

		if code != http.StatusOK {
			t.Fatalf("status = %d, want %d", code, http.StatusOK)
		}
		if resp.Checks["profile"] != "ok" {
			t.Errorf("checks[profile] = %q, want ok", resp.Checks["profile"])
		}
	})
}

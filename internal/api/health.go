package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/speechbox/speechbox/internal/engine"
	"github.com/speechbox/speechbox/internal/profile"
	"github.com/speechbox/speechbox/internal/stt"
	"github.com/speechbox/speechbox/internal/tts"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

// MQTTStatus reports broker connectivity. A nil value means MQTT is not
// configured.
type MQTTStatus interface {
	IsConnected() bool
}

type HealthHandler struct {
	profiles  *profile.Holder
	cacheDir  string
	stt       *engine.Registry[stt.Engine]
	tts       *engine.Registry[tts.Engine]
	mqtt      MQTTStatus
	version   string
	startTime time.Time
}

func NewHealthHandler(profiles *profile.Holder, cacheDir string, sttReg *engine.Registry[stt.Engine], ttsReg *engine.Registry[tts.Engine], mqtt MQTTStatus, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		profiles:  profiles,
		cacheDir:  cacheDir,
		stt:       sttReg,
		tts:       ttsReg,
		mqtt:      mqtt,
		version:   version,
		startTime: startTime,
	}
}

// ServeHTTP reports liveness plus named dependency checks. Only the default
// engine of each kind is probed here; the full sweep lives behind
// /api/v1/engines.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	degrade := func() {
		if status == "healthy" {
			status = "degraded"
		}
	}

	// Profile check. Running without a profile file is a legal setup, the
	// built-in defaults apply, so absence never degrades.
	var p *profile.Profile
	if h.profiles != nil {
		p = h.profiles.Current()
	}
	switch {
	case p == nil:
		checks["profile"] = "error"
		status = "unhealthy"
		p = profile.Empty()
	default:
		checks["profile"] = "defaults"
		if path := p.Path(); path != "" {
			if _, err := os.Stat(path); err == nil {
				checks["profile"] = "ok"
			}
		}
	}

	// Cache dir check
	if fi, err := os.Stat(h.cacheDir); err != nil || !fi.IsDir() {
		checks["cache_dir"] = "error"
		degrade()
	} else {
		checks["cache_dir"] = "ok"
	}

	// Default engine checks
	sttSlug := stt.EngineSlug(p)
	if err := probeDefault(r.Context(), h.stt, sttSlug); err != nil {
		checks["stt_engine"] = fmt.Sprintf("%s: %v", sttSlug, err)
		degrade()
	} else {
		checks["stt_engine"] = "ok"
	}

	ttsSlug := tts.EngineSlug(p)
	if err := probeDefault(r.Context(), h.tts, ttsSlug); err != nil {
		checks["tts_engine"] = fmt.Sprintf("%s: %v", ttsSlug, err)
		degrade()
	} else {
		checks["tts_engine"] = "ok"
	}

	// MQTT check
	if h.mqtt != nil {
		if h.mqtt.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			degrade()
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	httpStatus := http.StatusOK
	if status != "healthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	})
}

// probeDefault runs the probes of the single named engine.
func probeDefault[T any](ctx context.Context, r *engine.Registry[T], slug string) error {
	for _, d := range r.Descriptors() {
		if d.Slug != slug {
			continue
		}
		if d.Probe == nil {
			return nil
		}
		return d.Probe.Check(ctx)
	}
	return fmt.Errorf("engine %q is not registered", slug)
}

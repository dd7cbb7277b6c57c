package api

import (
	"net/http"

	"github.com/speechbox/speechbox/internal/engine"
	"github.com/speechbox/speechbox/internal/stt"
	"github.com/speechbox/speechbox/internal/tts"
)

// EngineInfo is one row of the engines listing.
type EngineInfo struct {
	Slug       string `json:"slug"`
	Kind       string `json:"kind"`
	Available  bool   `json:"available"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

type EnginesHandler struct {
	stt *engine.Registry[stt.Engine]
	tts *engine.Registry[tts.Engine]
}

func NewEnginesHandler(sttReg *engine.Registry[stt.Engine], ttsReg *engine.Registry[tts.Engine]) *EnginesHandler {
	return &EnginesHandler{stt: sttReg, tts: ttsReg}
}

// List handles GET /api/v1/engines. Every probe runs on each request so the
// report reflects the machine as it is right now, not at startup.
func (h *EnginesHandler) List(w http.ResponseWriter, r *http.Request) {
	kind, _ := QueryString(r, "kind")
	switch kind {
	case "", "stt", "tts":
	default:
		WriteError(w, http.StatusBadRequest, "kind must be stt or tts")
		return
	}

	var engines []EngineInfo
	if kind == "" || kind == "stt" {
		engines = append(engines, statusRows(h.stt.Availability(r.Context()))...)
	}
	if kind == "" || kind == "tts" {
		engines = append(engines, statusRows(h.tts.Availability(r.Context()))...)
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"engines": engines,
		"total":   len(engines),
	})
}

func statusRows(statuses []engine.Status) []EngineInfo {
	rows := make([]EngineInfo, 0, len(statuses))
	for _, s := range statuses {
		row := EngineInfo{Slug: s.Slug, Kind: s.Kind.String(), Available: s.Err == nil}
		if s.Err != nil {
			row.Diagnostic = s.Err.Error()
		}
		rows = append(rows, row)
	}
	return rows
}

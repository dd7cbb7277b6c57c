package api

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/speechbox/speechbox/internal/audio"
	"github.com/speechbox/speechbox/internal/engine"
	"github.com/speechbox/speechbox/internal/metrics"
	"github.com/speechbox/speechbox/internal/profile"
	"github.com/speechbox/speechbox/internal/stt"
	"github.com/speechbox/speechbox/internal/tts"
)

// TranscriptPublisher pushes transcription outcomes to interested listeners.
// Implementations must not block the request path.
type TranscriptPublisher interface {
	PublishTranscript(engine string, candidates []string, took time.Duration)
}

// maxAudioBody bounds uploaded utterances. 32 MB of 16 kHz mono PCM is over
// fifteen minutes of audio, far past what one utterance needs.
const maxAudioBody = 32 << 20

// SpeechHandler serves the transcribe and say endpoints. Engines are
// constructed per request by Select, so no instance is ever shared across
// concurrent callers.
type SpeechHandler struct {
	stt         *engine.Registry[stt.Engine]
	speaker     *tts.Speaker
	profiles    *profile.Holder
	transcripts TranscriptPublisher
	log         zerolog.Logger
}

func NewSpeechHandler(sttReg *engine.Registry[stt.Engine], speaker *tts.Speaker, profiles *profile.Holder, transcripts TranscriptPublisher, log zerolog.Logger) *SpeechHandler {
	return &SpeechHandler{
		stt:         sttReg,
		speaker:     speaker,
		profiles:    profiles,
		transcripts: transcripts,
		log:         log.With().Str("handler", "speech").Logger(),
	}
}

// Routes registers the speech endpoints.
func (h *SpeechHandler) Routes(r chi.Router) {
	r.Post("/transcribe", h.Transcribe)
	r.Post("/say", h.Say)
}

type TranscribeResponse struct {
	Engine     string   `json:"engine"`
	Candidates []string `json:"candidates"`
	DurationMS int64    `json:"duration_ms"`
}

// Transcribe handles POST /api/v1/transcribe?engine=<slug>. The body is one
// WAV utterance; the engine defaults to the profile's active STT engine.
func (h *SpeechHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	if ct := r.Header.Get("Content-Type"); ct != "" {
		media, _, err := mime.ParseMediaType(ct)
		if err != nil || !acceptedAudioType(media) {
			WriteError(w, http.StatusUnsupportedMediaType, "content type must be audio/wav or application/octet-stream")
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudioBody))
	if err != nil {
		WriteError(w, http.StatusRequestEntityTooLarge, "audio body too large")
		return
	}
	// Reject garbage before selecting an engine; the engines themselves
	// absorb decode failures into empty results.
	if _, err := audio.DecodeHeader(bytes.NewReader(body)); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "request body is not wav audio", err.Error())
		return
	}

	slug, ok := QueryString(r, "engine")
	if !ok {
		slug = stt.EngineSlug(h.profiles.Current())
	}

	eng, err := h.stt.Select(r.Context(), slug)
	if err != nil {
		writeSelectError(w, err)
		return
	}
	defer eng.Close()

	start := time.Now()
	candidates, err := eng.Transcribe(r.Context(), bytes.NewReader(body))
	took := time.Since(start)
	metrics.TranscribeDuration.WithLabelValues(eng.Slug()).Observe(took.Seconds())
	if err != nil {
		metrics.TranscribeTotal.WithLabelValues(eng.Slug(), "error").Inc()
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	metrics.TranscribeTotal.WithLabelValues(eng.Slug(), "ok").Inc()

	log.Info().
		Str("engine", eng.Slug()).
		Int("candidates", len(candidates)).
		Dur("took", took).
		Msg("transcription complete")

	if h.transcripts != nil {
		h.transcripts.PublishTranscript(eng.Slug(), candidates, took)
	}

	WriteJSON(w, http.StatusOK, TranscribeResponse{
		Engine:     eng.Slug(),
		Candidates: candidates,
		DurationMS: took.Milliseconds(),
	})
}

func acceptedAudioType(media string) bool {
	switch media {
	case "audio/wav", "audio/x-wav", "application/octet-stream":
		return true
	}
	return false
}

type SayRequest struct {
	Phrase string `json:"phrase"`
	Engine string `json:"engine,omitempty"`
	Cache  bool   `json:"cache,omitempty"`
}

type SayResponse struct {
	Engine     string `json:"engine"`
	Phrase     string `json:"phrase"`
	DurationMS int64  `json:"duration_ms"`
}

// Say handles POST /api/v1/say. Synchronous: the response is written after
// playback finishes. The engine defaults to the profile's TTS engine, which
// itself falls back to the platform default.
func (h *SpeechHandler) Say(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	var req SayRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	slug := req.Engine
	if slug == "" {
		slug = tts.EngineSlug(h.profiles.Current())
	}

	start := time.Now()
	if err := h.speaker.Say(r.Context(), slug, req.Phrase, req.Cache); err != nil {
		if errors.Is(err, tts.ErrEmptyPhrase) {
			WriteError(w, http.StatusBadRequest, "phrase is required")
			return
		}
		writeSelectError(w, err)
		return
	}
	took := time.Since(start)

	log.Info().Str("engine", slug).Dur("took", took).Msg("say complete")

	WriteJSON(w, http.StatusOK, SayResponse{
		Engine:     slug,
		Phrase:     req.Phrase,
		DurationMS: took.Milliseconds(),
	})
}

// writeSelectError maps the registry's selection errors onto HTTP statuses.
func writeSelectError(w http.ResponseWriter, err error) {
	var (
		notFound    *engine.NotFoundError
		unavailable *engine.UnavailableError
		initFailed  *engine.InitError
	)
	switch {
	case errors.Is(err, engine.ErrInvalidSelector):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &notFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &unavailable):
		WriteError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &initFailed):
		WriteError(w, http.StatusInternalServerError, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

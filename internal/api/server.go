package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/speechbox/speechbox"
	"github.com/speechbox/speechbox/internal/config"
	"github.com/speechbox/speechbox/internal/engine"
	"github.com/speechbox/speechbox/internal/metrics"
	"github.com/speechbox/speechbox/internal/profile"
	"github.com/speechbox/speechbox/internal/stt"
	"github.com/speechbox/speechbox/internal/tts"
)

// Options bundles the server's collaborators. Transcripts and MQTT stay nil
// when the broker connection is disabled.
type Options struct {
	Config      *config.Config
	Profiles    *profile.Holder
	STT         *engine.Registry[stt.Engine]
	TTS         *engine.Registry[tts.Engine]
	Speaker     *tts.Speaker
	Transcripts TranscriptPublisher
	MQTT        MQTTStatus
	Version     string
	StartTime   time.Time
	Log         zerolog.Logger
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(o Options) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(o.Log))
	r.Use(CORSWithOrigins(nil))
	r.Use(metrics.InstrumentHandler)

	health := NewHealthHandler(o.Profiles, o.Config.CacheDir, o.STT, o.TTS, o.MQTT, o.Version, o.StartTime)
	r.Get("/health", health.ServeHTTP)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		engines := NewEnginesHandler(o.STT, o.TTS)
		r.Get("/engines", engines.List)
		r.Get("/openapi.yaml", serveOpenAPI)

		// Speech routes: authenticated when a key is configured, and rate
		// limited because each call forks a decoder or blocks on playback.
		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(o.Config.APIKey))
			r.Use(RateLimiter(5, 10))
			speech := NewSpeechHandler(o.STT, o.Speaker, o.Profiles, o.Transcripts, o.Log)
			speech.Routes(r)
		})
	})

	return &Server{
		http: &http.Server{
			Addr:         ":" + strconv.Itoa(o.Config.Port),
			Handler:      r,
			ReadTimeout:  o.Config.ReadTimeout,
			WriteTimeout: o.Config.WriteTimeout,
			IdleTimeout:  o.Config.IdleTimeout,
		},
		log: o.Log,
	}
}

func serveOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(speechbox.OpenAPISpec)
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}

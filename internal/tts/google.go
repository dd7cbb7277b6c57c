package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/speechbox/speechbox/internal/engine"
	"github.com/speechbox/speechbox/internal/probe"
	"github.com/speechbox/speechbox/internal/profile"
)

const googleTranslateEndpoint = "https://translate.google.com/translate_tts"

// googleTTSLanguages is the set of language tags the translate TTS endpoint
// accepts.
var googleTTSLanguages = map[string]bool{
	"af": true, "ar": true, "bn": true, "bs": true, "ca": true, "cs": true,
	"cy": true, "da": true, "de": true, "el": true, "en": true, "en-au": true,
	"en-uk": true, "en-us": true, "eo": true, "es": true, "es-es": true,
	"es-us": true, "et": true, "fi": true, "fr": true, "gu": true, "hi": true,
	"hr": true, "hu": true, "id": true, "is": true, "it": true, "ja": true,
	"jw": true, "km": true, "kn": true, "ko": true, "la": true, "lv": true,
	"mk": true, "ml": true, "mr": true, "my": true, "ne": true, "nl": true,
	"no": true, "pl": true, "pt": true, "pt-br": true, "ro": true, "ru": true,
	"si": true, "sk": true, "sq": true, "sr": true, "su": true, "sv": true,
	"sw": true, "ta": true, "te": true, "th": true, "tl": true, "tr": true,
	"uk": true, "ur": true, "vi": true, "zh-cn": true, "zh-tw": true,
}

// GoogleEngine synthesizes mp3 audio through the translate TTS endpoint.
// The endpoint is unofficial and throttles aggressively, so requests go
// through a client-side rate limiter.
type GoogleEngine struct {
	language string
	endpoint string
	limiter  *rate.Limiter
	client   *http.Client
	player   Player
	log      zerolog.Logger
}

func googleDescriptor(o Options) engine.Descriptor[Engine] {
	return engine.Descriptor[Engine]{
		Slug: SlugGoogle,
		Probe: probe.All(
			probe.Executable("aplay"),
			probe.Executable("madplay"),
			probe.Library("mad"),
			o.Network,
		),
		New: func(ctx context.Context) (Engine, error) {
			p := o.Profiles.Current()
			lang := p.Section("google-tts").String("language", p.String(profile.KeyLanguage, "en-us"))
			return newGoogleTTS(lang, newPlayer(p, o.Log), o.Log)
		},
	}
}

func newGoogleTTS(language string, player Player, log zerolog.Logger) (*GoogleEngine, error) {
	language = strings.ToLower(language)
	if !googleTTSLanguages[language] {
		return nil, fmt.Errorf("language %q is not supported by the translate TTS endpoint", language)
	}
	return &GoogleEngine{
		language: language,
		endpoint: googleTranslateEndpoint,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 2),
		client:   &http.Client{Timeout: 30 * time.Second},
		player:   player,
		log:      log.With().Str("engine", SlugGoogle).Logger(),
	}, nil
}

func (e *GoogleEngine) Slug() string { return SlugGoogle }

func (e *GoogleEngine) Synthesize(ctx context.Context, phrase string) ([]byte, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("tl", e.language)
	q.Set("q", phrase)
	q.Set("client", "tw-ob")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	// The endpoint rejects clients without a browser user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("synthesis endpoint returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}

func (e *GoogleEngine) ArtifactExt() string { return ".mp3" }

func (e *GoogleEngine) PlayArtifact(ctx context.Context, path string) error {
	return decodeAndPlay(ctx, e.player, path)
}

func (e *GoogleEngine) Say(ctx context.Context, phrase string) error {
	return sayOnce(ctx, e, e.log, phrase)
}

func (e *GoogleEngine) Close() error { return nil }

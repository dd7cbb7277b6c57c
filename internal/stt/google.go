package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/speechbox/speechbox/internal/audio"
	"github.com/speechbox/speechbox/internal/engine"
	"github.com/speechbox/speechbox/internal/profile"
)

const googleSpeechEndpoint = "https://www.google.com/speech-api/v2/recognize"

// GoogleEngine transcribes through the Chromium speech API. Requires an API
// key under keys.GOOGLE_SPEECH in the profile.
type GoogleEngine struct {
	apiKey   string
	language string
	endpoint string
	client   *http.Client
	log      zerolog.Logger
}

func googleDescriptor(o Options) engine.Descriptor[Engine] {
	return engine.Descriptor[Engine]{
		Slug:  SlugGoogle,
		Probe: o.Network,
		New: func(ctx context.Context) (Engine, error) {
			p := o.Profiles.Current()
			apiKey := p.Section("keys").String("GOOGLE_SPEECH", "")
			lang := p.String(profile.KeyLanguage, "en-us")
			return newGoogleSTT(apiKey, lang, o.Log), nil
		},
	}
}

func newGoogleSTT(apiKey, language string, log zerolog.Logger) *GoogleEngine {
	return &GoogleEngine{
		apiKey:   apiKey,
		language: language,
		endpoint: googleSpeechEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log.With().Str("engine", SlugGoogle).Logger(),
	}
}

// requestURL derives the full request URL from the engine's current key and
// language. Nothing is cached, so a profile reload takes effect on the next
// selection without stale query parameters.
func (e *GoogleEngine) requestURL() string {
	q := url.Values{}
	q.Set("output", "json")
	q.Set("client", "chromium")
	q.Set("key", e.apiKey)
	q.Set("lang", e.language)
	q.Set("maxresults", "6")
	q.Set("pfilter", "2")
	return e.endpoint + "?" + q.Encode()
}

func (e *GoogleEngine) Slug() string { return SlugGoogle }

func (e *GoogleEngine) Transcribe(ctx context.Context, r io.Reader) ([]string, error) {
	if r == nil {
		return nil, fmt.Errorf("google: nil audio stream")
	}
	if e.apiKey == "" {
		e.log.Error().Msg("api key missing, transcription request aborted")
		return []string{}, nil
	}
	hdr, err := audio.DecodeHeader(r)
	if err != nil {
		e.log.Error().Err(err).Msg("rejecting malformed audio")
		return []string{}, nil
	}
	samples, err := io.ReadAll(r)
	if err != nil {
		e.log.Error().Err(err).Msg("reading audio stream")
		return []string{}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.requestURL(), bytes.NewReader(samples))
	if err != nil {
		e.log.Error().Err(err).Msg("building request")
		return []string{}, nil
	}
	req.Header.Set("Content-Type", fmt.Sprintf("audio/l16; rate=%d", hdr.SampleRate))

	resp, err := e.client.Do(req)
	if err != nil {
		e.log.Error().Err(err).Msg("transcription request failed")
		return []string{}, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		e.log.Error().Int("status", resp.StatusCode).Msg("transcription request failed")
		if resp.StatusCode == http.StatusForbidden {
			e.log.Warn().Msg("status 403 is usually caused by an invalid API key")
		}
		return []string{}, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		e.log.Error().Err(err).Msg("reading response")
		return []string{}, nil
	}

	result := parseChromiumResponse(body, e.log)
	e.log.Info().Strs("candidates", result).Msg("transcribed")
	return result, nil
}

// parseChromiumResponse handles the API's streaming shape: newline-separated
// JSON documents where earlier documents are interim and only the last one
// carries the final result.
func parseChromiumResponse(body []byte, log zerolog.Logger) []string {
	docs := strings.Split(strings.TrimSpace(string(body)), "\n")
	var last string
	for _, doc := range docs {
		if strings.TrimSpace(doc) != "" {
			last = doc
		}
	}
	var payload struct {
		Result []struct {
			Alternative []struct {
				Transcript string `json:"transcript"`
			} `json:"alternative"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(last), &payload); err != nil {
		log.Warn().Err(err).Msg("cannot parse response")
		return []string{}
	}
	if len(payload.Result) == 0 {
		log.Warn().Msg("empty response, nothing transcribed")
		return []string{}
	}
	result := []string{}
	for _, alt := range payload.Result[0].Alternative {
		if alt.Transcript != "" {
			result = append(result, strings.ToUpper(alt.Transcript))
		}
	}
	return result
}

func (e *GoogleEngine) Close() error { return nil }

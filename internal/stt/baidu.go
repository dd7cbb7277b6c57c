package stt

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/speechbox/speechbox/internal/audio"
	"github.com/speechbox/speechbox/internal/credential"
	"github.com/speechbox/speechbox/internal/engine"
)

const baiduSpeechEndpoint = "http://vop.baidu.com/server_api"

// BaiduEngine transcribes through the Baidu voice API. Credentials come from
// the profile's baidu_api section and are exchanged for a bearer token that
// is refreshed transparently.
type BaiduEngine struct {
	tokens   *credential.TokenSource
	endpoint string
	client   *http.Client
	log      zerolog.Logger
}

func baiduDescriptor(o Options) engine.Descriptor[Engine] {
	return engine.Descriptor[Engine]{
		Slug:  SlugBaidu,
		Probe: o.Network,
		New: func(ctx context.Context) (Engine, error) {
			frag := o.Profiles.Current().Section("baidu_api")
			tokens := credential.NewTokenSource(credential.DefaultEndpoint,
				frag.String("app_key", ""), frag.String("app_secret", ""), o.Log)
			return newBaiduSTT(tokens, o.Log), nil
		},
	}
}

func newBaiduSTT(tokens *credential.TokenSource, log zerolog.Logger) *BaiduEngine {
	return &BaiduEngine{
		tokens:   tokens,
		endpoint: baiduSpeechEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log.With().Str("engine", SlugBaidu).Logger(),
	}
}

func (e *BaiduEngine) Slug() string { return SlugBaidu }

func (e *BaiduEngine) Transcribe(ctx context.Context, r io.Reader) ([]string, error) {
	if r == nil {
		return nil, fmt.Errorf("baidu: nil audio stream")
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

	token := e.tokens.Token(ctx)
	sum := md5.Sum([]byte(token))
	payload := struct {
		Format  string `json:"format"`
		Token   string `json:"token"`
		Len     int    `json:"len"`
		Rate    int    `json:"rate"`
		Speech  string `json:"speech"`
		CUID    string `json:"cuid"`
		Channel int    `json:"channel"`
	}{
		Format:  "wav",
		Token:   token,
		Len:     len(samples),
		Rate:    hdr.SampleRate,
		Speech:  base64.StdEncoding.EncodeToString(samples),
		CUID:    hex.EncodeToString(sum[:]),
		Channel: 1,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		e.log.Error().Err(err).Msg("encoding request")
		return []string{}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		e.log.Error().Err(err).Msg("building request")
		return []string{}, nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.log.Error().Err(err).Msg("transcription request failed")
		return []string{}, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		e.log.Error().Int("status", resp.StatusCode).Msg("transcription request failed")
		return []string{}, nil
	}

	var parsed struct {
		ErrNo  int      `json:"err_no"`
		ErrMsg string   `json:"err_msg"`
		Result []string `json:"result"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		e.log.Error().Err(err).Msg("cannot parse response")
		return []string{}, nil
	}
	if parsed.ErrNo != 0 {
		e.log.Warn().Int("err_no", parsed.ErrNo).Str("err_msg", parsed.ErrMsg).Msg("api returned an error")
		return []string{}, nil
	}

	result := []string{}
	if len(parsed.Result) > 0 && parsed.Result[0] != "" {
		result = append(result, strings.ToUpper(parsed.Result[0]))
	}
	e.log.Info().Strs("candidates", result).Msg("transcribed")
	return result, nil
}

func (e *BaiduEngine) Close() error { return nil }

package tts

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/speechbox/speechbox/internal/credential"
	"github.com/speechbox/speechbox/internal/engine"
)

const baiduSynthesisEndpoint = "http://tsn.baidu.com/text2audio"

// BaiduEngine synthesizes Mandarin mp3 audio through the Baidu voice API.
// It shares the credential flow with the baidu-stt engine. The per field
// selects the voice persona (0-4).
type BaiduEngine struct {
	tokens   *credential.TokenSource
	per      int
	endpoint string
	client   *http.Client
	player   Player
	log      zerolog.Logger
}

func baiduDescriptor(o Options) engine.Descriptor[Engine] {
	return engine.Descriptor[Engine]{
		Slug:  SlugBaidu,
		Probe: o.Network,
		New: func(ctx context.Context) (Engine, error) {
			p := o.Profiles.Current()
			frag := p.Section("baidu_api")
			tokens := credential.NewTokenSource(credential.DefaultEndpoint,
				frag.String("app_key", ""), frag.String("app_secret", ""), o.Log)
			return newBaiduTTS(tokens, frag.Int("per", 0), newPlayer(p, o.Log), o.Log), nil
		},
	}
}

func newBaiduTTS(tokens *credential.TokenSource, per int, player Player, log zerolog.Logger) *BaiduEngine {
	return &BaiduEngine{
		tokens:   tokens,
		per:      per,
		endpoint: baiduSynthesisEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		player:   player,
		log:      log.With().Str("engine", SlugBaidu).Logger(),
	}
}

func (e *BaiduEngine) Slug() string { return SlugBaidu }

func (e *BaiduEngine) Synthesize(ctx context.Context, phrase string) ([]byte, error) {
	token := e.tokens.Token(ctx)
	sum := md5.Sum([]byte(token))
	form := url.Values{}
	form.Set("tex", phrase)
	form.Set("lan", "zh")
	form.Set("tok", token)
	form.Set("ctp", "1")
	form.Set("cuid", hex.EncodeToString(sum[:]))
	form.Set("per", strconv.Itoa(e.per))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("synthesis endpoint returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	// The API signals errors by switching the content type to JSON.
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return nil, fmt.Errorf("synthesis rejected: %s", strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (e *BaiduEngine) ArtifactExt() string { return ".mp3" }

func (e *BaiduEngine) PlayArtifact(ctx context.Context, path string) error {
	return decodeAndPlay(ctx, e.player, path)
}

func (e *BaiduEngine) Say(ctx context.Context, phrase string) error {
	return sayOnce(ctx, e, e.log, phrase)
}

func (e *BaiduEngine) Close() error { return nil }

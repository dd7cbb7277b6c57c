package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "profile.yml"))
	if err != nil {
		t.Fatalf("Load(missing) = %v, want nil", err)
	}
	if got := p.String(KeySTTEngine, "sphinx"); got != "sphinx" {
		t.Errorf("String(stt_engine) = %q, want default sphinx", got)
	}
	frag := p.Section("baidu_api")
	if got := frag.String("app_key", ""); got != "" {
		t.Errorf("missing section app_key = %q, want empty", got)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := writeProfile(t, "stt_engine: [unclosed\n  bad")
	if _, err := Load(path); err == nil {
		t.Error("Load(malformed) = nil, want parse error")
	} else if !strings.Contains(err.Error(), "parse") {
		t.Errorf("Load(malformed) = %v, want parse error", err)
	}
}

func TestLoadProfile(t *testing.T) {
	path := writeProfile(t, `
stt_engine: baidu-stt
tts_engine: espeak-tts
language: zh-CN
keys:
  GOOGLE_SPEECH: abc123
baidu_api:
  app_key: the-key
  app_secret: the-secret
  per: 2
espeak-tts:
  voice: default+f2
  pitch_adjustment: 55
  words_per_minute: "120"
`)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if got := p.String(KeySTTEngine, "sphinx"); got != "baidu-stt" {
		t.Errorf("String(stt_engine) = %q, want baidu-stt", got)
	}
	if got := p.String(KeySTTPassiveEngine, "sphinx"); got != "sphinx" {
		t.Errorf("String(stt_passive_engine) = %q, want fallback sphinx", got)
	}
	if got := p.Section("keys").String("GOOGLE_SPEECH", ""); got != "abc123" {
		t.Errorf("keys.GOOGLE_SPEECH = %q, want abc123", got)
	}

	baidu := p.Section("baidu_api")
	if got := baidu.String("app_key", ""); got != "the-key" {
		t.Errorf("baidu_api.app_key = %q, want the-key", got)
	}
	if got := baidu.Int("per", 0); got != 2 {
		t.Errorf("baidu_api.per = %d, want 2", got)
	}

	espeak := p.Section("espeak-tts")
	if got := espeak.String("voice", "default+m3"); got != "default+f2" {
		t.Errorf("espeak voice = %q, want default+f2", got)
	}
	if got := espeak.Int("pitch_adjustment", 40); got != 55 {
		t.Errorf("pitch_adjustment = %d, want 55", got)
	}
	// Quoted YAML numbers still resolve as ints.
	if got := espeak.Int("words_per_minute", 160); got != 120 {
		t.Errorf("words_per_minute = %d, want 120", got)
	}
}

func TestFragmentCoercions(t *testing.T) {
	f := Fragment{
		"number": 7,
		"flag":   true,
		"empty":  nil,
	}
	if got := f.String("number", ""); got != "7" {
		t.Errorf("String(number) = %q, want 7", got)
	}
	if got := f.String("flag", ""); got != "true" {
		t.Errorf("String(flag) = %q, want true", got)
	}
	if got := f.String("missing", "def"); got != "def" {
		t.Errorf("String(missing) = %q, want def", got)
	}
	if got := f.String("empty", "def"); got != "def" {
		t.Errorf("String(empty) = %q, want def", got)
	}
	if got := f.Int("flag", 3); got != 3 {
		t.Errorf("Int(flag) = %d, want default 3", got)
	}
	if got := f.Sub("number").String("x", "d"); got != "d" {
		t.Errorf("Sub(scalar) lookup = %q, want default", got)
	}
}

func TestHolderReplace(t *testing.T) {
	first := Empty()
	h := NewHolder(first)
	if h.Current() != first {
		t.Fatal("Current() should return the seeded profile")
	}

	path := writeProfile(t, "tts_engine: dummy-tts\n")
	second, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	h.Replace(second)
	if got := h.Current().String(KeyTTSEngine, ""); got != "dummy-tts" {
		t.Errorf("after Replace, tts_engine = %q, want dummy-tts", got)
	}
}

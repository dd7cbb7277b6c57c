package stt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/speechbox/speechbox/internal/engine"
	"github.com/speechbox/speechbox/internal/probe"
	"github.com/speechbox/speechbox/internal/profile"
)

const (
	defaultHMMDefs  = "/usr/share/voxforge/julius/acoustic_model_files/hmmdefs"
	defaultTiedList = "/usr/share/voxforge/julius/acoustic_model_files/tiedlist"
)

// sentencePattern matches julius grammar-mode hypotheses, one line per
// candidate, indexed from 1.
var sentencePattern = regexp.MustCompile(`sentence(\d+): <s> (.+) </s>`)

// JuliusEngine decodes offline through the julius binary in grammar mode.
// The dfa and dict files come from the external vocabulary compiler.
type JuliusEngine struct {
	hmmDefs  string
	tiedList string
	dfaFile  string
	dictFile string
	log      zerolog.Logger
}

func juliusDescriptor(o Options) engine.Descriptor[Engine] {
	return engine.Descriptor[Engine]{
		Slug:  SlugJulius,
		Probe: probe.Executable("julius"),
		New: func(ctx context.Context) (Engine, error) {
			frag := o.Profiles.Current().Section("julius")
			return newJulius(ctx, frag, o.Log)
		},
	}
}

func newJulius(ctx context.Context, frag profile.Fragment, log zerolog.Logger) (*JuliusEngine, error) {
	vocabDir := defaultVocabularyDir()
	e := &JuliusEngine{
		hmmDefs:  frag.String("hmmdefs", defaultHMMDefs),
		tiedList: frag.String("tiedlist", defaultTiedList),
		dfaFile:  frag.String("dfa_file", filepath.Join(vocabDir, "julius.dfa")),
		dictFile: frag.String("dict_file", filepath.Join(vocabDir, "julius.dict")),
		log:      log.With().Str("engine", SlugJulius).Logger(),
	}
	if err := e.smokeRun(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// smokeRun starts julius once against empty input so model problems show up
// at construction. adin errors are expected with stdin input and are skipped.
func (e *JuliusEngine) smokeRun(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "julius", e.args()...)
	cmd.Stdin = strings.NewReader("")
	out, err := cmd.CombinedOutput()
	if err != nil && len(out) == 0 {
		return fmt.Errorf("julius smoke run: %w", err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		switch {
		case strings.HasPrefix(line, "ERROR: adin_"):
			e.log.Debug().Msg(line)
		case strings.HasPrefix(line, "ERROR:"):
			return fmt.Errorf("julius: %s", line)
		case strings.HasPrefix(line, "WARNING:"):
			e.log.Warn().Msg(line)
		case strings.HasPrefix(line, "STAT:"):
			e.log.Debug().Msg(line)
		}
	}
	return nil
}

func (e *JuliusEngine) args() []string {
	return []string{
		"-input", "stdin",
		"-dfa", e.dfaFile,
		"-v", e.dictFile,
		"-h", e.hmmDefs,
		"-hlist", e.tiedList,
		"-forcedict",
	}
}

func (e *JuliusEngine) Slug() string { return SlugJulius }

func (e *JuliusEngine) Transcribe(ctx context.Context, r io.Reader) ([]string, error) {
	if r == nil {
		return nil, fmt.Errorf("julius: nil audio stream")
	}
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, "julius",
		append([]string{"-quiet", "-nolog"}, e.args()...)...)
	cmd.Stdin = r
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		e.log.Error().Err(err).Msg("decoder run failed")
		return []string{}, nil
	}
	result := parseSentences(stdout.String())
	e.log.Info().Strs("candidates", result).Msg("transcribed")
	return result, nil
}

// parseSentences orders hypotheses by their sentence index and drops empty
// ones. The result is never nil.
func parseSentences(out string) []string {
	type hypothesis struct {
		index int
		text  string
	}
	var hyps []hypothesis
	for _, m := range sentencePattern.FindAllStringSubmatch(out, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		hyps = append(hyps, hypothesis{index: n, text: strings.TrimSpace(m[2])})
	}
	sort.Slice(hyps, func(i, j int) bool { return hyps[i].index < hyps[j].index })
	result := []string{}
	for _, h := range hyps {
		if h.text != "" {
			result = append(result, strings.ToUpper(h.text))
		}
	}
	return result
}

func (e *JuliusEngine) Close() error { return nil }

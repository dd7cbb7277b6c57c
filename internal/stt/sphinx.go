package stt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/speechbox/speechbox/internal/audio"
	"github.com/speechbox/speechbox/internal/engine"
	"github.com/speechbox/speechbox/internal/probe"
	"github.com/speechbox/speechbox/internal/profile"
)

const defaultHMMDir = "/usr/local/share/pocketsphinx/model/hmm/en_US/hub4wsj_sc_8k"

// hmmFiles are required in every acoustic model directory. A model also
// needs either mixture_weights or its compact sendump form.
var hmmFiles = []string{
	"mdef", "feat.params", "means", "noisedict",
	"transition_matrices", "variances",
}

// SphinxEngine decodes offline through the pocketsphinx_continuous binary.
type SphinxEngine struct {
	hmmDir  string
	dict    string
	lm      string
	logPath string
	log     zerolog.Logger
}

func sphinxDescriptor(o Options) engine.Descriptor[Engine] {
	return engine.Descriptor[Engine]{
		Slug: SlugSphinx,
		Probe: probe.All(
			probe.Executable("pocketsphinx_continuous"),
			probe.Library("pocketsphinx"),
		),
		New: func(ctx context.Context) (Engine, error) {
			frag := o.Profiles.Current().Section("pocketsphinx")
			return newSphinx(frag, o.Log)
		},
	}
}

func newSphinx(frag profile.Fragment, log zerolog.Logger) (*SphinxEngine, error) {
	vocabDir := defaultVocabularyDir()
	e := &SphinxEngine{
		hmmDir: frag.String("hmm_dir", defaultHMMDir),
		dict:   frag.String("dictionary", filepath.Join(vocabDir, "dictionary.dic")),
		lm:     frag.String("language_model", filepath.Join(vocabDir, "languagemodel.lm")),
		log:    log.With().Str("engine", SlugSphinx).Logger(),
	}
	if err := checkModelDir(e.hmmDir); err != nil {
		return nil, err
	}
	for _, p := range []string{e.dict, e.lm} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("vocabulary file %s does not exist", p)
		}
	}
	f, err := os.CreateTemp("", "sphinx-*.log")
	if err != nil {
		return nil, fmt.Errorf("create decoder logfile: %w", err)
	}
	e.logPath = f.Name()
	f.Close()
	return e, nil
}

// checkModelDir validates the acoustic model layout up front so a broken
// install fails at construction instead of deep inside a decode.
func checkModelDir(dir string) error {
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return fmt.Errorf("hmm directory %s does not exist, set hmm_dir in the pocketsphinx profile section", dir)
	}
	var missing []string
	for _, name := range hmmFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			missing = append(missing, name)
		}
	}
	_, werr := os.Stat(filepath.Join(dir, "mixture_weights"))
	_, serr := os.Stat(filepath.Join(dir, "sendump"))
	if werr != nil && serr != nil {
		missing = append(missing, "mixture_weights or sendump")
	}
	if len(missing) > 0 {
		return fmt.Errorf("hmm directory %s is missing %s", dir, strings.Join(missing, ", "))
	}
	return nil
}

func (e *SphinxEngine) Slug() string { return SlugSphinx }

func (e *SphinxEngine) Transcribe(ctx context.Context, r io.Reader) ([]string, error) {
	if r == nil {
		return nil, fmt.Errorf("sphinx: nil audio stream")
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

	wav, err := os.CreateTemp("", "sphinx-*.wav")
	if err != nil {
		e.log.Error().Err(err).Msg("creating scratch wav")
		return []string{}, nil
	}
	defer os.Remove(wav.Name())
	if err := audio.WriteWAV(wav, hdr, samples); err != nil {
		wav.Close()
		e.log.Error().Err(err).Msg("writing scratch wav")
		return []string{}, nil
	}
	wav.Close()

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, "pocketsphinx_continuous",
		"-hmm", e.hmmDir,
		"-dict", e.dict,
		"-lm", e.lm,
		"-infile", wav.Name(),
		"-logfn", e.logPath,
	)
	cmd.Stdout = &stdout
	runErr := cmd.Run()
	e.drainDecoderLog()
	if runErr != nil {
		e.log.Error().Err(runErr).Msg("decoder run failed")
		return []string{}, nil
	}

	var result []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			result = append(result, line)
		}
	}
	if result == nil {
		result = []string{}
	}
	e.log.Info().Strs("candidates", result).Msg("transcribed")
	return result, nil
}

// drainDecoderLog surfaces the decoder's diagnostics at debug level and
// resets the file so the next call starts clean.
func (e *SphinxEngine) drainDecoderLog() {
	out, err := os.ReadFile(e.logPath)
	if err == nil && len(out) > 0 {
		e.log.Debug().Msg(string(bytes.TrimSpace(out)))
	}
	os.Truncate(e.logPath, 0)
}

func (e *SphinxEngine) Close() error {
	if e.logPath == "" {
		return nil
	}
	err := os.Remove(e.logPath)
	e.logPath = ""
	return err
}

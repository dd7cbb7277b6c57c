// Command speechctl inspects and exercises speech engines from the command
// line, without going through a running speechboxd.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/speechbox/speechbox/internal/cache"
	"github.com/speechbox/speechbox/internal/config"
	"github.com/speechbox/speechbox/internal/engine"
	"github.com/speechbox/speechbox/internal/probe"
	"github.com/speechbox/speechbox/internal/profile"
	"github.com/speechbox/speechbox/internal/stt"
	"github.com/speechbox/speechbox/internal/tts"
)

var version = "dev"

var (
	envFile     string
	profilePath string
	engineSlug  string
	useCache    bool

	rootCmd = &cobra.Command{
		Use:           "speechctl",
		Short:         "Inspect and exercise speech engines",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	enginesCmd = &cobra.Command{
		Use:   "engines",
		Short: "List registered engines and their availability",
		Args:  cobra.NoArgs,
		RunE:  runEngines,
	}

	doctorCmd = &cobra.Command{
		Use:   "doctor",
		Short: "Probe every engine and report missing dependencies",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}

	transcribeCmd = &cobra.Command{
		Use:   "transcribe FILE",
		Short: "Transcribe a WAV file and print the candidates",
		Args:  cobra.ExactArgs(1),
		RunE:  runTranscribe,
	}

	sayCmd = &cobra.Command{
		Use:   "say PHRASE...",
		Short: "Synthesize a phrase and play it",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSay,
	}
)

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to .env file")
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "", "profile path (overrides PROFILE_PATH)")
	transcribeCmd.Flags().StringVarP(&engineSlug, "engine", "e", "", "engine slug (default from profile)")
	sayCmd.Flags().StringVarP(&engineSlug, "engine", "e", "", "engine slug (default from profile)")
	sayCmd.Flags().BoolVar(&useCache, "cache", false, "reuse cached synthesis audio")
	rootCmd.AddCommand(enginesCmd, doctorCmd, transcribeCmd, sayCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// toolkit carries the pieces every subcommand needs. It is built fresh per
// invocation; speechctl holds no state between runs.
type toolkit struct {
	cfg      *config.Config
	profiles *profile.Holder
	stt      *engine.Registry[stt.Engine]
	tts      *engine.Registry[tts.Engine]
	log      zerolog.Logger
}

func newToolkit() (*toolkit, error) {
	cfg, err := config.Load(config.Overrides{EnvFile: envFile, ProfilePath: profilePath})
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	prof, err := profile.Load(cfg.ProfilePath)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	profiles := profile.NewHolder(prof)

	// Engine chatter goes to stderr so stdout stays parseable.
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)
	network := probe.Network(cfg.ProbeHost, cfg.ProbeTimeout)

	return &toolkit{
		cfg:      cfg,
		profiles: profiles,
		stt:      stt.NewRegistry(stt.Options{Profiles: profiles, Network: network, Log: log}),
		tts:      tts.NewRegistry(tts.Options{Profiles: profiles, Network: network, Log: log}),
		log:      log,
	}, nil
}

func (tk *toolkit) statuses(cmd *cobra.Command) []engine.Status {
	ctx := cmd.Context()
	return append(tk.stt.Availability(ctx), tk.tts.Availability(ctx)...)
}

func runEngines(cmd *cobra.Command, _ []string) error {
	tk, err := newToolkit()
	if err != nil {
		return err
	}

	fmt.Println("Slug            Kind   Status")
	fmt.Println("─────────────────────────────────────")
	for _, s := range tk.statuses(cmd) {
		status := "available"
		if s.Err != nil {
			status = "unavailable"
		}
		fmt.Printf("%-15s %-6s %s\n", s.Slug, s.Kind, status)
	}
	return nil
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	tk, err := newToolkit()
	if err != nil {
		return err
	}

	p := tk.profiles.Current()
	fmt.Printf("profile:            %s\n", profileLabel(p))
	fmt.Printf("default stt engine: %s\n", stt.EngineSlug(p))
	fmt.Printf("default tts engine: %s\n", tts.EngineSlug(p))
	fmt.Println()

	broken := 0
	for _, s := range tk.statuses(cmd) {
		if s.Err != nil {
			broken++
			fmt.Printf("FAIL %s (%s): %v\n", s.Slug, s.Kind, s.Err)
			continue
		}
		fmt.Printf("ok   %s (%s)\n", s.Slug, s.Kind)
	}
	if broken > 0 {
		return fmt.Errorf("%d engine(s) unavailable", broken)
	}
	fmt.Println("\nall engines available")
	return nil
}

func profileLabel(p *profile.Profile) string {
	if path := p.Path(); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		return path + " (not found, using defaults)"
	}
	return "(built-in defaults)"
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	tk, err := newToolkit()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	slug := engineSlug
	if slug == "" {
		slug = stt.EngineSlug(tk.profiles.Current())
	}
	eng, err := tk.stt.Select(cmd.Context(), slug)
	if err != nil {
		return err
	}
	defer eng.Close()

	candidates, err := eng.Transcribe(cmd.Context(), f)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		fmt.Fprintln(os.Stderr, "no transcription candidates")
		return nil
	}
	for _, c := range candidates {
		fmt.Println(c)
	}
	return nil
}

func runSay(cmd *cobra.Command, args []string) error {
	tk, err := newToolkit()
	if err != nil {
		return err
	}

	var store cache.Store
	if useCache {
		// One-shot invocation: the store is used directly and the pruner
		// stays stopped.
		store, _, err = cache.New(cache.Options{
			Dir:       tk.cfg.CacheDir,
			Retention: tk.cfg.CacheRetention,
			MaxMB:     tk.cfg.CacheMaxMB,
			S3:        tk.cfg.S3,
		}, tk.log)
		if err != nil {
			return fmt.Errorf("setting up cache: %w", err)
		}
	}

	slug := engineSlug
	if slug == "" {
		slug = tts.EngineSlug(tk.profiles.Current())
	}
	speaker := tts.NewSpeaker(tk.tts, store, tk.log)
	return speaker.Say(cmd.Context(), slug, strings.Join(args, " "), useCache)
}

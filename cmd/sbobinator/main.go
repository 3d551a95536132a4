package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sashabaranov/go-openai"

	"github.com/chaz8081/sbobinator/internal/artifact"
	"github.com/chaz8081/sbobinator/internal/audio"
	"github.com/chaz8081/sbobinator/internal/checkpoint"
	"github.com/chaz8081/sbobinator/internal/config"
	"github.com/chaz8081/sbobinator/internal/pipeline"
	"github.com/chaz8081/sbobinator/internal/refine"
	"github.com/chaz8081/sbobinator/internal/render"
	"github.com/chaz8081/sbobinator/internal/transcribe"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/sbobinator/config.yaml)")
	initConfig := flag.Bool("init-config", false, "write the default config file and exit")
	status := flag.Bool("status", false, "print the checkpoint manifest and exit")
	record := flag.Bool("record", false, "record from the default microphone into raw_dir until Ctrl+C")
	flag.Parse()

	if flag.NArg() > 0 {
		log.Printf("unexpected arguments: %v", flag.Args())
		flag.Usage()
		return exitUsage
	}

	if *initConfig {
		path, err := config.WriteDefault()
		if err != nil {
			log.Printf("init-config: %v", err)
			return exitFailure
		}
		if path == "" {
			log.Printf("Config already exists at %s, leaving it untouched", config.DefaultConfigPath())
			return exitOK
		}
		log.Printf("Default config written to %s", path)
		return exitOK
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Printf("config: %v", err)
		return exitUsage
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("config validation: %v", err)
		return exitUsage
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	})))

	// Signal handling: an interrupt aborts the current stage without
	// writing its artifact.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *record {
		if err := recordLecture(ctx, cfg); err != nil {
			log.Printf("ERROR: recording failed: %v", err)
			return exitFailure
		}
		return exitOK
	}

	store, err := checkpoint.Open(&cfg.Checkpoint)
	if err != nil {
		log.Printf("ERROR: %v", err)
		return exitFailure
	}
	defer store.Close()

	manifest := checkpoint.NewManifest(store)
	if *status {
		if err := printStatus(ctx, os.Stdout, cfg, manifest); err != nil {
			log.Printf("ERROR: %v", err)
			return exitFailure
		}
		return exitOK
	}

	printBanner(cfg)

	deps, err := buildDeps(cfg)
	if err != nil {
		log.Printf("ERROR: %v", err)
		return exitUsage
	}
	deps.Manifest = manifest

	start := time.Now()
	if err := pipeline.New(cfg, deps).Run(ctx); err != nil {
		if errors.Is(err, audio.ErrSourceCount) {
			log.Printf("ERROR: %v\nPut exactly one *.%s recording in %s and run again.", err, cfg.Audio.Format, cfg.Paths.RawDir)
		} else {
			log.Printf("ERROR: %v", err)
		}
		return exitFailure
	}

	a := pipeline.ArtifactPaths(cfg)
	log.Printf("Done in %s. Transcript: %s", time.Since(start).Round(time.Millisecond), a.HTML)
	return exitOK
}

// buildDeps constructs the collaborators shared by every stage of one run.
// Without an API key the service-backed stages are left unconfigured and
// fail only if they actually need to run.
func buildDeps(cfg *config.Config) (pipeline.Deps, error) {
	var deps pipeline.Deps

	codec, err := audio.NewCodec(cfg.CodecFor(), cfg.Audio.FFmpegPath, cfg.Audio.FFprobePath)
	if err != nil {
		return deps, err
	}
	deps.Codec = codec
	deps.PDF = render.Wkhtmltopdf{Binary: cfg.Render.PDFCommand}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("WARNING: reading .env: %v", err)
	}
	apiKey := os.Getenv(cfg.OpenAI.APIKeyEnv)
	if apiKey == "" {
		log.Printf("WARNING: %s is not set; transcription and refinement are unavailable", cfg.OpenAI.APIKeyEnv)
		return deps, nil
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if cfg.OpenAI.BaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAI.BaseURL
	}
	client := openai.NewClientWithConfig(clientCfg)

	deps.Transcriber, err = transcribe.New(&cfg.Transcribe, client)
	if err != nil {
		return deps, err
	}
	deps.Completer = refine.NewOpenAICompleter(client)

	enc, err := refine.NewTiktokenEncoder(cfg.Refine.Model)
	if err != nil {
		log.Printf("WARNING: token estimates disabled: %v", err)
	} else {
		deps.Encoder = enc
	}
	return deps, nil
}

// recordLecture captures the default microphone until ctx is cancelled and
// saves the result as the raw recording.
func recordLecture(ctx context.Context, cfg *config.Config) error {
	recorder, err := audio.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.Channels)
	if err != nil {
		return fmt.Errorf("%w\n\nEnsure microphone access is granted to this terminal", err)
	}
	defer recorder.Close()

	log.Printf("Recording at %dHz, %dch... Ctrl+C to stop.", cfg.Audio.SampleRate, cfg.Audio.Channels)
	samples, err := recorder.Record(ctx)
	if err != nil {
		return err
	}

	duration := float64(len(samples)) / float64(cfg.Audio.SampleRate*cfg.Audio.Channels)
	path, err := audio.SaveRecording(cfg.Paths.RawDir, samples, cfg.Audio.SampleRate, cfg.Audio.Channels, time.Now())
	if err != nil {
		return err
	}
	log.Printf("Saved %.1fs of audio to %s", duration, path)
	if cfg.Audio.Format != "wav" {
		log.Printf("Set audio.format to \"wav\" to process this recording")
	}
	return nil
}

// printStatus shows every enabled stage and its recorded checkpoint.
func printStatus(ctx context.Context, w io.Writer, cfg *config.Config, m *checkpoint.Manifest) error {
	entries, err := m.Entries(ctx)
	if err != nil {
		return err
	}
	done := make(map[checkpoint.Stage]checkpoint.Entry, len(entries))
	for _, e := range entries {
		if e.Done {
			done[e.Stage] = e
		}
	}

	fmt.Fprintf(w, "=== sbobinator status (%s store) ===\n", cfg.Checkpoint.Store)
	for _, step := range pipeline.New(cfg, pipeline.Deps{}).Steps() {
		e, ok := done[step.Stage]
		switch {
		case !ok:
			fmt.Fprintf(w, "  %-12s pending   %s\n", step.Stage, step.Artifact)
		case !artifact.Exists(e.Artifact):
			fmt.Fprintf(w, "  %-12s missing   %s (recorded by run %s)\n", step.Stage, e.Artifact, shortID(e.RunID))
		default:
			fmt.Fprintf(w, "  %-12s done      %s (%s, run %s)\n",
				step.Stage, e.Artifact, e.CompletedAt.Local().Format(time.DateTime), shortID(e.RunID))
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== sbobinator ===")
	fmt.Printf("  Input:      %s (*.%s, %d MB chunks, %s)\n", cfg.Paths.RawDir, cfg.Audio.Format, cfg.Audio.MaxChunkSizeMB, cfg.CodecFor())
	fmt.Printf("  Transcribe: %s (%s)\n", cfg.Transcribe.Model, cfg.Transcribe.Language)
	fmt.Printf("  Refine:     %s (temperature %g, seed %d)\n", cfg.Refine.Model, cfg.Refine.Temperature, cfg.Refine.Seed)
	fmt.Printf("  Output:     %s (pdf: %t)\n", cfg.Paths.OutDir, cfg.Render.PDF)
	fmt.Printf("  Log:        %s\n", cfg.LogLevel)
	fmt.Println("==================")
}

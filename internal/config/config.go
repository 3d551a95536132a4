package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Paths      PathsConfig      `yaml:"paths"`
	Audio      AudioConfig      `yaml:"audio"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Refine     RefineConfig     `yaml:"refine"`
	Render     RenderConfig     `yaml:"render"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	LogLevel   string           `yaml:"log_level"`
}

// PathsConfig holds the working directories of the pipeline.
type PathsConfig struct {
	RawDir       string `yaml:"raw_dir"`       // exactly one source recording
	ProcessedDir string `yaml:"processed_dir"` // numbered audio chunks
	FinalDir     string `yaml:"final_dir"`     // transcript and refined text
	OutDir       string `yaml:"out_dir"`       // rendered documents
}

// AudioConfig holds chunking and capture settings.
type AudioConfig struct {
	Format         string `yaml:"format"` // source file extension, e.g. "m4a"
	MaxChunkSizeMB int64  `yaml:"max_chunk_size_mb"`
	Codec          string `yaml:"codec"` // "auto", "ffmpeg" or "wav"
	FFmpegPath     string `yaml:"ffmpeg_path"`
	FFprobePath    string `yaml:"ffprobe_path"`
	SampleRate     uint32 `yaml:"sample_rate"` // recording only
	Channels       uint32 `yaml:"channels"`    // recording only
}

// TranscribeConfig holds speech-to-text settings.
type TranscribeConfig struct {
	Backend  string `yaml:"backend"` // "openai"
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

// RefineConfig holds the language-model cleanup settings.
type RefineConfig struct {
	Model           string  `yaml:"model"`
	Temperature     float32 `yaml:"temperature"`
	Seed            int     `yaml:"seed"`
	MaxPromptTokens int     `yaml:"max_prompt_tokens"` // 0 disables the check
	MaxDriftRate    float64 `yaml:"max_drift_rate"`    // word edit rate that triggers a warning; 0 disables
	SystemPrompt    string  `yaml:"system_prompt"`     // empty uses the built-in prompt
}

// RenderConfig holds HTML/PDF output settings.
type RenderConfig struct {
	PDF        bool   `yaml:"pdf"`
	PDFCommand string `yaml:"pdf_command"`
}

// CheckpointConfig selects where stage completion is recorded.
type CheckpointConfig struct {
	Store string `yaml:"store"` // "yaml" or "sqlite"
	Path  string `yaml:"path"`
}

// OpenAIConfig holds API client settings. The key itself is never stored here.
type OpenAIConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "sbobinator")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			RawDir:       "data/raw",
			ProcessedDir: "data/processed",
			FinalDir:     "data/final",
			OutDir:       "data/out",
		},
		Audio: AudioConfig{
			Format:         "m4a",
			MaxChunkSizeMB: 25,
			Codec:          "auto",
			FFmpegPath:     "ffmpeg",
			FFprobePath:    "ffprobe",
			SampleRate:     16000,
			Channels:       1,
		},
		Transcribe: TranscribeConfig{
			Backend:  "openai",
			Model:    "whisper-1",
			Language: "it",
		},
		Refine: RefineConfig{
			Model:           "gpt-3.5-turbo-16k-0613",
			Temperature:     0.001,
			Seed:            42,
			MaxPromptTokens: 16000,
			MaxDriftRate:    0.5,
		},
		Render: RenderConfig{
			PDF:        false,
			PDFCommand: "wkhtmltopdf",
		},
		Checkpoint: CheckpointConfig{
			Store: "yaml",
			Path:  "data/final/manifest.yaml",
		},
		OpenAI: OpenAIConfig{
			APIKeyEnv: "OPENAI_API_KEY",
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Paths.RawDir = expandTilde(cfg.Paths.RawDir)
	cfg.Paths.ProcessedDir = expandTilde(cfg.Paths.ProcessedDir)
	cfg.Paths.FinalDir = expandTilde(cfg.Paths.FinalDir)
	cfg.Paths.OutDir = expandTilde(cfg.Paths.OutDir)
	cfg.Checkpoint.Path = expandTilde(cfg.Checkpoint.Path)
	cfg.Audio.Format = strings.TrimPrefix(strings.ToLower(cfg.Audio.Format), ".")

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	dirs := map[string]string{
		"paths.raw_dir":       c.Paths.RawDir,
		"paths.processed_dir": c.Paths.ProcessedDir,
		"paths.final_dir":     c.Paths.FinalDir,
		"paths.out_dir":       c.Paths.OutDir,
	}
	for name, dir := range dirs {
		if dir == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}
	if filepath.Clean(c.Paths.RawDir) == filepath.Clean(c.Paths.ProcessedDir) {
		return fmt.Errorf("paths.processed_dir must differ from paths.raw_dir")
	}

	if c.Audio.Format == "" {
		return fmt.Errorf("audio.format must not be empty")
	}
	if c.Audio.MaxChunkSizeMB <= 0 {
		return fmt.Errorf("audio.max_chunk_size_mb must be > 0")
	}
	switch c.Audio.Codec {
	case "auto", "ffmpeg", "wav":
	default:
		return fmt.Errorf("audio.codec must be \"auto\", \"ffmpeg\" or \"wav\", got %q", c.Audio.Codec)
	}
	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}
	if c.Audio.Channels == 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}

	switch c.Transcribe.Backend {
	case "openai":
	default:
		return fmt.Errorf("transcribe.backend must be \"openai\", got %q", c.Transcribe.Backend)
	}
	if c.Transcribe.Model == "" {
		return fmt.Errorf("transcribe.model must not be empty")
	}

	if c.Refine.Model == "" {
		return fmt.Errorf("refine.model must not be empty")
	}
	if c.Refine.Temperature < 0 || c.Refine.Temperature > 2 {
		return fmt.Errorf("refine.temperature must be between 0 and 2, got %v", c.Refine.Temperature)
	}
	if c.Refine.MaxPromptTokens < 0 {
		return fmt.Errorf("refine.max_prompt_tokens must be >= 0")
	}
	if c.Refine.MaxDriftRate < 0 {
		return fmt.Errorf("refine.max_drift_rate must be >= 0")
	}

	if c.Render.PDF && c.Render.PDFCommand == "" {
		return fmt.Errorf("render.pdf_command must not be empty when render.pdf is enabled")
	}

	switch c.Checkpoint.Store {
	case "yaml", "sqlite":
	default:
		return fmt.Errorf("checkpoint.store must be \"yaml\" or \"sqlite\", got %q", c.Checkpoint.Store)
	}
	if c.Checkpoint.Path == "" {
		return fmt.Errorf("checkpoint.path must not be empty")
	}

	if c.OpenAI.APIKeyEnv == "" {
		return fmt.Errorf("openai.api_key_env must not be empty")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// CodecFor resolves the "auto" codec setting against the source format.
func (c *Config) CodecFor() string {
	if c.Audio.Codec != "auto" {
		return c.Audio.Codec
	}
	if c.Audio.Format == "wav" {
		return "wav"
	}
	return "ffmpeg"
}

// ParseLogLevel maps a config log level to a slog.Level, defaulting to info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultHeader = `# sbobinator configuration
# Generated with defaults; edit as needed. The OpenAI API key is read from the
# environment variable named by openai.api_key_env (a .env file is honored).
`

// WriteDefault writes the default config to DefaultConfigPath. It returns the
// written path, or "" if a config file already exists there.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

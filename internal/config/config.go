package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	Server        ServerConfig
	Auth          AuthConfig
	Storage       StorageConfig
	Objects       ObjectsConfig
	LLM           LLMConfig
	Transcription TranscriptionConfig
	Worker        WorkerConfig
	Generation    GenerationConfig
	Log           LogConfig
}

type ServerConfig struct {
	Port         int
	PublicOrigin string
}

type AuthConfig struct {
	APIToken string
}

type StorageConfig struct {
	DataDir string
}

// ObjectsConfig selects where uploaded videos and generated images live.
// Backend is "local" (files under DataDir/blobs) or "minio".
type ObjectsConfig struct {
	Backend   string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type LLMConfig struct {
	APIKey      string
	BaseURL     string
	TextModel   string
	VisionModel string
	ImageModel  string
}

type TranscriptionConfig struct {
	OpenAIAPIKey     string
	ElevenLabsAPIKey string
	DefaultProvider  string
}

type WorkerConfig struct {
	Concurrency  int
	PollInterval string
}

type GenerationConfig struct {
	BatchConcurrency int
	ActionTimeout    string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         4100,
			PublicOrigin: "http://localhost:4100",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Objects: ObjectsConfig{
			Backend: "local",
			Bucket:  "youpac",
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			TextModel:   "gpt-4o-mini",
			VisionModel: "gpt-4o",
			ImageModel:  "dall-e-3",
		},
		Transcription: TranscriptionConfig{
			DefaultProvider: "openai",
		},
		Worker: WorkerConfig{
			Concurrency:  2,
			PollInterval: "500ms",
		},
		Generation: GenerationConfig{
			BatchConcurrency: 3,
			ActionTimeout:    "30s",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the YAML config file and environment
// variables. Environment variables (YOUPAC_*) override file values.
//
// API credentials are optional here. Components that need them report a
// descriptive error the first time they are used without one.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadFromPath(path string) (Config, error) {
	return loadWith(newFileBackend(path))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Objects.Backend != "local" && cfg.Objects.Backend != "minio" {
		return Config{}, fmt.Errorf("invalid objects.backend %q: want local or minio", cfg.Objects.Backend)
	}
	return cfg, nil
}

// Duration parses a duration-valued config string, falling back to def when
// the value is empty or malformed.
func Duration(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// MissingSecretError explains which setting must be provided for a credential
// that was needed at runtime.
func MissingSecretError(key string) error {
	for _, s := range specs {
		if s.key == key {
			return fmt.Errorf("missing required config: %s. Set it via environment variable %s", key, s.env)
		}
	}
	return fmt.Errorf("missing required config: %s", key)
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "youpac-data"
		}
	}
	return filepath.Join(dir, "youpac")
}

func configFilePath() string {
	if p := os.Getenv("YOUPAC_CONFIG"); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "youpac", "config.yaml")
}

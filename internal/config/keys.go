package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "YOUPAC_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.public_origin", typ: kString, env: "YOUPAC_SERVER_PUBLIC_ORIGIN",
		apply:   func(cfg *Config, v any) { cfg.Server.PublicOrigin = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.PublicOrigin },
	},
	{
		key: "auth.api_token", typ: kString, env: "YOUPAC_API_TOKEN",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Auth.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.APIToken },
	},
	{
		key: "storage.data_dir", typ: kString, env: "YOUPAC_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "objects.backend", typ: kString, env: "YOUPAC_OBJECTS_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Objects.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Objects.Backend },
	},
	{
		key: "objects.endpoint", typ: kString, env: "YOUPAC_OBJECTS_ENDPOINT",
		apply:   func(cfg *Config, v any) { cfg.Objects.Endpoint = v.(string) },
		extract: func(cfg Config) any { return cfg.Objects.Endpoint },
	},
	{
		key: "objects.access_key", typ: kString, env: "YOUPAC_OBJECTS_ACCESS_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Objects.AccessKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Objects.AccessKey },
	},
	{
		key: "objects.secret_key", typ: kString, env: "YOUPAC_OBJECTS_SECRET_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Objects.SecretKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Objects.SecretKey },
	},
	{
		key: "objects.bucket", typ: kString, env: "YOUPAC_OBJECTS_BUCKET",
		apply:   func(cfg *Config, v any) { cfg.Objects.Bucket = v.(string) },
		extract: func(cfg Config) any { return cfg.Objects.Bucket },
	},
	{
		key: "objects.use_ssl", typ: kBool, env: "YOUPAC_OBJECTS_USE_SSL",
		apply:   func(cfg *Config, v any) { cfg.Objects.UseSSL = v.(bool) },
		extract: func(cfg Config) any { return cfg.Objects.UseSSL },
	},
	{
		key: "llm.api_key", typ: kString, env: "YOUPAC_LLM_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "llm.base_url", typ: kString, env: "YOUPAC_LLM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.text_model", typ: kString, env: "YOUPAC_LLM_TEXT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.TextModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.TextModel },
	},
	{
		key: "llm.vision_model", typ: kString, env: "YOUPAC_LLM_VISION_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.VisionModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.VisionModel },
	},
	{
		key: "llm.image_model", typ: kString, env: "YOUPAC_LLM_IMAGE_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.ImageModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.ImageModel },
	},
	{
		key: "transcription.openai_api_key", typ: kString, env: "YOUPAC_OPENAI_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Transcription.OpenAIAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Transcription.OpenAIAPIKey },
	},
	{
		key: "transcription.elevenlabs_api_key", typ: kString, env: "YOUPAC_ELEVENLABS_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Transcription.ElevenLabsAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Transcription.ElevenLabsAPIKey },
	},
	{
		key: "transcription.default_provider", typ: kString, env: "YOUPAC_TRANSCRIPTION_DEFAULT_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Transcription.DefaultProvider = v.(string) },
		extract: func(cfg Config) any { return cfg.Transcription.DefaultProvider },
	},
	{
		key: "worker.concurrency", typ: kInt, env: "YOUPAC_WORKER_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Worker.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Worker.Concurrency },
	},
	{
		key: "worker.poll_interval", typ: kString, env: "YOUPAC_WORKER_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Worker.PollInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Worker.PollInterval },
	},
	{
		key: "generation.batch_concurrency", typ: kInt, env: "YOUPAC_GENERATION_BATCH_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Generation.BatchConcurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Generation.BatchConcurrency },
	},
	{
		key: "generation.action_timeout", typ: kString, env: "YOUPAC_GENERATION_ACTION_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Generation.ActionTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.ActionTimeout },
	},
	{
		key: "log.level", typ: kString, env: "YOUPAC_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

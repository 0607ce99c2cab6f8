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
		key: "server.port", typ: kInt, env: "DESIGNDAYS_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.admin_token", typ: kString, env: "DESIGNDAYS_ADMIN_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.AdminToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.AdminToken },
	},
	{
		key: "content.dir", typ: kString, env: "DESIGNDAYS_CONTENT_DIR",
		apply:   func(cfg *Config, v any) { cfg.Content.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Content.Dir },
	},
	{
		key: "content.samples_file", typ: kString, env: "DESIGNDAYS_CONTENT_SAMPLES_FILE",
		apply:   func(cfg *Config, v any) { cfg.Content.SamplesFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Content.SamplesFile },
	},
	{
		key: "content.reload_interval", typ: kString, env: "DESIGNDAYS_CONTENT_RELOAD_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Content.ReloadInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Content.ReloadInterval },
	},
	{
		key: "storage.data_dir", typ: kString, env: "DESIGNDAYS_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "feedback.driver", typ: kString, env: "DESIGNDAYS_FEEDBACK_DRIVER",
		apply:   func(cfg *Config, v any) { cfg.Feedback.Driver = v.(string) },
		extract: func(cfg Config) any { return cfg.Feedback.Driver },
	},
	{
		key: "feedback.postgres_dsn", typ: kString, env: "DESIGNDAYS_FEEDBACK_POSTGRES_DSN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Feedback.PostgresDSN = v.(string) },
		extract: func(cfg Config) any { return cfg.Feedback.PostgresDSN },
	},
	{
		key: "llm.base_url", typ: kString, env: "DESIGNDAYS_LLM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.api_key", typ: kString, env: "DESIGNDAYS_LLM_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "llm.model", typ: kString, env: "DESIGNDAYS_LLM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "chat.batch_size", typ: kInt, env: "DESIGNDAYS_CHAT_BATCH_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Chat.BatchSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Chat.BatchSize },
	},
	{
		key: "chat.max_continuation", typ: kInt, env: "DESIGNDAYS_CHAT_MAX_CONTINUATION",
		apply:   func(cfg *Config, v any) { cfg.Chat.MaxContinuation = v.(int) },
		extract: func(cfg Config) any { return cfg.Chat.MaxContinuation },
	},
	{
		key: "chat.request_timeout", typ: kString, env: "DESIGNDAYS_CHAT_REQUEST_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Chat.RequestTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Chat.RequestTimeout },
	},
	{
		key: "site.name", typ: kString, env: "DESIGNDAYS_SITE_NAME",
		apply:   func(cfg *Config, v any) { cfg.Site.Name = v.(string) },
		extract: func(cfg Config) any { return cfg.Site.Name },
	},
	{
		key: "site.creator", typ: kString, env: "DESIGNDAYS_SITE_CREATOR",
		apply:   func(cfg *Config, v any) { cfg.Site.Creator = v.(string) },
		extract: func(cfg Config) any { return cfg.Site.Creator },
	},
	{
		key: "site.description", typ: kString, env: "DESIGNDAYS_SITE_DESCRIPTION",
		apply:   func(cfg *Config, v any) { cfg.Site.Description = v.(string) },
		extract: func(cfg Config) any { return cfg.Site.Description },
	},
	{
		key: "log.level", typ: kString, env: "DESIGNDAYS_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// applyBackend reads non-secret keys from the backend. Secrets only come
// from the environment.
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
		}
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	Server   ServerConfig
	Content  ContentConfig
	Storage  StorageConfig
	Feedback FeedbackConfig
	LLM      LLMConfig
	Chat     ChatConfig
	Site     SiteConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port       int
	AdminToken string
}

type ContentConfig struct {
	Dir            string
	SamplesFile    string
	ReloadInterval string
}

type StorageConfig struct {
	DataDir string
}

type FeedbackConfig struct {
	Driver      string
	PostgresDSN string
}

type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type ChatConfig struct {
	BatchSize       int
	MaxContinuation int
	RequestTimeout  string
}

type SiteConfig struct {
	Name        string
	Creator     string
	Description string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Content: ContentConfig{
			Dir:            "content/days",
			ReloadInterval: "0s",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Feedback: FeedbackConfig{
			Driver: "sqlite",
		},
		LLM: LLMConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Model:   "openai/gpt-4o-mini",
		},
		Chat: ChatConfig{
			BatchSize:      3,
			RequestTimeout: "30s",
		},
		Site: SiteConfig{
			Name: "100 Days of Design Engineering",
			Description: "A hundred small design engineering projects, one per day: " +
				"UI components, interaction and animation studies, and technical showcases.",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/designdays/config.json and then applies DESIGNDAYS_*
// environment overrides. Missing files fall back to defaults.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	switch cfg.Feedback.Driver {
	case "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("invalid feedback.driver %q: must be sqlite or postgres", cfg.Feedback.Driver)
	}
	if cfg.Feedback.Driver == "postgres" && cfg.Feedback.PostgresDSN == "" {
		return Config{}, fmt.Errorf("feedback.driver is postgres but DESIGNDAYS_FEEDBACK_POSTGRES_DSN is empty")
	}

	return cfg, nil
}

// RequireLLM reports an error when the chat endpoint cannot reach a model.
func (c Config) RequireLLM() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("missing required config: LLM API key. Set it via environment variable DESIGNDAYS_LLM_API_KEY")
	}
	return nil
}

// Duration parses a duration-valued key, returning fallback when raw is
// empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		fmt.Fprintf(os.Stderr, "[WARN] invalid duration %q, using %s\n", raw, fallback)
		return fallback
	}
	return d
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "designdays-data"
		}
	}
	return filepath.Join(dir, "designdays")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "designdays", "config.json")
}

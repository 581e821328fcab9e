// Package config loads settings from the user's config.env file and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/spaceify/spaceify/internal/llm"
	"github.com/spaceify/spaceify/internal/usage"
)

const (
	AppName     = "spaceify"
	EnvFileName = "config.env"
)

// Config is read from environment variables.
type Config struct {
	Provider      string `envconfig:"SPACEIFY_PROVIDER" default:"gemini"`
	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
	TextModel     string `envconfig:"SPACEIFY_TEXT_MODEL"`
	VisionModel   string `envconfig:"SPACEIFY_VISION_MODEL"`

	DBPath     string `envconfig:"SPACEIFY_DB_PATH" default:"spaceify.db"`
	RedisURL   string `envconfig:"SPACEIFY_REDIS_URL"`
	StoreKey   string `envconfig:"SPACEIFY_STORE_KEY"`
	PhotoCache bool   `envconfig:"SPACEIFY_PHOTO_CACHE" default:"true"`

	// Plan and PlanStatus describe the local user's subscription. An empty
	// plan means signed out.
	Plan       string `envconfig:"SPACEIFY_PLAN"`
	PlanStatus string `envconfig:"SPACEIFY_PLAN_STATUS" default:"active"`

	LogLevel string `envconfig:"SPACEIFY_LOG_LEVEL" default:"info"`
}

// Load processes the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Provider == "" {
		cfg.Provider = llm.ProviderGemini
	}
	switch cfg.Provider {
	case llm.ProviderGemini, llm.ProviderOpenAI:
	default:
		return nil, fmt.Errorf("unknown provider %q, expected %s or %s", cfg.Provider, llm.ProviderGemini, llm.ProviderOpenAI)
	}
	return &cfg, nil
}

// ProviderConfig returns the provider selection for llm.NewProviderFromConfig.
func (c *Config) ProviderConfig() llm.ProviderConfig {
	return llm.ProviderConfig{
		Name:          c.Provider,
		GeminiAPIKey:  c.GeminiAPIKey,
		OpenAIAPIKey:  c.OpenAIAPIKey,
		OpenAIBaseURL: c.OpenAIBaseURL,
	}
}

// Subscription returns the configured subscription, or nil when signed out.
func (c *Config) Subscription() *usage.Subscription {
	if c.Plan == "" {
		return nil
	}
	return &usage.Subscription{Plan: c.Plan, Status: c.PlanStatus}
}

// Missing returns the names of unset variables the selected provider needs.
// A missing key leaves AI features disabled rather than failing startup.
func (c *Config) Missing() []string {
	switch c.Provider {
	case llm.ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return []string{"OPENAI_API_KEY"}
		}
	default:
		if c.GeminiAPIKey == "" {
			return []string{"GEMINI_API_KEY"}
		}
	}
	return nil
}

// Dir returns the application's config directory, creating it if needed.
func Dir() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	configDir := filepath.Join(configBase, AppName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// FilePath returns the full path to the config file.
func FilePath() (string, error) {
	configDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, EnvFileName), nil
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist.
// Variables already set in the environment win.
func LoadEnvFile() {
	configPath, err := FilePath()
	if err != nil {
		return
	}
	_ = godotenv.Load(configPath)
}

// Package config centralizes bugbot configuration: the YAML config file
// under .bugbot/, environment overrides, and the conversation constants
// shared across the dialogue core.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Conversation constants. Token budgets differ per call site so the
// extraction and end-detection passes stay cheap relative to the main
// completion.
const (
	LLMMaxTokens          = 500
	ExtractionMaxTokens   = 200
	EndDetectionMaxTokens = 100

	// MaxConversationTurns bounds user-initiated exchanges per session.
	MaxConversationTurns = 20

	// MaxToolIterations caps the tool-calling loop within a single user
	// turn so an oscillating model response cannot loop forever.
	MaxToolIterations = 8
)

// Config holds all bugbot configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	LLM     LLMConfig     `yaml:"llm"`
	Storage StorageConfig `yaml:"storage"`
	Session SessionConfig `yaml:"session"`
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the understanding-service client.
type LLMConfig struct {
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
	SiteName string `yaml:"site_name"`
}

// StorageConfig configures the developer/bug store.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// SessionConfig configures session behavior and artifact locations.
type SessionConfig struct {
	MaxTurns   int    `yaml:"max_turns"`
	ResultsDir string `yaml:"results_dir"`
}

// LoggingConfig mirrors the logging package's file-based settings.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "bugbot",
		Version: "1.0.0",
		LLM: LLMConfig{
			BaseURL:  "https://openrouter.ai/api/v1",
			Timeout:  "120s",
			SiteName: "bugbot",
		},
		Storage: StorageConfig{
			DatabasePath: filepath.Join(".bugbot", "bugbot.db"),
		},
		Session: SessionConfig{
			MaxTurns:   MaxConversationTurns,
			ResultsDir: "results",
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	return filepath.Join(".bugbot", "config.yaml")
}

// Load reads a config file, falling back to defaults when the file does
// not exist. Environment overrides are applied either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the config to disk, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides lets environment variables win over file values.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("OPENROUTER_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if url := os.Getenv("OPENROUTER_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if path := os.Getenv("BUGBOT_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
	if dir := os.Getenv("BUGBOT_RESULTS"); dir != "" {
		c.Session.ResultsDir = dir
	}
}

// GetLLMTimeout parses the LLM timeout, defaulting to two minutes.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// MaxTurns returns the configured turn budget, falling back to the
// default when unset or nonsensical.
func (c *Config) MaxTurns() int {
	if c.Session.MaxTurns <= 0 {
		return MaxConversationTurns
	}
	return c.Session.MaxTurns
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required (set OPENROUTER_API_KEY)")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required (set OPENROUTER_MODEL)")
	}
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage.database_path is required")
	}
	return nil
}

// Package config loads the hooshi CLI configuration from a TOML file.
//
// Values are resolved in order: built-in defaults, the TOML file,
// environment variables and finally command-line flags, which the CLI
// applies itself.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/poiesic/hooshi/ai"
	"github.com/poiesic/hooshi/snapshot"
)

// Config is the full CLI configuration.
type Config struct {
	LogLevel string         `toml:"log_level"`
	Database DatabaseConfig `toml:"database"`
	AI       AIConfig       `toml:"ai"`
	Usage    UsageConfig    `toml:"usage"`
}

// DatabaseConfig locates the stores.
type DatabaseConfig struct {
	Path           string `toml:"path"`
	SnapshotDriver string `toml:"snapshot_driver"`
	SnapshotPath   string `toml:"snapshot_path"`
	InitAttempts   int    `toml:"init_attempts"`
	InitDelayMS    int    `toml:"init_delay_ms"`
}

// AIConfig configures the chat-completion service.
type AIConfig struct {
	Host             string  `toml:"host"`
	APIKey           string  `toml:"api_key"`
	Model            string  `toml:"model"`
	Temperature      float64 `toml:"temperature"`
	MaxTokens        int     `toml:"max_tokens"`
	AssistantName    string  `toml:"assistant_name"`
	UserName         string  `toml:"user_name"`
	PrioritizeMemory bool    `toml:"prioritize_memory"`
}

// UsageConfig sets usage reporting defaults.
type UsageConfig struct {
	RetentionDays int `toml:"retention_days"`
	SummaryDays   int `toml:"summary_days"`
	HistoryLimit  int `toml:"history_limit"`
}

// Environment variables read by ApplyEnvOverrides.
const (
	EnvDatabase = "HOOSHI_DB"
	EnvAPIKey   = "HOOSHI_API_KEY"
	EnvModel    = "HOOSHI_MODEL"
	EnvOpenAI   = "OPENAI_API_KEY"
)

// Default returns the built-in configuration.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		LogLevel: "warn",
		Database: DatabaseConfig{
			Path:           defaultDataDir(),
			SnapshotDriver: snapshot.DriverBolt,
			InitAttempts:   5,
			InitDelayMS:    1000,
		},
		AI: AIConfig{
			Host:          aiDefaults.Host,
			Model:         aiDefaults.Model,
			Temperature:   aiDefaults.Temperature,
			MaxTokens:     aiDefaults.MaxTokens,
			AssistantName: aiDefaults.AssistantName,
			UserName:      aiDefaults.UserName,
		},
		Usage: UsageConfig{
			RetentionDays: 60,
			SummaryDays:   30,
			HistoryLimit:  100,
		},
	}
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "hooshi-data"
	}
	return filepath.Join(dir, "hooshi", "data")
}

// DefaultPath returns the default location of the configuration file.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "hooshi", "config.toml"), nil
}

// Load returns the defaults overlaid with the file at path and the
// environment. A missing file is not an error unless required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()
	if path != "" {
		err := LoadTOML(cfg, path)
		switch {
		case errors.Is(err, os.ErrNotExist) && !required:
		case err != nil:
			return nil, err
		}
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTOML decodes the TOML file at path over cfg. Keys absent from the
// file keep their current values.
func LoadTOML(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown config keys in %s: %v", path, undecoded)
	}
	return nil
}

// SaveTOML writes cfg to path, readable by the owner only. The file holds
// the API key.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	fmt.Fprintln(file, "# hooshi configuration file")
	fmt.Fprintln(file, "")
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ApplyEnvOverrides applies environment variables on top of the loaded values.
//
// Supported environment variables:
//   - HOOSHI_DB: overrides database.path
//   - HOOSHI_API_KEY: overrides ai.api_key
//   - OPENAI_API_KEY: used for ai.api_key when nothing else sets it
//   - HOOSHI_MODEL: overrides ai.model
func (c *Config) ApplyEnvOverrides() {
	if path := os.Getenv(EnvDatabase); path != "" {
		c.Database.Path = path
	}
	if key := os.Getenv(EnvAPIKey); key != "" {
		c.AI.APIKey = key
	} else if key := os.Getenv(EnvOpenAI); key != "" && c.AI.APIKey == "" {
		c.AI.APIKey = key
	}
	if model := os.Getenv(EnvModel); model != "" {
		c.AI.Model = model
	}
}

// Validate checks the configuration for values the CLI can't use.
func (c *Config) Validate() error {
	switch c.Database.SnapshotDriver {
	case "", snapshot.DriverBolt, snapshot.DriverSQLite, snapshot.DriverMemory:
	default:
		return fmt.Errorf("config: %w: %q", snapshot.ErrUnknownDriver, c.Database.SnapshotDriver)
	}
	if c.Database.InitAttempts < 0 {
		return errors.New("config: database.init_attempts cannot be negative")
	}
	if c.Database.InitDelayMS < 0 {
		return errors.New("config: database.init_delay_ms cannot be negative")
	}
	if c.Usage.RetentionDays < 0 || c.Usage.SummaryDays < 0 || c.Usage.HistoryLimit < 0 {
		return errors.New("config: usage values cannot be negative")
	}
	return nil
}

// ChatConfig returns the chat-completion configuration.
func (c *Config) ChatConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithHost(c.AI.Host),
		ai.WithToken(c.AI.APIKey),
		ai.WithModel(c.AI.Model),
		ai.WithTemperature(c.AI.Temperature),
		ai.WithMaxTokens(c.AI.MaxTokens),
		ai.WithNames(c.AI.AssistantName, c.AI.UserName),
		ai.WithPrioritizeMemory(c.AI.PrioritizeMemory),
	)
}

// Package config handles configuration loading and management for the
// council. It supports XDG config paths, project-level overrides, and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the council.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	AWS       AWSConfig       `mapstructure:"aws"`
	Delivery  DeliveryConfig  `mapstructure:"delivery"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
	TUI       TUIConfig       `mapstructure:"tui"`
	Paths     PathsConfig     `mapstructure:"paths"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// AWSConfig holds AWS Bedrock settings.
type AWSConfig struct {
	UseBedrock bool   `mapstructure:"use_bedrock"`
	Region     string `mapstructure:"region"`
	Profile    string `mapstructure:"profile"`
}

// DeliveryConfig holds output delivery settings.
type DeliveryConfig struct {
	// Mode selects synthesis, compilation or injection.
	Mode string `mapstructure:"mode"`
	// InjectionCacheTTL bounds reuse of injection retrieval results.
	InjectionCacheTTL time.Duration `mapstructure:"injection_cache_ttl"`
}

// DefaultsConfig holds engine-wide defaults.
type DefaultsConfig struct {
	// RetryCount is the default number of action retries.
	RetryCount int `mapstructure:"retry_count"`
	// RetryDelay is the default fixed delay between attempts.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// TimeoutsConfig holds the three execution budgets.
type TimeoutsConfig struct {
	Action   time.Duration `mapstructure:"action"`
	Phase    time.Duration `mapstructure:"phase"`
	Pipeline time.Duration `mapstructure:"pipeline"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// PathsConfig holds filesystem locations.
type PathsConfig struct {
	// PipelineDir is the directory watched for pipeline definitions.
	PipelineDir string `mapstructure:"pipeline_dir"`
	// DataDir overrides the default persistence root.
	DataDir string `mapstructure:"data_dir"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (COUNCIL_*, ANTHROPIC_API_KEY)
// 2. Project config (.council.yaml in current directory or parent)
// 3. User config (~/.config/council/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("COUNCIL")

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("delivery.mode", "COUNCIL_DELIVERY_MODE")
	v.BindEnv("paths.pipeline_dir", "COUNCIL_PIPELINE_DIR")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("aws.use_bedrock", cfg.AWS.UseBedrock)
	v.Set("aws.region", cfg.AWS.Region)
	v.Set("aws.profile", cfg.AWS.Profile)
	v.Set("delivery.mode", cfg.Delivery.Mode)
	v.Set("delivery.injection_cache_ttl", cfg.Delivery.InjectionCacheTTL.String())
	v.Set("defaults.retry_count", cfg.Defaults.RetryCount)
	v.Set("defaults.retry_delay", cfg.Defaults.RetryDelay.String())
	v.Set("timeouts.action", cfg.Timeouts.Action.String())
	v.Set("timeouts.phase", cfg.Timeouts.Phase.String())
	v.Set("timeouts.pipeline", cfg.Timeouts.Pipeline.String())
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())
	v.Set("paths.pipeline_dir", cfg.Paths.PipelineDir)
	v.Set("paths.data_dir", cfg.Paths.DataDir)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")

	v.SetDefault("aws.use_bedrock", false)
	v.SetDefault("aws.region", "")
	v.SetDefault("aws.profile", "")

	v.SetDefault("delivery.mode", "synthesis")
	v.SetDefault("delivery.injection_cache_ttl", "30s")

	v.SetDefault("defaults.retry_count", 1)
	v.SetDefault("defaults.retry_delay", "2s")

	v.SetDefault("timeouts.action", "2m")
	v.SetDefault("timeouts.phase", "15m")
	v.SetDefault("timeouts.pipeline", "1h")

	v.SetDefault("tui.refresh_rate", "100ms")

	v.SetDefault("paths.pipeline_dir", "pipelines")
	v.SetDefault("paths.data_dir", "")
}

// getUserConfigDir returns the XDG config directory for the council.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "council")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "council")
	}
	return filepath.Join(home, ".config", "council")
}

// findProjectConfig searches for .council.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".council.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Delivery: DeliveryConfig{
			Mode:              "synthesis",
			InjectionCacheTTL: 30 * time.Second,
		},
		Defaults: DefaultsConfig{
			RetryCount: 1,
			RetryDelay: 2 * time.Second,
		},
		Timeouts: TimeoutsConfig{
			Action:   2 * time.Minute,
			Phase:    15 * time.Minute,
			Pipeline: time.Hour,
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
		},
		Paths: PathsConfig{
			PipelineDir: "pipelines",
		},
	}
}

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/councilhq/council/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify council configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/council/config.yaml
Project-specific overrides can be placed in .council.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("anthropic.api_key: %s (from %s)\n",
		config.MaskAPIKey(cfg.Anthropic.APIKey), config.GetAPIKeySource(cfg))
	fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("aws.use_bedrock: %t\n", cfg.AWS.UseBedrock)
	fmt.Printf("aws.region: %s\n", cfg.AWS.Region)
	fmt.Printf("aws.profile: %s\n", cfg.AWS.Profile)
	fmt.Printf("delivery.mode: %s\n", cfg.Delivery.Mode)
	fmt.Printf("delivery.injection_cache_ttl: %s\n", cfg.Delivery.InjectionCacheTTL)
	fmt.Printf("defaults.retry_count: %d\n", cfg.Defaults.RetryCount)
	fmt.Printf("defaults.retry_delay: %s\n", cfg.Defaults.RetryDelay)
	fmt.Printf("timeouts.action: %s\n", cfg.Timeouts.Action)
	fmt.Printf("timeouts.phase: %s\n", cfg.Timeouts.Phase)
	fmt.Printf("timeouts.pipeline: %s\n", cfg.Timeouts.Pipeline)
	fmt.Printf("tui.refresh_rate: %s\n", cfg.TUI.RefreshRate)
	fmt.Printf("paths.pipeline_dir: %s\n", cfg.Paths.PipelineDir)
	fmt.Printf("paths.data_dir: %s\n", cfg.Paths.DataDir)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "aws.use_bedrock":
		return strconv.FormatBool(cfg.AWS.UseBedrock), nil
	case "aws.region":
		return cfg.AWS.Region, nil
	case "aws.profile":
		return cfg.AWS.Profile, nil
	case "delivery.mode":
		return cfg.Delivery.Mode, nil
	case "delivery.injection_cache_ttl":
		return cfg.Delivery.InjectionCacheTTL.String(), nil
	case "defaults.retry_count":
		return strconv.Itoa(cfg.Defaults.RetryCount), nil
	case "defaults.retry_delay":
		return cfg.Defaults.RetryDelay.String(), nil
	case "timeouts.action":
		return cfg.Timeouts.Action.String(), nil
	case "timeouts.phase":
		return cfg.Timeouts.Phase.String(), nil
	case "timeouts.pipeline":
		return cfg.Timeouts.Pipeline.String(), nil
	case "tui.refresh_rate":
		return cfg.TUI.RefreshRate.String(), nil
	case "paths.pipeline_dir":
		return cfg.Paths.PipelineDir, nil
	case "paths.data_dir":
		return cfg.Paths.DataDir, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	parseDuration := func(name string) (time.Duration, error) {
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %w", name, err)
		}
		return d, nil
	}

	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "aws.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for aws.use_bedrock: %w", err)
		}
		cfg.AWS.UseBedrock = b
	case "aws.region":
		cfg.AWS.Region = value
	case "aws.profile":
		cfg.AWS.Profile = value
	case "delivery.mode":
		switch value {
		case "synthesis", "compilation", "injection":
			cfg.Delivery.Mode = value
		default:
			return fmt.Errorf("invalid delivery mode %q", value)
		}
	case "delivery.injection_cache_ttl":
		d, err := parseDuration(key)
		if err != nil {
			return err
		}
		cfg.Delivery.InjectionCacheTTL = d
	case "defaults.retry_count":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for retry_count: %w", err)
		}
		cfg.Defaults.RetryCount = n
	case "defaults.retry_delay":
		d, err := parseDuration(key)
		if err != nil {
			return err
		}
		cfg.Defaults.RetryDelay = d
	case "timeouts.action":
		d, err := parseDuration(key)
		if err != nil {
			return err
		}
		cfg.Timeouts.Action = d
	case "timeouts.phase":
		d, err := parseDuration(key)
		if err != nil {
			return err
		}
		cfg.Timeouts.Phase = d
	case "timeouts.pipeline":
		d, err := parseDuration(key)
		if err != nil {
			return err
		}
		cfg.Timeouts.Pipeline = d
	case "tui.refresh_rate":
		d, err := parseDuration(key)
		if err != nil {
			return err
		}
		cfg.TUI.RefreshRate = d
	case "paths.pipeline_dir":
		cfg.Paths.PipelineDir = value
	case "paths.data_dir":
		cfg.Paths.DataDir = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

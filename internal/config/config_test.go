package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Delivery.Mode != "synthesis" {
		t.Errorf("expected default delivery mode 'synthesis', got %q", cfg.Delivery.Mode)
	}

	if cfg.Delivery.InjectionCacheTTL != 30*time.Second {
		t.Errorf("expected injection cache TTL 30s, got %v", cfg.Delivery.InjectionCacheTTL)
	}

	if cfg.Defaults.RetryCount != 1 {
		t.Errorf("expected default retry count 1, got %d", cfg.Defaults.RetryCount)
	}

	if cfg.Defaults.RetryDelay != 2*time.Second {
		t.Errorf("expected default retry delay 2s, got %v", cfg.Defaults.RetryDelay)
	}

	if cfg.Timeouts.Action != 2*time.Minute {
		t.Errorf("expected action timeout 2m, got %v", cfg.Timeouts.Action)
	}

	if cfg.Timeouts.Phase != 15*time.Minute {
		t.Errorf("expected phase timeout 15m, got %v", cfg.Timeouts.Phase)
	}

	if cfg.Timeouts.Pipeline != time.Hour {
		t.Errorf("expected pipeline timeout 1h, got %v", cfg.Timeouts.Pipeline)
	}

	if cfg.TUI.RefreshRate != 100*time.Millisecond {
		t.Errorf("expected refresh rate 100ms, got %v", cfg.TUI.RefreshRate)
	}

	if cfg.Paths.PipelineDir != "pipelines" {
		t.Errorf("expected pipeline dir 'pipelines', got %q", cfg.Paths.PipelineDir)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
anthropic:
  model: claude-sonnet-4-5
aws:
  use_bedrock: true
  region: us-west-2
delivery:
  mode: injection
  injection_cache_ttl: 45s
defaults:
  retry_count: 3
  retry_delay: 500ms
timeouts:
  action: 90s
  phase: 20m
  pipeline: 2h
paths:
  pipeline_dir: /srv/pipelines
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Anthropic.Model != "claude-sonnet-4-5" {
		t.Errorf("model = %q", cfg.Anthropic.Model)
	}
	if !cfg.AWS.UseBedrock || cfg.AWS.Region != "us-west-2" {
		t.Errorf("aws = %+v", cfg.AWS)
	}
	if cfg.Delivery.Mode != "injection" || cfg.Delivery.InjectionCacheTTL != 45*time.Second {
		t.Errorf("delivery = %+v", cfg.Delivery)
	}
	if cfg.Defaults.RetryCount != 3 || cfg.Defaults.RetryDelay != 500*time.Millisecond {
		t.Errorf("defaults = %+v", cfg.Defaults)
	}
	if cfg.Timeouts.Action != 90*time.Second || cfg.Timeouts.Phase != 20*time.Minute || cfg.Timeouts.Pipeline != 2*time.Hour {
		t.Errorf("timeouts = %+v", cfg.Timeouts)
	}
	if cfg.Paths.PipelineDir != "/srv/pipelines" {
		t.Errorf("pipeline dir = %q", cfg.Paths.PipelineDir)
	}
}

func TestLoadFromPathKeepsDefaultsForOmittedKeys(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("delivery:\n  mode: compilation\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Delivery.Mode != "compilation" {
		t.Errorf("delivery mode = %q, want compilation", cfg.Delivery.Mode)
	}
	// Keys the file omits fall back to built-in defaults.
	if cfg.Timeouts.Phase != 15*time.Minute {
		t.Errorf("phase timeout = %v, want the 15m default", cfg.Timeouts.Phase)
	}
	if cfg.Defaults.RetryCount != 1 {
		t.Errorf("retry count = %d, want the default 1", cfg.Defaults.RetryCount)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadFromPath of a missing file = nil error")
	}
}

func TestLoadFromPathExpandsAPIKeyEnv(t *testing.T) {
	t.Setenv("COUNCIL_TEST_KEY", "sk-ant-from-env")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := "anthropic:\n  api_key: ${COUNCIL_TEST_KEY}\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-from-env" {
		t.Errorf("api key = %q, want the expanded env value", cfg.Anthropic.APIKey)
	}
}

func TestSaveAndReload(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.Delivery.Mode = "injection"
	cfg.Timeouts.Action = 45 * time.Second
	cfg.Paths.PipelineDir = "custom-pipelines"

	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Delivery.Mode != "injection" {
		t.Errorf("delivery mode = %q after reload", loaded.Delivery.Mode)
	}
	if loaded.Timeouts.Action != 45*time.Second {
		t.Errorf("action timeout = %v after reload", loaded.Timeouts.Action)
	}
	if loaded.Paths.PipelineDir != "custom-pipelines" {
		t.Errorf("pipeline dir = %q after reload", loaded.Paths.PipelineDir)
	}
}

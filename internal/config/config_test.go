package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Defaults.BaseBranch != "main" {
		t.Errorf("Defaults.BaseBranch = %q, want %q", cfg.Defaults.BaseBranch, "main")
	}
	if cfg.Defaults.UseWorktrees {
		t.Error("Defaults.UseWorktrees should default to false")
	}
	if cfg.Defaults.Strategy != StrategyStacked {
		t.Errorf("Defaults.Strategy = %q, want %q", cfg.Defaults.Strategy, StrategyStacked)
	}
	if cfg.Split.RulesFile != "" {
		t.Errorf("Split.RulesFile = %q, want empty", cfg.Split.RulesFile)
	}
	if cfg.PR.Draft {
		t.Error("PR.Draft should default to false")
	}
	if cfg.PR.Reviewers.ByPath == nil {
		t.Error("PR.Reviewers.ByPath should be initialized")
	}
	if cfg.Logging.Enabled {
		t.Error("Logging.Enabled should default to false")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got := ConfigDir(); got != "/custom/config/merges" {
			t.Errorf("ConfigDir() = %q, want %q", got, "/custom/config/merges")
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, ".config", "merges")
		if got := ConfigDir(); got != expected {
			t.Errorf("ConfigDir() = %q, want %q", got, expected)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got := ConfigFile(); got != "/custom/config/merges/config.yaml" {
		t.Errorf("ConfigFile() = %q, want %q", got, "/custom/config/merges/config.yaml")
	}
}

func TestLogDir(t *testing.T) {
	if got := LogDir("/repo"); got != filepath.Join("/repo", ".git", "merges") {
		t.Errorf("LogDir() = %q", got)
	}
}

func TestResolveRulesFile(t *testing.T) {
	tests := []struct {
		name     string
		rules    string
		expected string
	}{
		{"unset", "", ""},
		{"relative", "merges-rules.yaml", filepath.Join("/repo", "merges-rules.yaml")},
		{"absolute", "/etc/merges/rules.yaml", "/etc/merges/rules.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Split.RulesFile = tt.rules
			if got := cfg.ResolveRulesFile("/repo"); got != tt.expected {
				t.Errorf("ResolveRulesFile() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestGet(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}
	if cfg.Defaults.Strategy != StrategyStacked {
		t.Errorf("Get().Defaults.Strategy = %q, want %q", cfg.Defaults.Strategy, StrategyStacked)
	}
}

func TestLoad_FromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `defaults:
  base_branch: develop
  use_worktrees: true
  strategy: independent
pr:
  draft: true
  labels: [split]
  reviewers:
    default: ["@lead"]
    by_path:
      "internal/api/**": ["@backend"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Defaults.BaseBranch != "develop" || !cfg.Defaults.UseWorktrees {
		t.Errorf("defaults not loaded: %+v", cfg.Defaults)
	}
	if cfg.Defaults.Strategy != StrategyIndependent {
		t.Errorf("Strategy = %q", cfg.Defaults.Strategy)
	}
	if !cfg.PR.Draft || len(cfg.PR.Labels) != 1 {
		t.Errorf("pr not loaded: %+v", cfg.PR)
	}
	if got := cfg.PR.Reviewers.ByPath["internal/api/**"]; len(got) != 1 || got[0] != "@backend" {
		t.Errorf("by_path = %v", cfg.PR.Reviewers.ByPath)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("unset keys should keep defaults, got level %q", cfg.Logging.Level)
	}
}

func TestLoad_InvalidFallsBackInGet(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.Set("defaults.strategy", "octopus")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject an unknown strategy")
	}
	if cfg := Get(); cfg.Defaults.Strategy != StrategyStacked {
		t.Errorf("Get() should fall back to defaults, got %q", cfg.Defaults.Strategy)
	}
}

// Package config loads merges settings through viper: defaults, an optional
// config.yaml, and MERGES_* environment variables.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Strategy values accepted in configuration.
const (
	StrategyStacked     = "stacked"
	StrategyIndependent = "independent"
)

// Config holds all configuration for merges
type Config struct {
	Defaults DefaultsConfig `mapstructure:"defaults"`
	Split    SplitConfig    `mapstructure:"split"`
	PR       PRConfig       `mapstructure:"pr"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DefaultsConfig seeds the values `merges init` writes into a new state file.
type DefaultsConfig struct {
	// BaseBranch is the branch chunk PRs target when --base is not given
	BaseBranch string `mapstructure:"base_branch"`
	// UseWorktrees gives every chunk its own worktree under .git/merges-worktrees
	UseWorktrees bool `mapstructure:"use_worktrees"`
	// Strategy is "stacked" or "independent"
	Strategy string `mapstructure:"strategy"`
}

// SplitConfig controls how `merges split` builds plans.
type SplitConfig struct {
	// RulesFile is a YAML file of named path-pattern groups used by --rules.
	// Relative paths resolve against the repository root.
	RulesFile string `mapstructure:"rules_file"`
}

// PRConfig controls pull request creation during `merges push`
type PRConfig struct {
	// Draft creates PRs as drafts
	Draft bool `mapstructure:"draft"`
	// Labels are added to every PR
	Labels []string `mapstructure:"labels"`
	// Reviewers assigned to PRs
	Reviewers ReviewerConfig `mapstructure:"reviewers"`
	// BodyTemplate is a text/template for the PR body. Empty uses the built-in body.
	BodyTemplate string `mapstructure:"body_template"`
}

// ReviewerConfig assigns reviewers, optionally by changed path.
type ReviewerConfig struct {
	// Default reviewers are requested on every PR
	Default []string `mapstructure:"default"`
	// ByPath maps glob patterns to reviewers, e.g. "src/api/**": ["@backend"]
	ByPath map[string][]string `mapstructure:"by_path"`
}

// LoggingConfig controls the debug log written under .git/merges
type LoggingConfig struct {
	// Enabled turns on file logging
	Enabled bool `mapstructure:"enabled"`
	// Level is one of debug, info, warn, error
	Level string `mapstructure:"level"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			BaseBranch:   "main",
			UseWorktrees: false,
			Strategy:     StrategyStacked,
		},
		Split: SplitConfig{
			RulesFile: "",
		},
		PR: PRConfig{
			Draft:  false,
			Labels: []string{},
			Reviewers: ReviewerConfig{
				Default: []string{},
				ByPath:  map[string][]string{},
			},
			BodyTemplate: "",
		},
		Logging: LoggingConfig{
			Enabled: false,
			Level:   "info",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("defaults.base_branch", defaults.Defaults.BaseBranch)
	viper.SetDefault("defaults.use_worktrees", defaults.Defaults.UseWorktrees)
	viper.SetDefault("defaults.strategy", defaults.Defaults.Strategy)

	viper.SetDefault("split.rules_file", defaults.Split.RulesFile)

	viper.SetDefault("pr.draft", defaults.PR.Draft)
	viper.SetDefault("pr.labels", defaults.PR.Labels)
	viper.SetDefault("pr.reviewers.default", defaults.PR.Reviewers.Default)
	viper.SetDefault("pr.reviewers.by_path", defaults.PR.Reviewers.ByPath)
	viper.SetDefault("pr.body_template", defaults.PR.BodyTemplate)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when the
// loaded configuration is invalid.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "merges")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".merges"
	}
	return filepath.Join(home, ".config", "merges")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LogDir returns the directory debug logs are written to for a repository.
// It sits inside .git so it never shows up as untracked content.
func LogDir(repoRoot string) string {
	return filepath.Join(repoRoot, ".git", "merges")
}

// ResolveRulesFile returns the rules file path relative to repoRoot, or ""
// when none is configured.
func (c *Config) ResolveRulesFile(repoRoot string) string {
	if c.Split.RulesFile == "" {
		return ""
	}
	if filepath.IsAbs(c.Split.RulesFile) {
		return c.Split.RulesFile
	}
	return filepath.Join(repoRoot, c.Split.RulesFile)
}

// Package config provides CLI commands for managing merges configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appconfig "github.com/Iron-Ham/merges/internal/config"
)

// Wrapper functions for exec to allow testing
var execLookPath = exec.LookPath
var execCommand = exec.Command

// keyKind says how a value given to `config set` is parsed.
type keyKind string

const (
	kindString   keyKind = "string"
	kindBool     keyKind = "bool"
	kindList     keyKind = "list"
	kindStrategy keyKind = "strategy"
	kindLevel    keyKind = "level"
)

// settableKey is a key `config set` and `config reset` accept.
type settableKey struct {
	name     string
	kind     keyKind
	defaultF func(*appconfig.Config) any
}

var settableKeys = []settableKey{
	{"defaults.base_branch", kindString, func(c *appconfig.Config) any { return c.Defaults.BaseBranch }},
	{"defaults.use_worktrees", kindBool, func(c *appconfig.Config) any { return c.Defaults.UseWorktrees }},
	{"defaults.strategy", kindStrategy, func(c *appconfig.Config) any { return c.Defaults.Strategy }},
	{"split.rules_file", kindString, func(c *appconfig.Config) any { return c.Split.RulesFile }},
	{"pr.draft", kindBool, func(c *appconfig.Config) any { return c.PR.Draft }},
	{"pr.labels", kindList, func(c *appconfig.Config) any { return c.PR.Labels }},
	{"pr.reviewers.default", kindList, func(c *appconfig.Config) any { return c.PR.Reviewers.Default }},
	{"pr.body_template", kindString, func(c *appconfig.Config) any { return c.PR.BodyTemplate }},
	{"logging.enabled", kindBool, func(c *appconfig.Config) any { return c.Logging.Enabled }},
	{"logging.level", kindLevel, func(c *appconfig.Config) any { return c.Logging.Level }},
}

func lookupKey(name string) (settableKey, bool) {
	i := slices.IndexFunc(settableKeys, func(k settableKey) bool { return k.name == name })
	if i < 0 {
		return settableKey{}, false
	}
	return settableKeys[i], true
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify merges configuration",
	Long: `View or modify merges configuration.

Without arguments, shows the effective configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  merges config set defaults.base_branch develop
  merges config set pr.labels "chunked,needs-review"

Valid keys:
  defaults.base_branch    - Base branch used by 'merges init' when --base is not given
  defaults.use_worktrees  - Give each chunk its own worktree (true/false)
  defaults.strategy       - stacked or independent
  split.rules_file        - Rules file used by 'merges split --rules'
  pr.draft                - Create PRs as drafts (true/false)
  pr.labels               - Comma-separated labels for new PRs
  pr.reviewers.default    - Comma-separated reviewers for new PRs
  pr.body_template        - Go text/template for PR bodies
  logging.enabled         - Write a debug log under .git/merges (true/false)
  logging.level           - debug, info, warn or error

pr.reviewers.by_path is a map; edit it with 'merges config edit'.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/merges/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in your editor",
	Long: `Open the config file in your preferred editor.

Uses $EDITOR environment variable, or falls back to common editors (vim, nano, vi).
If no config file exists, creates one with default values first.`,
	RunE: runConfigEdit,
}

var configResetCmd = &cobra.Command{
	Use:   "reset [key]",
	Short: "Reset configuration to defaults",
	Long: `Reset configuration values to their defaults.

Without arguments, resets all configuration to defaults.
With a key argument, resets only that specific key.

Examples:
  merges config reset           # Reset all to defaults
  merges config reset pr.draft  # Reset only pr.draft to default`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigReset,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configResetCmd)
}

// Register adds all config-related commands to the given parent command.
// This is the main entry point for integrating the config subpackage with
// the root command.
func Register(parent *cobra.Command) {
	parent.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := appconfig.Load()
	if err != nil {
		fmt.Fprintf(out, "Configuration is invalid, defaults are in effect:\n%v\n\n", err)
		cfg = appconfig.Default()
	}

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "defaults:")
	fmt.Fprintf(out, "  base_branch: %s\n", cfg.Defaults.BaseBranch)
	fmt.Fprintf(out, "  use_worktrees: %v\n", cfg.Defaults.UseWorktrees)
	fmt.Fprintf(out, "  strategy: %s\n", cfg.Defaults.Strategy)

	fmt.Fprintln(out, "split:")
	fmt.Fprintf(out, "  rules_file: %s\n", cfg.Split.RulesFile)

	fmt.Fprintln(out, "pr:")
	fmt.Fprintf(out, "  draft: %v\n", cfg.PR.Draft)
	fmt.Fprintf(out, "  labels: %s\n", strings.Join(cfg.PR.Labels, ", "))
	fmt.Fprintf(out, "  reviewers.default: %s\n", strings.Join(cfg.PR.Reviewers.Default, ", "))
	patterns := make([]string, 0, len(cfg.PR.Reviewers.ByPath))
	for p := range cfg.PR.Reviewers.ByPath {
		patterns = append(patterns, p)
	}
	slices.Sort(patterns)
	for _, p := range patterns {
		fmt.Fprintf(out, "  reviewers.by_path[%s]: %s\n", p, strings.Join(cfg.PR.Reviewers.ByPath[p], ", "))
	}
	if cfg.PR.BodyTemplate == "" {
		fmt.Fprintln(out, "  body_template: (built-in)")
	} else {
		fmt.Fprintln(out, "  body_template: (custom)")
	}

	fmt.Fprintln(out, "logging:")
	fmt.Fprintf(out, "  enabled: %v\n", cfg.Logging.Enabled)
	fmt.Fprintf(out, "  level: %s\n", cfg.Logging.Level)

	return nil
}

// parseValue converts a `config set` argument to the value stored in viper.
func parseValue(key settableKey, value string) (any, error) {
	switch key.kind {
	case kindBool:
		if value != "true" && value != "false" {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key.name)
		}
		return value == "true", nil
	case kindStrategy:
		if !slices.Contains(appconfig.ValidStrategies(), value) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key.name, value, strings.Join(appconfig.ValidStrategies(), ", "))
		}
		return value, nil
	case kindLevel:
		if !slices.Contains(appconfig.ValidLogLevels(), value) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key.name, value, strings.Join(appconfig.ValidLogLevels(), ", "))
		}
		return value, nil
	case kindList:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items, nil
	default:
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, ok := lookupKey(args[0])
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'merges config set --help' to see valid keys", args[0])
	}
	typedValue, err := parseValue(key, args[1])
	if err != nil {
		return err
	}

	viper.Set(key.name, typedValue)
	configFile, err := writeConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key.name, typedValue)
	fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}

// writeConfig writes viper's current settings to the user config file.
func writeConfig() (string, error) {
	if err := os.MkdirAll(appconfig.ConfigDir(), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	configFile := appconfig.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return configFile, nil
}

const defaultConfigContent = `# merges configuration

# Values 'merges init' uses when flags are not given
defaults:
  # Branch chunk PRs target
  base_branch: main
  # Give every chunk its own worktree under .git/merges-worktrees
  use_worktrees: false
  # stacked: each PR targets the previous chunk; independent: all target base
  strategy: stacked

split:
  # YAML file of named path-pattern groups used by 'merges split --rules'.
  # Relative paths resolve against the repository root.
  rules_file: ""

# Pull request settings for 'merges push'
pr:
  draft: false
  labels: []
  reviewers:
    default: []
    # Glob patterns to reviewers, e.g.
    # "src/api/**": ["@backend-team"]
    by_path: {}
  # Go text/template for the PR body. Empty uses the built-in body.
  # Fields: .Name .Ordinal .Total .Branch .Base .Source .Strategy .Files .Stack
  body_template: ""

# Debug log written to .git/merges/debug.log
logging:
  enabled: false
  # debug, info, warn or error
  level: info
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := appconfig.ConfigDir()
	configFile := appconfig.ConfigFile()

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'merges config set' to modify values", configFile)
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Edit this file to customize merges.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	printConfigPath(cmd.OutOrStdout())
	return nil
}

func printConfigPath(out io.Writer) {
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", appconfig.ConfigFile())
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", appconfig.ConfigFile())
	fmt.Fprintf(out, "  2. $HOME/.config/merges/config.yaml\n")
	fmt.Fprintf(out, "  3. ./config.yaml (current directory)\n")
	fmt.Fprintln(out, "\nEnvironment variables: MERGES_* (e.g., MERGES_DEFAULTS_BASE_BRANCH)")
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configFile := appconfig.ConfigFile()

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		fmt.Fprintln(cmd.OutOrStdout(), "Config file doesn't exist, creating with defaults...")
		if err := runConfigInit(cmd, args); err != nil {
			return err
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		for _, e := range []string{"vim", "nano", "vi"} {
			if _, err := execLookPath(e); err == nil {
				editor = e
				break
			}
		}
	}
	if editor == "" {
		return fmt.Errorf("no editor found. Set $EDITOR environment variable")
	}

	editorCmd := execCommand(editor, configFile)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor exited with error: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Config file saved: %s\n", configFile)
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	defaults := appconfig.Default()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		for _, k := range settableKeys {
			viper.Set(k.name, k.defaultF(defaults))
		}
		viper.Set("pr.reviewers.by_path", defaults.PR.Reviewers.ByPath)
		fmt.Fprintln(out, "Reset all configuration to defaults.")
	} else {
		key, ok := lookupKey(args[0])
		if !ok {
			return fmt.Errorf("unknown configuration key: %s\nRun 'merges config set --help' to see valid keys", args[0])
		}
		value := key.defaultF(defaults)
		viper.Set(key.name, value)
		fmt.Fprintf(out, "Reset %s to default: %v\n", key.name, value)
	}

	configFile, err := writeConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/merges/internal/cmd/config"
	appconfig "github.com/Iron-Ham/merges/internal/config"
	"github.com/Iron-Ham/merges/internal/errors"
	"github.com/Iron-Ham/merges/internal/tui/styles"
)

var rootCmd = &cobra.Command{
	Use:   "merges",
	Short: "Break down large PRs into smaller reviewable chunks",
	Long: `merges splits a large feature branch into small, independently
mergeable chunk branches. It keeps chunk branches rebased on the base
branch, pushes them and opens one pull request per chunk.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if note := errorNote(err); note != "" {
		fmt.Fprintln(rootCmd.ErrOrStderr(), styles.Muted.Render(note))
	}
	return err
}

// errorNote returns follow-up advice for err, or "" when there is none.
func errorNote(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.IsValidation(err):
		return "Nothing was changed."
	case errors.Is(err, errors.ErrRebaseConflict):
		return "Resolve the conflicts, run `git rebase --continue`, then run `merges sync` again."
	case errors.IsRetryable(err):
		return "This may succeed if you run the command again."
	}
	return ""
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/merges/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	config.Register(rootCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	appconfig.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(appconfig.ConfigDir())
		viper.AddConfigPath("$HOME/.config/merges")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("MERGES")
	// e.g. MERGES_DEFAULTS_BASE_BRANCH for defaults.base_branch
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

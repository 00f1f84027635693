package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/merges/internal/state"
	"github.com/Iron-Ham/merges/internal/tui/styles"
	"github.com/Iron-Ham/merges/internal/worktree"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize merges for the current repository",
	Long: `Initialize merges in the current git repository.
The current branch becomes the source branch to split. This writes
.merges.json at the repository root, registers it in .git/info/exclude
and enables git rerere.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var (
	initBase         string
	initWorktrees    bool
	initCommitPrefix string
	initStrategy     string
	initForce        bool
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVarP(&initBase, "base", "b", "", "Base branch PRs will target (default from config, usually main)")
	initCmd.Flags().BoolVar(&initWorktrees, "worktrees", false, "Give each chunk its own worktree so the working tree never changes")
	initCmd.Flags().StringVar(&initCommitPrefix, "commit-prefix", "", "Commit and PR title prefix to use instead of the detected ticket")
	initCmd.Flags().StringVar(&initStrategy, "strategy", "", "PR strategy: stacked or independent (default from config)")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing .merges.json without asking")
}

func runInit(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer e.close()
	logger := e.logger.WithOperation("init")

	if state.Exists(e.root) && !initForce {
		if !isInteractive() {
			return fmt.Errorf("%s already exists; use --force to overwrite it", state.FileName)
		}
		overwrite, err := confirmPrompt(state.FileName+" already exists", "Overwrite it? Existing chunk branches are left alone.")
		if err != nil {
			return err
		}
		if !overwrite {
			return fmt.Errorf("aborted")
		}
	}

	source, err := e.repo.CurrentBranch(e.root)
	if err != nil {
		return err
	}

	base := initBase
	if base == "" {
		base = e.cfg.Defaults.BaseBranch
		if isInteractive() {
			if base, err = inputPrompt("Base branch (target for PRs)", base); err != nil {
				return err
			}
		}
	}
	if base == source {
		return fmt.Errorf("the current branch '%s' is the base branch; check out the feature branch to split first", source)
	}

	strategyValue := initStrategy
	if strategyValue == "" {
		strategyValue = e.cfg.Defaults.Strategy
	}
	strategy, err := state.ParseStrategy(strategyValue)
	if err != nil {
		return err
	}

	useWorktrees := e.cfg.Defaults.UseWorktrees
	if cmd.Flags().Changed("worktrees") {
		useWorktrees = initWorktrees
	}

	var owner, name string
	if url, err := e.repo.RemoteURL(e.root); err != nil {
		e.warn("no 'origin' remote found; `merges push` will not be able to open PRs")
		logger.Warn("remote lookup failed", "error", err)
	} else if owner, name, err = worktree.ParseOwnerRepo(url); err != nil {
		e.warn("could not parse owner/repo from '%s'; PR commands will rely on gh defaults", url)
		logger.Warn("remote not parseable", "url", url, "error", err)
	}

	st := &state.MergesState{
		BaseBranch:   base,
		SourceBranch: source,
		RepoOwner:    owner,
		RepoName:     name,
		Strategy:     strategy,
		UseWorktrees: useWorktrees,
		CommitPrefix: initCommitPrefix,
		Chunks:       []state.Chunk{},
	}
	if err := e.saveState(st); err != nil {
		return err
	}
	if err := worktree.EnsureExcluded(e.root, state.FileName); err != nil {
		return fmt.Errorf("failed to register %s in .git/info/exclude: %w", state.FileName, err)
	}
	if err := e.repo.EnableRerere(e.root); err != nil {
		return err
	}
	logger.Info("initialized", "source", source, "base", base, "strategy", string(strategy), "worktrees", useWorktrees)

	identity := "this repository"
	if owner != "" {
		identity = styles.Branch.Render(owner + "/" + name)
	}
	e.ok("Initialized merges for %s (source: %s, base: %s)", identity,
		styles.Branch.Render(source), styles.Branch.Render(base))
	e.printf("  %s rerere enabled, conflict resolutions will be replayed automatically.\n", styles.Muted.Render("·"))
	if useWorktrees {
		e.printf("  %s worktree mode: chunks live under %s\n", styles.Muted.Render("·"), worktree.WorktreesDir(e.root))
	}
	e.printf("  Next: run %s to assign files to chunks.\n", styles.Chunk.Render("merges split"))
	return nil
}

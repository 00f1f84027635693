package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/merges/internal/cleanup"
	"github.com/Iron-Ham/merges/internal/tui/styles"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete chunk branches and worktrees",
	Long: `Clean deletes local chunk branches, and their worktrees in worktree
mode, then removes those chunks from .merges.json.

Use --merged to clean only chunks whose pull request is merged or closed.
Chunks that fail to clean are reported and kept.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

var (
	cleanMerged bool
	cleanYes    bool
)

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVar(&cleanMerged, "merged", false, "Only clean chunks whose PRs are merged or closed")
	cleanCmd.Flags().BoolVarP(&cleanYes, "yes", "y", false, "Skip confirmation prompt")
}

func runClean(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer e.close()

	st, err := e.loadState()
	if err != nil {
		return err
	}
	if len(st.Chunks) == 0 {
		e.printf("No chunks defined.\n")
		return nil
	}

	filter := cleanup.All
	if cleanMerged {
		svc := e.prService(st)
		filter = cleanup.MergedOnly(func(number int) (string, error) {
			info, err := svc.View(number)
			if err != nil {
				e.logger.Warn("PR lookup failed", "pr", number, "error", err)
				return "", err
			}
			return info.State, nil
		})
	}

	job, err := cleanup.NewJob(e.repo, e.root, st, filter)
	if err != nil {
		return err
	}
	if job.Empty() {
		if cleanMerged {
			e.printf("No merged chunks found to clean.\n")
		} else {
			e.printf("No chunks to clean.\n")
		}
		return nil
	}

	e.step("%d chunk branch(es) will be deleted:", len(job.Targets))
	for _, t := range job.Targets {
		e.printf("  • %s\n", styles.Branch.Render(t.Branch))
	}

	if !cleanYes {
		if !isInteractive() {
			return fmt.Errorf("refusing to delete branches without confirmation; pass --yes")
		}
		ok, err := confirmPrompt("Delete these branches?", "Chunks are also removed from .merges.json.")
		if err != nil {
			return err
		}
		if !ok {
			e.printf("Aborted.\n")
			return nil
		}
	}

	next, err := cleanup.NewExecutor(e.repo, e.logger).Execute(job, st)
	if err != nil {
		return err
	}
	if err := e.saveState(next); err != nil {
		return err
	}

	res := job.Results
	for _, name := range res.Cleaned {
		e.ok("Cleaned chunk %s", styles.Chunk.Render(name))
	}
	for _, msg := range res.Errors {
		e.fail("%s", msg)
	}
	if job.Status != cleanup.JobStatusCompleted {
		return fmt.Errorf("%d chunk(s) could not be cleaned and were kept", len(res.Errors))
	}
	return nil
}

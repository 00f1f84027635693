package cmd

import (
	"sync"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/merges/internal/syncer"
	"github.com/Iron-Ham/merges/internal/tui/styles"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Rebase all chunk branches onto the latest base branch",
	Long: `Sync fetches the base branch and rebases every chunk branch onto it.
Stacked chunks are rebased with --update-refs so later chunks follow
earlier ones. In worktree mode chunks are rebased in parallel.

A rebase that stops on conflicts is left in progress so it can be resolved
with ` + "`git rebase --continue`" + `. In the shared tree sync stops at that chunk
and reports the remaining chunks as not attempted. In worktree mode only the
conflicted worktree is left mid-rebase; the others are still synced. Run sync
again once the rebase is finished.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var syncParallel int

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().IntVar(&syncParallel, "parallel", 0, "Maximum concurrent rebases in worktree mode (0 = one per chunk)")
}

func runSync(cmd *cobra.Command, args []string) error {
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
		e.printf("No chunks defined yet. Run %s first.\n", styles.Chunk.Render("merges split"))
		return nil
	}

	e.step("Syncing %d chunk branch(es) onto %s", len(st.Chunks), styles.Branch.Render(st.BaseBranch))

	var mu sync.Mutex
	engine := syncer.New(e.repo, e.root,
		syncer.WithLogger(e.logger),
		syncer.WithMaxParallel(syncParallel),
		syncer.WithProgress(func(o syncer.Outcome) {
			mu.Lock()
			defer mu.Unlock()
			if o.OK() {
				e.printf("  %s %s\n", styles.OK, styles.Branch.Render(o.Branch))
			} else {
				e.printf("  %s %s: %v\n", styles.Fail, styles.Branch.Render(o.Branch), o.Err)
			}
		}),
	)

	if _, err := engine.SyncAll(st); err != nil {
		return err
	}
	e.ok("All chunks are up to date with %s.", styles.Branch.Render(st.BaseBranch))
	return nil
}

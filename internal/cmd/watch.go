package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/merges/internal/tui/styles"
	"github.com/Iron-Ham/merges/internal/watch"
	"github.com/Iron-Ham/merges/internal/worktree"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Warn about edits that do not belong to a chunk's worktree",
	Long: `Watch monitors every chunk worktree (worktree mode only) and reports
writes to files owned by a different chunk and edits to files that no
chunk owns. Press Ctrl-C to stop.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer e.close()

	st, err := e.loadState()
	if err != nil {
		return err
	}
	if !st.UseWorktrees {
		return fmt.Errorf("watch needs worktree mode; re-run `merges init --worktrees` before splitting")
	}
	if len(st.Chunks) == 0 {
		e.printf("No chunks defined yet. Run %s first.\n", styles.Chunk.Render("merges split"))
		return nil
	}

	mon, err := watch.New(e.logger)
	if err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	mon.SetOwnership(st)
	mon.OnViolation(func(v watch.Violation) {
		e.printf("%s %s %s\n", styles.Warn, styles.Muted.Render(v.At.Format("15:04:05")), v)
	})

	for _, c := range st.Chunks {
		if err := mon.Watch(c.Name, worktree.WorktreePath(e.root, c.Branch)); err != nil {
			mon.Stop()
			return fmt.Errorf("chunk '%s': %w (run `merges doctor`)", c.Name, err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	mon.Start()
	e.step("Watching %d chunk worktree(s). Press Ctrl-C to stop.", len(st.Chunks))

	select {
	case <-sigCh:
	case <-cmd.Context().Done():
	}
	mon.Stop()

	if n := len(mon.Violations()); n > 0 {
		e.warn("%d file(s) edited outside their chunk", n)
	} else {
		e.ok("No violations seen.")
	}
	return nil
}

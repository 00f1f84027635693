package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/merges/internal/doctor"
	"github.com/Iron-Ham/merges/internal/tui/styles"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that .merges.json matches the repository",
	Long: `Doctor checks that every chunk branch exists, that chunk worktrees are
present in worktree mode, that .merges.json is listed in .git/info/exclude
and that no file belongs to two chunks.

--repair fixes what can be fixed safely: it registers the state file in
.git/info/exclude. Missing branches and worktrees are reported only.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

var doctorRepair bool

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorRepair, "repair", false, "Attempt to repair detected issues")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer e.close()

	st, err := e.loadState()
	if err != nil {
		return err
	}

	report, err := doctor.New(e.repo, e.root, e.logger).Diagnose(st, doctorRepair)
	if err != nil {
		return err
	}

	for _, r := range report.Repaired {
		e.ok("Repaired: %s", r)
	}
	if report.AllOK() {
		e.ok("All checks passed, state is healthy.")
		return nil
	}
	for _, issue := range report.Issues {
		e.fail("%s", issue)
	}
	if !doctorRepair {
		e.printf("\nRun %s to attempt automatic fixes.\n", styles.Chunk.Render("merges doctor --repair"))
	}
	return fmt.Errorf("%d issue(s) found", len(report.Issues))
}

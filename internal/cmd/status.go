package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/merges/internal/pr"
	"github.com/Iron-Ham/merges/internal/state"
	"github.com/Iron-Ham/merges/internal/tui/styles"
	"github.com/Iron-Ham/merges/internal/worktree"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show chunk, sync and PR status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var statusOffline bool

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusOffline, "offline", false, "Skip PR lookups through gh")
}

// Placeholder for values that do not apply.
const noValue = "—"

var statusHeaders = []string{"#", "Chunk", "Branch", "Sync", "PR", "CI", "Review", "Files"}

// Columns whose cells are colored by their label.
const (
	colSync   = 3
	colCI     = 5
	colReview = 6
)

func runStatus(cmd *cobra.Command, args []string) error {
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

	identity := "this repository"
	if st.RepoOwner != "" {
		identity = st.RepoOwner + "/" + st.RepoName
	}
	e.step("Status for %s (source: %s, base: %s, strategy: %s)", styles.Branch.Render(identity),
		styles.Branch.Render(st.SourceBranch), styles.Branch.Render(st.BaseBranch), st.Strategy)

	var svc pr.Service
	if !statusOffline {
		svc = e.prService(st)
	}
	rows := statusRows(e.repo, svc, e.root, st)
	e.printf("%s\n", renderStatusTable(rows))

	if url := st.Chunks[0].PRURL; url != "" {
		e.printf("\n  First PR: %s\n", styles.Muted.Render(url))
	}
	return nil
}

// statusRows builds one table row per chunk. svc may be nil to skip PR
// lookups; lookup failures show as "error".
func statusRows(repo worktree.BranchManager, svc pr.Service, root string, st *state.MergesState) [][]string {
	rows := make([][]string, 0, len(st.Chunks))
	for i, c := range st.Chunks {
		sync := "error"
		if behind, err := repo.CommitsBehind(root, c.Branch, st.BaseBranch); err == nil {
			sync = worktree.SyncLabel(behind)
		}

		prCell, ci, review := noValue, noValue, noValue
		if c.PRNumber != nil {
			prCell = fmt.Sprintf("#%d", *c.PRNumber)
			if svc != nil {
				if info, err := svc.View(*c.PRNumber); err != nil {
					ci, review = "error", "error"
				} else {
					ci, review = info.CI, info.Review
					if info.State == "MERGED" || info.State == "CLOSED" {
						prCell += " " + info.State
					}
				}
			}
		}

		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			c.Name,
			c.Branch,
			sync,
			prCell,
			ci,
			review,
			strconv.Itoa(len(c.Files)),
		})
	}
	return rows
}

func renderStatusTable(rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.TableBorder).
		Headers(statusHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.TableHeader
			}
			s := styles.TableCell
			switch col {
			case 2:
				return s.Foreground(styles.BlueColor)
			case colSync, colCI, colReview:
				if row >= 0 && row < len(rows) {
					return s.Foreground(styles.StatusColor(rows[row][col]))
				}
			}
			return s
		})
	return t.Render()
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/merges/internal/config"
	"github.com/Iron-Ham/merges/internal/pr"
	"github.com/Iron-Ham/merges/internal/state"
	"github.com/Iron-Ham/merges/internal/tui/styles"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push chunk branches and create or update their PRs",
	Long: `Push force-pushes every chunk branch (with lease) and opens a pull request
through the gh CLI for each chunk that has none yet.

With the stacked strategy each PR targets the previous chunk's branch and
the first targets the base branch. With the independent strategy every PR
targets the base branch. Existing PRs are retargeted to match.

--stacked and --independent switch the strategy and save it.`,
	Args: cobra.NoArgs,
	RunE: runPush,
}

var (
	pushStacked     bool
	pushIndependent bool
	pushDraft       bool
	pushLabels      []string
	pushReviewers   []string
)

func init() {
	rootCmd.AddCommand(pushCmd)
	pushCmd.Flags().BoolVar(&pushStacked, "stacked", false, "Each PR targets the previous chunk's branch")
	pushCmd.Flags().BoolVar(&pushIndependent, "independent", false, "Every PR targets the base branch")
	pushCmd.Flags().BoolVarP(&pushDraft, "draft", "d", false, "Create new PRs as drafts (default from pr.draft)")
	pushCmd.Flags().StringSliceVarP(&pushLabels, "label", "l", nil, "Add labels to new PRs (can be specified multiple times)")
	pushCmd.Flags().StringSliceVarP(&pushReviewers, "reviewer", "r", nil, "Request reviewers on new PRs (can be specified multiple times)")
	pushCmd.MarkFlagsMutuallyExclusive("stacked", "independent")
}

func runPush(cmd *cobra.Command, args []string) error {
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

	switch {
	case pushStacked:
		st.Strategy = state.Stacked
	case pushIndependent:
		st.Strategy = state.Independent
	}

	opts := publishOptions(e.cfg)
	if cmd.Flags().Changed("draft") {
		opts.Draft = pushDraft
	}
	opts.Labels = append(opts.Labels, pushLabels...)
	opts.DefaultReviewers = append(opts.DefaultReviewers, pushReviewers...)

	e.step("Pushing %d chunk(s) as %s PRs", len(st.Chunks), st.Strategy)
	publisher := pr.NewPublisher(e.repo, e.prService(st), e.root, opts, e.logger)
	next, results, pubErr := publisher.Publish(st)

	for _, r := range results {
		verb := "Created"
		if r.Action == pr.ActionUpdated {
			verb = "Updated"
		}
		e.ok("%s PR #%d for %s → %s  %s", verb, r.Number, styles.Chunk.Render(r.Chunk),
			styles.Branch.Render(r.Base), styles.Muted.Render(r.URL))
	}

	// Created PRs are recorded even when a later chunk failed.
	if next != nil {
		if err := e.saveState(next); err != nil {
			return err
		}
	}
	return pubErr
}

// publishOptions maps the pr.* configuration onto publisher options.
func publishOptions(cfg *config.Config) pr.Options {
	return pr.Options{
		Draft:            cfg.PR.Draft,
		Labels:           append([]string(nil), cfg.PR.Labels...),
		DefaultReviewers: append([]string(nil), cfg.PR.Reviewers.Default...),
		ReviewersByPath:  cfg.PR.Reviewers.ByPath,
		BodyTemplate:     cfg.PR.BodyTemplate,
	}
}

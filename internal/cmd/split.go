package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/merges/internal/config"
	"github.com/Iron-Ham/merges/internal/ownership"
	"github.com/Iron-Ham/merges/internal/planner"
	"github.com/Iron-Ham/merges/internal/split"
	"github.com/Iron-Ham/merges/internal/state"
	"github.com/Iron-Ham/merges/internal/tui/picker"
	"github.com/Iron-Ham/merges/internal/tui/styles"
)

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Assign changed files to named chunks and create their branches",
	Long: `Split assigns the files changed between the base branch and the source
branch to named chunks and creates one branch per chunk.

Plans can be given inline with --plan, read from a YAML or JSON file with
--plan-file, grouped by directory with --auto, or grouped by named path
patterns with --rules. Without any of these an interactive picker is shown.
Plan file lists may use glob patterns such as "src/api/**".

Examples:
  merges split --plan '[{"name":"models","files":["src/models/user.rs"]}]'
  merges split --plan-file chunks.yaml
  merges split --auto
  merges split --rules=.merges-rules.yaml`,
	Args: cobra.NoArgs,
	RunE: runSplit,
}

// rulesFromConfig is the --rules value used when the flag has no argument.
const rulesFromConfig = "config"

var (
	splitPlan     string
	splitPlanFile string
	splitAuto     bool
	splitRules    string
	splitDryRun   bool
)

func init() {
	rootCmd.AddCommand(splitCmd)
	splitCmd.Flags().StringVar(&splitPlan, "plan", "", "JSON chunk plan: '[{\"name\":\"models\",\"files\":[\"src/models/user.rs\"]}]'")
	splitCmd.Flags().StringVar(&splitPlanFile, "plan-file", "", "Read the chunk plan from a .yaml, .yml or .json file")
	splitCmd.Flags().BoolVar(&splitAuto, "auto", false, "Group files by directory structure automatically")
	splitCmd.Flags().StringVar(&splitRules, "rules", "", "Group files by a rules file (default: split.rules_file from config)")
	splitCmd.Flags().Lookup("rules").NoOptDefVal = rulesFromConfig
	splitCmd.Flags().BoolVar(&splitDryRun, "dry-run", false, "Print the plan without creating branches")
	splitCmd.MarkFlagsMutuallyExclusive("plan", "plan-file", "auto", "rules")
}

// planSource holds the split front-end flags.
type planSource struct {
	plan     string
	planFile string
	auto     bool
	rules    string
}

func runSplit(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer e.close()

	st, err := e.loadState()
	if err != nil {
		return err
	}

	changed, err := e.repo.ChangedFiles(e.root, st.BaseBranch)
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		return fmt.Errorf("no changed files found between '%s' and '%s'", st.BaseBranch, st.SourceBranch)
	}
	e.step("Found %d changed file(s) on %s vs %s", len(changed),
		styles.Branch.Render(st.SourceBranch), styles.Branch.Render(st.BaseBranch))

	src := planSource{plan: splitPlan, planFile: splitPlanFile, auto: splitAuto, rules: splitRules}
	plan, err := buildPlan(src, e.cfg, e.root, changed, unassignedFiles(st, changed))
	if err != nil {
		return err
	}

	printPlan(e, plan)
	if splitDryRun {
		e.printf("\nDry run, no branches created.\n")
		return nil
	}

	m := split.New(e.repo, e.root,
		split.WithLogger(e.logger),
		split.WithProgress(func(done, total int, c state.Chunk) {
			e.printf("  [%d/%d] %s %s\n", done, total, styles.Chunk.Render(c.Name), styles.Branch.Render(c.Branch))
		}),
	)
	next, err := m.ApplyPlan(st, plan)
	if err != nil {
		return err
	}
	if err := e.saveState(next); err != nil {
		return err
	}

	e.ok("%d chunk(s) created. Run %s to push.", len(plan), styles.Chunk.Render("merges push"))
	if left := unassignedFiles(next, changed); len(left) > 0 {
		e.warn("%d file(s) are not in any chunk yet", len(left))
	}
	return nil
}

// buildPlan turns the chosen front-end into a plan over the changed files.
// Generated plans only cover files no chunk owns yet.
func buildPlan(src planSource, cfg *config.Config, root string, changed, unassigned []string) (planner.Plan, error) {
	var (
		plan planner.Plan
		err  error
	)
	switch {
	case src.plan != "":
		plan, err = planner.ParsePlan(src.plan)
	case src.planFile != "":
		plan, err = planner.LoadPlanFile(src.planFile)
	case src.auto:
		if len(unassigned) == 0 {
			return nil, fmt.Errorf("every changed file is already assigned to a chunk")
		}
		plan = planner.AutoGroup(unassigned)
	case src.rules != "":
		path := src.rules
		if path == rulesFromConfig {
			if path = cfg.ResolveRulesFile(root); path == "" {
				return nil, fmt.Errorf("--rules needs a file: pass --rules=<file> or set split.rules_file")
			}
		}
		var rules *planner.Rules
		if rules, err = planner.LoadRules(path); err != nil {
			return nil, err
		}
		if len(unassigned) == 0 {
			return nil, fmt.Errorf("every changed file is already assigned to a chunk")
		}
		plan = planner.GroupByRules(unassigned, rules)
	default:
		if !isInteractive() {
			return nil, fmt.Errorf("no plan given; pass --plan, --plan-file, --auto or --rules when not running in a terminal")
		}
		if len(unassigned) == 0 {
			return nil, fmt.Errorf("every changed file is already assigned to a chunk")
		}
		plan, err = picker.Run(unassigned)
	}
	if err != nil {
		return nil, err
	}
	return planner.ExpandPatterns(plan, changed)
}

func unassignedFiles(st *state.MergesState, changed []string) []string {
	idx := ownership.FromState(st)
	var out []string
	for _, f := range changed {
		if idx.IsAvailable(f) {
			out = append(out, f)
		}
	}
	return out
}

func printPlan(e *env, plan planner.Plan) {
	e.step("Plan with %d chunk(s):", len(plan))
	for i, entry := range plan {
		e.printf("  %d. %s (%d files)\n", i+1, styles.Chunk.Render(entry.Name), len(entry.Files))
	}
}

//go:build integration

package cmd

import (
	"bytes"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Iron-Ham/merges/internal/state"
	"github.com/Iron-Ham/merges/internal/testutil"
	"github.com/Iron-Ham/merges/internal/worktree"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	resetFlags(root)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

// resetFlags returns every flag to its default so package-level flag
// variables do not leak between executions.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

var featureFiles = map[string]string{
	"src/models/user.rs": "pub struct User;\n",
	"src/models/post.rs": "pub struct Post;\n",
	"src/api/routes.rs":  "pub fn routes() {}\n",
	"docs/guide.md":      "# Guide\n",
}

// setupTestEnvironment creates a feature repo, isolates config and changes
// into the repository.
func setupTestEnvironment(t *testing.T) string {
	t.Helper()
	testutil.SkipIfNoGit(t)

	repoDir := testutil.SetupFeatureRepo(t, "feat", featureFiles)
	isolate(t, repoDir)
	return repoDir
}

func isolate(t *testing.T, repoDir string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	origInteractive := isInteractive
	isInteractive = func() bool { return false }

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(repoDir); err != nil {
		t.Fatalf("failed to change to test directory: %v", err)
	}
	t.Cleanup(func() {
		isInteractive = origInteractive
		_ = os.Chdir(originalDir)
	})
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := executeCommand(rootCmd, args...)
	if err != nil {
		t.Fatalf("merges %s failed: %v\nOutput: %s", strings.Join(args, " "), err, out)
	}
	return out
}

func loadState(t *testing.T, root string) *state.MergesState {
	t.Helper()
	st, err := state.Load(root)
	if err != nil {
		t.Fatalf("state.Load() error = %v", err)
	}
	return st
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "merges" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "merges")
	}

	expectedCmds := []string{"init", "split", "add", "move", "sync", "push", "status", "clean", "doctor", "watch", "logs", "config"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestInitCommand(t *testing.T) {
	repo := setupTestEnvironment(t)

	output := mustRun(t, "init", "--base", "main", "--commit-prefix", "OPS-1")
	if !strings.Contains(output, "Initialized merges") {
		t.Errorf("unexpected output: %s", output)
	}

	st := loadState(t, repo)
	if st.SourceBranch != "feat" || st.BaseBranch != "main" {
		t.Errorf("state = %+v", st)
	}
	if st.Strategy != state.Stacked {
		t.Errorf("Strategy = %q, want stacked", st.Strategy)
	}
	if st.CommitPrefix != "OPS-1" {
		t.Errorf("CommitPrefix = %q", st.CommitPrefix)
	}

	excluded, err := worktree.IsExcluded(repo, state.FileName)
	if err != nil || !excluded {
		t.Errorf("IsExcluded() = %v, %v; want true", excluded, err)
	}
	if got := testutil.RunGit(t, repo, "config", "rerere.enabled"); got != "true" {
		t.Errorf("rerere.enabled = %q", got)
	}

	// A second init needs --force when not interactive.
	if _, err := executeCommand(rootCmd, "init", "--base", "main"); err == nil {
		t.Error("init should refuse to overwrite without --force")
	}
	mustRun(t, "init", "--base", "main", "--force", "--strategy", "independent")
	if got := loadState(t, repo).Strategy; got != state.Independent {
		t.Errorf("Strategy = %q, want independent", got)
	}
}

func TestInitCommand_NotGitRepo(t *testing.T) {
	testutil.SkipIfNoGit(t)
	isolate(t, t.TempDir())

	if _, err := executeCommand(rootCmd, "init"); err == nil {
		t.Error("init command should fail in non-git directory")
	}
}

func TestSplitAddMoveFlow(t *testing.T) {
	repo := setupTestEnvironment(t)
	mustRun(t, "init", "--base", "main")

	mustRun(t, "split", "--plan", `[{"name":"models","files":["src/models/**"]},{"name":"api","files":["src/api/routes.rs"]}]`)

	st := loadState(t, repo)
	if len(st.Chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(st.Chunks))
	}
	models, api := st.Chunks[0], st.Chunks[1]
	if models.Branch != "feat-chunk-1-models" || api.Branch != "feat-chunk-2-api" {
		t.Errorf("branches = %s, %s", models.Branch, api.Branch)
	}
	if got := testutil.DiffNames(t, repo, "main", models.Branch); !slices.Equal(got, []string{"src/models/post.rs", "src/models/user.rs"}) {
		t.Errorf("models diff = %v", got)
	}
	if got := testutil.GetCurrentBranch(t, repo); got != "feat" {
		t.Errorf("current branch = %s, want feat", got)
	}

	mustRun(t, "add", "api", "docs/guide.md")
	if got := testutil.DiffNames(t, repo, "main", api.Branch); !slices.Equal(got, []string{"docs/guide.md", "src/api/routes.rs"}) {
		t.Errorf("api diff after add = %v", got)
	}

	mustRun(t, "move", "docs/guide.md", "--from", "api", "--to", "models")
	if got := testutil.DiffNames(t, repo, "main", api.Branch); !slices.Equal(got, []string{"src/api/routes.rs"}) {
		t.Errorf("api diff after move = %v", got)
	}
	if got := testutil.DiffNames(t, repo, "main", models.Branch); !slices.Contains(got, "docs/guide.md") {
		t.Errorf("models diff after move = %v", got)
	}

	st = loadState(t, repo)
	if !st.Chunks[0].HasFile("docs/guide.md") || st.Chunks[1].HasFile("docs/guide.md") {
		t.Errorf("state after move = %+v", st.Chunks)
	}

	out := mustRun(t, "doctor")
	if !strings.Contains(out, "All checks passed") {
		t.Errorf("doctor output = %s", out)
	}

	out = mustRun(t, "status", "--offline")
	for _, want := range []string{"models", "feat-chunk-2-api", "current"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestSplitCommand_InvalidPlanCreatesNothing(t *testing.T) {
	repo := setupTestEnvironment(t)
	mustRun(t, "init", "--base", "main")
	before := testutil.ListBranches(t, repo)

	_, err := executeCommand(rootCmd, "split", "--plan", `[{"name":"x","files":["nope.rs"]}]`)
	if err == nil {
		t.Fatal("split should fail for a file outside the diff")
	}
	if got := testutil.ListBranches(t, repo); !slices.Equal(got, before) {
		t.Errorf("branches = %v, want %v", got, before)
	}
	if len(loadState(t, repo).Chunks) != 0 {
		t.Error("state must not change on a failed split")
	}
}

func TestSplitCommand_DeletedFile(t *testing.T) {
	repo := setupTestEnvironment(t)
	testutil.RunGit(t, repo, "rm", "-q", "README.md")
	testutil.RunGit(t, repo, "commit", "-q", "-m", "drop readme")
	mustRun(t, "init", "--base", "main")

	mustRun(t, "split", "--plan", `[{"name":"docs","files":["README.md","docs/guide.md"]},{"name":"src","files":["src/**"]}]`)

	docs := loadState(t, repo).Chunks[0]
	if got := testutil.DiffNames(t, repo, "main", docs.Branch); !slices.Equal(got, []string{"README.md", "docs/guide.md"}) {
		t.Errorf("docs diff = %v", got)
	}
	if out := testutil.RunGit(t, repo, "ls-tree", "--name-only", docs.Branch, "README.md"); out != "" {
		t.Errorf("README.md should be deleted on %s, ls-tree = %q", docs.Branch, out)
	}
	if got := testutil.GetCurrentBranch(t, repo); got != "feat" {
		t.Errorf("current branch = %s, want feat", got)
	}
}

func TestSplitCommand_NoPlanNotInteractive(t *testing.T) {
	setupTestEnvironment(t)
	mustRun(t, "init", "--base", "main")

	_, err := executeCommand(rootCmd, "split")
	if err == nil || !strings.Contains(err.Error(), "no plan given") {
		t.Errorf("split error = %v, want no plan given", err)
	}
}

func TestSplitCommand_AutoWithWorktrees(t *testing.T) {
	repo := setupTestEnvironment(t)
	mustRun(t, "init", "--base", "main", "--worktrees")
	mustRun(t, "split", "--auto")

	st := loadState(t, repo)
	if len(st.Chunks) != 2 {
		t.Fatalf("auto split produced %d chunks, want 2 (docs, src)", len(st.Chunks))
	}
	for _, c := range st.Chunks {
		if _, err := os.Stat(worktree.WorktreePath(repo, c.Branch)); err != nil {
			t.Errorf("worktree for %s missing: %v", c.Branch, err)
		}
	}

	out := mustRun(t, "clean", "--yes")
	if !strings.Contains(out, "Cleaned chunk") {
		t.Errorf("clean output = %s", out)
	}
	if len(loadState(t, repo).Chunks) != 0 {
		t.Error("clean should remove chunks from state")
	}
	if len(testutil.ListWorktrees(t, repo)) != 1 {
		t.Errorf("worktrees left: %v", testutil.ListWorktrees(t, repo))
	}
}

func TestCleanCommand_NeedsConfirmation(t *testing.T) {
	repo := setupTestEnvironment(t)
	mustRun(t, "init", "--base", "main")
	mustRun(t, "split", "--auto")

	if _, err := executeCommand(rootCmd, "clean"); err == nil {
		t.Error("clean without --yes should fail when not interactive")
	}
	if len(loadState(t, repo).Chunks) == 0 {
		t.Error("chunks must be kept")
	}
}

func TestDoctorCommand_ReportsMissingBranch(t *testing.T) {
	repo := setupTestEnvironment(t)
	mustRun(t, "init", "--base", "main")
	mustRun(t, "split", "--auto")

	branch := loadState(t, repo).Chunks[0].Branch
	testutil.RunGit(t, repo, "branch", "-D", branch)

	out, err := executeCommand(rootCmd, "doctor")
	if err == nil {
		t.Fatal("doctor should fail when a branch is missing")
	}
	if !strings.Contains(out, branch) {
		t.Errorf("doctor output should name %s:\n%s", branch, out)
	}
}

func TestSyncCommand(t *testing.T) {
	testutil.SkipIfNoGit(t)
	repo, _ := testutil.SetupTestRepoWithRemote(t)
	testutil.RunGit(t, repo, "checkout", "-b", "feat")
	testutil.CommitFile(t, repo, "src/a.rs", "a\n", "add a")
	testutil.CommitFile(t, repo, "lib/b.rs", "b\n", "add b")
	isolate(t, repo)

	mustRun(t, "init", "--base", "main")
	mustRun(t, "split", "--auto")

	// Advance main on the remote.
	testutil.CheckoutBranch(t, repo, "main")
	testutil.CommitFile(t, repo, "CHANGELOG.md", "v2\n", "main moves")
	testutil.RunGit(t, repo, "push", "origin", "main")
	testutil.CheckoutBranch(t, repo, "feat")

	out := mustRun(t, "sync")
	if !strings.Contains(out, "up to date") {
		t.Errorf("sync output = %s", out)
	}
	for _, c := range loadState(t, repo).Chunks {
		if got := testutil.RunGit(t, repo, "rev-list", "--count", c.Branch+"..origin/main"); got != "0" {
			t.Errorf("%s is %s commits behind origin/main", c.Branch, got)
		}
	}
	if got := testutil.GetCurrentBranch(t, repo); got != "feat" {
		t.Errorf("current branch = %s, want feat", got)
	}
}

func TestLogsCommand_NoLog(t *testing.T) {
	setupTestEnvironment(t)

	out := mustRun(t, "logs")
	if !strings.Contains(out, "No logs found") {
		t.Errorf("logs output = %s", out)
	}
}

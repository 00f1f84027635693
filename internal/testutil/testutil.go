// Package testutil provides real-git fixtures for merges integration tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// SetupTestRepo creates a temporary git repository on branch main with one
// commit. The repository is removed when the test completes.
func SetupTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()

	if err := runGit(dir, "init"); err != nil {
		t.Fatalf("failed to init git repo: %v", err)
	}
	if err := runGit(dir, "config", "user.email", "test@merges.dev"); err != nil {
		t.Fatalf("failed to configure git email: %v", err)
	}
	if err := runGit(dir, "config", "user.name", "Merges Test"); err != nil {
		t.Fatalf("failed to configure git name: %v", err)
	}

	// git worktree and merge-base both need at least one commit
	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("# Test Repository\n"), 0644); err != nil {
		t.Fatalf("failed to create README: %v", err)
	}
	if err := runGit(dir, "add", "."); err != nil {
		t.Fatalf("failed to stage files: %v", err)
	}
	if err := runGit(dir, "commit", "-m", "Initial commit"); err != nil {
		t.Fatalf("failed to create initial commit: %v", err)
	}

	// Some systems default to master
	if err := runGit(dir, "branch", "-M", "main"); err != nil {
		t.Fatalf("failed to rename branch to main: %v", err)
	}

	return resolve(t, dir)
}

// SetupFeatureRepo creates a repository whose branch `feature` carries files as
// a single commit on top of main. The feature branch is left checked out.
func SetupFeatureRepo(t *testing.T, feature string, files map[string]string) string {
	t.Helper()

	dir := SetupTestRepo(t)
	if err := runGit(dir, "checkout", "-b", feature); err != nil {
		t.Fatalf("failed to create feature branch: %v", err)
	}
	writeFiles(t, dir, files)
	if err := runGit(dir, "add", "-A"); err != nil {
		t.Fatalf("failed to stage files: %v", err)
	}
	if err := runGit(dir, "commit", "-m", "feature work"); err != nil {
		t.Fatalf("failed to commit feature files: %v", err)
	}
	return dir
}

// SetupTestRepoWithRemote creates a test repository with a bare origin that
// has main pushed to it.
func SetupTestRepoWithRemote(t *testing.T) (repoDir, remoteDir string) {
	t.Helper()

	remoteDir = t.TempDir()
	if err := runGit(remoteDir, "init", "--bare"); err != nil {
		t.Fatalf("failed to init bare repo: %v", err)
	}

	repoDir = SetupTestRepo(t)

	if err := runGit(repoDir, "remote", "add", "origin", remoteDir); err != nil {
		t.Fatalf("failed to add remote: %v", err)
	}
	if err := runGit(repoDir, "push", "-u", "origin", "main"); err != nil {
		t.Fatalf("failed to push to remote: %v", err)
	}

	return repoDir, remoteDir
}

// CommitFile creates or updates a file and commits it on the current branch.
func CommitFile(t *testing.T, repoDir, path, content, message string) {
	t.Helper()

	writeFiles(t, repoDir, map[string]string{path: content})
	if err := runGit(repoDir, "add", path); err != nil {
		t.Fatalf("failed to stage file %s: %v", path, err)
	}
	if err := runGit(repoDir, "commit", "-m", message); err != nil {
		t.Fatalf("failed to commit file %s: %v", path, err)
	}
}

// CheckoutBranch switches to a branch.
func CheckoutBranch(t *testing.T, repoDir, branch string) {
	t.Helper()

	if err := runGit(repoDir, "checkout", branch); err != nil {
		t.Fatalf("failed to checkout branch %s: %v", branch, err)
	}
}

// GetCurrentBranch returns the current branch name.
func GetCurrentBranch(t *testing.T, repoDir string) string {
	t.Helper()
	return RunGit(t, repoDir, "rev-parse", "--abbrev-ref", "HEAD")
}

// BranchExists reports whether a local branch exists.
func BranchExists(t *testing.T, repoDir, branch string) bool {
	t.Helper()
	return runGit(repoDir, "show-ref", "--verify", "--quiet", "refs/heads/"+branch) == nil
}

// ListBranches returns all local branch names, sorted.
func ListBranches(t *testing.T, repoDir string) []string {
	t.Helper()

	out := RunGit(t, repoDir, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	branches := nonEmptyLines(out)
	sort.Strings(branches)
	return branches
}

// DiffNames returns the sorted files changed on branch since it diverged from base.
func DiffNames(t *testing.T, repoDir, base, branch string) []string {
	t.Helper()

	files := nonEmptyLines(RunGit(t, repoDir, "diff", "--name-only", base+"..."+branch))
	sort.Strings(files)
	return files
}

// ListWorktrees returns all worktrees in the repository.
func ListWorktrees(t *testing.T, repoDir string) []string {
	t.Helper()

	var worktrees []string
	for _, line := range nonEmptyLines(RunGit(t, repoDir, "worktree", "list", "--porcelain")) {
		if path, ok := strings.CutPrefix(line, "worktree "); ok {
			worktrees = append(worktrees, path)
		}
	}
	return worktrees
}

// HasUncommittedChanges returns true if the repository has uncommitted changes.
func HasUncommittedChanges(t *testing.T, repoDir string) bool {
	t.Helper()
	return RunGit(t, repoDir, "status", "--porcelain") != ""
}

// RunGit runs git in dir, failing the test on error, and returns trimmed output.
func RunGit(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := gitCommand(dir, args...)
	output, err := cmd.Output()
	if err != nil {
		t.Fatalf("git %s failed: %v", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(output))
}

// SkipIfNoGit skips the test if git is not installed.
func SkipIfNoGit(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH, skipping test")
	}
}

// SkipIfNoGh skips the test if the GitHub CLI is not installed.
func SkipIfNoGh(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("gh"); err != nil {
		t.Skip("gh not found in PATH, skipping test")
	}
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for path, content := range files {
		fullPath := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write file %s: %v", path, err)
		}
	}
}

// resolve evaluates symlinks so paths compare equal to what git reports
// (macOS /var -> /private/var).
func resolve(t *testing.T, dir string) string {
	t.Helper()

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return dir
	}
	return resolved
}

func gitCommand(dir string, args ...string) *exec.Cmd {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Merges Test",
		"GIT_AUTHOR_EMAIL=test@merges.dev",
		"GIT_COMMITTER_NAME=Merges Test",
		"GIT_COMMITTER_EMAIL=test@merges.dev",
	)
	return cmd
}

func runGit(dir string, args ...string) error {
	output, err := gitCommand(dir, args...).CombinedOutput()
	if err != nil {
		return &gitError{args: args, output: output, err: err}
	}
	return nil
}

type gitError struct {
	args   []string
	output []byte
	err    error
}

func (e *gitError) Error() string {
	return "git " + strings.Join(e.args, " ") + ": " + e.err.Error() + "\n" + string(e.output)
}

func (e *gitError) Unwrap() error {
	return e.err
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

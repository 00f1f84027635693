// Package worktree is the repository adapter for merges. It wraps the git
// command line behind small capability interfaces so the chunk engine can be
// exercised against an in-memory fake, and answers read-only questions about
// refs and remotes through go-git.
package worktree

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Iron-Ham/merges/internal/errors"
)

// -----------------------------------------------------------------------------
// Command Executor
// -----------------------------------------------------------------------------

// CommandExecutor abstracts command execution for testability.
// This allows tests to mock git commands without executing them.
type CommandExecutor interface {
	// Run executes a command and returns combined output.
	Run(dir string, name string, args ...string) ([]byte, error)

	// RunQuiet executes a command and returns only the error.
	RunQuiet(dir string, name string, args ...string) error
}

// CLICommandExecutor executes commands using os/exec.
type CLICommandExecutor struct{}

// NewCLICommandExecutor creates a new CLI command executor.
func NewCLICommandExecutor() *CLICommandExecutor {
	return &CLICommandExecutor{}
}

// Run executes a command and returns combined output.
func (e *CLICommandExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// RunQuiet executes a command and returns only the error.
func (e *CLICommandExecutor) RunQuiet(dir string, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.Run()
}

// -----------------------------------------------------------------------------
// CLIRepository
// -----------------------------------------------------------------------------

// CLIRepository implements Repository by shelling out to git. Read-only ref
// and remote queries go through an Inspector when one is configured.
type CLIRepository struct {
	executor  CommandExecutor
	inspector *Inspector
}

// NewCLIRepository creates a CLIRepository backed by the git binary and a
// go-git inspector.
func NewCLIRepository() *CLIRepository {
	executor := NewCLICommandExecutor()
	return &CLIRepository{
		executor:  executor,
		inspector: NewInspector(executor),
	}
}

// NewCLIRepositoryWithExecutor creates a CLIRepository with a custom executor.
// No inspector is attached, so every query goes through the executor.
// This is primarily useful for testing.
func NewCLIRepositoryWithExecutor(executor CommandExecutor) *CLIRepository {
	return &CLIRepository{executor: executor}
}

func (r *CLIRepository) git(dir string, args ...string) ([]byte, error) {
	return r.executor.Run(dir, "git", args...)
}

// -----------------------------------------------------------------------------
// DiffProvider
// -----------------------------------------------------------------------------

// ChangedFiles lists files changed on HEAD relative to its merge-base with base.
func (r *CLIRepository) ChangedFiles(dir, base string) ([]string, error) {
	output, err := r.git(dir, "diff", "--name-only", base+"...HEAD")
	if err != nil {
		return nil, errors.NewGitError("failed to list changed files", err).
			WithRepository(dir).
			WithBranch(base).
			WithGitOutput(string(output))
	}
	return splitLines(output), nil
}

// MergeBase returns the merge-base commit of base and HEAD.
func (r *CLIRepository) MergeBase(dir, base string) (string, error) {
	output, err := r.git(dir, "merge-base", base, "HEAD")
	if err != nil {
		return "", errors.NewGitError("failed to find merge-base", err).
			WithRepository(dir).
			WithBranch(base).
			WithGitOutput(string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

// StagedFiles lists paths staged in the index.
func (r *CLIRepository) StagedFiles(dir string) ([]string, error) {
	output, err := r.git(dir, "diff", "--cached", "--name-only")
	if err != nil {
		return nil, errors.NewGitError("failed to list staged files", err).
			WithRepository(dir).
			WithGitOutput(string(output))
	}
	return splitLines(output), nil
}

// -----------------------------------------------------------------------------
// BranchManager
// -----------------------------------------------------------------------------

// CreateBranch creates and checks out name at baseRef.
func (r *CLIRepository) CreateBranch(dir, name, baseRef string) error {
	exists, err := r.BranchExists(dir, name)
	if err != nil {
		return err
	}
	if exists {
		return errors.NewGitError("failed to create branch", errors.ErrBranchExists).
			WithRepository(dir).
			WithBranch(name)
	}

	output, err := r.git(dir, "checkout", "-b", name, baseRef)
	if err != nil {
		cause := err
		if strings.Contains(string(output), "already exists") {
			cause = errors.ErrBranchExists
		}
		return errors.NewGitError("failed to create branch", cause).
			WithRepository(dir).
			WithBranch(name).
			WithGitOutput(string(output))
	}
	return nil
}

// Checkout switches dir to an existing branch.
func (r *CLIRepository) Checkout(dir, name string) error {
	output, err := r.git(dir, "checkout", name)
	if err != nil {
		cause := err
		out := string(output)
		if strings.Contains(out, "did not match any") || strings.Contains(out, "invalid reference") {
			cause = errors.ErrBranchNotFound
		}
		return errors.NewGitError("failed to checkout branch", cause).
			WithRepository(dir).
			WithBranch(name).
			WithGitOutput(out)
	}
	return nil
}

// DeleteBranch force-deletes a local branch. It must not be checked out anywhere.
func (r *CLIRepository) DeleteBranch(dir, name string) error {
	output, err := r.git(dir, "branch", "-D", name)
	if err != nil {
		cause := err
		if strings.Contains(string(output), "not found") {
			cause = errors.ErrBranchNotFound
		}
		return errors.NewGitError("failed to delete branch", cause).
			WithRepository(dir).
			WithBranch(name).
			WithGitOutput(string(output))
	}
	return nil
}

// BranchExists reports whether refs/heads/<name> exists.
func (r *CLIRepository) BranchExists(dir, name string) (bool, error) {
	if r.inspector != nil {
		return r.inspector.BranchExists(dir, name)
	}
	return branchExistsCLI(r.executor, dir, name), nil
}

// CurrentBranch returns the branch checked out in dir.
func (r *CLIRepository) CurrentBranch(dir string) (string, error) {
	if r.inspector != nil {
		return r.inspector.CurrentBranch(dir)
	}
	return currentBranchCLI(r.executor, dir)
}

// RemoteURL returns the URL of the origin remote.
func (r *CLIRepository) RemoteURL(dir string) (string, error) {
	if r.inspector != nil {
		return r.inspector.RemoteURL(dir)
	}
	return remoteURLCLI(r.executor, dir)
}

// CommitsBehind counts the commits reachable from base but not from branch.
func (r *CLIRepository) CommitsBehind(dir, branch, base string) (int, error) {
	output, err := r.git(dir, "rev-list", "--count", branch+".."+base)
	if err != nil {
		return 0, errors.NewGitError("failed to count commits behind", err).
			WithRepository(dir).
			WithBranch(branch).
			WithGitOutput(string(output))
	}

	count, err := strconv.Atoi(strings.TrimSpace(string(output)))
	if err != nil {
		return 0, errors.NewGitError("failed to parse behind count", err).
			WithRepository(dir).
			WithBranch(branch)
	}
	return count, nil
}

// -----------------------------------------------------------------------------
// GitOperations
// -----------------------------------------------------------------------------

// CheckoutFilesFrom copies files from ref into dir's working tree and index.
// Files that do not exist at ref are removed instead, so the next commit
// records their deletion.
func (r *CLIRepository) CheckoutFilesFrom(dir, ref string, files []string) error {
	if len(files) == 0 {
		return nil
	}

	existing, err := r.filesAt(dir, ref, files)
	if err != nil {
		return err
	}
	var present, deleted []string
	for _, f := range files {
		if existing[f] {
			present = append(present, f)
		} else {
			deleted = append(deleted, f)
		}
	}

	if len(present) > 0 {
		args := append([]string{"checkout", ref, "--"}, present...)
		output, err := r.git(dir, args...)
		if err != nil {
			return errors.NewGitError("failed to checkout files from "+ref, err).
				WithRepository(dir).
				WithBranch(ref).
				WithGitOutput(string(output))
		}
	}
	if len(deleted) > 0 {
		args := append([]string{"rm", "-q", "--ignore-unmatch", "--"}, deleted...)
		output, err := r.git(dir, args...)
		if err != nil {
			return errors.NewGitError("failed to remove files deleted on "+ref, err).
				WithRepository(dir).
				WithBranch(ref).
				WithGitOutput(string(output))
		}
	}
	return nil
}

// filesAt returns which of files exist in ref's tree.
func (r *CLIRepository) filesAt(dir, ref string, files []string) (map[string]bool, error) {
	args := append([]string{"ls-tree", "-r", "-z", "--name-only", "--full-tree", ref, "--"}, files...)
	output, err := r.git(dir, args...)
	if err != nil {
		return nil, errors.NewGitError("failed to list files on "+ref, err).
			WithRepository(dir).
			WithBranch(ref).
			WithGitOutput(string(output))
	}
	existing := make(map[string]bool, len(files))
	for _, name := range strings.Split(string(output), "\x00") {
		if name != "" {
			existing[name] = true
		}
	}
	return existing, nil
}

// CommitAll stages and commits all changes with the given message.
func (r *CLIRepository) CommitAll(dir, message string) error {
	if err := r.stageAll(dir); err != nil {
		return err
	}
	return r.commit(dir, "commit", "-m", message)
}

// AmendAll stages all changes and folds them into HEAD.
func (r *CLIRepository) AmendAll(dir string) error {
	if err := r.stageAll(dir); err != nil {
		return err
	}
	return r.commit(dir, "commit", "--amend", "--no-edit")
}

// SoftResetParent undoes HEAD, leaving its changes staged.
func (r *CLIRepository) SoftResetParent(dir string) error {
	output, err := r.git(dir, "reset", "--soft", "HEAD~1")
	if err != nil {
		return errors.NewGitError("failed to reset to parent commit", err).
			WithRepository(dir).
			WithGitOutput(string(output))
	}
	return nil
}

// UnstageAndDiscard unstages file and restores it to HEAD. A file that does not
// exist at HEAD is removed from the working tree instead.
func (r *CLIRepository) UnstageAndDiscard(dir, file string) error {
	output, err := r.git(dir, "reset", "-q", "HEAD", "--", file)
	if err != nil {
		return errors.NewGitError("failed to unstage "+file, err).
			WithRepository(dir).
			WithGitOutput(string(output))
	}

	if _, err := r.git(dir, "checkout", "--", file); err != nil {
		if rmErr := os.Remove(filepath.Join(dir, file)); rmErr != nil && !os.IsNotExist(rmErr) {
			return errors.NewGitError("failed to discard "+file, rmErr).WithRepository(dir)
		}
	}
	return nil
}

// CommitStaged commits the index without staging anything else.
func (r *CLIRepository) CommitStaged(dir, message string, allowEmpty bool) error {
	args := []string{"commit"}
	if allowEmpty {
		args = append(args, "--allow-empty")
	}
	args = append(args, "-m", message)
	return r.commit(dir, args...)
}

// FetchAndRebase fetches origin and rebases the current branch onto origin/<base>.
// A rebase that stops on conflicts is left in progress in dir so the conflicts
// can be resolved by hand; rerere records the resolution for later syncs.
func (r *CLIRepository) FetchAndRebase(dir, base string, updateRefs bool) error {
	output, err := r.git(dir, "fetch", "origin")
	if err != nil {
		return errors.NewGitError("failed to fetch origin", err).
			WithRepository(dir).
			WithRetryable(true).
			WithGitOutput(string(output))
	}

	args := []string{"rebase"}
	if updateRefs {
		args = append(args, "--update-refs")
	}
	args = append(args, "origin/"+base)

	output, err = r.git(dir, args...)
	if err != nil {
		outputStr := string(output)
		if strings.Contains(outputStr, "CONFLICT") || strings.Contains(outputStr, "could not apply") {
			return errors.NewGitError("rebase onto origin/"+base+" stopped on conflicts in "+dir+
				"; resolve them, run `git rebase --continue`, then run `merges sync` again", errors.ErrRebaseConflict).
				WithRepository(dir).
				WithBranch(base).
				WithRetryable(true).
				WithGitOutput(outputStr)
		}
		return errors.NewGitError("failed to rebase onto origin/"+base, err).
			WithRepository(dir).
			WithBranch(base).
			WithGitOutput(outputStr)
	}
	return nil
}

// RebaseInProgress reports whether a rebase is stopped mid-way in dir.
func (r *CLIRepository) RebaseInProgress(dir string) (bool, error) {
	for _, name := range []string{"rebase-merge", "rebase-apply"} {
		output, err := r.git(dir, "rev-parse", "--git-path", name)
		if err != nil {
			return false, errors.NewGitError("failed to resolve "+name, err).
				WithRepository(dir).
				WithGitOutput(string(output))
		}
		path := strings.TrimSpace(string(output))
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if _, err := os.Stat(path); err == nil {
			return true, nil
		}
	}
	return false, nil
}

// Push pushes branch to origin with --force-with-lease.
func (r *CLIRepository) Push(dir, branch string) error {
	output, err := r.git(dir, "push", "origin", branch, "--force-with-lease")
	if err != nil {
		return errors.NewGitError("failed to push", err).
			WithRepository(dir).
			WithBranch(branch).
			WithRetryable(true).
			WithGitOutput(string(output))
	}
	return nil
}

func (r *CLIRepository) stageAll(dir string) error {
	output, err := r.git(dir, "add", "-A")
	if err != nil {
		return errors.NewGitError("failed to stage changes", err).
			WithRepository(dir).
			WithGitOutput(string(output))
	}
	return nil
}

func (r *CLIRepository) commit(dir string, args ...string) error {
	output, err := r.git(dir, args...)
	if err != nil {
		// git prints "nothing to commit" on stdout
		if strings.Contains(string(output), "nothing to commit") {
			return errors.NewGitError("failed to commit", errors.ErrNothingToCommit).
				WithRepository(dir)
		}
		return errors.NewGitError("failed to commit", err).
			WithRepository(dir).
			WithGitOutput(string(output))
	}
	return nil
}

// -----------------------------------------------------------------------------
// CLI fallbacks for read-only queries
// -----------------------------------------------------------------------------

func branchExistsCLI(executor CommandExecutor, dir, name string) bool {
	return executor.RunQuiet(dir, "git", "show-ref", "--verify", "--quiet", "refs/heads/"+name) == nil
}

func currentBranchCLI(executor CommandExecutor, dir string) (string, error) {
	output, err := executor.Run(dir, "git", "symbolic-ref", "--short", "HEAD")
	if err != nil {
		return "", errors.NewGitError("HEAD is detached or not on a branch", err).
			WithRepository(dir).
			WithGitOutput(string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

func remoteURLCLI(executor CommandExecutor, dir string) (string, error) {
	output, err := executor.Run(dir, "git", "remote", "get-url", "origin")
	if err != nil {
		return "", errors.NewGitError("failed to read origin URL", errors.ErrNoRemote).
			WithRepository(dir).
			WithGitOutput(string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

func splitLines(output []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

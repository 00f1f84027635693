package worktree

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/merges/internal/errors"
)

// WorktreesDirName is the directory under .git that holds chunk worktrees.
const WorktreesDirName = "merges-worktrees"

// FindGitRoot finds the root of the git repository by traversing up from startDir.
// It returns the directory containing .git (either a directory or a file for worktrees).
// Returns an error if no git repository is found.
func FindGitRoot(startDir string) (string, error) {
	dir := startDir
	for {
		gitPath := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitPath); err == nil {
			// .git can be a directory (normal repo) or a file (worktree)
			if info.IsDir() || info.Mode().IsRegular() {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.NewGitError("not a git repository (or any parent up to mount point)", errors.ErrNotGitRepository).
				WithRepository(startDir)
		}
		dir = parent
	}
}

// FindMainRoot is FindGitRoot that resolves linked worktrees back to the main
// working tree, where .merges.json lives.
func FindMainRoot(startDir string) (string, error) {
	root, err := FindGitRoot(startDir)
	if err != nil {
		return "", err
	}
	if !isLinkedWorktreeDir(root) {
		return root, nil
	}

	data, err := os.ReadFile(filepath.Join(root, ".git"))
	if err != nil {
		return "", errors.NewGitError("failed to read worktree .git file", err).WithRepository(root)
	}
	gitDir := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(data)), "gitdir:"))
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(root, gitDir)
	}

	// gitdir is <main>/.git/worktrees/<name>
	commonDir := filepath.Dir(filepath.Dir(gitDir))
	if filepath.Base(commonDir) != ".git" {
		return "", errors.NewGitError(fmt.Sprintf("unexpected worktree gitdir %q", gitDir), errors.ErrNotGitRepository).
			WithRepository(root)
	}
	return filepath.Dir(commonDir), nil
}

// WorktreesDir returns <root>/.git/merges-worktrees.
func WorktreesDir(root string) string {
	return filepath.Join(root, ".git", WorktreesDirName)
}

// WorktreePath returns the worktree directory for branch, with slashes in the
// branch name replaced by dashes.
func WorktreePath(root, branch string) string {
	return filepath.Join(WorktreesDir(root), strings.ReplaceAll(branch, "/", "-"))
}

// WorktreePath returns the worktree directory for branch.
func (r *CLIRepository) WorktreePath(root, branch string) string {
	return WorktreePath(root, branch)
}

// AddWorktree creates branch at baseRef and a worktree for it.
func (r *CLIRepository) AddWorktree(root, branch, baseRef string) (string, error) {
	path := WorktreePath(root, branch)

	exists, err := r.BranchExists(root, branch)
	if err != nil {
		return "", err
	}
	if exists {
		return "", errors.NewGitError("failed to create worktree", errors.ErrBranchExists).
			WithRepository(root).
			WithBranch(branch).
			WithWorktree(path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", errors.NewGitError("failed to create worktrees directory", err).
			WithRepository(root).
			WithWorktree(path)
	}

	output, err := r.git(root, "worktree", "add", "-b", branch, path, baseRef)
	if err != nil {
		return "", errors.NewGitError("failed to create worktree", err).
			WithRepository(root).
			WithBranch(branch).
			WithWorktree(path).
			WithGitOutput(string(output))
	}
	return path, nil
}

// RemoveWorktree removes the worktree for branch. A missing directory is a no-op.
func (r *CLIRepository) RemoveWorktree(root, branch string) error {
	path := WorktreePath(root, branch)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	output, err := r.git(root, "worktree", "remove", "--force", path)
	if err != nil {
		// If worktree remove fails, clean up manually and prune the stale entry
		_ = os.RemoveAll(path)
		_ = r.executor.RunQuiet(root, "git", "worktree", "prune")

		return errors.NewGitError("failed to remove worktree cleanly", err).
			WithRepository(root).
			WithBranch(branch).
			WithWorktree(path).
			WithGitOutput(string(output))
	}
	return nil
}

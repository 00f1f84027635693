package worktree

import (
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/Iron-Ham/merges/internal/errors"
)

// Inspector answers read-only questions about refs and remotes by reading the
// repository with go-git instead of spawning git. Linked worktree directories
// and unborn branches fall back to the git binary.
type Inspector struct {
	executor CommandExecutor
}

// NewInspector creates an Inspector that falls back to executor when go-git
// cannot answer.
func NewInspector(executor CommandExecutor) *Inspector {
	return &Inspector{executor: executor}
}

// CurrentBranch returns the short name of the branch HEAD points at.
func (i *Inspector) CurrentBranch(dir string) (string, error) {
	if isLinkedWorktreeDir(dir) {
		return currentBranchCLI(i.executor, dir)
	}

	repo, err := openRepo(dir)
	if err != nil {
		return "", err
	}

	head, err := repo.Head()
	if err != nil {
		// Unborn branch: HEAD is symbolic but has no commit yet.
		return currentBranchCLI(i.executor, dir)
	}
	if !head.Name().IsBranch() {
		return "", errors.NewGitError("HEAD is detached or not on a branch", nil).
			WithRepository(dir)
	}
	return head.Name().Short(), nil
}

// BranchExists reports whether refs/heads/<name> resolves.
func (i *Inspector) BranchExists(dir, name string) (bool, error) {
	if isLinkedWorktreeDir(dir) {
		return branchExistsCLI(i.executor, dir, name), nil
	}

	repo, err := openRepo(dir)
	if err != nil {
		return false, err
	}

	_, err = repo.Reference(plumbing.NewBranchReferenceName(name), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.NewGitError("failed to resolve branch", err).
			WithRepository(dir).
			WithBranch(name)
	}
	return true, nil
}

// RemoteURL returns the first configured URL of origin.
func (i *Inspector) RemoteURL(dir string) (string, error) {
	if isLinkedWorktreeDir(dir) {
		return remoteURLCLI(i.executor, dir)
	}

	repo, err := openRepo(dir)
	if err != nil {
		return "", err
	}

	remote, err := repo.Remote("origin")
	if err != nil {
		return "", errors.NewGitError("failed to read origin URL", errors.ErrNoRemote).
			WithRepository(dir)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", errors.NewGitError("origin has no URL", errors.ErrNoRemote).
			WithRepository(dir)
	}
	return urls[0], nil
}

func openRepo(dir string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		cause := err
		if errors.Is(err, git.ErrRepositoryNotExists) {
			cause = errors.ErrNotGitRepository
		}
		return nil, errors.NewGitError("failed to open repository", cause).
			WithRepository(dir)
	}
	return repo, nil
}

// isLinkedWorktreeDir reports whether dir is a linked worktree, whose .git is
// a file pointing at the common git directory.
func isLinkedWorktreeDir(dir string) bool {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, ".git"))
	if err != nil || info.IsDir() {
		return false
	}
	data, err := os.ReadFile(filepath.Join(dir, ".git"))
	if err != nil {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(string(data)), "gitdir:")
}

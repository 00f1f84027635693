// Package workspace decides where a chunk branch is edited. In shared-tree
// mode the repository root is switched to the chunk branch and back to the
// source branch afterwards; in worktree mode each chunk has its own directory
// and the root is never touched.
package workspace

import (
	"os"

	"github.com/Iron-Ham/merges/internal/errors"
	"github.com/Iron-Ham/merges/internal/logging"
	"github.com/Iron-Ham/merges/internal/state"
	"github.com/Iron-Ham/merges/internal/worktree"
)

// Workspace resolves the working directory for chunk branches.
type Workspace struct {
	repo         worktree.Repository
	root         string
	source       string
	useWorktrees bool
	logger       *logging.Logger
}

// New creates a Workspace for the repository at root using the mode recorded in st.
func New(repo worktree.Repository, root string, st *state.MergesState, logger *logging.Logger) *Workspace {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Workspace{
		repo:         repo,
		root:         root,
		source:       st.SourceBranch,
		useWorktrees: st.UseWorktrees,
		logger:       logger,
	}
}

// Root returns the repository root.
func (w *Workspace) Root() string { return w.root }

// UseWorktrees reports whether chunks live in their own worktrees.
func (w *Workspace) UseWorktrees() bool { return w.useWorktrees }

// Dir returns the directory where branch is edited, without switching anything.
func (w *Workspace) Dir(branch string) string {
	if w.useWorktrees {
		return w.repo.WorktreePath(w.root, branch)
	}
	return w.root
}

// Enter makes branch the checked-out branch of its directory and returns that
// directory. In worktree mode the worktree must already exist.
func (w *Workspace) Enter(branch string) (string, error) {
	if w.useWorktrees {
		dir := w.repo.WorktreePath(w.root, branch)
		if _, err := os.Stat(dir); err != nil {
			return "", errors.NewGitError("chunk worktree is missing; run `merges doctor`", err).
				WithBranch(branch).
				WithWorktree(dir)
		}
		return dir, nil
	}

	if err := w.repo.Checkout(w.root, branch); err != nil {
		return "", err
	}
	return w.root, nil
}

// Leave returns the shared tree to the source branch. It is a no-op in worktree mode.
func (w *Workspace) Leave() error {
	if w.useWorktrees {
		return nil
	}
	return w.repo.Checkout(w.root, w.source)
}

// Do runs fn inside branch and always leaves afterwards. A failure to leave is
// reported alongside fn's error rather than replacing it.
func (w *Workspace) Do(branch string, fn func(dir string) error) error {
	dir, err := w.Enter(branch)
	if err != nil {
		if !w.useWorktrees {
			if leaveErr := w.Leave(); leaveErr != nil {
				w.logger.Warn("failed to restore source branch", "branch", w.source, "error", leaveErr)
			}
		}
		return err
	}

	fnErr := fn(dir)
	leaveErr := w.Leave()
	if leaveErr != nil {
		w.logger.Warn("failed to restore source branch", "branch", w.source, "error", leaveErr)
	}

	switch {
	case fnErr != nil && leaveErr != nil:
		rb := errors.NewRollbackError("restore " + w.source)
		rb.Add(leaveErr)
		return errors.WithRollback(fnErr, rb)
	case fnErr != nil:
		return fnErr
	default:
		return leaveErr
	}
}

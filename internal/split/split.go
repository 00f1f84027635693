// Package split materializes a chunk plan: one branch per plan entry, created
// at the merge-base and holding exactly the entry's files copied from the
// source branch. A plan is applied all-or-nothing.
package split

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Iron-Ham/merges/internal/errors"
	"github.com/Iron-Ham/merges/internal/logging"
	"github.com/Iron-Ham/merges/internal/ownership"
	"github.com/Iron-Ham/merges/internal/planner"
	"github.com/Iron-Ham/merges/internal/state"
	"github.com/Iron-Ham/merges/internal/worktree"
)

// Progress is called after each chunk is committed.
type Progress func(done, total int, chunk state.Chunk)

// Materializer applies plans to a repository.
type Materializer struct {
	repo     worktree.Repository
	root     string
	logger   *logging.Logger
	progress Progress
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Materializer) { m.logger = l }
}

// WithProgress registers a per-chunk progress callback.
func WithProgress(p Progress) Option {
	return func(m *Materializer) { m.progress = p }
}

// New creates a Materializer for the repository at root.
func New(repo worktree.Repository, root string, opts ...Option) *Materializer {
	m := &Materializer{
		repo:   repo,
		root:   root,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// undoStep reverses one change made while applying a plan.
type undoStep struct {
	desc string
	fn   func() error
}

// ApplyPlan creates a branch per plan entry and returns the new state with
// the chunks appended. st is never modified. On any failure the branches and
// worktrees created by this call are removed, the shared tree is returned to
// the source branch, and the original error is returned with any cleanup
// failures attached.
func (m *Materializer) ApplyPlan(st *state.MergesState, plan planner.Plan) (*state.MergesState, error) {
	logger := m.logger.WithOperation("split")

	if err := m.validate(st, plan); err != nil {
		return nil, err
	}

	if err := worktree.EnsureExcluded(m.root, state.FileName); err != nil {
		return nil, errors.Wrap(err, "failed to register state file in .git/info/exclude")
	}

	baseSHA, err := m.repo.MergeBase(m.root, st.BaseBranch)
	if err != nil {
		return nil, err
	}

	var undo []undoStep
	fail := func(err error) (*state.MergesState, error) {
		return nil, m.rollback(st, undo, err)
	}

	prefix := st.MessagePrefix(worktree.TicketPrefix)
	next := st.Clone()
	for i, entry := range plan {
		n := len(st.Chunks) + i + 1
		branch := state.BranchName(st.SourceBranch, n, entry.Name)

		dir := m.root
		if st.UseWorktrees {
			dir, err = m.repo.AddWorktree(m.root, branch, baseSHA)
		} else {
			err = m.repo.CreateBranch(m.root, branch, baseSHA)
		}
		if err != nil {
			return fail(err)
		}
		undo = append(undo, undoStep{
			desc: "delete branch " + branch,
			fn:   func() error { return m.repo.DeleteBranch(m.root, branch) },
		})
		if st.UseWorktrees {
			// Runs before the branch deletion above.
			undo = append(undo, undoStep{
				desc: "remove worktree for " + branch,
				fn:   func() error { return m.repo.RemoveWorktree(m.root, branch) },
			})
		}

		if err := m.repo.CheckoutFilesFrom(dir, st.SourceBranch, entry.Files); err != nil {
			return fail(err)
		}
		if err := m.repo.CommitAll(dir, CommitMessage(prefix, n, entry)); err != nil {
			return fail(err)
		}
		if !st.UseWorktrees {
			if err := m.repo.Checkout(m.root, st.SourceBranch); err != nil {
				return fail(err)
			}
		}

		chunk := state.Chunk{
			Name:   entry.Name,
			Branch: branch,
			Files:  slices.Clone(entry.Files),
		}
		next.Chunks = append(next.Chunks, chunk)
		logger.WithChunk(entry.Name).Info("chunk created", "branch", branch, "files", len(entry.Files))
		if m.progress != nil {
			m.progress(i+1, len(plan), chunk)
		}
	}

	return next, nil
}

// validate checks the whole plan before anything is touched.
func (m *Materializer) validate(st *state.MergesState, plan planner.Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}

	for _, e := range plan {
		if st.FindChunk(e.Name) >= 0 {
			return errors.NewValidationError(fmt.Sprintf("a chunk named '%s' already exists", e.Name)).
				WithField("name").
				WithValue(e.Name)
		}
	}

	current, err := m.repo.CurrentBranch(m.root)
	if err != nil {
		return err
	}
	if current != st.SourceBranch {
		return errors.NewValidationError(fmt.Sprintf("current branch is '%s'; check out the source branch '%s' first", current, st.SourceBranch)).
			WithField("branch").
			WithValue(current)
	}

	changed, err := m.repo.ChangedFiles(m.root, st.BaseBranch)
	if err != nil {
		return err
	}
	inDiff := make(map[string]bool, len(changed))
	for _, f := range changed {
		inDiff[f] = true
	}
	for _, e := range plan {
		for _, f := range e.Files {
			if !inDiff[f] {
				return errors.NewValidationError(fmt.Sprintf("file '%s' in chunk '%s' is not in the diff between '%s' and %s",
					f, e.Name, st.BaseBranch, st.SourceBranch)).
					WithField("files").
					WithValue(f).
					WithCause(errors.ErrFileNotInDiff)
			}
		}
	}

	idx := ownership.FromState(st).Clone()
	for _, e := range plan {
		if err := idx.ClaimMultiple(e.Name, e.Files); err != nil {
			return err
		}
	}
	return nil
}

// rollback undoes the recorded steps in reverse order and returns cause with
// any cleanup failures attached. The shared tree is returned to the source
// branch first so that created branches can be deleted.
func (m *Materializer) rollback(st *state.MergesState, undo []undoStep, cause error) error {
	logger := m.logger.WithOperation("split.rollback")
	rb := errors.NewRollbackError("split")

	if !st.UseWorktrees {
		if err := m.repo.Checkout(m.root, st.SourceBranch); err != nil {
			logger.Warn("failed to restore source branch", "branch", st.SourceBranch, "error", err)
			rb.Add(err)
		}
	}
	for i := len(undo) - 1; i >= 0; i-- {
		if err := undo[i].fn(); err != nil {
			logger.Warn("rollback step failed", "step", undo[i].desc, "error", err)
			rb.Add(fmt.Errorf("%s: %w", undo[i].desc, err))
			continue
		}
		logger.Debug("rollback step done", "step", undo[i].desc)
	}

	return errors.WithRollback(cause, rb)
}

// CommitMessage builds the commit message for the n-th chunk:
//
//	feat(<slug>): chunk <n> - <name>
//
//	Files:
//	- <file>
//
// prefixed with "<prefix>: " when a ticket prefix is set.
func CommitMessage(prefix string, n int, entry planner.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "feat(%s): chunk %d - %s\n\nFiles:", state.Slug(entry.Name), n, entry.Name)
	for _, f := range entry.Files {
		b.WriteString("\n- ")
		b.WriteString(f)
	}
	return worktree.FormatMessage(prefix, b.String())
}

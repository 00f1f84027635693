// Package syncer rebases every chunk branch onto the latest origin/<base>.
//
// In shared-tree mode the chunks are rebased one at a time in the repository
// root and the branch that was checked out beforehand is restored afterwards.
// A rebase that stops on conflicts is left in progress for manual resolution;
// in the shared tree that ends the run, since nothing can be checked out until
// it is resolved, and the remaining chunks are reported as not attempted. In
// worktree mode every chunk is rebased in its own worktree concurrently and a
// conflicted worktree does not affect the others. All failures are reported
// together in a single *errors.SyncError. The state is never modified.
package syncer

import (
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/merges/internal/errors"
	"github.com/Iron-Ham/merges/internal/logging"
	"github.com/Iron-Ham/merges/internal/state"
	"github.com/Iron-Ham/merges/internal/workspace"
	"github.com/Iron-Ham/merges/internal/worktree"
)

// ErrNotAttempted marks chunks skipped because the shared tree is mid-rebase.
var ErrNotAttempted = errors.New("not attempted")

// Outcome is the result of rebasing one chunk.
type Outcome struct {
	Chunk  string
	Branch string
	Err    error
}

// OK reports whether the chunk was rebased.
func (o Outcome) OK() bool { return o.Err == nil }

// Result holds one Outcome per chunk, in state order.
type Result struct {
	Outcomes []Outcome
}

// Failed returns the outcomes that carry an error.
func (r *Result) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Progress is called after each chunk finishes. In worktree mode it is called
// from several goroutines at once.
type Progress func(o Outcome)

// Engine rebases chunk branches.
type Engine struct {
	repo        worktree.Repository
	root        string
	logger      *logging.Logger
	progress    Progress
	maxParallel int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithProgress registers a per-chunk callback.
func WithProgress(p Progress) Option {
	return func(e *Engine) { e.progress = p }
}

// WithMaxParallel caps concurrent rebases in worktree mode. Zero or less
// means one goroutine per chunk.
func WithMaxParallel(n int) Option {
	return func(e *Engine) { e.maxParallel = n }
}

// New creates an Engine for the repository at root.
func New(repo worktree.Repository, root string, opts ...Option) *Engine {
	e := &Engine{
		repo:   repo,
		root:   root,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SyncAll fetches origin and rebases every chunk onto origin/<base>. Stacked
// states pass --update-refs so dependent branches move with each rebase.
// When any chunk fails the returned error is a *errors.SyncError naming all
// of them; the Result is returned in both cases.
func (e *Engine) SyncAll(st *state.MergesState) (*Result, error) {
	logger := e.logger.WithOperation("sync").With("base", st.BaseBranch, "strategy", string(st.Strategy))
	res := &Result{Outcomes: make([]Outcome, len(st.Chunks))}
	if len(st.Chunks) == 0 {
		return res, nil
	}

	updateRefs := st.Strategy == state.Stacked
	var err error
	if st.UseWorktrees {
		err = e.syncWorktrees(st, updateRefs, res, logger)
	} else {
		err = e.syncShared(st, updateRefs, res, logger)
	}
	if err != nil {
		return res, err
	}

	if failed := res.Failed(); len(failed) > 0 {
		failures := make([]errors.ChunkFailure, 0, len(failed))
		for _, o := range failed {
			failures = append(failures, errors.ChunkFailure{Chunk: o.Chunk, Branch: o.Branch, Err: o.Err})
		}
		return res, errors.NewSyncError(failures)
	}
	logger.Info("all chunks rebased", "count", len(res.Outcomes))
	return res, nil
}

// syncShared rebases chunks one after another in the repository root. It
// stops at the first conflict and leaves that rebase in progress.
func (e *Engine) syncShared(st *state.MergesState, updateRefs bool, res *Result, logger *logging.Logger) error {
	if err := e.requireNoRebase(e.root); err != nil {
		return err
	}
	original, err := e.repo.CurrentBranch(e.root)
	if err != nil {
		return err
	}

	stoppedAt := ""
	for i, c := range st.Chunks {
		o := Outcome{Chunk: c.Name, Branch: c.Branch}
		switch {
		case stoppedAt != "":
			o.Err = errors.Wrapf(ErrNotAttempted, "'%s' is mid-rebase in %s", stoppedAt, e.root)
		default:
			if o.Err = e.repo.Checkout(e.root, c.Branch); o.Err == nil {
				o.Err = e.repo.FetchAndRebase(e.root, st.BaseBranch, updateRefs)
				if errors.Is(o.Err, errors.ErrRebaseConflict) {
					stoppedAt = c.Branch
				}
			}
		}
		res.Outcomes[i] = o
		e.report(logger, o)
	}

	if stoppedAt != "" {
		logger.Warn("sync stopped on conflicts", "branch", stoppedAt)
		return nil
	}
	if err := e.repo.Checkout(e.root, original); err != nil {
		logger.Error("failed to restore original branch", "branch", original, "error", err)
		return errors.Wrapf(err, "rebases finished but '%s' could not be checked out again", original)
	}
	return nil
}

// requireNoRebase fails when dir still holds a rebase from an earlier sync.
func (e *Engine) requireNoRebase(dir string) error {
	busy, err := e.repo.RebaseInProgress(dir)
	if err != nil {
		return err
	}
	if busy {
		return errors.NewGitError("a rebase is still in progress in "+dir+
			"; finish it with `git rebase --continue` or `git rebase --abort` first", errors.ErrRebaseConflict).
			WithRepository(dir).
			WithRetryable(true)
	}
	return nil
}

// syncWorktrees rebases every chunk in its own worktree concurrently and
// waits for all of them.
func (e *Engine) syncWorktrees(st *state.MergesState, updateRefs bool, res *Result, logger *logging.Logger) error {
	ws := workspace.New(e.repo, e.root, st, logger)

	var mu sync.Mutex
	p := pool.New()
	if e.maxParallel > 0 {
		p = p.WithMaxGoroutines(e.maxParallel)
	}
	for i, c := range st.Chunks {
		i, c := i, c
		p.Go(func() {
			o := Outcome{Chunk: c.Name, Branch: c.Branch}
			o.Err = ws.Do(c.Branch, func(dir string) error {
				if err := e.requireNoRebase(dir); err != nil {
					return err
				}
				return e.repo.FetchAndRebase(dir, st.BaseBranch, updateRefs)
			})

			mu.Lock()
			res.Outcomes[i] = o
			mu.Unlock()
			e.report(logger, o)
		})
	}
	p.Wait()
	return nil
}

func (e *Engine) report(logger *logging.Logger, o Outcome) {
	l := logger.WithChunk(o.Chunk)
	if o.Err != nil {
		l.Warn("rebase failed", "branch", o.Branch, "error", o.Err)
	} else {
		l.Info("rebased", "branch", o.Branch)
	}
	if e.progress != nil {
		e.progress(o)
	}
}

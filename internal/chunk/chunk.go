// Package chunk changes the membership of existing chunks. Every mutation
// rewrites the chunk branch so that its diff against the base keeps matching
// the chunk's file list, and returns a new state value only on success.
package chunk

import (
	"fmt"
	"slices"

	"github.com/Iron-Ham/merges/internal/errors"
	"github.com/Iron-Ham/merges/internal/logging"
	"github.com/Iron-Ham/merges/internal/ownership"
	"github.com/Iron-Ham/merges/internal/state"
	"github.com/Iron-Ham/merges/internal/workspace"
	"github.com/Iron-Ham/merges/internal/worktree"
)

// Commit messages used when a file is moved out of a chunk.
const (
	MsgUpdateFiles    = "chunk: update files"
	MsgEmptyAfterMove = "chunk: (empty after move)"
)

// Mutator adds and moves files between chunks.
type Mutator struct {
	repo   worktree.Repository
	root   string
	logger *logging.Logger
}

// New creates a Mutator for the repository at root.
func New(repo worktree.Repository, root string, logger *logging.Logger) *Mutator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Mutator{repo: repo, root: root, logger: logger}
}

// AddResult reports what AddFiles changed.
type AddResult struct {
	State *state.MergesState
	Added []string // files newly added, in request order
}

// AddFiles adds files from the source branch to the named chunk by amending
// its commit. Files already in the chunk are skipped; when nothing is left the
// call is a no-op and the returned state equals st.
func (m *Mutator) AddFiles(st *state.MergesState, chunkName string, files []string) (*AddResult, error) {
	logger := m.logger.WithOperation("add").WithChunk(chunkName)

	c, err := st.LookupChunk(chunkName)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.NewValidationError("no files provided").WithField("files")
	}
	if err := m.requireFilesInDiff(st, files); err != nil {
		return nil, err
	}

	idx := ownership.FromState(st)
	var added []string
	for _, f := range files {
		if owner, ok := idx.Owner(f); ok && owner != chunkName {
			return nil, errors.NewValidationError(fmt.Sprintf("file '%s' is already in chunk '%s'; use `merges move` instead", f, owner)).
				WithField("files").
				WithValue(f).
				WithCause(errors.ErrDuplicateFile)
		}
		if c.HasFile(f) || slices.Contains(added, f) {
			continue
		}
		added = append(added, f)
	}

	next := st.Clone()
	if len(added) == 0 {
		logger.Info("all files already in chunk")
		return &AddResult{State: next}, nil
	}

	ws := workspace.New(m.repo, m.root, st, logger)
	err = ws.Do(c.Branch, func(dir string) error {
		if err := m.repo.CheckoutFilesFrom(dir, st.SourceBranch, added); err != nil {
			return err
		}
		return m.repo.AmendAll(dir)
	})
	if err != nil {
		return nil, err
	}

	nc := &next.Chunks[next.FindChunk(chunkName)]
	nc.Files = append(nc.Files, added...)
	logger.Info("files added", "branch", c.Branch, "count", len(added))
	return &AddResult{State: next, Added: added}, nil
}

// MoveFile moves file from one chunk to another. The source chunk's commit is
// rebuilt without the file, then the file is amended into the destination.
// If the destination step fails the file is restored into the source chunk
// and the state is left unchanged.
func (m *Mutator) MoveFile(st *state.MergesState, file, fromName, toName string) (*state.MergesState, error) {
	logger := m.logger.WithOperation("move").With("file", file, "from", fromName, "to", toName)

	if fromName == toName {
		return nil, errors.NewValidationError(fmt.Sprintf("cannot move '%s': source and destination are both '%s'", file, fromName)).
			WithField("to").
			WithValue(toName)
	}
	from, err := st.LookupChunk(fromName)
	if err != nil {
		return nil, err
	}
	to, err := st.LookupChunk(toName)
	if err != nil {
		return nil, err
	}
	// Validate against the current owners before any branch is touched.
	if err := ownership.FromState(st).Transfer(file, fromName, toName); err != nil {
		return nil, err
	}

	ws := workspace.New(m.repo, m.root, st, logger)

	if err := ws.Do(from.Branch, func(dir string) error {
		return m.removeFromTip(dir, file)
	}); err != nil {
		return nil, err
	}

	if !to.HasFile(file) {
		err := ws.Do(to.Branch, func(dir string) error {
			return m.addToTip(dir, st.SourceBranch, file)
		})
		if err != nil {
			logger.Warn("destination update failed, restoring source chunk", "error", err)
			rb := errors.NewRollbackError("move")
			rb.Add(ws.Do(from.Branch, func(dir string) error {
				return m.addToTip(dir, st.SourceBranch, file)
			}))
			if rb.HasFailures() {
				logger.Error("failed to restore source chunk", "error", rb)
			}
			return nil, errors.WithRollback(err, rb)
		}
	}

	next := st.Clone()
	nf := &next.Chunks[next.FindChunk(fromName)]
	nf.Files = slices.DeleteFunc(nf.Files, func(f string) bool { return f == file })
	nt := &next.Chunks[next.FindChunk(toName)]
	if !nt.HasFile(file) {
		nt.Files = append(nt.Files, file)
	}
	logger.Info("file moved", "from_branch", from.Branch, "to_branch", to.Branch)
	return next, nil
}

// removeFromTip rebuilds the tip commit of dir's branch without file.
func (m *Mutator) removeFromTip(dir, file string) error {
	if err := m.repo.SoftResetParent(dir); err != nil {
		return err
	}
	if err := m.repo.UnstageAndDiscard(dir, file); err != nil {
		return err
	}
	staged, err := m.repo.StagedFiles(dir)
	if err != nil {
		return err
	}
	if len(staged) == 0 {
		return m.repo.CommitStaged(dir, MsgEmptyAfterMove, true)
	}
	return m.repo.CommitStaged(dir, MsgUpdateFiles, false)
}

// addToTip copies file from source and amends it into the tip commit.
func (m *Mutator) addToTip(dir, source, file string) error {
	if err := m.repo.CheckoutFilesFrom(dir, source, []string{file}); err != nil {
		return err
	}
	return m.repo.AmendAll(dir)
}

// requireFilesInDiff checks every file against the base...source diff. The
// repository root must have the source branch checked out.
func (m *Mutator) requireFilesInDiff(st *state.MergesState, files []string) error {
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
	for _, f := range files {
		if !slices.Contains(changed, f) {
			return errors.NewValidationError(fmt.Sprintf("file '%s' is not in the diff between '%s' and %s", f, st.BaseBranch, st.SourceBranch)).
				WithField("files").
				WithValue(f).
				WithCause(errors.ErrFileNotInDiff)
		}
	}
	return nil
}

package cleanup

import (
	"fmt"
	"os"
	"slices"

	"github.com/Iron-Ham/merges/internal/errors"
	"github.com/Iron-Ham/merges/internal/logging"
	"github.com/Iron-Ham/merges/internal/state"
	"github.com/Iron-Ham/merges/internal/worktree"
)

// Executor runs cleanup jobs using their snapshotted targets.
type Executor struct {
	repo   worktree.Repository
	logger *logging.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(repo worktree.Repository, logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Executor{repo: repo, logger: logger.WithOperation("clean")}
}

// Execute removes the worktree and branch of every target and returns st
// without the chunks that were fully removed. A target that fails is
// reported in the job results and kept in the returned state. The error is
// non-nil only when the job could not start.
func (e *Executor) Execute(job *Job, st *state.MergesState) (*state.MergesState, error) {
	results := &JobResults{}
	job.Results = results

	current, err := e.repo.CurrentBranch(job.Root)
	if err != nil {
		job.Status = JobStatusFailed
		return nil, err
	}
	if slices.Contains(job.Branches(), current) {
		if err := e.repo.Checkout(job.Root, job.BaseBranch); err != nil {
			job.Status = JobStatusFailed
			return nil, errors.Wrapf(err, "cannot switch away from '%s' before deleting it", current)
		}
		e.logger.Info("switched to base branch", "from", current, "to", job.BaseBranch)
	}

	for _, t := range job.Targets {
		if err := e.cleanTarget(job.Root, t, results); err != nil {
			results.Errors = append(results.Errors, err.Error())
			e.logger.WithChunk(t.Chunk).Warn("cleanup failed", "branch", t.Branch, "error", err)
			continue
		}
		results.Cleaned = append(results.Cleaned, t.Chunk)
		e.logger.WithChunk(t.Chunk).Info("chunk cleaned", "branch", t.Branch)
	}

	switch {
	case len(results.Errors) == 0:
		job.Status = JobStatusCompleted
	case len(results.Cleaned) == 0:
		job.Status = JobStatusFailed
	default:
		job.Status = JobStatusPartial
	}

	next := st.Clone()
	next.Chunks = slices.DeleteFunc(next.Chunks, func(c state.Chunk) bool {
		return slices.Contains(results.Cleaned, c.Name)
	})
	return next, nil
}

// cleanTarget removes one chunk's worktree, then its branch. Resources that
// are already gone count as removed.
func (e *Executor) cleanTarget(root string, t Target, results *JobResults) error {
	if t.Worktree != "" {
		if _, err := os.Stat(t.Worktree); err == nil {
			if err := e.repo.RemoveWorktree(root, t.Branch); err != nil {
				return fmt.Errorf("failed to remove worktree for %s: %w", t.Branch, err)
			}
			results.WorktreesRemoved++
		}
	}

	exists, err := e.repo.BranchExists(root, t.Branch)
	if err != nil {
		return fmt.Errorf("failed to check branch %s: %w", t.Branch, err)
	}
	if !exists {
		return nil
	}
	if err := e.repo.DeleteBranch(root, t.Branch); err != nil {
		return fmt.Errorf("failed to delete branch %s: %w", t.Branch, err)
	}
	results.BranchesDeleted++
	return nil
}

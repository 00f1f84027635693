// Package cleanup removes chunk branches and worktrees and drops the cleaned
// chunks from the state. Targets are snapshotted into a Job before anything
// is deleted, so the confirmation shown to the user is exactly what runs.
package cleanup

import (
	"github.com/Iron-Ham/merges/internal/state"
	"github.com/Iron-Ham/merges/internal/worktree"
)

// JobStatus represents the state of a cleanup job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusPartial   JobStatus = "partial"
	JobStatusFailed    JobStatus = "failed"
)

// Target is one chunk selected for cleanup at snapshot time.
type Target struct {
	Chunk    string
	Branch   string
	Worktree string // empty unless the state uses worktrees
}

// Job is a snapshot of the chunks to clean.
type Job struct {
	Root       string
	BaseBranch string
	Status     JobStatus
	Targets    []Target

	Results *JobResults
}

// JobResults contains the outcome of a cleanup job.
type JobResults struct {
	WorktreesRemoved int
	BranchesDeleted  int
	Cleaned          []string // chunk names removed from state
	Errors           []string
}

// Filter decides whether a chunk is cleaned.
type Filter func(c state.Chunk) (bool, error)

// All selects every chunk.
func All(state.Chunk) (bool, error) { return true, nil }

// PRLookup returns the state of a pull request, e.g. "OPEN", "MERGED" or "CLOSED".
type PRLookup func(number int) (string, error)

// MergedOnly selects chunks whose pull request is merged or closed. Chunks
// without a pull request, and chunks whose lookup fails, are kept.
func MergedOnly(lookup PRLookup) Filter {
	return func(c state.Chunk) (bool, error) {
		if c.PRNumber == nil {
			return false, nil
		}
		prState, err := lookup(*c.PRNumber)
		if err != nil {
			return false, nil
		}
		switch prState {
		case "MERGED", "CLOSED", "merged", "closed":
			return true, nil
		}
		return false, nil
	}
}

// NewJob snapshots the chunks of st accepted by filter. A nil filter selects all.
func NewJob(repo worktree.WorktreeManager, root string, st *state.MergesState, filter Filter) (*Job, error) {
	if filter == nil {
		filter = All
	}
	job := &Job{
		Root:       root,
		BaseBranch: st.BaseBranch,
		Status:     JobStatusPending,
	}
	for _, c := range st.Chunks {
		ok, err := filter(c)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		t := Target{Chunk: c.Name, Branch: c.Branch}
		if st.UseWorktrees {
			t.Worktree = repo.WorktreePath(root, c.Branch)
		}
		job.Targets = append(job.Targets, t)
	}
	return job, nil
}

// Empty reports whether the job has nothing to clean.
func (j *Job) Empty() bool { return len(j.Targets) == 0 }

// Branches lists the target branches in state order.
func (j *Job) Branches() []string {
	out := make([]string, 0, len(j.Targets))
	for _, t := range j.Targets {
		out = append(out, t.Branch)
	}
	return out
}

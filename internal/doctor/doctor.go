// Package doctor audits the persisted chunk state against the repository and
// optionally repairs what can be repaired without touching chunk content.
package doctor

import (
	"fmt"
	"os"
	"strings"

	"github.com/Iron-Ham/merges/internal/logging"
	"github.com/Iron-Ham/merges/internal/ownership"
	"github.com/Iron-Ham/merges/internal/state"
	"github.com/Iron-Ham/merges/internal/worktree"
)

// Kind classifies an Issue.
type Kind string

const (
	MissingBranch   Kind = "missing-branch"
	MissingWorktree Kind = "missing-worktree"
	NotExcluded     Kind = "not-excluded"
	DuplicateFile   Kind = "duplicate-file"
)

// Issue is one inconsistency found by Diagnose.
type Issue struct {
	Kind    Kind
	Chunk   string // empty for repository-wide issues
	Subject string // branch, worktree path or file the issue is about
	Message string
}

func (i Issue) String() string { return i.Message }

// Report is the outcome of a Diagnose run.
type Report struct {
	Issues   []Issue
	Repaired []string
}

// AllOK reports whether no issues remain.
func (r *Report) AllOK() bool { return len(r.Issues) == 0 }

// Checker runs consistency checks for one repository.
type Checker struct {
	repo   worktree.Repository
	root   string
	logger *logging.Logger
}

// New creates a Checker for the repository at root.
func New(repo worktree.Repository, root string, logger *logging.Logger) *Checker {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Checker{repo: repo, root: root, logger: logger.WithOperation("doctor")}
}

// Diagnose checks that every chunk branch exists, that every worktree exists
// in worktree mode, that the state file is excluded from git, and that no
// file is listed in two chunks. With repair set, the exclude entry is added;
// missing branches and worktrees are only reported.
func (c *Checker) Diagnose(st *state.MergesState, repair bool) (*Report, error) {
	r := &Report{}

	for _, ch := range st.Chunks {
		exists, err := c.repo.BranchExists(c.root, ch.Branch)
		if err != nil {
			return nil, err
		}
		if !exists {
			r.Issues = append(r.Issues, Issue{
				Kind:    MissingBranch,
				Chunk:   ch.Name,
				Subject: ch.Branch,
				Message: fmt.Sprintf("Chunk branch '%s' does not exist locally.", ch.Branch),
			})
		}
	}

	if st.UseWorktrees {
		for _, ch := range st.Chunks {
			path := c.repo.WorktreePath(c.root, ch.Branch)
			if _, err := os.Stat(path); err != nil {
				r.Issues = append(r.Issues, Issue{
					Kind:    MissingWorktree,
					Chunk:   ch.Name,
					Subject: path,
					Message: fmt.Sprintf("Worktree for branch '%s' missing at '%s'.", ch.Branch, path),
				})
			}
		}
	}

	excluded, err := worktree.IsExcluded(c.root, state.FileName)
	if err != nil {
		c.logger.Warn("could not read exclude file", "error", err)
	}
	if !excluded {
		issue := Issue{
			Kind:    NotExcluded,
			Subject: state.FileName,
			Message: fmt.Sprintf("%s is not in .git/info/exclude; it may appear as an untracked file.", state.FileName),
		}
		switch {
		case !repair:
			r.Issues = append(r.Issues, issue)
		default:
			if err := worktree.EnsureExcluded(c.root, state.FileName); err != nil {
				c.logger.Warn("repair failed", "issue", string(NotExcluded), "error", err)
				r.Issues = append(r.Issues, issue)
			} else {
				c.logger.Info("repaired", "issue", string(NotExcluded))
				r.Repaired = append(r.Repaired, fmt.Sprintf("added %s to .git/info/exclude", state.FileName))
			}
		}
	}

	for _, conflict := range ownership.FromState(st).Conflicts() {
		r.Issues = append(r.Issues, Issue{
			Kind:    DuplicateFile,
			Chunk:   conflict.Chunks[1],
			Subject: conflict.Path,
			Message: fmt.Sprintf("File '%s' appears in multiple chunks (%s); the state may be corrupted.",
				conflict.Path, strings.Join(conflict.Chunks, ", ")),
		})
	}

	c.logger.Info("diagnosis complete", "issues", len(r.Issues), "repaired", len(r.Repaired))
	return r, nil
}

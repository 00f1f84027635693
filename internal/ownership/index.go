package ownership

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Iron-Ham/merges/internal/errors"
	"github.com/Iron-Ham/merges/internal/state"
)

// Conflict is a path claimed by more than one chunk in the persisted state.
type Conflict struct {
	Path   string
	Chunks []string // in state order; the first is the recorded owner
}

// Index maps file paths to the chunk that owns them.
type Index struct {
	mu        sync.RWMutex
	owners    map[string]string
	conflicts map[string][]string
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		owners:    make(map[string]string),
		conflicts: make(map[string][]string),
	}
}

// FromState builds an Index from every chunk in st.
func FromState(st *state.MergesState) *Index {
	idx := New()
	for _, c := range st.Chunks {
		for _, f := range c.Files {
			owner, ok := idx.owners[f]
			if !ok {
				idx.owners[f] = c.Name
				continue
			}
			if owner == c.Name {
				continue
			}
			if _, seen := idx.conflicts[f]; !seen {
				idx.conflicts[f] = []string{owner}
			}
			idx.conflicts[f] = append(idx.conflicts[f], c.Name)
		}
	}
	return idx
}

// claimLocked performs a single claim while the write lock is held.
// Reports whether a new claim was recorded.
func (x *Index) claimLocked(chunk, path string) (bool, error) {
	if owner, ok := x.owners[path]; ok {
		if owner == chunk {
			return false, nil
		}
		return false, duplicateError(path, owner)
	}
	x.owners[path] = chunk
	return true, nil
}

// ClaimMultiple assigns every path to chunk. If any claim fails, the claims
// made by this call are rolled back. Duplicates inside paths fail as well.
func (x *Index) ClaimMultiple(chunk string, paths []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	seen := make(map[string]bool, len(paths))
	var claimed []string
	for _, p := range paths {
		if seen[p] {
			x.releaseAllLocked(chunk, claimed)
			return errors.NewValidationError(fmt.Sprintf("file '%s' is listed twice for chunk '%s'", p, chunk)).
				WithField("files").
				WithValue(p).
				WithCause(errors.ErrDuplicateFile)
		}
		seen[p] = true

		added, err := x.claimLocked(chunk, p)
		if err != nil {
			x.releaseAllLocked(chunk, claimed)
			return err
		}
		if added {
			claimed = append(claimed, p)
		}
	}
	return nil
}

func (x *Index) releaseAllLocked(chunk string, paths []string) {
	for _, p := range paths {
		if x.owners[p] == chunk {
			delete(x.owners, p)
		}
	}
}

// Transfer moves path from one chunk to another in a single step. It fails
// with ErrFileNotInChunk when from does not own path.
func (x *Index) Transfer(path, from, to string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.owners[path] != from {
		return notInChunkError(path, from)
	}
	x.owners[path] = to
	return nil
}

// Owner returns the chunk that owns path and true, or ("", false) if the path
// is unassigned.
func (x *Index) Owner(path string) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	owner, ok := x.owners[path]
	return owner, ok
}

// IsAvailable returns true if no chunk owns path.
func (x *Index) IsAvailable(path string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()

	_, ok := x.owners[path]
	return !ok
}

// Conflicts returns the duplicate assignments found by FromState, sorted by path.
func (x *Index) Conflicts() []Conflict {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]Conflict, 0, len(x.conflicts))
	for p, chunks := range x.conflicts {
		out = append(out, Conflict{Path: p, Chunks: append([]string(nil), chunks...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Clone returns an independent copy, used to validate a batch of claims
// without touching the original.
func (x *Index) Clone() *Index {
	x.mu.RLock()
	defer x.mu.RUnlock()

	c := New()
	for p, owner := range x.owners {
		c.owners[p] = owner
	}
	for p, chunks := range x.conflicts {
		c.conflicts[p] = append([]string(nil), chunks...)
	}
	return c
}

func duplicateError(path, owner string) error {
	return errors.NewValidationError(fmt.Sprintf("file '%s' is already in chunk '%s'", path, owner)).
		WithField("files").
		WithValue(path).
		WithCause(errors.ErrDuplicateFile)
}

func notInChunkError(path, chunk string) error {
	return errors.NewValidationError(fmt.Sprintf("file '%s' is not in chunk '%s'", path, chunk)).
		WithField("file").
		WithValue(path).
		WithCause(errors.ErrFileNotInChunk)
}

// Package state persists the merges chunk plan in .merges.json at the
// repository root.
package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/Iron-Ham/merges/internal/errors"
)

// FileName is the state file created by `merges init`.
const FileName = ".merges.json"

// Strategy selects how chunk branches relate to each other.
type Strategy string

const (
	// Stacked chunks each build on the previous chunk's branch.
	Stacked Strategy = "stacked"
	// Independent chunks all target the base branch.
	Independent Strategy = "independent"
)

// ParseStrategy converts a configuration or flag value into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case Stacked:
		return Stacked, nil
	case Independent:
		return Independent, nil
	default:
		return "", errors.NewValidationError(fmt.Sprintf("unknown strategy %q (want stacked or independent)", s)).
			WithField("strategy").
			WithValue(s)
	}
}

// UnmarshalJSON rejects unknown strategy values.
func (s *Strategy) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStrategy(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Chunk is one reviewable slice of the source branch.
type Chunk struct {
	Name     string   `json:"name"`
	Branch   string   `json:"branch"`
	Files    []string `json:"files"`
	PRNumber *int     `json:"pr_number,omitempty"`
	PRURL    string   `json:"pr_url,omitempty"`
}

// HasFile reports whether file belongs to the chunk.
func (c *Chunk) HasFile(file string) bool {
	return slices.Contains(c.Files, file)
}

// MergesState is the root of the persisted state. Each command loads it,
// mutates a copy, and saves it once the operation has fully succeeded.
type MergesState struct {
	BaseBranch   string   `json:"base_branch"`
	SourceBranch string   `json:"source_branch"`
	RepoOwner    string   `json:"repo_owner"`
	RepoName     string   `json:"repo_name"`
	Strategy     Strategy `json:"strategy"`
	UseWorktrees bool     `json:"use_worktrees,omitempty"`
	CommitPrefix string   `json:"commit_prefix,omitempty"`
	Chunks       []Chunk  `json:"chunks"`
}

// Path returns the state file location for a repository root.
func Path(root string) string {
	return filepath.Join(root, FileName)
}

// Exists reports whether a state file is present.
func Exists(root string) bool {
	_, err := os.Stat(Path(root))
	return err == nil
}

// Load reads the state file for root.
func Load(root string) (*MergesState, error) {
	path := Path(root)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.NewStateError("Could not read "+FileName+". Run `merges init` first.", errors.ErrStateNotFound).
			WithPath(path)
	}
	if err != nil {
		return nil, errors.NewStateError("Could not read "+FileName, err).WithPath(path)
	}

	var s MergesState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.NewStateError("Failed to parse "+FileName, errors.Join(errors.ErrStateCorrupted, err)).
			WithPath(path).
			WithHint("Fix or delete the file and run `merges init` again.")
	}
	if s.Chunks == nil {
		s.Chunks = []Chunk{}
	}
	return &s, nil
}

// Save writes the state as indented JSON, replacing the file atomically.
func (s *MergesState) Save(root string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.NewStateError("Failed to encode state", err)
	}
	data = append(data, '\n')

	path := Path(root)
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return errors.NewStateError("Failed to write "+FileName, err).WithPath(path)
	}
	return nil
}

// Clone returns a deep copy.
func (s *MergesState) Clone() *MergesState {
	c := *s
	c.Chunks = make([]Chunk, len(s.Chunks))
	for i, ch := range s.Chunks {
		c.Chunks[i] = ch
		c.Chunks[i].Files = slices.Clone(ch.Files)
		if ch.PRNumber != nil {
			n := *ch.PRNumber
			c.Chunks[i].PRNumber = &n
		}
	}
	return &c
}

// FindChunk returns the index of the chunk called name, or -1.
func (s *MergesState) FindChunk(name string) int {
	for i := range s.Chunks {
		if s.Chunks[i].Name == name {
			return i
		}
	}
	return -1
}

// ChunkNames lists chunk names in order.
func (s *MergesState) ChunkNames() []string {
	names := make([]string, len(s.Chunks))
	for i, c := range s.Chunks {
		names[i] = c.Name
	}
	return names
}

// LookupChunk returns the chunk called name or a NotFoundError listing the
// available names.
func (s *MergesState) LookupChunk(name string) (*Chunk, error) {
	idx := s.FindChunk(name)
	if idx < 0 {
		return nil, errors.NewNotFoundError("chunk", name).
			WithCause(errors.ErrChunkNotFound).
			WithAvailable(s.ChunkNames())
	}
	return &s.Chunks[idx], nil
}

// MessagePrefix returns the explicit commit prefix, or the ticket code
// detected by detect from the source branch.
func (s *MergesState) MessagePrefix(detect func(string) string) string {
	if s.CommitPrefix != "" {
		return s.CommitPrefix
	}
	return detect(s.SourceBranch)
}

// Slug lowercases name and replaces spaces with dashes.
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

// BranchName derives the branch for the n-th chunk of source.
func BranchName(source string, n int, name string) string {
	return fmt.Sprintf("%s-chunk-%d-%s", source, n, Slug(name))
}

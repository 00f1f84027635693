// Package planner produces chunk plans: an ordered list of named file groups
// that the split engine turns into branches. Plans come from automatic
// directory grouping, named path rules, an inline JSON flag, or a plan file.
package planner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/merges/internal/errors"
)

// Entry is one chunk in a plan.
type Entry struct {
	Name  string   `json:"name" yaml:"name"`
	Files []string `json:"files" yaml:"files"`
}

// Plan is an ordered list of chunks to create.
type Plan []Entry

// Files returns every file in the plan in plan order.
func (p Plan) Files() []string {
	var files []string
	for _, e := range p {
		files = append(files, e.Files...)
	}
	return files
}

// Validate checks the plan's structure: it must be non-empty, every entry
// needs a name and at least one file, and names must be unique.
func (p Plan) Validate() error {
	if len(p) == 0 {
		return errors.NewValidationError("chunk plan is empty; provide at least one chunk with files").
			WithField("plan").
			WithCause(errors.ErrEmptyPlan)
	}

	seen := make(map[string]bool, len(p))
	for i, e := range p {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return errors.NewValidationError(fmt.Sprintf("chunk %d has no name", i+1)).
				WithField("name")
		}
		if seen[name] {
			return errors.NewValidationError(fmt.Sprintf("chunk name '%s' is used more than once", name)).
				WithField("name").
				WithValue(name)
		}
		seen[name] = true

		if len(e.Files) == 0 {
			return errors.NewValidationError(fmt.Sprintf("chunk '%s' has no files", name)).
				WithField("files").
				WithValue(name).
				WithCause(errors.ErrEmptyPlan)
		}
		for _, f := range e.Files {
			if strings.TrimSpace(f) == "" {
				return errors.NewValidationError(fmt.Sprintf("chunk '%s' lists an empty file path", name)).
					WithField("files").
					WithValue(name)
			}
		}
	}
	return nil
}

// ParsePlan reads the inline JSON form: [{"name": "...", "files": ["..."]}].
func ParsePlan(data string) (Plan, error) {
	var plan Plan
	if err := json.Unmarshal([]byte(data), &plan); err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid plan JSON: %v", err)).
			WithField("plan").
			WithCause(err)
	}
	return plan, nil
}

// planFile is the document form of a plan file. A bare list is accepted too.
type planFile struct {
	Chunks Plan `json:"chunks" yaml:"chunks"`
}

// LoadPlanFile reads a plan from a .yaml, .yml or .json file. The file holds
// either a list of entries or a document with a top-level "chunks" list.
func LoadPlanFile(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}

	var plan Plan
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		plan, err = decodePlan(data, yaml.Unmarshal)
	case ".json":
		plan, err = decodePlan(data, json.Unmarshal)
	default:
		return nil, errors.NewValidationError(fmt.Sprintf("unsupported plan file extension %q (want .yaml, .yml or .json)", ext)).
			WithField("plan-file").
			WithValue(path)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing plan file %s: %w", path, err)
	}
	return plan, nil
}

func decodePlan(data []byte, unmarshal func([]byte, any) error) (Plan, error) {
	var list Plan
	if err := unmarshal(data, &list); err == nil {
		return list, nil
	}
	var doc planFile
	if err := unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Chunks, nil
}

// IsPattern reports whether s contains glob metacharacters.
func IsPattern(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// ExpandPatterns replaces glob patterns in plan entries with the changed
// files they match, in diff order. Literal paths are kept as written. A
// pattern that matches nothing is an error, and so is a literal path listed
// twice in one entry. Files a pattern matches are not repeated.
func ExpandPatterns(plan Plan, diff []string) (Plan, error) {
	out := make(Plan, 0, len(plan))
	for _, e := range plan {
		files := make([]string, 0, len(e.Files))
		literals := make(map[string]bool, len(e.Files))
		for _, item := range e.Files {
			if !IsPattern(item) {
				if literals[item] {
					return nil, errors.NewValidationError(fmt.Sprintf("file '%s' is listed twice in chunk '%s'", item, e.Name)).
						WithField("files").
						WithValue(item).
						WithCause(errors.ErrDuplicateFile)
				}
				literals[item] = true
				if !slices.Contains(files, item) {
					files = append(files, item)
				}
				continue
			}

			if !doublestar.ValidatePattern(item) {
				return nil, errors.NewValidationError(fmt.Sprintf("invalid pattern '%s' in chunk '%s'", item, e.Name)).
					WithField("files").
					WithValue(item)
			}
			matched := false
			for _, f := range diff {
				if ok, _ := doublestar.Match(item, f); ok {
					matched = true
					if !slices.Contains(files, f) {
						files = append(files, f)
					}
				}
			}
			if !matched {
				return nil, errors.NewValidationError(fmt.Sprintf("pattern '%s' in chunk '%s' matches no changed files", item, e.Name)).
					WithField("files").
					WithValue(item).
					WithCause(errors.ErrFileNotInDiff)
			}
		}
		out = append(out, Entry{Name: e.Name, Files: files})
	}
	return out, nil
}

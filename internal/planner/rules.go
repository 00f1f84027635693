package planner

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Rule names a group and the path patterns that select its files.
type Rule struct {
	Name  string   `yaml:"name"`
	Paths []string `yaml:"paths"`
}

// Rules is an ordered rule set. The first matching rule wins.
type Rules struct {
	Groups []Rule `yaml:"groups"`
}

// LoadRules loads grouping rules from a YAML file:
//
//	groups:
//	  - name: models
//	    paths: ["src/models/**", "migrations/**"]
//	  - name: api
//	    paths: ["src/api/**"]
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}

	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}
	return &rules, nil
}

// Validate checks that every rule has a unique name and valid patterns.
func (r *Rules) Validate() error {
	seen := make(map[string]bool, len(r.Groups))
	for i, g := range r.Groups {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			return fmt.Errorf("rule %d has no name", i+1)
		}
		if seen[name] {
			return fmt.Errorf("rule name '%s' is used more than once", name)
		}
		seen[name] = true

		if len(g.Paths) == 0 {
			return fmt.Errorf("rule '%s' has no paths", name)
		}
		for _, p := range g.Paths {
			if !doublestar.ValidatePattern(p) {
				return fmt.Errorf("rule '%s' has invalid pattern: %s", name, p)
			}
		}
	}
	return nil
}

// Match returns the name of the first rule matching path.
func (r *Rules) Match(path string) (string, bool) {
	for _, g := range r.Groups {
		for _, pattern := range g.Paths {
			if ok, _ := doublestar.Match(pattern, path); ok {
				return g.Name, true
			}
		}
	}
	return "", false
}

// GroupByRules assigns each file to the first rule that matches it. Rule
// groups come first, in rule order; files no rule matches are grouped with
// AutoGroup and follow, sorted by name. A fallback group whose name equals a
// rule's name is merged into that rule's group. Rules that match nothing are
// omitted. Files inside each entry are sorted.
func GroupByRules(files []string, rules *Rules) Plan {
	if rules == nil || len(rules.Groups) == 0 {
		return AutoGroup(files)
	}

	matched := make(map[string][]string)
	var rest []string
	for _, f := range files {
		if name, ok := rules.Match(f); ok {
			matched[name] = append(matched[name], f)
			continue
		}
		rest = append(rest, f)
	}

	var fallback Plan
	for _, e := range AutoGroup(rest) {
		if rules.has(e.Name) {
			matched[e.Name] = append(matched[e.Name], e.Files...)
			continue
		}
		fallback = append(fallback, e)
	}

	plan := make(Plan, 0, len(rules.Groups)+len(fallback))
	for _, g := range rules.Groups {
		files, ok := matched[g.Name]
		if !ok {
			continue
		}
		files = append([]string(nil), files...)
		sort.Strings(files)
		plan = append(plan, Entry{Name: g.Name, Files: files})
	}
	return append(plan, fallback...)
}

func (r *Rules) has(name string) bool {
	for _, g := range r.Groups {
		if g.Name == name {
			return true
		}
	}
	return false
}

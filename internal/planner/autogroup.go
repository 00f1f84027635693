package planner

import (
	"sort"
	"strings"
)

// RootGroup names the group for files at the repository root.
const RootGroup = "root"

// AutoGroup partitions files by directory.
//
// Files without a directory go to "root". Files with one directory level use
// that directory. Deeper files use their top-level directory, unless every
// non-root file shares one top-level directory, in which case the second
// level is used so that src/models/* and src/api/* become separate groups.
//
// Entries are sorted by name and the files inside each entry are sorted.
// Every input file appears exactly once; empty input yields an empty plan.
func AutoGroup(files []string) Plan {
	if len(files) == 0 {
		return Plan{}
	}

	tops := make(map[string]bool)
	for _, f := range files {
		parts := segments(f)
		if len(parts) > 1 {
			tops[parts[0]] = true
		}
	}
	secondLevel := len(tops) == 1

	groups := make(map[string][]string)
	for _, f := range files {
		key := groupKey(segments(f), secondLevel)
		groups[key] = append(groups[key], f)
	}

	return fromGroups(groups)
}

func groupKey(parts []string, secondLevel bool) string {
	switch len(parts) {
	case 0, 1:
		return RootGroup
	case 2:
		return parts[0]
	default:
		if secondLevel {
			return parts[1]
		}
		return parts[0]
	}
}

// segments splits a repository-relative path, ignoring empty and "." parts.
func segments(path string) []string {
	raw := strings.Split(path, "/")
	parts := raw[:0]
	for _, p := range raw {
		if p != "" && p != "." {
			parts = append(parts, p)
		}
	}
	return parts
}

func fromGroups(groups map[string][]string) Plan {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	plan := make(Plan, 0, len(names))
	for _, name := range names {
		files := append([]string(nil), groups[name]...)
		sort.Strings(files)
		plan = append(plan, Entry{Name: name, Files: files})
	}
	return plan
}

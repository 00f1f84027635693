package worktree

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/merges/internal/errors"
)

func excludeFile(root string) string {
	return filepath.Join(root, ".git", "info", "exclude")
}

// IsExcluded reports whether pattern is listed in .git/info/exclude.
func IsExcluded(root, pattern string) (bool, error) {
	data, err := os.ReadFile(excludeFile(root))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to read .git/info/exclude")
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == pattern {
			return true, nil
		}
	}
	return false, nil
}

// EnsureExcluded appends pattern to .git/info/exclude unless it is already
// there. The local exclude file keeps .merges.json out of diffs and checkouts
// without touching the project's .gitignore.
func EnsureExcluded(root, pattern string) error {
	excluded, err := IsExcluded(root, pattern)
	if err != nil {
		return err
	}
	if excluded {
		return nil
	}

	path := excludeFile(root)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "failed to create .git/info")
	}

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to read .git/info/exclude")
	}

	entry := pattern + "\n"
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		entry = "\n" + entry
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "failed to open .git/info/exclude")
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(entry); err != nil {
		return errors.Wrap(err, "failed to update .git/info/exclude")
	}
	return nil
}

// EnableRerere turns on rerere so conflict resolutions recorded during one
// sync are replayed on the next.
func (r *CLIRepository) EnableRerere(root string) error {
	for _, kv := range [][2]string{{"rerere.enabled", "true"}, {"rerere.autoupdate", "true"}} {
		output, err := r.git(root, "config", kv[0], kv[1])
		if err != nil {
			return errors.NewGitError("failed to set "+kv[0], err).
				WithRepository(root).
				WithGitOutput(string(output))
		}
	}
	return nil
}

package worktree

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/merges/internal/errors"
)

// ParseOwnerRepo extracts owner and repository name from a GitHub remote URL.
// Both https://github.com/owner/repo(.git) and git@github.com:owner/repo(.git)
// forms are accepted; surrounding whitespace is ignored.
func ParseOwnerRepo(url string) (owner, repo string, err error) {
	stripped := strings.TrimSpace(url)
	stripped = strings.TrimSuffix(stripped, "/")
	stripped = strings.TrimSuffix(stripped, ".git")
	stripped = strings.TrimSuffix(stripped, "/")

	for _, prefix := range []string{"git@github.com:", "https://github.com/", "ssh://git@github.com/"} {
		rest, ok := strings.CutPrefix(stripped, prefix)
		if !ok {
			continue
		}
		owner, repo, found := strings.Cut(rest, "/")
		if found && owner != "" && repo != "" {
			return owner, repo, nil
		}
	}

	return "", "", errors.NewValidationError(fmt.Sprintf("Cannot parse GitHub owner/repo from remote URL: %s", strings.TrimSpace(url))).
		WithField("remote").
		WithValue(strings.TrimSpace(url))
}

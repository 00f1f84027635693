// Package pr publishes chunk branches as pull requests. Pull requests are
// managed through a Service; GHService implements it over the gh CLI.
package pr

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Iron-Ham/merges/internal/errors"
	"github.com/Iron-Ham/merges/internal/worktree"
)

// CreateOptions contains options for PR creation.
type CreateOptions struct {
	Title     string
	Body      string
	Head      string
	Base      string
	Draft     bool
	Reviewers []string
	Labels    []string
}

// Info is the live status of a pull request.
type Info struct {
	Number int
	URL    string
	State  string // OPEN, CLOSED or MERGED
	CI     string // passing, failing, pending or none
	Review string // approved, changes requested, review required or none
}

// Service creates and inspects pull requests.
type Service interface {
	// Create opens a pull request and returns its number and URL.
	Create(opts CreateOptions) (int, string, error)
	// UpdateBase retargets an existing pull request.
	UpdateBase(number int, base string) error
	// View returns the pull request's current status.
	View(number int) (*Info, error)
}

// GHService implements Service with the gh CLI.
type GHService struct {
	executor worktree.CommandExecutor
	dir      string
	repo     string // owner/name; empty lets gh infer it from dir
}

var _ Service = (*GHService)(nil)

// NewGHService creates a GHService that runs gh in dir against owner/name.
func NewGHService(executor worktree.CommandExecutor, dir, owner, name string) *GHService {
	s := &GHService{executor: executor, dir: dir}
	if owner != "" && name != "" {
		s.repo = owner + "/" + name
	}
	return s
}

func (s *GHService) gh(args ...string) ([]byte, error) {
	if s.repo != "" {
		args = append(args, "--repo", s.repo)
	}
	out, err := s.executor.Run(s.dir, "gh", args...)
	if err != nil {
		return out, fmt.Errorf("gh %s failed: %w\n%s", args[0]+" "+args[1], err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

var prURLPattern = regexp.MustCompile(`https://\S+/pull/(\d+)`)

// Create runs gh pr create and parses the URL it prints.
func (s *GHService) Create(opts CreateOptions) (int, string, error) {
	args := []string{"pr", "create",
		"--title", opts.Title,
		"--body", opts.Body,
		"--head", opts.Head,
		"--base", opts.Base,
	}

	if opts.Draft {
		args = append(args, "--draft")
	}

	for _, reviewer := range opts.Reviewers {
		args = append(args, "--reviewer", reviewer)
	}

	for _, label := range opts.Labels {
		args = append(args, "--label", label)
	}

	out, err := s.gh(args...)
	if err != nil {
		return 0, "", errors.Wrapf(err, "failed to create PR for %s", opts.Head)
	}

	m := prURLPattern.FindStringSubmatch(string(out))
	if m == nil {
		return 0, "", fmt.Errorf("could not find a PR URL in gh output for %s:\n%s", opts.Head, strings.TrimSpace(string(out)))
	}
	number, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", fmt.Errorf("invalid PR number in %q: %w", m[0], err)
	}
	return number, m[0], nil
}

// UpdateBase runs gh pr edit --base.
func (s *GHService) UpdateBase(number int, base string) error {
	if _, err := s.gh("pr", "edit", strconv.Itoa(number), "--base", base); err != nil {
		return errors.Wrapf(err, "failed to update base of PR #%d to %s", number, base)
	}
	return nil
}

type viewResponse struct {
	Number            int    `json:"number"`
	URL               string `json:"url"`
	State             string `json:"state"`
	ReviewDecision    string `json:"reviewDecision"`
	StatusCheckRollup []struct {
		Status     string `json:"status"`
		Conclusion string `json:"conclusion"`
		State      string `json:"state"`
	} `json:"statusCheckRollup"`
}

// View runs gh pr view --json.
func (s *GHService) View(number int) (*Info, error) {
	out, err := s.gh("pr", "view", strconv.Itoa(number), "--json", "number,url,state,reviewDecision,statusCheckRollup")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to view PR #%d", number)
	}

	var resp viewResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse gh output for PR #%d: %w", number, err)
	}

	info := &Info{
		Number: resp.Number,
		URL:    resp.URL,
		State:  resp.State,
		Review: reviewLabel(resp.ReviewDecision),
	}
	info.CI = ciLabel(resp)
	return info, nil
}

// ciLabel folds check runs (Conclusion) and commit statuses (State) into
// one label. Any failure wins over pending, which wins over passing.
func ciLabel(resp viewResponse) string {
	if len(resp.StatusCheckRollup) == 0 {
		return "none"
	}
	var failing, pending bool
	for _, c := range resp.StatusCheckRollup {
		result := strings.ToUpper(c.Conclusion)
		if result == "" {
			result = strings.ToUpper(c.State)
		}
		switch result {
		case "SUCCESS", "NEUTRAL", "SKIPPED":
		case "", "PENDING", "EXPECTED", "QUEUED", "IN_PROGRESS":
			pending = true
		default:
			failing = true
		}
	}
	switch {
	case failing:
		return "failing"
	case pending:
		return "pending"
	default:
		return "passing"
	}
}

func reviewLabel(decision string) string {
	switch decision {
	case "APPROVED":
		return "approved"
	case "CHANGES_REQUESTED":
		return "changes requested"
	case "REVIEW_REQUIRED":
		return "review required"
	default:
		return "none"
	}
}

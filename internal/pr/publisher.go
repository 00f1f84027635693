package pr

import (
	"github.com/Iron-Ham/merges/internal/errors"
	"github.com/Iron-Ham/merges/internal/logging"
	"github.com/Iron-Ham/merges/internal/state"
	"github.com/Iron-Ham/merges/internal/worktree"
)

// Options controls how pull requests are created.
type Options struct {
	Draft            bool
	Labels           []string
	DefaultReviewers []string
	ReviewersByPath  map[string][]string
	BodyTemplate     string
}

// Action is what Publish did for one chunk.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// ChunkResult reports the outcome for one chunk.
type ChunkResult struct {
	Chunk  string
	Branch string
	Base   string
	Action Action
	Number int
	URL    string
}

// Publisher pushes chunk branches and opens or retargets their PRs.
type Publisher struct {
	repo   worktree.Repository
	svc    Service
	root   string
	opts   Options
	logger *logging.Logger
}

// NewPublisher creates a Publisher for the repository at root.
func NewPublisher(repo worktree.Repository, svc Service, root string, opts Options, logger *logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Publisher{repo: repo, svc: svc, root: root, opts: opts, logger: logger.WithOperation("push")}
}

// BaseFor returns the branch chunk i's PR targets: the previous chunk's
// branch in a stack, otherwise the base branch.
func BaseFor(st *state.MergesState, i int) string {
	if st.Strategy == state.Stacked && i > 0 {
		return st.Chunks[i-1].Branch
	}
	return st.BaseBranch
}

// Title returns the PR title for a chunk, ticket-prefixed like its commits.
func Title(st *state.MergesState, c state.Chunk) string {
	return worktree.FormatMessage(st.MessagePrefix(worktree.TicketPrefix), c.Name)
}

// Publish pushes every chunk branch in order, creates a PR for each chunk
// that has none, and retargets existing PRs to match the strategy. The
// returned state records every PR created, even when a later chunk fails,
// so callers should save it whenever it is non-nil.
func (p *Publisher) Publish(st *state.MergesState) (*state.MergesState, []ChunkResult, error) {
	next := st.Clone()
	var results []ChunkResult

	for i := range next.Chunks {
		c := &next.Chunks[i]
		logger := p.logger.WithChunk(c.Name)

		if err := p.repo.Push(p.root, c.Branch); err != nil {
			return next, results, err
		}
		logger.Info("pushed", "branch", c.Branch)

		base := BaseFor(next, i)
		res := ChunkResult{Chunk: c.Name, Branch: c.Branch, Base: base}

		if c.PRNumber != nil {
			if err := p.svc.UpdateBase(*c.PRNumber, base); err != nil {
				return next, results, err
			}
			res.Action, res.Number, res.URL = ActionUpdated, *c.PRNumber, c.PRURL
			logger.Info("pr base updated", "number", *c.PRNumber, "base", base)
			results = append(results, res)
			continue
		}

		body, err := RenderTemplate(p.opts.BodyTemplate, templateData(next, i, base))
		if err != nil {
			return next, results, errors.NewValidationError("invalid pr.body_template: " + err.Error()).
				WithField("pr.body_template").
				WithCause(err)
		}

		number, url, err := p.svc.Create(CreateOptions{
			Title:     Title(next, *c),
			Body:      body,
			Head:      c.Branch,
			Base:      base,
			Draft:     p.opts.Draft,
			Reviewers: ResolveReviewers(c.Files, p.opts.DefaultReviewers, p.opts.ReviewersByPath),
			Labels:    p.opts.Labels,
		})
		if err != nil {
			return next, results, err
		}
		c.PRNumber = &number
		c.PRURL = url
		res.Action, res.Number, res.URL = ActionCreated, number, url
		logger.Info("pr created", "number", number, "url", url, "base", base)
		results = append(results, res)
	}

	return next, results, nil
}

func templateData(st *state.MergesState, i int, base string) TemplateData {
	c := st.Chunks[i]
	stack := make([]StackEntry, 0, len(st.Chunks))
	for j, other := range st.Chunks {
		stack = append(stack, StackEntry{
			Ordinal: j + 1,
			Name:    other.Name,
			Branch:  other.Branch,
			PRURL:   other.PRURL,
			Current: j == i,
		})
	}
	return TemplateData{
		Name:     c.Name,
		Ordinal:  i + 1,
		Total:    len(st.Chunks),
		Branch:   c.Branch,
		Base:     base,
		Source:   st.SourceBranch,
		Strategy: string(st.Strategy),
		Files:    c.Files,
		Stack:    stack,
	}
}

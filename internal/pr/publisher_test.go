package pr

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/merges/internal/planner"
	"github.com/Iron-Ham/merges/internal/split"
	"github.com/Iron-Ham/merges/internal/state"
	"github.com/Iron-Ham/merges/internal/worktree/worktreetest"
)

type fakeService struct {
	next    int
	created []CreateOptions
	rebased map[int]string
	failOn  string // head branch whose Create fails
}

func (f *fakeService) Create(opts CreateOptions) (int, string, error) {
	if opts.Head == f.failOn {
		return 0, "", errors.New("gh: validation failed")
	}
	f.next++
	f.created = append(f.created, opts)
	return f.next, fmt.Sprintf("https://github.com/acme/app/pull/%d", f.next), nil
}

func (f *fakeService) UpdateBase(number int, base string) error {
	if f.rebased == nil {
		f.rebased = map[int]string{}
	}
	f.rebased[number] = base
	return nil
}

func (f *fakeService) View(number int) (*Info, error) {
	return &Info{Number: number, State: "OPEN", CI: "none", Review: "none"}, nil
}

func setup(t *testing.T, source string, strategy state.Strategy) (string, *worktreetest.FakeRepo, *state.MergesState) {
	t.Helper()
	root := t.TempDir()
	repo := worktreetest.NewFakeRepo(root, "main", source, "models/user.go", "api/routes.go", "docs/api.md")
	st := &state.MergesState{BaseBranch: "main", SourceBranch: source, RepoOwner: "acme", RepoName: "app", Strategy: strategy}
	st, err := split.New(repo, root).ApplyPlan(st, planner.Plan{
		{Name: "models", Files: []string{"models/user.go"}},
		{Name: "api", Files: []string{"api/routes.go"}},
		{Name: "docs", Files: []string{"docs/api.md"}},
	})
	require.NoError(t, err)
	return root, repo, st
}

func TestPublish_Stacked(t *testing.T) {
	root, repo, st := setup(t, "ABC-12-feature", state.Stacked)
	svc := &fakeService{}
	opts := Options{
		Draft:            true,
		Labels:           []string{"chunk"},
		DefaultReviewers: []string{"@lead"},
		ReviewersByPath:  map[string][]string{"api/**": {"api-team"}},
	}

	next, results, err := NewPublisher(repo, svc, root, opts, nil).Publish(st)
	require.NoError(t, err)

	assert.Equal(t, []string{"ABC-12-feature-chunk-1-models", "ABC-12-feature-chunk-2-api", "ABC-12-feature-chunk-3-docs"}, repo.Pushed())
	require.Len(t, svc.created, 3)
	assert.Equal(t, "main", svc.created[0].Base)
	assert.Equal(t, "ABC-12-feature-chunk-1-models", svc.created[1].Base)
	assert.Equal(t, "ABC-12-feature-chunk-2-api", svc.created[2].Base)
	assert.Equal(t, "ABC-12: api", svc.created[1].Title)
	assert.Equal(t, []string{"api-team", "lead"}, svc.created[1].Reviewers)
	assert.Equal(t, []string{"lead"}, svc.created[0].Reviewers)
	assert.True(t, svc.created[0].Draft)
	assert.Equal(t, []string{"chunk"}, svc.created[0].Labels)
	assert.Contains(t, svc.created[2].Body, "[models](https://github.com/acme/app/pull/1)", "later bodies link earlier PRs")

	require.Len(t, results, 3)
	for i, c := range next.Chunks {
		require.NotNil(t, c.PRNumber)
		assert.Equal(t, i+1, *c.PRNumber)
		assert.Equal(t, fmt.Sprintf("https://github.com/acme/app/pull/%d", i+1), c.PRURL)
		assert.Equal(t, ActionCreated, results[i].Action)
	}
	assert.Nil(t, st.Chunks[0].PRNumber, "input state must not be modified")
}

func TestPublish_IndependentRetargetsExistingPRs(t *testing.T) {
	root, repo, st := setup(t, "feat", state.Stacked)
	svc := &fakeService{}
	st, _, err := NewPublisher(repo, svc, root, Options{}, nil).Publish(st)
	require.NoError(t, err)

	st.Strategy = state.Independent
	next, results, err := NewPublisher(repo, svc, root, Options{}, nil).Publish(st)
	require.NoError(t, err)

	assert.Len(t, svc.created, 3, "no new PRs for chunks that already have one")
	assert.Equal(t, map[int]string{1: "main", 2: "main", 3: "main"}, svc.rebased)
	for _, r := range results {
		assert.Equal(t, ActionUpdated, r.Action)
	}
	assert.Equal(t, st.Chunks, next.Chunks)
}

func TestPublish_FailureKeepsCreatedPRs(t *testing.T) {
	root, repo, st := setup(t, "feat", state.Stacked)
	svc := &fakeService{failOn: "feat-chunk-2-api"}

	next, results, err := NewPublisher(repo, svc, root, Options{}, nil).Publish(st)
	require.Error(t, err)
	require.NotNil(t, next)
	assert.Len(t, results, 1)
	require.NotNil(t, next.Chunks[0].PRNumber)
	assert.Nil(t, next.Chunks[1].PRNumber)
	assert.Nil(t, next.Chunks[2].PRNumber)
}

func TestPublish_PushFailure(t *testing.T) {
	root, repo, st := setup(t, "feat", state.Independent)
	repo.FailOn("Push", "feat-chunk-1-models", nil)
	svc := &fakeService{}

	_, _, err := NewPublisher(repo, svc, root, Options{}, nil).Publish(st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feat-chunk-1-models")
	assert.Empty(t, svc.created)
}

func TestPublish_BadBodyTemplate(t *testing.T) {
	root, repo, st := setup(t, "feat", state.Independent)

	_, _, err := NewPublisher(repo, &fakeService{}, root, Options{BodyTemplate: "{{ .Nope }}"}, nil).Publish(st)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "body_template"))
}

func TestBaseFor(t *testing.T) {
	st := &state.MergesState{BaseBranch: "main", Strategy: state.Stacked, Chunks: []state.Chunk{{Branch: "c1"}, {Branch: "c2"}}}
	assert.Equal(t, "main", BaseFor(st, 0))
	assert.Equal(t, "c1", BaseFor(st, 1))
	st.Strategy = state.Independent
	assert.Equal(t, "main", BaseFor(st, 1))
}

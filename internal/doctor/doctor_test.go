package doctor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/merges/internal/planner"
	"github.com/Iron-Ham/merges/internal/split"
	"github.com/Iron-Ham/merges/internal/state"
	"github.com/Iron-Ham/merges/internal/worktree/worktreetest"
)

func setup(t *testing.T, useWorktrees bool) (string, *worktreetest.FakeRepo, *state.MergesState) {
	t.Helper()
	root := t.TempDir()
	repo := worktreetest.NewFakeRepo(root, "main", "feat", "a.go", "b.go")
	st := &state.MergesState{BaseBranch: "main", SourceBranch: "feat", Strategy: state.Stacked, UseWorktrees: useWorktrees}
	// ApplyPlan registers the exclude entry.
	st, err := split.New(repo, root).ApplyPlan(st, planner.Plan{
		{Name: "a", Files: []string{"a.go"}},
		{Name: "b", Files: []string{"b.go"}},
	})
	require.NoError(t, err)
	return root, repo, st
}

func kinds(r *Report) []Kind {
	var out []Kind
	for _, i := range r.Issues {
		out = append(out, i.Kind)
	}
	return out
}

func TestDiagnose_Healthy(t *testing.T) {
	for _, useWorktrees := range []bool{false, true} {
		root, repo, st := setup(t, useWorktrees)

		r, err := New(repo, root, nil).Diagnose(st, false)
		require.NoError(t, err)
		assert.True(t, r.AllOK(), "issues: %v", r.Issues)
	}
}

func TestDiagnose_MissingBranch(t *testing.T) {
	root, repo, st := setup(t, false)
	require.NoError(t, repo.DeleteBranch(root, "feat-chunk-2-b"))

	r, err := New(repo, root, nil).Diagnose(st, true)
	require.NoError(t, err)
	require.Len(t, r.Issues, 1)
	assert.Equal(t, MissingBranch, r.Issues[0].Kind)
	assert.Equal(t, "b", r.Issues[0].Chunk)
	assert.Contains(t, r.Issues[0].Message, "feat-chunk-2-b")
	assert.NotContains(t, repo.Branches(), "feat-chunk-2-b", "repair never recreates branches")
}

func TestDiagnose_MissingWorktree(t *testing.T) {
	root, repo, st := setup(t, true)
	path := repo.WorktreePath(root, "feat-chunk-1-a")
	require.NoError(t, os.RemoveAll(path))

	r, err := New(repo, root, nil).Diagnose(st, true)
	require.NoError(t, err)
	assert.Equal(t, []Kind{MissingWorktree}, kinds(r))
	assert.Equal(t, path, r.Issues[0].Subject)
	assert.NoDirExists(t, path)
}

func TestDiagnose_Exclude(t *testing.T) {
	root, repo, st := setup(t, false)
	exclude := filepath.Join(root, ".git", "info", "exclude")
	require.NoError(t, os.WriteFile(exclude, []byte("*.log\n"), 0o644))

	r, err := New(repo, root, nil).Diagnose(st, false)
	require.NoError(t, err)
	assert.Equal(t, []Kind{NotExcluded}, kinds(r))

	r, err = New(repo, root, nil).Diagnose(st, true)
	require.NoError(t, err)
	assert.True(t, r.AllOK())
	assert.Len(t, r.Repaired, 1)

	data, err := os.ReadFile(exclude)
	require.NoError(t, err)
	assert.Equal(t, "*.log\n.merges.json\n", string(data))
}

func TestDiagnose_FailedRepairKeepsIssue(t *testing.T) {
	root, repo, st := setup(t, false)
	info := filepath.Join(root, ".git", "info")
	require.NoError(t, os.RemoveAll(info))
	// A regular file where the directory should be makes the repair fail.
	require.NoError(t, os.WriteFile(info, []byte("x"), 0o644))

	r, err := New(repo, root, nil).Diagnose(st, true)
	require.NoError(t, err)
	assert.Equal(t, []Kind{NotExcluded}, kinds(r))
	assert.Empty(t, r.Repaired)
}

func TestDiagnose_DuplicateFile(t *testing.T) {
	root, repo, st := setup(t, false)
	st.Chunks[1].Files = append(st.Chunks[1].Files, "a.go")

	r, err := New(repo, root, nil).Diagnose(st, true)
	require.NoError(t, err)
	require.Equal(t, []Kind{DuplicateFile}, kinds(r))
	assert.Equal(t, "a.go", r.Issues[0].Subject)
	assert.Contains(t, r.Issues[0].Message, "a, b")
}

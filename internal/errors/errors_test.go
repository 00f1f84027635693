package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// -----------------------------------------------------------------------------
// GitError Tests
// -----------------------------------------------------------------------------

func TestGitError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *GitError
		want string
	}{
		{
			name: "no context",
			err:  NewGitError("checkout failed", nil),
			want: "git error: checkout failed",
		},
		{
			name: "branch and repo",
			err:  NewGitError("checkout failed", ErrBranchNotFound).WithBranch("feat-x").WithRepository("/repo"),
			want: "git error [branch=feat-x, repo=/repo]: checkout failed: branch not found",
		},
		{
			name: "with output",
			err:  NewGitError("commit failed", nil).WithWorktree("/wt").WithGitOutput("fatal: oops\n"),
			want: "git error [worktree=/wt]: commit failed\ngit output: fatal: oops",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGitError_Is(t *testing.T) {
	err := NewGitError("create branch", ErrBranchExists)

	if !errors.Is(err, ErrBranchExists) {
		t.Error("errors.Is(err, ErrBranchExists) = false, want true")
	}
	if !errors.Is(err, &GitError{}) {
		t.Error("errors.Is(err, &GitError{}) = false, want true")
	}
	if errors.Is(err, ErrNothingToCommit) {
		t.Error("errors.Is(err, ErrNothingToCommit) = true, want false")
	}

	wrapped := fmt.Errorf("materialize chunk: %w", err)
	var gitErr *GitError
	if !errors.As(wrapped, &gitErr) {
		t.Fatal("errors.As failed through fmt.Errorf wrapping")
	}
	if gitErr.message != "create branch" {
		t.Errorf("message = %q", gitErr.message)
	}
}

// -----------------------------------------------------------------------------
// StateError Tests
// -----------------------------------------------------------------------------

func TestStateError(t *testing.T) {
	err := NewStateError("could not read .merges.json", ErrStateNotFound).
		WithPath("/repo/.merges.json").
		WithHint("Run `merges init` first.")

	msg := err.Error()
	for _, want := range []string{"/repo/.merges.json", "could not read", "merges init"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want it to contain %q", msg, want)
		}
	}
	if !errors.Is(err, ErrStateNotFound) {
		t.Error("errors.Is(err, ErrStateNotFound) = false, want true")
	}
}

// -----------------------------------------------------------------------------
// RollbackError Tests
// -----------------------------------------------------------------------------

func TestRollbackError(t *testing.T) {
	rb := NewRollbackError("split")
	rb.Add(nil)
	if rb.HasFailures() {
		t.Fatal("HasFailures() = true after adding nil")
	}

	rb.Add(NewGitError("delete branch", nil).WithBranch("feat-chunk-1-a"))
	rb.Add(ErrNothingToCommit)
	if len(rb.Failures) != 2 {
		t.Fatalf("len(Failures) = %d, want 2", len(rb.Failures))
	}
	if !strings.Contains(rb.Error(), "2 cleanup failures") {
		t.Errorf("Error() = %q", rb.Error())
	}
	if !errors.Is(rb, ErrNothingToCommit) {
		t.Error("errors.Is should see individual failures")
	}
}

func TestWithRollback(t *testing.T) {
	primary := NewGitError("commit chunk", ErrNothingToCommit)

	t.Run("nil rollback returns primary", func(t *testing.T) {
		if got := WithRollback(primary, nil); got != error(primary) {
			t.Errorf("WithRollback() = %v, want primary", got)
		}
	})

	t.Run("empty rollback returns primary", func(t *testing.T) {
		if got := WithRollback(primary, NewRollbackError("split")); got != error(primary) {
			t.Errorf("WithRollback() = %v, want primary", got)
		}
	})

	t.Run("failures are attached after primary", func(t *testing.T) {
		rb := NewRollbackError("split")
		rb.Add(New("worktree remove failed"))
		got := WithRollback(primary, rb)

		if !errors.Is(got, ErrNothingToCommit) {
			t.Error("primary cause lost")
		}
		var rbErr *RollbackError
		if !errors.As(got, &rbErr) {
			t.Error("rollback error not reachable")
		}
		if !strings.HasPrefix(got.Error(), primary.Error()) {
			t.Errorf("message should lead with primary error, got %q", got.Error())
		}
	})
}

// -----------------------------------------------------------------------------
// SyncError Tests
// -----------------------------------------------------------------------------

func TestSyncError(t *testing.T) {
	err := NewSyncError([]ChunkFailure{
		{Chunk: "models", Branch: "feat-chunk-1-models", Err: ErrRebaseConflict},
		{Chunk: "api", Branch: "feat-chunk-2-api", Err: New("fetch failed")},
	})

	if got := err.Chunks(); len(got) != 2 || got[0] != "models" || got[1] != "api" {
		t.Errorf("Chunks() = %v", got)
	}
	msg := err.Error()
	for _, want := range []string{"models", "api", "feat-chunk-2-api", "2 chunk(s)"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
	if !errors.Is(err, ErrRebaseConflict) {
		t.Error("errors.Is(err, ErrRebaseConflict) = false, want true")
	}
	if !IsRetryable(fmt.Errorf("sync: %w", err)) {
		t.Error("IsRetryable() = false, want true")
	}
}

// -----------------------------------------------------------------------------
// Semantic Error Tests
// -----------------------------------------------------------------------------

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("chunk", "ui").
		WithCause(ErrChunkNotFound).
		WithAvailable([]string{"models", "api"})

	want := "chunk 'ui' not found (available: models, api)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrChunkNotFound) {
		t.Error("errors.Is(err, ErrChunkNotFound) = false, want true")
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("file is not changed relative to main").
		WithField("file").
		WithValue("src/a.go").
		WithCause(ErrFileNotInDiff)

	want := "validation error [field=file, value=src/a.go]: file is not changed relative to main"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("validation errors should match ErrInvalidInput")
	}
	if !errors.Is(err, ErrFileNotInDiff) {
		t.Error("cause should match")
	}
	if !IsValidation(fmt.Errorf("add: %w", err)) {
		t.Error("IsValidation() = false through wrapping")
	}
}

// -----------------------------------------------------------------------------
// Classification Tests
// -----------------------------------------------------------------------------

func TestClassification(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantRetryable  bool
		wantValidation bool
	}{
		{"nil", nil, false, false},
		{"plain", New("boom"), false, false},
		{"git", NewGitError("x", nil), false, false},
		{"git retryable", NewGitError("x", nil).WithRetryable(true), true, false},
		{"validation", NewValidationError("bad"), false, true},
		{"wrapped validation", fmt.Errorf("split: %w", NewValidationError("bad")), false, true},
		{"state", NewStateError("missing", nil), false, false},
		{"sync", NewSyncError([]ChunkFailure{{Chunk: "a", Err: New("x")}}), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.wantRetryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.wantRetryable)
			}
			if got := IsValidation(tt.err); got != tt.wantValidation {
				t.Errorf("IsValidation() = %v, want %v", got, tt.wantValidation)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("Wrapf(nil) should be nil")
	}

	err := Wrapf(ErrEmptyPlan, "split %s", "plan.yaml")
	if err.Error() != "split plan.yaml: chunk plan is empty" {
		t.Errorf("Wrapf() = %q", err.Error())
	}
	if !errors.Is(err, ErrEmptyPlan) {
		t.Error("Wrapf lost the cause")
	}
}

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Iron-Ham/merges/internal/errors"
)

func TestErrorNote(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain", err: errors.New("boom"), want: ""},
		{
			name: "validation",
			err:  errors.Wrap(errors.NewValidationError("chunk name is empty").WithField("name"), "parse plan"),
			want: "Nothing was changed.",
		},
		{
			name: "conflict",
			err: errors.NewSyncError([]errors.ChunkFailure{{
				Chunk:  "models",
				Branch: "feat-chunk-1-models",
				Err:    errors.NewGitError("rebase stopped", errors.ErrRebaseConflict).WithRetryable(true),
			}}),
			want: "Resolve the conflicts, run `git rebase --continue`, then run `merges sync` again.",
		},
		{
			name: "retryable",
			err:  errors.NewGitError("failed to push", errors.New("connection reset")).WithRetryable(true),
			want: "This may succeed if you run the command again.",
		},
		{
			name: "not retryable",
			err:  errors.NewGitError("failed to push", errors.ErrNoRemote),
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorNote(tt.err))
		})
	}
}

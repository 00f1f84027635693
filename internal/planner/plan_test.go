package planner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/merges/internal/errors"
)

func TestPlanValidate(t *testing.T) {
	tests := []struct {
		name    string
		plan    Plan
		wantErr error
	}{
		{
			name: "valid",
			plan: Plan{{Name: "models", Files: []string{"a.rs"}}, {Name: "api", Files: []string{"b.rs"}}},
		},
		{
			name:    "empty plan",
			plan:    Plan{},
			wantErr: errors.ErrEmptyPlan,
		},
		{
			name:    "entry without files",
			plan:    Plan{{Name: "models"}},
			wantErr: errors.ErrEmptyPlan,
		},
		{
			name:    "missing name",
			plan:    Plan{{Name: "  ", Files: []string{"a.rs"}}},
			wantErr: errors.ErrInvalidInput,
		},
		{
			name:    "duplicate names",
			plan:    Plan{{Name: "a", Files: []string{"a.rs"}}, {Name: "a", Files: []string{"b.rs"}}},
			wantErr: errors.ErrInvalidInput,
		},
		{
			name:    "blank file",
			plan:    Plan{{Name: "a", Files: []string{""}}},
			wantErr: errors.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, errors.IsValidation(err))
		})
	}
}

func TestParsePlan(t *testing.T) {
	plan, err := ParsePlan(`[{"name":"models","files":["models/user.rs","models/post.rs"]},{"name":"api","files":["api/routes.rs"]}]`)
	require.NoError(t, err)
	assert.Equal(t, Plan{
		{Name: "models", Files: []string{"models/user.rs", "models/post.rs"}},
		{Name: "api", Files: []string{"api/routes.rs"}},
	}, plan)
	assert.Equal(t, []string{"models/user.rs", "models/post.rs", "api/routes.rs"}, plan.Files())

	_, err = ParsePlan(`{not json`)
	assert.True(t, errors.IsValidation(err))
}

func TestLoadPlanFile(t *testing.T) {
	dir := t.TempDir()
	want := Plan{
		{Name: "models", Files: []string{"models/user.rs"}},
		{Name: "api", Files: []string{"api/**"}},
	}

	files := map[string]string{
		"list.yaml": "- name: models\n  files: [models/user.rs]\n- name: api\n  files: [\"api/**\"]\n",
		"doc.yml":   "chunks:\n  - name: models\n    files:\n      - models/user.rs\n  - name: api\n    files:\n      - \"api/**\"\n",
		"plan.json": `[{"name":"models","files":["models/user.rs"]},{"name":"api","files":["api/**"]}]`,
		"doc.json":  `{"chunks":[{"name":"models","files":["models/user.rs"]},{"name":"api","files":["api/**"]}]}`,
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			got, err := LoadPlanFile(path)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "plan.txt")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		_, err := LoadPlanFile(path)
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadPlanFile(filepath.Join(dir, "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestExpandPatterns(t *testing.T) {
	diff := []string{"src/models/user.rs", "src/api/routes.rs", "src/models/post.rs", "README.md"}

	got, err := ExpandPatterns(Plan{
		{Name: "models", Files: []string{"src/models/**"}},
		{Name: "rest", Files: []string{"README.md", "src/api/*.rs", "src/api/routes.rs", "src/*/*.rs"}},
	}, diff)
	require.NoError(t, err)
	assert.Equal(t, Plan{
		{Name: "models", Files: []string{"src/models/user.rs", "src/models/post.rs"}},
		{Name: "rest", Files: []string{"README.md", "src/api/routes.rs", "src/models/user.rs", "src/models/post.rs"}},
	}, got)

	_, err = ExpandPatterns(Plan{{Name: "none", Files: []string{"docs/**"}}}, diff)
	assert.ErrorIs(t, err, errors.ErrFileNotInDiff)

	_, err = ExpandPatterns(Plan{{Name: "bad", Files: []string{"src/[models"}}}, diff)
	assert.True(t, errors.IsValidation(err))
}

func TestExpandPatterns_RepeatedLiteral(t *testing.T) {
	diff := []string{"src/a.go", "src/b.go"}

	_, err := ExpandPatterns(Plan{{Name: "a", Files: []string{"src/a.go", "src/b.go", "src/a.go"}}}, diff)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDuplicateFile)
	assert.True(t, errors.IsValidation(err))
	assert.Contains(t, err.Error(), "'src/a.go' is listed twice in chunk 'a'")

	var ve *errors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "files", ve.Field)

	got, err := ExpandPatterns(Plan{{Name: "a", Files: []string{"src/*.go", "src/a.go", "src/**"}}}, diff)
	require.NoError(t, err, "a literal already covered by a pattern is not a repeat")
	assert.Equal(t, Plan{{Name: "a", Files: []string{"src/a.go", "src/b.go"}}}, got)
}

package planner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(dir, "rules.yaml")
		content := "groups:\n  - name: models\n    paths: [\"src/models/**\", \"migrations/**\"]\n  - name: api\n    paths: [\"src/api/**\"]\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		rules, err := LoadRules(path)
		require.NoError(t, err)
		require.Len(t, rules.Groups, 2)
		assert.Equal(t, "models", rules.Groups[0].Name)
		assert.Equal(t, []string{"src/models/**", "migrations/**"}, rules.Groups[0].Paths)
	})

	tests := []struct {
		name    string
		content string
	}{
		{"missing name", "groups:\n  - paths: [\"a/**\"]\n"},
		{"duplicate name", "groups:\n  - name: a\n    paths: [\"a/**\"]\n  - name: a\n    paths: [\"b/**\"]\n"},
		{"no paths", "groups:\n  - name: a\n"},
		{"bad pattern", "groups:\n  - name: a\n    paths: [\"a/[\"]\n"},
		{"bad yaml", "groups: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := LoadRules(path)
			assert.Error(t, err)
		})
	}
}

func TestGroupByRules(t *testing.T) {
	rules := &Rules{Groups: []Rule{
		{Name: "models", Paths: []string{"src/models/**", "migrations/**"}},
		{Name: "api", Paths: []string{"src/api/**"}},
		{Name: "unused", Paths: []string{"docs/**"}},
	}}
	files := []string{
		"src/api/routes.rs",
		"migrations/001.sql",
		"src/models/user.rs",
		"README.md",
		"Cargo.toml",
		"tests/api.rs",
	}

	got := GroupByRules(files, rules)
	assert.Equal(t, Plan{
		{Name: "models", Files: []string{"migrations/001.sql", "src/models/user.rs"}},
		{Name: "api", Files: []string{"src/api/routes.rs"}},
		{Name: "root", Files: []string{"Cargo.toml", "README.md"}},
		{Name: "tests", Files: []string{"tests/api.rs"}},
	}, got)
}

func TestGroupByRules_FirstRuleWins(t *testing.T) {
	rules := &Rules{Groups: []Rule{
		{Name: "broad", Paths: []string{"src/**"}},
		{Name: "narrow", Paths: []string{"src/api/**"}},
	}}

	got := GroupByRules([]string{"src/api/routes.rs"}, rules)
	assert.Equal(t, Plan{{Name: "broad", Files: []string{"src/api/routes.rs"}}}, got)
}

func TestGroupByRules_FallbackMergesIntoSameName(t *testing.T) {
	rules := &Rules{Groups: []Rule{
		{Name: "tests", Paths: []string{"spec/**"}},
	}}

	got := GroupByRules([]string{"spec/a_spec.rb", "tests/b.rs", "lib/c.rs"}, rules)
	assert.Equal(t, Plan{
		{Name: "tests", Files: []string{"spec/a_spec.rb", "tests/b.rs"}},
		{Name: "lib", Files: []string{"lib/c.rs"}},
	}, got)
}

func TestGroupByRules_NoRules(t *testing.T) {
	files := []string{"a/x.rs", "b/y.rs"}
	assert.Equal(t, AutoGroup(files), GroupByRules(files, nil))
	assert.Equal(t, AutoGroup(files), GroupByRules(files, &Rules{}))
}

func TestRulesMatch(t *testing.T) {
	rules := &Rules{Groups: []Rule{{Name: "api", Paths: []string{"src/api/**"}}}}

	name, ok := rules.Match("src/api/v1/routes.rs")
	assert.True(t, ok)
	assert.Equal(t, "api", name)

	_, ok = rules.Match("src/models/user.rs")
	assert.False(t, ok)
}

package worktree

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnsureExcluded(t *testing.T) {
	t.Run("creates exclude file", func(t *testing.T) {
		root := t.TempDir()
		if err := EnsureExcluded(root, ".merges.json"); err != nil {
			t.Fatalf("EnsureExcluded() error = %v", err)
		}
		content, err := os.ReadFile(filepath.Join(root, ".git", "info", "exclude"))
		if err != nil {
			t.Fatal(err)
		}
		if string(content) != ".merges.json\n" {
			t.Errorf("content = %q", content)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		root := t.TempDir()
		for i := 0; i < 3; i++ {
			if err := EnsureExcluded(root, ".merges.json"); err != nil {
				t.Fatalf("EnsureExcluded() error = %v", err)
			}
		}
		content, _ := os.ReadFile(filepath.Join(root, ".git", "info", "exclude"))
		if n := strings.Count(string(content), ".merges.json"); n != 1 {
			t.Errorf("pattern appears %d times, want 1", n)
		}
	})

	t.Run("appends to existing rules", func(t *testing.T) {
		root := t.TempDir()
		info := filepath.Join(root, ".git", "info")
		if err := os.MkdirAll(info, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(info, "exclude"), []byte("# existing rules\n*.log"), 0644); err != nil {
			t.Fatal(err)
		}

		if err := EnsureExcluded(root, ".merges.json"); err != nil {
			t.Fatalf("EnsureExcluded() error = %v", err)
		}

		content, _ := os.ReadFile(filepath.Join(info, "exclude"))
		if string(content) != "# existing rules\n*.log\n.merges.json\n" {
			t.Errorf("content = %q", content)
		}
	})
}

func TestIsExcluded(t *testing.T) {
	root := t.TempDir()

	excluded, err := IsExcluded(root, ".merges.json")
	if err != nil || excluded {
		t.Fatalf("missing exclude file: got %v, %v", excluded, err)
	}

	if err := EnsureExcluded(root, ".merges.json"); err != nil {
		t.Fatal(err)
	}
	excluded, err = IsExcluded(root, ".merges.json")
	if err != nil || !excluded {
		t.Errorf("after EnsureExcluded: got %v, %v", excluded, err)
	}

	if excluded, _ := IsExcluded(root, ".merges"); excluded {
		t.Error("prefix of a pattern should not count as excluded")
	}
}

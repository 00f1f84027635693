package pr

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

type mockCall struct {
	dir  string
	name string
	args []string
}

// mockExecutor is a test double for worktree.CommandExecutor
type mockExecutor struct {
	calls  []mockCall
	output []byte
	err    error
}

func (m *mockExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, mockCall{dir: dir, name: name, args: args})
	return m.output, m.err
}

func (m *mockExecutor) RunQuiet(dir string, name string, args ...string) error {
	_, err := m.Run(dir, name, args...)
	return err
}

func argValue(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func TestGHService_Create(t *testing.T) {
	exec := &mockExecutor{output: []byte("Creating pull request...\nhttps://github.com/acme/app/pull/42\n")}
	svc := NewGHService(exec, "/repo", "acme", "app")

	number, url, err := svc.Create(CreateOptions{
		Title:     "ABC-1: models",
		Body:      "body",
		Head:      "feat-chunk-2-models",
		Base:      "feat-chunk-1-base",
		Draft:     true,
		Reviewers: []string{"alice", "bob"},
		Labels:    []string{"chunk"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if number != 42 || url != "https://github.com/acme/app/pull/42" {
		t.Errorf("Create() = (%d, %q), want (42, https://github.com/acme/app/pull/42)", number, url)
	}

	call := exec.calls[0]
	if call.name != "gh" || call.dir != "/repo" {
		t.Errorf("ran %s in %s, want gh in /repo", call.name, call.dir)
	}
	checks := map[string]string{
		"--title": "ABC-1: models",
		"--head":  "feat-chunk-2-models",
		"--base":  "feat-chunk-1-base",
		"--repo":  "acme/app",
		"--label": "chunk",
		"--body":  "body",
	}
	for flag, want := range checks {
		if got := argValue(call.args, flag); got != want {
			t.Errorf("%s = %q, want %q", flag, got, want)
		}
	}
	if !slices.Contains(call.args, "--draft") {
		t.Error("missing --draft")
	}
	if n := strings.Count(strings.Join(call.args, " "), "--reviewer"); n != 2 {
		t.Errorf("got %d --reviewer flags, want 2", n)
	}
}

func TestGHService_CreateErrors(t *testing.T) {
	tests := []struct {
		name   string
		output string
		err    error
	}{
		{"gh fails", "GraphQL: No commits between main and feat", errors.New("exit status 1")},
		{"no url in output", "something unexpected", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewGHService(&mockExecutor{output: []byte(tt.output), err: tt.err}, "/repo", "", "")
			_, _, err := svc.Create(CreateOptions{Head: "feat-chunk-1-a", Base: "main"})
			if err == nil {
				t.Fatal("Create() error = nil")
			}
			if !strings.Contains(err.Error(), "feat-chunk-1-a") {
				t.Errorf("error %q does not name the branch", err)
			}
		})
	}
}

func TestGHService_NoRepoFlagWithoutIdentity(t *testing.T) {
	exec := &mockExecutor{}
	svc := NewGHService(exec, "/repo", "", "")
	if err := svc.UpdateBase(7, "main"); err != nil {
		t.Fatalf("UpdateBase() error = %v", err)
	}
	want := []string{"pr", "edit", "7", "--base", "main"}
	if !slices.Equal(exec.calls[0].args, want) {
		t.Errorf("args = %v, want %v", exec.calls[0].args, want)
	}
}

func TestGHService_View(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		wantCI     string
		wantReview string
		wantState  string
	}{
		{
			name:       "no checks",
			json:       `{"number":3,"url":"u","state":"OPEN","reviewDecision":"","statusCheckRollup":[]}`,
			wantCI:     "none",
			wantReview: "none",
			wantState:  "OPEN",
		},
		{
			name:       "passing and approved",
			json:       `{"number":3,"state":"MERGED","reviewDecision":"APPROVED","statusCheckRollup":[{"status":"COMPLETED","conclusion":"SUCCESS"},{"state":"SUCCESS"}]}`,
			wantCI:     "passing",
			wantReview: "approved",
			wantState:  "MERGED",
		},
		{
			name:       "pending",
			json:       `{"number":3,"state":"OPEN","reviewDecision":"REVIEW_REQUIRED","statusCheckRollup":[{"status":"IN_PROGRESS","conclusion":""},{"conclusion":"SUCCESS"}]}`,
			wantCI:     "pending",
			wantReview: "review required",
			wantState:  "OPEN",
		},
		{
			name:       "failure wins",
			json:       `{"number":3,"state":"OPEN","reviewDecision":"CHANGES_REQUESTED","statusCheckRollup":[{"status":"QUEUED"},{"conclusion":"FAILURE"}]}`,
			wantCI:     "failing",
			wantReview: "changes requested",
			wantState:  "OPEN",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewGHService(&mockExecutor{output: []byte(tt.json)}, "/repo", "acme", "app")
			info, err := svc.View(3)
			if err != nil {
				t.Fatalf("View() error = %v", err)
			}
			if info.CI != tt.wantCI {
				t.Errorf("CI = %q, want %q", info.CI, tt.wantCI)
			}
			if info.Review != tt.wantReview {
				t.Errorf("Review = %q, want %q", info.Review, tt.wantReview)
			}
			if info.State != tt.wantState {
				t.Errorf("State = %q, want %q", info.State, tt.wantState)
			}
		})
	}
}

func TestGHService_ViewBadJSON(t *testing.T) {
	svc := NewGHService(&mockExecutor{output: []byte("not json")}, "/repo", "", "")
	if _, err := svc.View(1); err == nil {
		t.Fatal("View() error = nil, want parse error")
	}
}

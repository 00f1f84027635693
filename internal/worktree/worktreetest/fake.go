// Package worktreetest provides an in-memory worktree.Repository for engine
// unit tests. Each branch is a stack of commits; a commit is the set of files
// that differ from the base branch. Working directories track the checked-out
// branch and a staged set.
package worktreetest

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/Iron-Ham/merges/internal/errors"
	"github.com/Iron-Ham/merges/internal/worktree"
)

type fileSet map[string]bool

func newFileSet(files ...string) fileSet {
	s := make(fileSet, len(files))
	for _, f := range files {
		s[f] = true
	}
	return s
}

func (s fileSet) clone() fileSet {
	c := make(fileSet, len(s))
	for f := range s {
		c[f] = true
	}
	return c
}

func (s fileSet) sorted() []string {
	out := make([]string, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// FakeRepo is an in-memory worktree.Repository. It is safe for concurrent use.
type FakeRepo struct {
	mu sync.Mutex

	branches  map[string][]fileSet
	messages  map[string][]string
	heads     map[string]string
	staged    map[string]fileSet
	worktrees map[string]string
	behind    map[string]int
	conflicts map[string]bool
	rebasing  map[string]string
	remoteURL string
	failures  map[string]error
	calls     []string
	pushed    []string
	rebased   []string
}

var _ worktree.Repository = (*FakeRepo)(nil)

// NewFakeRepo creates a repository rooted at root with an empty base branch and
// a source branch carrying files as one commit. The source branch is checked
// out in root. root may be a real temporary directory; worktrees are created
// on disk beneath it so directory checks behave.
func NewFakeRepo(root, base, source string, files ...string) *FakeRepo {
	r := &FakeRepo{
		branches:  map[string][]fileSet{},
		messages:  map[string][]string{},
		heads:     map[string]string{root: source},
		staged:    map[string]fileSet{},
		worktrees: map[string]string{},
		behind:    map[string]int{},
		conflicts: map[string]bool{},
		rebasing:  map[string]string{},
		failures:  map[string]error{},
	}
	r.branches[base] = []fileSet{newFileSet()}
	r.branches[source] = []fileSet{newFileSet(), newFileSet(files...)}
	return r
}

// -----------------------------------------------------------------------------
// Test controls
// -----------------------------------------------------------------------------

// FailOn makes op fail with err when called for arg. An empty arg matches any
// call of op. Ops are method names such as "CreateBranch" or "CommitAll"; the
// arg is the branch involved, or the file for UnstageAndDiscard.
func (r *FakeRepo) FailOn(op, arg string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		err = errors.New("injected failure")
	}
	r.failures[op+":"+arg] = err
}

// ClearFailures removes all injected failures.
func (r *FakeRepo) ClearFailures() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = map[string]error{}
}

// SetBehind sets the CommitsBehind answer for branch.
func (r *FakeRepo) SetBehind(branch string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.behind[branch] = n
}

// SetConflict makes the next FetchAndRebase of branch stop on conflicts,
// leaving its directory mid-rebase until ResolveRebase is called.
func (r *FakeRepo) SetConflict(branch string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts[branch] = true
}

// ResolveRebase finishes the rebase stopped in dir.
func (r *FakeRepo) ResolveRebase(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if branch, ok := r.rebasing[dir]; ok {
		delete(r.rebasing, dir)
		delete(r.conflicts, branch)
		r.behind[branch] = 0
	}
}

// SetRemoteURL configures the origin URL.
func (r *FakeRepo) SetRemoteURL(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remoteURL = url
}

// AddBranch creates a branch with the given files in one commit, without
// checking it out.
func (r *FakeRepo) AddBranch(name string, files ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.branches[name] = []fileSet{newFileSet(), newFileSet(files...)}
}

// Files returns the sorted files on branch's tip, or nil when it does not exist.
func (r *FakeRepo) Files(branch string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	stack, ok := r.branches[branch]
	if !ok {
		return nil
	}
	return stack[len(stack)-1].sorted()
}

// Commits returns how many commits branch has beyond the base.
func (r *FakeRepo) Commits(branch string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.branches[branch]) - 1
}

// Messages returns the commit messages recorded on branch, oldest first.
func (r *FakeRepo) Messages(branch string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages[branch]...)
}

// Head returns the branch checked out in dir.
func (r *FakeRepo) Head(dir string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.heads[dir]
}

// Branches returns all branch names, sorted.
func (r *FakeRepo) Branches() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.branches))
	for b := range r.branches {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// Worktrees returns the branches that have a worktree, sorted.
func (r *FakeRepo) Worktrees() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.worktrees))
	for b := range r.worktrees {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// Pushed returns branches pushed so far, in order.
func (r *FakeRepo) Pushed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.pushed...)
}

// Rebased returns branches rebased so far, in completion order.
func (r *FakeRepo) Rebased() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.rebased...)
}

// Calls returns the log of operations as "Op arg" strings.
func (r *FakeRepo) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// -----------------------------------------------------------------------------
// internals (callers hold mu)
// -----------------------------------------------------------------------------

func (r *FakeRepo) record(op, arg string) error {
	r.calls = append(r.calls, op+" "+arg)
	if err, ok := r.failures[op+":"+arg]; ok {
		return errors.NewGitError("fake "+op+" failed", err).WithBranch(arg)
	}
	if err, ok := r.failures[op+":"]; ok {
		return errors.NewGitError("fake "+op+" failed", err).WithBranch(arg)
	}
	return nil
}

func (r *FakeRepo) headOf(dir string) (string, error) {
	branch, ok := r.heads[dir]
	if !ok {
		return "", errors.NewGitError("not a working directory", errors.ErrNotGitRepository).WithRepository(dir)
	}
	return branch, nil
}

func (r *FakeRepo) top(branch string) fileSet {
	stack := r.branches[branch]
	return stack[len(stack)-1]
}

func (r *FakeRepo) stagedIn(dir string) fileSet {
	s, ok := r.staged[dir]
	if !ok {
		s = newFileSet()
		r.staged[dir] = s
	}
	return s
}

func (r *FakeRepo) checkedOutAnywhere(branch string) bool {
	for _, b := range r.heads {
		if b == branch {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// DiffProvider
// -----------------------------------------------------------------------------

// ChangedFiles returns the files on dir's checked-out tip.
func (r *FakeRepo) ChangedFiles(dir, base string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.record("ChangedFiles", base); err != nil {
		return nil, err
	}
	if _, ok := r.branches[base]; !ok {
		return nil, errors.NewGitError("unknown revision", errors.ErrBranchNotFound).WithBranch(base)
	}
	branch, err := r.headOf(dir)
	if err != nil {
		return nil, err
	}
	return r.top(branch).sorted(), nil
}

// MergeBase returns a symbolic merge-base ref.
func (r *FakeRepo) MergeBase(dir, base string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.record("MergeBase", base); err != nil {
		return "", err
	}
	return "merge-base(" + base + ")", nil
}

// StagedFiles returns the sorted staged set of dir.
func (r *FakeRepo) StagedFiles(dir string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	branch, err := r.headOf(dir)
	if err != nil {
		return nil, err
	}
	if err := r.record("StagedFiles", branch); err != nil {
		return nil, err
	}
	return r.stagedIn(dir).sorted(), nil
}

// -----------------------------------------------------------------------------
// BranchManager
// -----------------------------------------------------------------------------

// CreateBranch creates name with no commits beyond the base and checks it out.
func (r *FakeRepo) CreateBranch(dir, name, baseRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.record("CreateBranch", name); err != nil {
		return err
	}
	if _, ok := r.branches[name]; ok {
		return errors.NewGitError("failed to create branch", errors.ErrBranchExists).WithBranch(name)
	}
	r.branches[name] = []fileSet{newFileSet()}
	r.heads[dir] = name
	delete(r.staged, dir)
	return nil
}

// Checkout switches dir to name.
func (r *FakeRepo) Checkout(dir, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.record("Checkout", name); err != nil {
		return err
	}
	if branch, ok := r.rebasing[dir]; ok {
		return errors.NewGitError("you need to resolve your current index first", errors.ErrRebaseConflict).WithBranch(branch)
	}
	if _, ok := r.branches[name]; !ok {
		return errors.NewGitError("failed to checkout branch", errors.ErrBranchNotFound).WithBranch(name)
	}
	r.heads[dir] = name
	delete(r.staged, dir)
	return nil
}

// DeleteBranch removes name. It fails while name is checked out anywhere.
func (r *FakeRepo) DeleteBranch(dir, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.record("DeleteBranch", name); err != nil {
		return err
	}
	if _, ok := r.branches[name]; !ok {
		return errors.NewGitError("failed to delete branch", errors.ErrBranchNotFound).WithBranch(name)
	}
	if r.checkedOutAnywhere(name) {
		return errors.NewGitError(fmt.Sprintf("cannot delete branch '%s' checked out", name), nil).WithBranch(name)
	}
	delete(r.branches, name)
	delete(r.messages, name)
	return nil
}

// BranchExists reports whether name exists.
func (r *FakeRepo) BranchExists(dir, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.record("BranchExists", name); err != nil {
		return false, err
	}
	_, ok := r.branches[name]
	return ok, nil
}

// CurrentBranch returns the branch checked out in dir.
func (r *FakeRepo) CurrentBranch(dir string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.record("CurrentBranch", dir); err != nil {
		return "", err
	}
	return r.headOf(dir)
}

// CommitsBehind returns the value set with SetBehind.
func (r *FakeRepo) CommitsBehind(dir, branch, base string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.record("CommitsBehind", branch); err != nil {
		return 0, err
	}
	if _, ok := r.branches[branch]; !ok {
		return 0, errors.NewGitError("unknown revision", errors.ErrBranchNotFound).WithBranch(branch)
	}
	return r.behind[branch], nil
}

// RemoteURL returns the URL set with SetRemoteURL.
func (r *FakeRepo) RemoteURL(dir string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.remoteURL == "" {
		return "", errors.NewGitError("failed to read origin URL", errors.ErrNoRemote)
	}
	return r.remoteURL, nil
}

// -----------------------------------------------------------------------------
// WorktreeManager
// -----------------------------------------------------------------------------

// WorktreePath returns the same layout as the real adapter.
func (r *FakeRepo) WorktreePath(root, branch string) string {
	return worktree.WorktreePath(root, branch)
}

// AddWorktree creates branch and a worktree directory for it.
func (r *FakeRepo) AddWorktree(root, branch, baseRef string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.record("AddWorktree", branch); err != nil {
		return "", err
	}
	if _, ok := r.branches[branch]; ok {
		return "", errors.NewGitError("failed to create worktree", errors.ErrBranchExists).WithBranch(branch)
	}

	path := worktree.WorktreePath(root, branch)
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", errors.NewGitError("failed to create worktree", err).WithWorktree(path)
	}
	r.branches[branch] = []fileSet{newFileSet()}
	r.heads[path] = branch
	r.worktrees[branch] = path
	return path, nil
}

// RemoveWorktree removes the worktree directory for branch.
func (r *FakeRepo) RemoveWorktree(root, branch string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.record("RemoveWorktree", branch); err != nil {
		return err
	}
	path := worktree.WorktreePath(root, branch)
	delete(r.heads, path)
	delete(r.rebasing, path)
	delete(r.staged, path)
	delete(r.worktrees, branch)
	if err := os.RemoveAll(path); err != nil {
		return errors.NewGitError("failed to remove worktree", err).WithWorktree(path)
	}
	return nil
}

// -----------------------------------------------------------------------------
// GitOperations
// -----------------------------------------------------------------------------

// CheckoutFilesFrom stages files from ref's tip into dir.
func (r *FakeRepo) CheckoutFilesFrom(dir, ref string, files []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(files) == 0 {
		return nil
	}
	branch, err := r.headOf(dir)
	if err != nil {
		return err
	}
	if err := r.record("CheckoutFilesFrom", branch); err != nil {
		return err
	}
	if _, ok := r.branches[ref]; !ok {
		return errors.NewGitError("unknown revision", errors.ErrBranchNotFound).WithBranch(ref)
	}
	src := r.top(ref)
	for _, f := range files {
		if !src[f] {
			return errors.NewGitError(fmt.Sprintf("pathspec '%s' did not match any file(s) known to git", f), nil).
				WithBranch(ref)
		}
	}
	staged := r.stagedIn(dir)
	for _, f := range files {
		staged[f] = true
	}
	return nil
}

// CommitAll commits the staged set on top of the tip.
func (r *FakeRepo) CommitAll(dir, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	branch, err := r.headOf(dir)
	if err != nil {
		return err
	}
	if err := r.record("CommitAll", branch); err != nil {
		return err
	}

	staged := r.stagedIn(dir)
	next := r.top(branch).clone()
	changed := false
	for f := range staged {
		if !next[f] {
			next[f] = true
			changed = true
		}
	}
	if !changed {
		return errors.NewGitError("failed to commit", errors.ErrNothingToCommit).WithBranch(branch)
	}
	r.branches[branch] = append(r.branches[branch], next)
	r.messages[branch] = append(r.messages[branch], message)
	delete(r.staged, dir)
	return nil
}

// AmendAll folds the staged set into the tip.
func (r *FakeRepo) AmendAll(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	branch, err := r.headOf(dir)
	if err != nil {
		return err
	}
	if err := r.record("AmendAll", branch); err != nil {
		return err
	}
	stack := r.branches[branch]
	if len(stack) < 2 {
		return errors.NewGitError("no commit to amend", nil).WithBranch(branch)
	}
	next := stack[len(stack)-1].clone()
	for f := range r.stagedIn(dir) {
		next[f] = true
	}
	stack[len(stack)-1] = next
	delete(r.staged, dir)
	return nil
}

// SoftResetParent pops the tip, staging the files it introduced.
func (r *FakeRepo) SoftResetParent(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	branch, err := r.headOf(dir)
	if err != nil {
		return err
	}
	if err := r.record("SoftResetParent", branch); err != nil {
		return err
	}
	stack := r.branches[branch]
	if len(stack) < 2 {
		return errors.NewGitError("HEAD has no parent", nil).WithBranch(branch)
	}
	tip, parent := stack[len(stack)-1], stack[len(stack)-2]
	staged := newFileSet()
	for f := range tip {
		if !parent[f] {
			staged[f] = true
		}
	}
	r.branches[branch] = stack[:len(stack)-1]
	if msgs := r.messages[branch]; len(msgs) > 0 {
		r.messages[branch] = msgs[:len(msgs)-1]
	}
	r.staged[dir] = staged
	return nil
}

// UnstageAndDiscard drops file from the staged set.
func (r *FakeRepo) UnstageAndDiscard(dir, file string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.headOf(dir); err != nil {
		return err
	}
	if err := r.record("UnstageAndDiscard", file); err != nil {
		return err
	}
	delete(r.stagedIn(dir), file)
	return nil
}

// CommitStaged commits exactly the staged set on top of the tip.
func (r *FakeRepo) CommitStaged(dir, message string, allowEmpty bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	branch, err := r.headOf(dir)
	if err != nil {
		return err
	}
	if err := r.record("CommitStaged", branch); err != nil {
		return err
	}
	staged := r.stagedIn(dir)
	if len(staged) == 0 && !allowEmpty {
		return errors.NewGitError("failed to commit", errors.ErrNothingToCommit).WithBranch(branch)
	}
	next := r.top(branch).clone()
	for f := range staged {
		next[f] = true
	}
	r.branches[branch] = append(r.branches[branch], next)
	r.messages[branch] = append(r.messages[branch], message)
	delete(r.staged, dir)
	return nil
}

// FetchAndRebase marks dir's branch as current with base, or leaves dir
// mid-rebase when a conflict was set with SetConflict.
func (r *FakeRepo) FetchAndRebase(dir, base string, updateRefs bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	branch, err := r.headOf(dir)
	if err != nil {
		return err
	}
	if updateRefs {
		r.calls = append(r.calls, "UpdateRefs "+branch)
	}
	if err := r.record("FetchAndRebase", branch); err != nil {
		return err
	}
	if r.conflicts[branch] {
		r.rebasing[dir] = branch
		return errors.NewGitError("rebase onto origin/"+base+" stopped on conflicts", errors.ErrRebaseConflict).
			WithBranch(branch).
			WithRetryable(true)
	}
	r.behind[branch] = 0
	r.rebased = append(r.rebased, branch)
	return nil
}

// RebaseInProgress reports whether dir was left mid-rebase.
func (r *FakeRepo) RebaseInProgress(dir string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.record("RebaseInProgress", dir); err != nil {
		return false, err
	}
	_, ok := r.rebasing[dir]
	return ok, nil
}

// Push records branch as pushed.
func (r *FakeRepo) Push(dir, branch string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.record("Push", branch); err != nil {
		return err
	}
	if _, ok := r.branches[branch]; !ok {
		return errors.NewGitError("src refspec does not match any", errors.ErrBranchNotFound).WithBranch(branch)
	}
	r.pushed = append(r.pushed, branch)
	return nil
}

// String summarises branches and tips for test failure output.
func (r *FakeRepo) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.branches))
	for b := range r.branches {
		names = append(names, b)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, b := range names {
		fmt.Fprintf(&sb, "%s: %v\n", b, r.top(b).sorted())
	}
	return sb.String()
}

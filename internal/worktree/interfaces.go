package worktree

// DiffProvider answers questions about what changed between branches.
type DiffProvider interface {
	// ChangedFiles returns the paths changed on HEAD since it diverged from base
	// (three-dot diff), in git's output order.
	ChangedFiles(dir, base string) ([]string, error)

	// MergeBase returns the commit where HEAD diverged from base.
	MergeBase(dir, base string) (string, error)

	// StagedFiles returns the paths currently staged in the index.
	StagedFiles(dir string) ([]string, error)
}

// BranchManager defines operations for managing git branches.
type BranchManager interface {
	// CreateBranch creates name at baseRef and checks it out in dir.
	// Fails with ErrBranchExists when the branch is already present.
	CreateBranch(dir, name, baseRef string) error

	// Checkout switches dir to an existing branch. Fails with ErrBranchNotFound.
	Checkout(dir, name string) error

	// DeleteBranch force-deletes a local branch.
	DeleteBranch(dir, name string) error

	// BranchExists reports whether a local branch exists.
	BranchExists(dir, name string) (bool, error)

	// CurrentBranch returns the branch checked out in dir.
	CurrentBranch(dir string) (string, error)

	// CommitsBehind counts commits on base that branch does not have.
	CommitsBehind(dir, branch, base string) (int, error)

	// RemoteURL returns the fetch URL of the origin remote.
	RemoteURL(dir string) (string, error)
}

// WorktreeManager defines operations for managing git worktrees.
// Worktrees live under <root>/.git/merges-worktrees so they never appear as
// untracked content in the main working tree.
type WorktreeManager interface {
	// AddWorktree creates branch at baseRef together with a worktree for it and
	// returns the worktree directory. The current branch of root is untouched.
	AddWorktree(root, branch, baseRef string) (string, error)

	// RemoveWorktree removes the worktree for branch. Missing worktrees are a no-op.
	RemoveWorktree(root, branch string) error

	// WorktreePath returns where the worktree for branch lives.
	WorktreePath(root, branch string) string
}

// GitOperations defines the index and commit operations the chunk engine
// composes. Every method works in the directory it is given.
type GitOperations interface {
	// CheckoutFilesFrom copies files from ref into the working tree and index.
	// Files missing at ref are removed so the next commit records the deletion.
	// An empty list is a no-op.
	CheckoutFilesFrom(dir, ref string, files []string) error

	// CommitAll stages everything and commits. Returns ErrNothingToCommit on a clean tree.
	CommitAll(dir, message string) error

	// AmendAll stages everything and amends HEAD without editing the message.
	AmendAll(dir string) error

	// SoftResetParent moves HEAD to its parent, keeping the changes staged.
	SoftResetParent(dir string) error

	// UnstageAndDiscard drops file from the index and the working tree,
	// restoring the HEAD version when there is one.
	UnstageAndDiscard(dir, file string) error

	// CommitStaged commits the index as-is.
	CommitStaged(dir, message string, allowEmpty bool) error

	// FetchAndRebase fetches origin and rebases the current branch onto
	// origin/<base>. updateRefs moves stacked branches along with the rebase.
	// Conflicts leave the rebase in progress and return ErrRebaseConflict.
	FetchAndRebase(dir, base string, updateRefs bool) error

	// RebaseInProgress reports whether dir has a rebase stopped on conflicts.
	RebaseInProgress(dir string) (bool, error)

	// Push force-pushes branch to origin with lease protection.
	Push(dir, branch string) error
}

// Repository combines all git operation interfaces into a single type.
// The chunk engine depends on this interface; tests substitute the in-memory
// implementation from worktreetest.
type Repository interface {
	DiffProvider
	BranchManager
	WorktreeManager
	GitOperations
}

// Ensure CLIRepository implements all interfaces at compile time.
var (
	_ DiffProvider    = (*CLIRepository)(nil)
	_ BranchManager   = (*CLIRepository)(nil)
	_ WorktreeManager = (*CLIRepository)(nil)
	_ GitOperations   = (*CLIRepository)(nil)
	_ Repository      = (*CLIRepository)(nil)
)

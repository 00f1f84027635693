// Package errors provides centralized error definitions and error handling utilities
// for merges. It defines the error kinds surfaced by the chunk engine, semantic
// error types, constructors with context wrapping, and classification helpers.
//
// # Error Types
//
// Domain-specific errors represent failures from a specific subsystem:
//   - GitError: a git command exited non-zero (branches, worktrees, commits, rebases)
//   - StateError: the .merges.json state file is missing or unreadable
//   - RollbackError: cleanup failures collected while unwinding a failed operation
//   - SyncError: per-chunk rebase failures collected by the sync engine
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found (chunks, branches)
//   - ValidationError: invalid input, reported before anything is mutated
//
// # Usage
//
//	err := errors.NewGitError("failed to create branch", errors.ErrBranchExists).
//		WithBranch("feat-chunk-1-models")
//
//	if errors.Is(err, errors.ErrBranchExists) { ... }
//
//	var stateErr *errors.StateError
//	if errors.As(err, &stateErr) {
//		fmt.Println(stateErr.Hint)
//	}
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Git-related sentinel errors
var (
	// ErrNotGitRepository indicates that the directory is not a git repository.
	ErrNotGitRepository = New("not a git repository")
	// ErrBranchNotFound indicates that a branch could not be found.
	ErrBranchNotFound = New("branch not found")
	// ErrBranchExists indicates that a branch already exists.
	ErrBranchExists = New("branch already exists")
	// ErrNothingToCommit indicates a commit was requested on a clean tree.
	ErrNothingToCommit = New("nothing to commit, working tree clean")
	// ErrRebaseConflict indicates a rebase stopped on conflicts.
	ErrRebaseConflict = New("rebase stopped on conflicts")
	// ErrNoRemote indicates the repository has no usable origin remote.
	ErrNoRemote = New("no origin remote")
)

// State-related sentinel errors
var (
	// ErrStateNotFound indicates the state file does not exist.
	ErrStateNotFound = New("state file not found")
	// ErrStateCorrupted indicates the state file could not be parsed.
	ErrStateCorrupted = New("state file corrupted")
)

// Chunk-related sentinel errors
var (
	// ErrInvalidInput matches every ValidationError.
	ErrInvalidInput = New("invalid input")
	// ErrEmptyPlan indicates a plan without any chunk entries.
	ErrEmptyPlan = New("chunk plan is empty")
	// ErrChunkNotFound indicates a chunk name that is not in the state.
	ErrChunkNotFound = New("chunk not found")
	// ErrFileNotInDiff indicates a file that is not changed relative to the base branch.
	ErrFileNotInDiff = New("file not in diff")
	// ErrFileNotInChunk indicates a file that is not a member of the named chunk.
	ErrFileNotInChunk = New("file not in chunk")
	// ErrDuplicateFile indicates a file assigned to more than one chunk.
	ErrDuplicateFile = New("file already assigned")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// MergesError is the base interface for all merges errors.
type MergesError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// IsRetryable returns true if the operation may succeed on retry.
	IsRetryable() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// GitError represents a failed git invocation.
//
// Example:
//
//	err := errors.NewGitError("failed to create worktree", errors.ErrBranchExists)
//	err = err.WithBranch("feature-x").WithWorktree("/path/to/worktree")
type GitError struct {
	baseError
	Branch     string
	Worktree   string
	Repository string
	GitOutput  string // Captured git command output
}

// NewGitError creates a new GitError.
func NewGitError(message string, cause error) *GitError {
	return &GitError{
		baseError: baseError{
			message: message,
			cause:   cause,
		},
	}
}

// WithBranch adds a branch name to the error context.
func (e *GitError) WithBranch(branch string) *GitError {
	e.Branch = branch
	return e
}

// WithWorktree adds a worktree path to the error context.
func (e *GitError) WithWorktree(path string) *GitError {
	e.Worktree = path
	return e
}

// WithRepository adds a repository path to the error context.
func (e *GitError) WithRepository(path string) *GitError {
	e.Repository = path
	return e
}

// WithGitOutput adds git command output to the error context.
func (e *GitError) WithGitOutput(output string) *GitError {
	e.GitOutput = strings.TrimSpace(output)
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *GitError) WithRetryable(r bool) *GitError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *GitError) Error() string {
	var parts []string
	if e.Branch != "" {
		parts = append(parts, fmt.Sprintf("branch=%s", e.Branch))
	}
	if e.Worktree != "" {
		parts = append(parts, fmt.Sprintf("worktree=%s", e.Worktree))
	}
	if e.Repository != "" {
		parts = append(parts, fmt.Sprintf("repo=%s", e.Repository))
	}

	prefix := "git error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("git error [%s]", strings.Join(parts, ", "))
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.GitOutput != "" {
		msg = fmt.Sprintf("%s\ngit output: %s", msg, e.GitOutput)
	}

	return fmt.Sprintf("%s: %s", prefix, msg)
}

// Is checks if this error matches the target.
func (e *GitError) Is(target error) bool {
	if _, ok := target.(*GitError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// StateError represents a missing or unreadable state file. Hint carries the
// remediation shown to the user.
//
// Example:
//
//	err := errors.NewStateError("could not read .merges.json", errors.ErrStateNotFound).
//		WithPath(path).
//		WithHint("Run `merges init` first.")
type StateError struct {
	baseError
	Path string
	Hint string
}

// NewStateError creates a new StateError.
func NewStateError(message string, cause error) *StateError {
	return &StateError{
		baseError: baseError{
			message: message,
			cause:   cause,
		},
	}
}

// WithPath adds the state file path to the error context.
func (e *StateError) WithPath(path string) *StateError {
	e.Path = path
	return e
}

// WithHint sets the remediation hint.
func (e *StateError) WithHint(hint string) *StateError {
	e.Hint = hint
	return e
}

// Error returns the formatted error message.
func (e *StateError) Error() string {
	prefix := "state error"
	if e.Path != "" {
		prefix = fmt.Sprintf("state error [path=%s]", e.Path)
	}

	msg := fmt.Sprintf("%s: %s", prefix, e.message)
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.Hint != "" {
		msg = fmt.Sprintf("%s. %s", msg, e.Hint)
	}
	return msg
}

// Is checks if this error matches the target.
func (e *StateError) Is(target error) bool {
	if _, ok := target.(*StateError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// RollbackError collects the cleanup failures hit while undoing a partially
// applied operation. It is attached to the primary error, never returned in
// its place.
type RollbackError struct {
	baseError
	Failures []error
}

// NewRollbackError creates a RollbackError for the given operation.
func NewRollbackError(operation string) *RollbackError {
	return &RollbackError{
		baseError: baseError{
			message: fmt.Sprintf("rollback of %s incomplete", operation),
		},
	}
}

// Add records a cleanup failure. Nil errors are ignored.
func (e *RollbackError) Add(err error) {
	if err != nil {
		e.Failures = append(e.Failures, err)
	}
}

// HasFailures reports whether any cleanup step failed.
func (e *RollbackError) HasFailures() bool {
	return len(e.Failures) > 0
}

// Error returns the formatted error message.
func (e *RollbackError) Error() string {
	if len(e.Failures) == 0 {
		return e.message
	}
	lines := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		lines = append(lines, "  - "+f.Error())
	}
	return fmt.Sprintf("%s (%d cleanup failures):\n%s", e.message, len(e.Failures), strings.Join(lines, "\n"))
}

// Unwrap exposes every cleanup failure to errors.Is and errors.As.
func (e *RollbackError) Unwrap() []error {
	return e.Failures
}

// Is checks if this error matches the target.
func (e *RollbackError) Is(target error) bool {
	_, ok := target.(*RollbackError)
	return ok
}

// WithRollback attaches rollback failures to a primary error. The primary
// error stays first so its message leads and errors.Is keeps matching it.
// Returns primary unchanged when rollback is nil or recorded nothing.
func WithRollback(primary error, rollback *RollbackError) error {
	if rollback == nil || !rollback.HasFailures() {
		return primary
	}
	return &withRollback{primary: primary, rollback: rollback}
}

type withRollback struct {
	primary  error
	rollback *RollbackError
}

func (e *withRollback) Error() string {
	return fmt.Sprintf("%v\n%v", e.primary, e.rollback)
}

func (e *withRollback) Unwrap() []error {
	return []error{e.primary, e.rollback}
}

// ChunkFailure is a single chunk's failure inside a SyncError.
type ChunkFailure struct {
	Chunk  string
	Branch string
	Err    error
}

// SyncError reports every chunk whose rebase failed during one sync run.
type SyncError struct {
	baseError
	Failures []ChunkFailure
}

// NewSyncError creates a SyncError from the collected failures.
func NewSyncError(failures []ChunkFailure) *SyncError {
	return &SyncError{
		baseError: baseError{
			message:   "sync failed",
			retryable: true,
		},
		Failures: failures,
	}
}

// Chunks returns the names of the failing chunks in report order.
func (e *SyncError) Chunks() []string {
	names := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		names = append(names, f.Chunk)
	}
	return names
}

// Error returns the formatted error message.
func (e *SyncError) Error() string {
	lines := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		lines = append(lines, fmt.Sprintf("  - %s (%s): %v", f.Chunk, f.Branch, f.Err))
	}
	return fmt.Sprintf("sync failed for %d chunk(s): %s\n%s",
		len(e.Failures), strings.Join(e.Chunks(), ", "), strings.Join(lines, "\n"))
}

// Unwrap exposes the per-chunk causes.
func (e *SyncError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Is checks if this error matches the target.
func (e *SyncError) Is(target error) bool {
	_, ok := target.(*SyncError)
	return ok
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("chunk", "models").WithCause(errors.ErrChunkNotFound)
//	fmt.Println(err) // "chunk 'models' not found: chunk not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
	Available    []string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message: fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// WithAvailable lists the valid identifiers in the error message.
func (e *NotFoundError) WithAvailable(ids []string) *NotFoundError {
	e.Available = ids
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
	if len(e.Available) > 0 {
		msg = fmt.Sprintf("%s (available: %s)", msg, strings.Join(e.Available, ", "))
	}
	return msg
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("file is not changed relative to main").
//		WithField("file").WithValue("src/a.go").WithCause(errors.ErrFileNotInDiff)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message: message,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a condition that may
// clear on a later run, such as a sync that stopped on conflicts.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// SyncError carries a multi-error Unwrap, so it is checked on its own.
	var syncErr *SyncError
	if As(err, &syncErr) {
		return syncErr.retryable
	}

	var mergesErr MergesError
	if As(err, &mergesErr) {
		return mergesErr.IsRetryable()
	}
	return false
}

// IsValidation reports whether err is a ValidationError, i.e. it was raised
// before anything was mutated.
func IsValidation(err error) bool {
	return Is(err, ErrInvalidInput)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

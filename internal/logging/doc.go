// Package logging provides structured logging for merges commands.
//
// It wraps log/slog with a JSON handler. Each command invocation may write to
// {dir}/debug.log (by default inside .git/merges so the file is never tracked),
// or to stderr when no directory is configured.
//
// # Context Propagation
//
// Child loggers carry persistent attributes:
//
//	log := logger.WithOperation("sync").WithChunk("models")
//	log.Info("rebase finished", "branch", "feat-chunk-1-models")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"rebase finished","operation":"sync","chunk":"models","branch":"feat-chunk-1-models"}
//
// Engine components accept a *Logger and default to [NopLogger] so that
// tests and library callers need no setup.
package logging

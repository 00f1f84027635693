// Package ownership tracks which chunk owns each changed file.
//
// A path belongs to at most one chunk. The [Index] is built from the persisted
// state and consulted before any branch is touched, so duplicate assignments
// are rejected as validation errors.
//
// # Basic Usage
//
//	idx := ownership.FromState(st)
//
//	// Reserve files for a new chunk; nothing is reserved if one is taken
//	err := idx.ClaimMultiple("api", []string{"api/routes.rs", "api/handlers.rs"})
//
//	// Check ownership
//	owner, ok := idx.Owner("api/routes.rs")
//
//	// Move a file between chunks
//	err = idx.Transfer("api/routes.rs", "api", "models")
//
// State files edited by hand can already contain duplicates. [FromState] keeps
// the first owner and reports the rest through [Index.Conflicts].
//
// # Thread Safety
//
// All [Index] methods are safe for concurrent use via an internal sync.RWMutex.
package ownership

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/merges/internal/state"
	"github.com/Iron-Ham/merges/internal/worktree"
)

// completeChunkNames offers the chunk names from .merges.json. For add only
// the first argument is a chunk; the rest are files.
func completeChunkNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if cmd.Name() == "add" && len(args) > 0 {
		return nil, cobra.ShellCompDirectiveDefault
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	root, err := worktree.FindMainRoot(cwd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	st, err := state.Load(root)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return st.ChunkNames(), cobra.ShellCompDirectiveNoFileComp
}

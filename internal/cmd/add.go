package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/merges/internal/chunk"
	"github.com/Iron-Ham/merges/internal/tui/styles"
)

var addCmd = &cobra.Command{
	Use:   "add <chunk> <file>...",
	Short: "Add files to an existing chunk",
	Long: `Add copies files from the source branch into a chunk branch and amends
the chunk commit. Files already in the chunk are skipped. A file that
belongs to another chunk must be moved with 'merges move' instead.`,
	Args:              cobra.MinimumNArgs(2),
	ValidArgsFunction: completeChunkNames,
	RunE:              runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer e.close()

	st, err := e.loadState()
	if err != nil {
		return err
	}

	name, files := args[0], args[1:]
	res, err := chunk.New(e.repo, e.root, e.logger).AddFiles(st, name, files)
	if err != nil {
		return err
	}
	if len(res.Added) == 0 {
		e.printf("%s All files are already in chunk %s, nothing to do.\n", styles.Muted.Render("·"), styles.Chunk.Render(name))
		return nil
	}
	if err := e.saveState(res.State); err != nil {
		return err
	}
	e.ok("Added %d file(s) to chunk %s", len(res.Added), styles.Chunk.Render(name))
	return nil
}

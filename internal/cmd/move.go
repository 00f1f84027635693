package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/merges/internal/chunk"
	"github.com/Iron-Ham/merges/internal/tui/styles"
)

var moveCmd = &cobra.Command{
	Use:   "move <file> --from <chunk> --to <chunk>",
	Short: "Move a file from one chunk to another",
	Args:  cobra.ExactArgs(1),
	RunE:  runMove,
}

var (
	moveFrom string
	moveTo   string
)

func init() {
	rootCmd.AddCommand(moveCmd)
	moveCmd.Flags().StringVar(&moveFrom, "from", "", "Chunk the file is in now")
	moveCmd.Flags().StringVar(&moveTo, "to", "", "Chunk to move the file to")
	_ = moveCmd.MarkFlagRequired("from")
	_ = moveCmd.MarkFlagRequired("to")
	_ = moveCmd.RegisterFlagCompletionFunc("from", completeChunkNames)
	_ = moveCmd.RegisterFlagCompletionFunc("to", completeChunkNames)
}

func runMove(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer e.close()

	st, err := e.loadState()
	if err != nil {
		return err
	}

	file := args[0]
	next, err := chunk.New(e.repo, e.root, e.logger).MoveFile(st, file, moveFrom, moveTo)
	if err != nil {
		return err
	}
	if err := e.saveState(next); err != nil {
		return err
	}
	e.ok("Moved %s from %s to %s", file, styles.Chunk.Render(moveFrom), styles.Chunk.Render(moveTo))
	return nil
}

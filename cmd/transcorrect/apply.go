package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrWong99/transcorrect/internal/document"
)

func newApplyCmd(c *cli) *cobra.Command {
	var fileID, resultsPath, output string
	cmd := &cobra.Command{
		Use:   "apply [flags] <transcript.json>",
		Short: "Apply stored corrections to a transcript",
		Long: `Apply the completed blocks of a correction run to the transcript they were
produced from. Results come from --results or from the configured store.
Blocks that ended in error leave their speaker turns unchanged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			if fileID == "" && resultsPath == "" {
				fileID = fileIDFromPath(args[0])
			}
			res, err := c.storedResult(cmd.Context(), fileID, resultsPath)
			if err != nil {
				return err
			}

			out := document.ApplyBlocks(doc, res.Blocks)
			if output != "" {
				return writeDocument(output, out)
			}
			data, err := document.Marshal(out)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
	cmd.Flags().StringVar(&fileID, "file-id", "", "file ID of the stored results (default: input base name)")
	cmd.Flags().StringVar(&resultsPath, "results", "", "read results from this file instead of the store")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the corrected transcript here instead of stdout")
	return cmd
}

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrWong99/transcorrect/internal/correction"
)

func newStatusCmd(c *cli) *cobra.Command {
	var fileID, resultsPath string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored block results of a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.storedResult(cmd.Context(), fileID, resultsPath)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			return printStatus(cmd, res)
		},
	}
	cmd.Flags().StringVar(&fileID, "file-id", "", "file ID to look up in the store")
	cmd.Flags().StringVar(&resultsPath, "results", "", "read results from this file instead of the store")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func printStatus(cmd *cobra.Command, res *correction.FileResult) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "file %s: %s, %d/%d blocks completed (%.1f%%)\n",
		res.FileID, res.Status, res.CompletedBlocks, res.TotalBlocks, res.SuccessRate)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BLOCK\tSTATUS\tSEGMENTS\tRETRIES\tRATIO\tNOTES")
	for _, b := range res.Blocks {
		notes := b.Error
		if len(b.ValidationIssues) > 0 {
			notes = strings.Join(b.ValidationIssues, "; ")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%.2f\t%s\n",
			b.BlockIndex, b.Status, segmentRange(b.SegmentIndices), b.RetryCount, b.LengthRatio, notes)
	}
	return tw.Flush()
}

func segmentRange(indices []int) string {
	switch len(indices) {
	case 0:
		return "-"
	case 1:
		return fmt.Sprint(indices[0])
	default:
		return fmt.Sprintf("%d-%d", indices[0], indices[len(indices)-1])
	}
}

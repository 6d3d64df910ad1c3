package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrWong99/transcorrect/internal/document"
)

func newStatsCmd(c *cli) *cobra.Command {
	var fileID, resultsPath string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats [flags] <transcript.json>",
		Short: "Summarise what the stored corrections change in a transcript",
		Args:  cobra.ExactArgs(1),
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

			st := document.Stats(doc, res.Alignments())
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			fmt.Fprintf(w, "words:        %d\n", st.TotalWords)
			fmt.Fprintf(w, "matched:      %d\n", st.MatchedWords)
			fmt.Fprintf(w, "substituted:  %d (%d sound alike)\n", st.SubstitutedWords, st.PhoneticSubstitutions)
			fmt.Fprintf(w, "chars edited: %d\n", st.SubstitutedCharacters)
			fmt.Fprintf(w, "inserted:     %d\n", st.InsertedWords)
			fmt.Fprintf(w, "deleted:      %d\n", st.DeletedWords)
			_, err = fmt.Fprintf(w, "change rate:  %s\n", st.RatePercent())
			return err
		},
	}
	cmd.Flags().StringVar(&fileID, "file-id", "", "file ID of the stored results (default: input base name)")
	cmd.Flags().StringVar(&resultsPath, "results", "", "read results from this file instead of the store")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the statistics as JSON")
	return cmd
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/autophrase/phrase"
)

type checkReport struct {
	Resource string            `json:"resource"`
	Phrases  int               `json:"phrases"`
	Stats    phrase.BuildStats `json:"stats"`
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var ignoreCase bool
	cmd := &cobra.Command{
		Use:   "check <resource>",
		Short: "Validate a phrase list",
		Long: `Check builds a dictionary from the phrase list and reports how many
lines were kept and how many were dropped. Lines are dropped as comments,
single words, duplicates, or as unmatchable when a word carries punctuation
the query tokenizer splits on (wi-fi, at&t).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dict, err := phrase.BuildFrom(cmd.Context(), localSources(), args[0], ignoreCase)
			if err != nil {
				return err
			}
			report := checkReport{Resource: args[0], Phrases: dict.Size(), Stats: dict.Stats()}
			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, report)
			}
			printf(out, "%s: %d phrases\n", report.Resource, report.Phrases)
			printf(out, "  lines:       %d\n", report.Stats.Lines)
			printf(out, "  kept:        %d\n", report.Stats.Kept)
			printf(out, "  comments:    %d\n", report.Stats.Comments)
			printf(out, "  single word: %d\n", report.Stats.SingleWord)
			printf(out, "  duplicates:  %d\n", report.Stats.Duplicates)
			printf(out, "  unmatchable: %d\n", report.Stats.Unmatchable)
			return nil
		},
	}
	cmd.Flags().BoolVar(&ignoreCase, "ignore-case", false, "Treat phrases differing only in case as duplicates")
	return cmd
}

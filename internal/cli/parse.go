package cli

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/qparser"
	apperrors "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/errors"
)

func newParseCmd(opts *rootOptions) *cobra.Command {
	var flags pluginFlags
	var rawParams []string
	cmd := &cobra.Command{
		Use:   "parse <query...>",
		Short: "Rewrite a query and print the downstream parser's plan",
		Long: `Parse rewrites the query and hands it to the downstream parser, printing
the resulting plan as JSON.

Examples:
  phrasectl parse --phrases phrases.txt wheel chair NOT rental
  phrasectl parse --phrases phrases.txt --def-type terms --param rows=5 hi there`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			for _, kv := range rawParams {
				k, v, ok := strings.Cut(kv, "=")
				if !ok || k == "" {
					return fmt.Errorf("%w: --param must look like key=value, got %q", apperrors.ErrInvalidInput, kv)
				}
				params.Add(k, v)
			}
			plugin, err := flags.load(cmd.Context(), opts.logger(cmd))
			if err != nil {
				return err
			}
			parser, err := plugin.CreateParser(cmd.Context(), joinArgs(args), params, url.Values{}, &qparser.Request{ID: "phrasectl"})
			if err != nil {
				return err
			}
			plan, err := parser.Parse(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), plan)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringArrayVar(&rawParams, "param", nil, "Parser parameter as key=value (repeatable)")
	return cmd
}

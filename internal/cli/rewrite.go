package cli

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/autophrase"
	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/qparser"
)

// pluginFlags are the plugin options shared by rewrite and parse.
type pluginFlags struct {
	phrases       string
	ignoreCase    bool
	replaceWith   string
	includeTokens bool
	defType       string
}

func (f *pluginFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.phrases, "phrases", "", "Phrase resource (file path or sqlite:<path>#<list>)")
	cmd.Flags().BoolVar(&f.ignoreCase, "ignore-case", false, "Match phrases case-insensitively")
	cmd.Flags().StringVar(&f.replaceWith, "replace-with", "", "Character joining the words of a matched phrase")
	cmd.Flags().BoolVar(&f.includeTokens, "include-tokens", false, "Report the surface words of each match")
	cmd.Flags().StringVar(&f.defType, "def-type", autophrase.DefaultParser, "Downstream parser")
	_ = cmd.MarkFlagRequired("phrases")
}

func (f *pluginFlags) params() map[string]string {
	params := map[string]string{
		autophrase.ParamPhrases:       f.phrases,
		autophrase.ParamIgnoreCase:    strconv.FormatBool(f.ignoreCase),
		autophrase.ParamIncludeTokens: strconv.FormatBool(f.includeTokens),
		autophrase.ParamDefType:       f.defType,
	}
	if f.replaceWith != "" {
		params[autophrase.ParamReplaceWhitespaceWith] = f.replaceWith
	}
	return params
}

// load builds a plugin with the flags' options and loads its phrase list.
func (f *pluginFlags) load(ctx context.Context, l *slog.Logger) (*autophrase.Plugin, error) {
	plugin := autophrase.New(qparser.NewRegistry(), autophrase.WithLogger(l))
	if err := plugin.Init(f.params()); err != nil {
		return nil, err
	}
	if err := plugin.Inform(ctx, localSources()); err != nil {
		return nil, err
	}
	return plugin, nil
}

func newRewriteCmd(opts *rootOptions) *cobra.Command {
	var flags pluginFlags
	cmd := &cobra.Command{
		Use:   "rewrite <query...>",
		Short: "Rewrite a query against a phrase list",
		Long: `Rewrite joins every phrase from the list found in the query into a
single term and prints the rewritten query.

Examples:
  phrasectl rewrite --phrases phrases.txt --replace-with Z wheel chair rental
  phrasectl rewrite --phrases sqlite:phrases.db#default --json "Hi There"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plugin, err := flags.load(cmd.Context(), opts.logger(cmd))
			if err != nil {
				return err
			}
			res, err := plugin.Rewrite(joinArgs(args))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, res)
			}
			printf(out, "%s\n", res.Query)
			for _, m := range res.Matches {
				printf(out, "  matched %q at %d-%d\n", m.Phrase.String(), m.Start, m.End)
				if len(m.Tokens) > 0 {
					printf(out, "    tokens %s\n", strings.Join(m.Tokens, " "))
				}
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

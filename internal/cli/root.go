// Package cli implements phrasectl, the offline companion to the autophrase
// service: it rewrites and parses queries against a phrase list, validates
// phrase lists and imports them into the stores the service reads from.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/autophrase/source"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/logger"
)

var Version = "dev"

// NewRootCmd creates the phrasectl command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "phrasectl",
		Short: "Inspect phrase lists and try query rewrites offline",
		Long: `phrasectl loads a phrase list the same way the autophrase service does
and lets you see what it does to a query without running the service.

Phrase resources are file paths or sqlite:<path>#<list>. The import
command also writes to postgres:<list> and redis:<key>.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Output in JSON format")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log loading details to stderr")

	cmd.AddCommand(
		newRewriteCmd(opts),
		newParseCmd(opts),
		newCheckCmd(opts),
		newImportCmd(),
	)
	return cmd
}

// Execute runs phrasectl with the process arguments.
func Execute() error {
	return NewRootCmd().Execute()
}

// localSources reads the resources that need no running service.
func localSources() *source.Router {
	files := source.FileLoader{}
	r := source.NewRouter()
	r.Handle(source.SchemeFile, files)
	r.Handle(source.SchemeSQLite, source.SQLiteLoader{Files: files})
	return r
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}

type rootOptions struct {
	json    bool
	verbose bool
}

// logger keeps plugin logs out of command output unless --verbose is set.
func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	if o.verbose {
		return logger.New(cmd.ErrOrStderr(), "debug", "text")
	}
	return logger.Discard()
}

func printf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}

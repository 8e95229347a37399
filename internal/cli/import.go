package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/autophrase/internal/autophrase/source"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/redis"
)

func newImportCmd() *cobra.Command {
	var configPath, target string
	cmd := &cobra.Command{
		Use:   "import <resource>",
		Short: "Copy a phrase list into a phrase store",
		Long: `Import reads a phrase list and replaces the list named by --to with its
lines, unchanged. Postgres and Redis connection settings come from the
service config file and its AP_* environment overrides; --config is
optional and the service-only settings in it are not checked.

Examples:
  phrasectl import phrases.txt --to sqlite:phrases.db#default
  phrasectl import phrases.txt --to postgres:default --config configs/autophrase.yaml
  phrasectl import sqlite:phrases.db#default --to redis:phrases:default`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(configPath)
			if err != nil {
				return err
			}
			lines, err := localSources().Lines(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			dest := source.ParseResource(target)
			if err := importLines(cmd.Context(), cfg, dest, lines); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "imported %d lines into %s\n", len(lines), dest)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Service config file")
	cmd.Flags().StringVar(&target, "to", "", "Destination: sqlite:<path>#<list>, postgres:<list> or redis:<key>")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func importLines(ctx context.Context, cfg *config.Config, dest source.Resource, lines []string) error {
	switch dest.Scheme {
	case source.SchemeSQLite:
		return source.ImportSQLite(ctx, dest.Location, cfg.SQLite.BusyTimeout, lines)
	case source.SchemePostgres:
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			return err
		}
		defer pg.Close()
		return source.Import(ctx, pg.DB, source.PostgresDialect, dest.Location, lines)
	case source.SchemeRedis:
		rdb, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		return rdb.ReplaceList(ctx, dest.Location, lines)
	default:
		return fmt.Errorf("%w: cannot import into %q", apperrors.ErrConfiguration, dest)
	}
}

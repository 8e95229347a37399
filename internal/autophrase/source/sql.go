package source

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/Adithya-Monish-Kumar-K/autophrase/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/autophrase/pkg/postgres"
)

// Dialect holds the statements for one SQL backend. Both backends use the
// same phrases table: one row per line, ordered by position within a list.
type Dialect struct {
	Name   string
	Schema []string
	Select string
	Delete string
	Insert string
}

var PostgresDialect = Dialect{
	Name: SchemePostgres,
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS phrases (
			id       BIGSERIAL PRIMARY KEY,
			list     TEXT    NOT NULL,
			position INTEGER NOT NULL,
			phrase   TEXT    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_phrases_list ON phrases (list, position)`,
	},
	Select: `SELECT phrase FROM phrases WHERE list = $1 ORDER BY position, id`,
	Delete: `DELETE FROM phrases WHERE list = $1`,
	Insert: `INSERT INTO phrases (list, position, phrase) VALUES ($1, $2, $3)`,
}

var SQLiteDialect = Dialect{
	Name: SchemeSQLite,
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS phrases (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			list     TEXT    NOT NULL,
			position INTEGER NOT NULL,
			phrase   TEXT    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_phrases_list ON phrases (list, position)`,
	},
	Select: `SELECT phrase FROM phrases WHERE list = ? ORDER BY position, id`,
	Delete: `DELETE FROM phrases WHERE list = ?`,
	Insert: `INSERT INTO phrases (list, position, phrase) VALUES (?, ?, ?)`,
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLLoader reads a named list from the phrases table.
type SQLLoader struct {
	db      Querier
	dialect Dialect
}

// NewPostgresLoader reads lists from Postgres; location is the list name.
func NewPostgresLoader(db Querier) *SQLLoader {
	return &SQLLoader{db: db, dialect: PostgresDialect}
}

func (l *SQLLoader) Lines(ctx context.Context, list string) ([]string, error) {
	return queryLines(ctx, l.db, l.dialect, list)
}

func queryLines(ctx context.Context, db Querier, d Dialect, list string) ([]string, error) {
	rows, err := db.QueryContext(ctx, d.Select, list)
	if err != nil {
		return nil, fmt.Errorf("querying %s phrase list %q: %w", d.Name, list, err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scanning %s phrase row: %w", d.Name, err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s phrase rows: %w", d.Name, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: %s phrase list %q is empty or missing", apperrors.ErrConfiguration, d.Name, list)
	}
	return lines, nil
}

// SQLiteLoader opens the database file named in the location on every
// read, so an edited file is picked up by the next reload.
// The location form is "<path>#<list>".
type SQLiteLoader struct {
	BusyTimeout time.Duration
	Files       FileLoader
}

func (l SQLiteLoader) Lines(ctx context.Context, location string) ([]string, error) {
	path, list, err := splitSQLiteLocation(location)
	if err != nil {
		return nil, err
	}
	path = l.Files.Path(path)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("opening sqlite phrase database: %w", err)
	}
	db, err := OpenSQLite(path, l.BusyTimeout)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return queryLines(ctx, db, SQLiteDialect, list)
}

func splitSQLiteLocation(location string) (string, string, error) {
	path, list, ok := strings.Cut(location, "#")
	if !ok || path == "" || list == "" {
		return "", "", fmt.Errorf("%w: sqlite resource must look like sqlite:<path>#<list>, got %q",
			apperrors.ErrConfiguration, location)
	}
	return path, list, nil
}

// OpenSQLite opens path with modernc's pure-Go driver.
func OpenSQLite(path string, busyTimeout time.Duration) (*sql.DB, error) {
	dsn := path
	if busyTimeout > 0 {
		dsn = fmt.Sprintf("%s?_pragma=busy_timeout(%d)", path, busyTimeout.Milliseconds())
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	return db, nil
}

// Import replaces list with lines inside one transaction, creating the
// phrases table when it is missing.
func Import(ctx context.Context, db *sql.DB, d Dialect, list string, lines []string) error {
	for _, stmt := range d.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating %s phrases schema: %w", d.Name, err)
		}
	}
	return postgres.InTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, d.Delete, list); err != nil {
			return fmt.Errorf("clearing phrase list %q: %w", list, err)
		}
		stmt, err := tx.PrepareContext(ctx, d.Insert)
		if err != nil {
			return fmt.Errorf("preparing phrase insert: %w", err)
		}
		defer stmt.Close()
		for i, line := range lines {
			if _, err := stmt.ExecContext(ctx, list, i, line); err != nil {
				return fmt.Errorf("inserting phrase %d of list %q: %w", i, list, err)
			}
		}
		return nil
	})
}

// ImportSQLite writes lines into the list named by an sqlite location.
func ImportSQLite(ctx context.Context, location string, busyTimeout time.Duration, lines []string) error {
	path, list, err := splitSQLiteLocation(location)
	if err != nil {
		return err
	}
	db, err := OpenSQLite(path, busyTimeout)
	if err != nil {
		return err
	}
	defer db.Close()
	return Import(ctx, db, SQLiteDialect, list, lines)
}

package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/cpritcha/catalog/internal/audit"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Errors returned by the store.
var (
	ErrNotFound       = errors.New("not found")
	ErrAliasCollision = errors.New("alias owners changed since grouping")
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes; one connection also keeps
	// the pragmas below in effect for every statement.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// createSchema creates the audit tables and then the catalog tables.
func createSchema(db *sql.DB) error {
	if _, err := db.Exec(audit.Schema); err != nil {
		return fmt.Errorf("audit schema: %w", err)
	}
	_, err := db.Exec(schemaSQL)
	return err
}

// WithCommand saves cmd and runs fn in one transaction with a Tx whose writes
// are logged under cmd. If fn returns an error nothing is persisted, the
// command included.
func (d *DB) WithCommand(ctx context.Context, cmd audit.Command, fn func(*Tx) error) (audit.Command, error) {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return audit.Command{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer sqlTx.Rollback()

	saved, err := audit.SaveCommand(ctx, sqlTx, cmd)
	if err != nil {
		return audit.Command{}, err
	}

	tx := &Tx{tx: sqlTx, rec: audit.NewRecorder(sqlTx, saved)}
	if err := fn(tx); err != nil {
		return audit.Command{}, err
	}

	if err := sqlTx.Commit(); err != nil {
		return audit.Command{}, fmt.Errorf("committing command %s: %w", saved.PublicID, err)
	}
	return saved, nil
}

// AuditEntries returns log entries matching f.
func (d *DB) AuditEntries(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	return audit.List(ctx, d.db, f)
}

// AuditCommands returns the most recent commands, newest first.
func (d *DB) AuditCommands(ctx context.Context, limit int) ([]audit.Command, error) {
	return audit.Commands(ctx, d.db, limit)
}

// RowHistory returns the log entries of one row and its current state
// (nil if the row no longer exists).
func (d *DB) RowHistory(ctx context.Context, table string, id int64) ([]audit.Entry, map[string]any, error) {
	entries, err := audit.History(ctx, d.db, table, id)
	if err != nil {
		return nil, nil, err
	}
	current, err := selectRowMap(ctx, d.db, table, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, nil, err
	}
	return entries, current, nil
}

// selectRowMap reads every column of one row as JSON-friendly values.
// table must already be a validated identifier.
func selectRowMap(ctx context.Context, q audit.Querier, table string, id int64) (map[string]any, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %s WHERE id = ?`, table), id)
	if err != nil {
		return nil, fmt.Errorf("reading %s %d: %w", table, id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s %d", ErrNotFound, table, id)
	}
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	row := make(map[string]any, len(names))
	for i, n := range names {
		switch v := vals[i].(type) {
		case []byte:
			row[n] = string(v)
		case int64:
			// Match the float64 numbers decoded from audit payloads.
			row[n] = float64(v)
		default:
			row[n] = v
		}
	}
	return row, nil
}

// nullableInt64 returns nil for a nil pointer, for nullable foreign keys.
func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// boolInt stores a bool as SQLite INTEGER.
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const dateLayout = "2006-01-02"

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func parseDate(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

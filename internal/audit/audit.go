// Package audit records every row mutation of the catalog in an append-only
// log, grouped under the command that caused it.
//
// A Recorder is bound to one open transaction and one Command. Each of its
// write methods performs the mutation and appends the matching log entry in
// that same transaction, so either both persist or neither does.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Role is the kind of actor issuing a command.
type Role string

const (
	RoleAuthorEdit  Role = "AUTHOR_EDIT"
	RoleSystemLog   Role = "SYSTEM_LOG"
	RoleCuratorEdit Role = "CURATOR_EDIT"
)

// CommandAction is the logical operation a command performs.
type CommandAction string

const (
	ActionSplit  CommandAction = "SPLIT"
	ActionMerge  CommandAction = "MERGE"
	ActionLoad   CommandAction = "LOAD"
	ActionManual CommandAction = "MANUAL"
)

// Action is the kind of row mutation an entry records.
type Action string

const (
	Insert Action = "INSERT"
	Update Action = "UPDATE"
	Delete Action = "DELETE"
)

// Errors returned by the audit layer.
var (
	ErrInvalidIdentifier = errors.New("invalid table or column name")
	ErrRowNotFound       = errors.New("row not found")
	ErrNoCommand         = errors.New("recorder has no command")
)

// Command groups the mutations of one logical operation.
type Command struct {
	ID        int64         `json:"id"`
	PublicID  string        `json:"public_id"`
	Role      Role          `json:"role"`
	Action    CommandAction `json:"action"`
	Creator   string        `json:"creator"`
	Message   string        `json:"message,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewCommand returns an unsaved command with a fresh public id.
func NewCommand(role Role, action CommandAction, creator, message string) Command {
	return Command{
		PublicID:  uuid.NewString(),
		Role:      role,
		Action:    action,
		Creator:   creator,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}

// Entry is one logged row mutation. Payload holds the values of the
// affected columns before the mutation: empty for inserts, the changed
// columns for updates, every column for deletes.
type Entry struct {
	ID        int64          `json:"id"`
	CommandID int64          `json:"command_id"`
	Action    Action         `json:"action"`
	Table     string         `json:"table"`
	RowID     int64          `json:"row_id"`
	Payload   map[string]any `json:"payload"`
}

// Querier is the subset of *sql.DB and *sql.Tx used by the audit layer.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// validIdent returns an error unless every name is a plain SQL identifier.
func validIdent(names ...string) error {
	for _, n := range names {
		if !identPattern.MatchString(n) {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, n)
		}
	}
	return nil
}

// Schema creates the audit tables. The log and command tables reject
// UPDATE and DELETE.
const Schema = `
	CREATE TABLE IF NOT EXISTS audit_commands (
		id INTEGER PRIMARY KEY,
		public_id TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL,
		action TEXT NOT NULL,
		creator TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY,
		command_id INTEGER NOT NULL REFERENCES audit_commands(id),
		action TEXT NOT NULL CHECK (action IN ('INSERT', 'UPDATE', 'DELETE')),
		table_name TEXT NOT NULL,
		row_id INTEGER NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_command ON audit_log(command_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_row ON audit_log(table_name, row_id);

	CREATE TRIGGER IF NOT EXISTS audit_log_no_update BEFORE UPDATE ON audit_log
	BEGIN
		SELECT RAISE(ABORT, 'audit_log is append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS audit_log_no_delete BEFORE DELETE ON audit_log
	BEGIN
		SELECT RAISE(ABORT, 'audit_log is append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS audit_commands_no_update BEFORE UPDATE ON audit_commands
	BEGIN
		SELECT RAISE(ABORT, 'audit_commands is append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS audit_commands_no_delete BEFORE DELETE ON audit_commands
	BEGIN
		SELECT RAISE(ABORT, 'audit_commands is append-only');
	END;
`

// SaveCommand inserts cmd and returns it with its row id set.
func SaveCommand(ctx context.Context, q Querier, cmd Command) (Command, error) {
	if cmd.PublicID == "" {
		cmd.PublicID = uuid.NewString()
	}
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = time.Now().UTC()
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO audit_commands (public_id, role, action, creator, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, cmd.PublicID, string(cmd.Role), string(cmd.Action), cmd.Creator, cmd.Message, formatTime(cmd.CreatedAt))
	if err != nil {
		return Command{}, fmt.Errorf("inserting audit command: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Command{}, fmt.Errorf("reading audit command id: %w", err)
	}
	cmd.ID = id
	return cmd, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

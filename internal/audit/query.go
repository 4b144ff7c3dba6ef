package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Filter selects log entries. Zero fields do not constrain.
type Filter struct {
	CommandID int64
	Table     string
	RowID     int64
	Limit     int
}

// List returns the entries matching f in log order.
func List(ctx context.Context, q Querier, f Filter) ([]Entry, error) {
	var (
		conds []string
		args  []any
	)
	if f.CommandID != 0 {
		conds = append(conds, "command_id = ?")
		args = append(args, f.CommandID)
	}
	if f.Table != "" {
		conds = append(conds, "table_name = ?")
		args = append(args, f.Table)
	}
	if f.RowID != 0 {
		conds = append(conds, "row_id = ?")
		args = append(args, f.RowID)
	}

	query := `SELECT id, command_id, action, table_name, row_id, payload FROM audit_log`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			action  string
			payload string
		)
		if err := rows.Scan(&e.ID, &e.CommandID, &action, &e.Table, &e.RowID, &payload); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Action = Action(action)
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, fmt.Errorf("decoding payload of audit entry %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// History returns every entry for one row, oldest first.
func History(ctx context.Context, q Querier, table string, rowID int64) ([]Entry, error) {
	if err := validIdent(table); err != nil {
		return nil, err
	}
	return List(ctx, q, Filter{Table: table, RowID: rowID})
}

// Commands returns saved commands, newest first. limit <= 0 returns all.
func Commands(ctx context.Context, q Querier, limit int) ([]Command, error) {
	query := `SELECT id, public_id, role, action, creator, message, created_at
		FROM audit_commands ORDER BY id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying audit commands: %w", err)
	}
	defer rows.Close()

	var cmds []Command
	for rows.Next() {
		var (
			c            Command
			role, action string
			createdAt    string
		)
		if err := rows.Scan(&c.ID, &c.PublicID, &role, &action, &c.Creator, &c.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit command: %w", err)
		}
		c.Role = Role(role)
		c.Action = CommandAction(action)
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at of command %d: %w", c.ID, err)
		}
		cmds = append(cmds, c)
	}
	return cmds, rows.Err()
}

// Step is one log entry of a row with the state the row had before it.
type Step struct {
	Entry
	Before map[string]any `json:"before"`
}

// Steps pairs each of a row's entries with the row state it replaced.
// Arguments are as for Rewind; Before is nil for the entry that created the row.
func Steps(current map[string]any, entries []Entry) []Step {
	steps := make([]Step, len(entries))
	for i, e := range entries {
		steps[i] = Step{Entry: e, Before: Rewind(current, entries[i:])}
	}
	return steps
}

// Rewind reconstructs a row's state before the given entries were applied.
//
// current is the row as it is now (nil if it no longer exists) and entries
// are that row's log entries in the order they were written. The result is
// nil if the row did not exist before the first entry.
func Rewind(current map[string]any, entries []Entry) map[string]any {
	var state map[string]any
	if current != nil {
		state = make(map[string]any, len(current))
		for k, v := range current {
			state[k] = v
		}
	}

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		switch e.Action {
		case Insert:
			state = nil
		case Update:
			if state == nil {
				state = map[string]any{}
			}
			for k, v := range e.Payload {
				state[k] = v
			}
		case Delete:
			state = make(map[string]any, len(e.Payload))
			for k, v := range e.Payload {
				state[k] = v
			}
		}
	}
	return state
}

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Values maps column names to values for one row.
type Values map[string]any

// columns returns the keys of v in sorted order.
func (v Values) columns() []string {
	cols := make([]string, 0, len(v))
	for c := range v {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Recorder performs logged mutations inside one transaction on behalf of one command.
type Recorder struct {
	q       Querier
	command Command
}

// NewRecorder binds a recorder to an open transaction and a saved command.
func NewRecorder(q Querier, cmd Command) *Recorder {
	return &Recorder{q: q, command: cmd}
}

// Command returns the command this recorder logs under.
func (r *Recorder) Command() Command {
	return r.command
}

// Querier returns the transaction the recorder writes to, for reads that must
// observe its uncommitted changes.
func (r *Recorder) Querier() Querier {
	return r.q
}

// Create inserts a row and logs an INSERT entry with an empty payload.
func (r *Recorder) Create(ctx context.Context, table string, v Values) (int64, error) {
	if err := r.check(table, v.columns()...); err != nil {
		return 0, err
	}

	cols := v.columns()
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = v[c]
	}

	var query string
	if len(cols) == 0 {
		query = fmt.Sprintf(`INSERT INTO %s DEFAULT VALUES`, table)
	} else {
		query = fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
			table, strings.Join(cols, ", "), placeholders(len(cols)))
	}

	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting into %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading %s id: %w", table, err)
	}

	if err := r.log(ctx, Insert, table, id, map[string]any{}); err != nil {
		return 0, err
	}
	return id, nil
}

// GetOrCreate returns the id of the row matching every key column, inserting
// key plus extra when none exists. Only an actual insert is logged.
func (r *Recorder) GetOrCreate(ctx context.Context, table string, key, extra Values) (int64, bool, error) {
	if err := r.check(table, key.columns()...); err != nil {
		return 0, false, err
	}

	id, err := r.find(ctx, table, key)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, ErrRowNotFound) {
		return 0, false, err
	}

	all := make(Values, len(key)+len(extra))
	for c, val := range extra {
		all[c] = val
	}
	for c, val := range key {
		all[c] = val
	}
	id, err = r.Create(ctx, table, all)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// Update sets columns of one row, logging the previous values of those columns.
func (r *Recorder) Update(ctx context.Context, table string, id int64, v Values) error {
	cols := v.columns()
	if err := r.check(table, cols...); err != nil {
		return err
	}
	if len(cols) == 0 {
		return nil
	}

	before, err := r.selectRow(ctx, table, id, cols)
	if err != nil {
		return err
	}

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = c + " = ?"
		args = append(args, v[c])
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = ?`, table, strings.Join(sets, ", "))
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("updating %s %d: %w", table, id, err)
	}

	return r.log(ctx, Update, table, id, before)
}

// UpdateWhere applies Update to every row matching where, one entry per row.
// where is a SQL boolean expression over the table's columns using ? placeholders.
func (r *Recorder) UpdateWhere(ctx context.Context, table, where string, args []any, v Values) (int, error) {
	ids, err := r.matching(ctx, table, where, args)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := r.Update(ctx, table, id, v); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// Delete removes one row, logging every column it held.
func (r *Recorder) Delete(ctx context.Context, table string, id int64) error {
	if err := r.check(table); err != nil {
		return err
	}

	before, err := r.selectRow(ctx, table, id, nil)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table)
	if _, err := r.q.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("deleting %s %d: %w", table, id, err)
	}

	return r.log(ctx, Delete, table, id, before)
}

// DeleteWhere applies Delete to every row matching where, one entry per row.
func (r *Recorder) DeleteWhere(ctx context.Context, table, where string, args ...any) (int, error) {
	ids, err := r.matching(ctx, table, where, args)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := r.Delete(ctx, table, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// check validates identifiers and that the recorder has a saved command.
func (r *Recorder) check(table string, cols ...string) error {
	if r.command.ID == 0 {
		return ErrNoCommand
	}
	return validIdent(append([]string{table}, cols...)...)
}

func (r *Recorder) find(ctx context.Context, table string, key Values) (int64, error) {
	cols := key.columns()
	conds := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		conds[i] = c + " IS ?"
		args[i] = key[c]
	}
	query := fmt.Sprintf(`SELECT id FROM %s`, table)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id LIMIT 1"

	var id int64
	err := r.q.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrRowNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("looking up %s: %w", table, err)
	}
	return id, nil
}

func (r *Recorder) matching(ctx context.Context, table, where string, args []any) ([]int64, error) {
	if err := r.check(table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT id FROM %s WHERE %s ORDER BY id`, table, where)
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting %s rows: %w", table, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning %s id: %w", table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// selectRow reads the named columns (all columns if cols is nil) of one row.
func (r *Recorder) selectRow(ctx context.Context, table string, id int64, cols []string) (map[string]any, error) {
	list := "*"
	if len(cols) > 0 {
		list = strings.Join(cols, ", ")
	}
	rows, err := r.q.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, list, table), id)
	if err != nil {
		return nil, fmt.Errorf("reading %s %d: %w", table, id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s %d", ErrRowNotFound, table, id)
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
		return nil, fmt.Errorf("scanning %s %d: %w", table, id, err)
	}

	row := make(map[string]any, len(names))
	for i, n := range names {
		row[n] = jsonValue(vals[i])
	}
	return row, nil
}

func (r *Recorder) log(ctx context.Context, action Action, table string, rowID int64, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding audit payload: %w", err)
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO audit_log (command_id, action, table_name, row_id, payload)
		VALUES (?, ?, ?, ?, ?)
	`, r.command.ID, string(action), table, rowID, string(data))
	if err != nil {
		return fmt.Errorf("writing audit entry for %s %d: %w", table, rowID, err)
	}
	return nil
}

// jsonValue converts a scanned SQL value into a JSON-friendly one.
func jsonValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return formatTime(t)
	default:
		return t
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Package storage persists the catalog in SQLite and writes JSONL reports.
package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cpritcha/catalog/internal/audit"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// CommandLog is one audit command together with the entries written under it.
// It is the unit of the JSONL audit export.
type CommandLog struct {
	Command audit.Command `json:"command"`
	Entries []audit.Entry `json:"entries"`
}

// ReadJSONL reads every non-empty line of a JSONL file into a T.
// A missing file yields an empty slice.
func ReadJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var items []T
	scanner := bufio.NewScanner(f)
	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return items, nil
}

// WriteJSONL writes one JSON document per line to w.
func WriteJSONL[T any](w io.Writer, items []T) error {
	bw := bufio.NewWriter(w)
	for i, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encoding item %d: %w", i, err)
		}
		if _, err := bw.Write(data); err != nil {
			return fmt.Errorf("writing item %d: %w", i, err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing newline: %w", err)
		}
	}
	return bw.Flush()
}

// WriteJSONLFile writes items to path, replacing existing content.
func WriteJSONLFile[T any](path string, items []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteJSONL(f, items); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ExportAudit returns the log grouped by command, oldest command first.
// Entries are narrowed by f; commands left without entries are dropped
// unless f is empty.
func (d *DB) ExportAudit(ctx context.Context, f audit.Filter) ([]CommandLog, error) {
	cmds, err := d.AuditCommands(ctx, 0)
	if err != nil {
		return nil, err
	}
	f.Limit = 0
	entries, err := d.AuditEntries(ctx, f)
	if err != nil {
		return nil, err
	}

	byCommand := make(map[int64][]audit.Entry)
	for _, e := range entries {
		byCommand[e.CommandID] = append(byCommand[e.CommandID], e)
	}

	filtered := f.CommandID != 0 || f.Table != "" || f.RowID != 0
	var logs []CommandLog
	for i := len(cmds) - 1; i >= 0; i-- {
		c := cmds[i]
		es := byCommand[c.ID]
		if filtered && len(es) == 0 {
			continue
		}
		if es == nil {
			es = []audit.Entry{}
		}
		logs = append(logs, CommandLog{Command: c, Entries: es})
	}
	return logs, nil
}

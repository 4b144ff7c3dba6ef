package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cpritcha/catalog/internal/audit"
)

func TestReadJSONL_NonExistentFile(t *testing.T) {
	items, err := ReadJSONL[CommandLog]("/nonexistent/path/audit.jsonl")
	if err != nil {
		t.Fatalf("ReadJSONL() error = %v (should return nil for nonexistent file)", err)
	}
	if len(items) != 0 {
		t.Errorf("ReadJSONL() returned %d items, want 0", len(items))
	}
}

func TestReadJSONL_SkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.jsonl")
	if err := os.WriteFile(path, []byte("{\"a\":1}\n\n{\"a\":2}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	items, err := ReadJSONL[map[string]int](path)
	if err != nil {
		t.Fatalf("ReadJSONL() error = %v", err)
	}
	if len(items) != 2 || items[1]["a"] != 2 {
		t.Errorf("ReadJSONL() = %v", items)
	}
}

func TestReadJSONL_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"a\":1}\nnot json\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadJSONL[map[string]int](path); err == nil {
		t.Error("ReadJSONL() on malformed line returned nil error")
	}
}

func TestExportAudit_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seedPublication(t, db, "First", "Smith, J")
	seedPublication(t, db, "Second")

	logs, err := db.ExportAudit(ctx, audit.Filter{})
	if err != nil {
		t.Fatalf("ExportAudit() error = %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("got %d command logs, want 2", len(logs))
	}
	if logs[0].Command.ID > logs[1].Command.ID {
		t.Error("command logs not oldest first")
	}
	if len(logs[0].Entries) != 3 || len(logs[1].Entries) != 2 {
		t.Errorf("entry counts = %d, %d; want 3, 2", len(logs[0].Entries), len(logs[1].Entries))
	}

	path := filepath.Join(t.TempDir(), "audit.jsonl")
	if err := WriteJSONLFile(path, logs); err != nil {
		t.Fatalf("WriteJSONLFile() error = %v", err)
	}
	back, err := ReadJSONL[CommandLog](path)
	if err != nil {
		t.Fatalf("ReadJSONL() error = %v", err)
	}
	if len(back) != 2 || back[1].Command.PublicID != logs[1].Command.PublicID {
		t.Errorf("round trip lost commands: %+v", back)
	}

	onlyAuthors, err := db.ExportAudit(ctx, audit.Filter{Table: "raw_authors"})
	if err != nil {
		t.Fatalf("ExportAudit(raw_authors) error = %v", err)
	}
	if len(onlyAuthors) != 1 || len(onlyAuthors[0].Entries) != 1 {
		t.Errorf("filtered export = %+v, want one command with one entry", onlyAuthors)
	}
}

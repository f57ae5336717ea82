package storage

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lotas/tabtree/internal/types"
)

// testDB creates a temporary database for testing.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleForest() []*types.TabNode {
	return []*types.TabNode{
		{ID: 1, Title: "Root", URL: "https://a.example", States: []string{types.StateSubtreeCollapsed}, Children: []*types.TabNode{
			{ID: 2, Title: "Child", URL: "https://b.example", Discarded: true},
		}},
		{ID: 3, Title: "Other", URL: "about:config"},
	}
}

func TestOpenDB(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "tabtree.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file not found: %v", err)
	}

	var applied int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatal(err)
	}
	if applied != len(migrations) {
		t.Errorf("applied %d migrations, want %d", applied, len(migrations))
	}
}

func TestOpenDB_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "again.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := SaveExport(db, "live", sampleForest(), ""); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = OpenDB(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	list, err := ListExports(db, "")
	if err != nil || len(list) != 1 {
		t.Fatalf("got %d exports, err %v", len(list), err)
	}
}

func TestSaveAndGetExport(t *testing.T) {
	db := testDB(t)

	rev1, err := SaveExport(db, "live", sampleForest(), "before cleanup")
	if err != nil {
		t.Fatalf("SaveExport: %v", err)
	}
	rev2, err := SaveExport(db, "live", sampleForest()[:1], "")
	if err != nil {
		t.Fatalf("SaveExport: %v", err)
	}
	other, err := SaveExport(db, "default-release", sampleForest(), "")
	if err != nil {
		t.Fatalf("SaveExport: %v", err)
	}
	if rev1 != 1 || rev2 != 2 || other != 1 {
		t.Errorf("revs = %d, %d, %d; want 1, 2, 1", rev1, rev2, other)
	}

	exp, err := GetExport(db, "live", 1)
	if err != nil {
		t.Fatalf("GetExport: %v", err)
	}
	if exp.Label != "before cleanup" || exp.TabCount != 3 {
		t.Errorf("summary = %+v", exp.ExportSummary)
	}
	if len(exp.Forest) != 2 || len(exp.Forest[0].Children) != 1 {
		t.Fatalf("forest shape lost: %+v", exp.Forest)
	}
	if !exp.Forest[0].Collapsed() || !exp.Forest[0].Children[0].Discarded {
		t.Error("node flags lost")
	}

	latest, err := GetLatestExport(db, "live")
	if err != nil || latest == nil || latest.Rev != 2 {
		t.Fatalf("latest = %+v, err %v", latest, err)
	}

	none, err := GetLatestExport(db, "nobody")
	if err != nil || none != nil {
		t.Errorf("expected nil, nil; got %+v, %v", none, err)
	}

	list, err := ListExports(db, "live")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Rev != 2 {
		t.Errorf("list = %+v", list)
	}
}

func TestDeleteExport(t *testing.T) {
	db := testDB(t)
	if _, err := SaveExport(db, "live", sampleForest(), ""); err != nil {
		t.Fatal(err)
	}
	if err := DeleteExport(db, "live", 1); err != nil {
		t.Fatalf("DeleteExport: %v", err)
	}
	if err := DeleteExport(db, "live", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
	if _, err := GetExport(db, "live", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("get deleted = %v, want ErrNotFound", err)
	}
}

func TestRestoreRuns(t *testing.T) {
	db := testDB(t)
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	rec := Recorder{DB: db}
	if err := rec.RecordRun(RestoreRun{StartedAt: start, FinishedAt: start.Add(time.Minute), Total: 10, Loaded: 9, Failed: 1}); err != nil {
		t.Fatal(err)
	}
	if err := rec.RecordRun(RestoreRun{StartedAt: start.Add(time.Hour), FinishedAt: start.Add(time.Hour), Error: "reorder failed"}); err != nil {
		t.Fatal(err)
	}

	runs, err := ListRestoreRuns(db, 0)
	if err != nil {
		t.Fatalf("ListRestoreRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs", len(runs))
	}
	if runs[0].Error != "reorder failed" {
		t.Errorf("newest first expected, got %+v", runs[0])
	}
	if runs[1].Loaded != 9 || runs[1].Failed != 1 || !runs[1].StartedAt.Equal(start) {
		t.Errorf("run = %+v", runs[1])
	}
}

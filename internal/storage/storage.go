package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lotas/tabtree/internal/mozlz4"
	"github.com/lotas/tabtree/internal/types"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an export or run does not exist.
var ErrNotFound = errors.New("not found")

// ExportSummary holds the metadata for a stored export.
type ExportSummary struct {
	ID        int64
	Rev       int
	Source    string // "live" or a Firefox profile name
	Label     string // optional
	CreatedAt time.Time
	TabCount  int
}

// Export is a stored export with its forest.
type Export struct {
	ExportSummary
	Forest []*types.TabNode
}

// RestoreRun is one recorded restore.
type RestoreRun struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Loaded     int
	Failed     int
	Error      string
}

// migration is a numbered schema change. Migrations are applied in order
// and tracked in the schema_migrations table so each runs exactly once.
type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS exports (
    id          INTEGER PRIMARY KEY,
    rev         INTEGER NOT NULL,
    source      TEXT NOT NULL,
    label       TEXT,
    created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
    tab_count   INTEGER NOT NULL,
    forest      BLOB NOT NULL,
    UNIQUE(source, rev)
);`,
	},
	{
		Version:     2,
		Description: "create restore_runs table",
		SQL: `
CREATE TABLE restore_runs (
    id          INTEGER PRIMARY KEY,
    started_at  DATETIME NOT NULL,
    finished_at DATETIME NOT NULL,
    total       INTEGER NOT NULL,
    loaded      INTEGER NOT NULL,
    failed      INTEGER NOT NULL DEFAULT 0,
    error       TEXT DEFAULT ''
);`,
	},
}

// OpenDB opens (or creates) a SQLite database at the given path.
// It creates parent directories if needed, enables foreign keys and WAL mode,
// and runs any pending migrations.
func OpenDB(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// Enable WAL mode for better concurrency.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// runMigrations ensures the schema_migrations table exists and runs any
// pending migrations in order.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		if _, err := db.Exec(m.SQL); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := db.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// DefaultDBPath returns the default database file path:
// ~/.local/share/tabtree/tabtree.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "tabtree", "tabtree.db"), nil
}

// SaveExport stores a forest as mozlz4-compressed JSON. The rev number is
// auto-assigned per source. Label is optional. Returns the assigned rev.
func SaveExport(db *sql.DB, source string, forest []*types.TabNode, label string) (int, error) {
	raw, err := json.Marshal(forest)
	if err != nil {
		return 0, fmt.Errorf("encode forest: %w", err)
	}
	blob, err := mozlz4.Compress(raw)
	if err != nil {
		return 0, fmt.Errorf("compress forest: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var rev int
	err = tx.QueryRow("SELECT COALESCE(MAX(rev), 0) + 1 FROM exports WHERE source = ?", source).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("compute next rev: %w", err)
	}

	var labelVal interface{}
	if label != "" {
		labelVal = label
	}

	_, err = tx.Exec(
		"INSERT INTO exports (rev, source, label, tab_count, forest) VALUES (?, ?, ?, ?, ?)",
		rev, source, labelVal, types.CountNodes(forest), blob,
	)
	if err != nil {
		return 0, fmt.Errorf("insert export: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return rev, nil
}

// ListExports returns exports ordered by creation time descending. An empty
// source lists every source.
func ListExports(db *sql.DB, source string) ([]ExportSummary, error) {
	query := "SELECT id, rev, source, label, created_at, tab_count FROM exports"
	var args []interface{}
	if source != "" {
		query += " WHERE source = ?"
		args = append(args, source)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exports: %w", err)
	}
	defer rows.Close()

	var result []ExportSummary
	for rows.Next() {
		var s ExportSummary
		var label sql.NullString
		if err := rows.Scan(&s.ID, &s.Rev, &s.Source, &label, &s.CreatedAt, &s.TabCount); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		s.Label = label.String
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exports: %w", err)
	}
	return result, nil
}

// GetExport loads a stored export by source and rev number.
func GetExport(db *sql.DB, source string, rev int) (*Export, error) {
	exp := &Export{}
	var label sql.NullString
	var blob []byte
	err := db.QueryRow(
		"SELECT id, rev, source, label, created_at, tab_count, forest FROM exports WHERE source = ? AND rev = ?",
		source, rev,
	).Scan(&exp.ID, &exp.Rev, &exp.Source, &label, &exp.CreatedAt, &exp.TabCount, &blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("export rev %d for %q: %w", rev, source, ErrNotFound)
		}
		return nil, fmt.Errorf("query export: %w", err)
	}
	exp.Label = label.String

	raw, err := mozlz4.Decompress(blob)
	if err != nil {
		return nil, fmt.Errorf("decompress export %d: %w", rev, err)
	}
	if err := json.Unmarshal(raw, &exp.Forest); err != nil {
		return nil, fmt.Errorf("decode export %d: %w", rev, err)
	}
	return exp, nil
}

// GetLatestExport returns the most recent export for a source.
// Returns nil, nil if there is none.
func GetLatestExport(db *sql.DB, source string) (*Export, error) {
	var rev int
	err := db.QueryRow(
		"SELECT rev FROM exports WHERE source = ? ORDER BY rev DESC LIMIT 1",
		source,
	).Scan(&rev)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest rev: %w", err)
	}
	return GetExport(db, source, rev)
}

// DeleteExport removes an export by source and rev.
func DeleteExport(db *sql.DB, source string, rev int) error {
	res, err := db.Exec("DELETE FROM exports WHERE source = ? AND rev = ?", source, rev)
	if err != nil {
		return fmt.Errorf("delete export: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("export rev %d for %q: %w", rev, source, ErrNotFound)
	}
	return nil
}

// RecordRestoreRun inserts a finished restore and returns its id.
func RecordRestoreRun(db *sql.DB, run RestoreRun) (int64, error) {
	res, err := db.Exec(
		"INSERT INTO restore_runs (started_at, finished_at, total, loaded, failed, error) VALUES (?, ?, ?, ?, ?, ?)",
		run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Total, run.Loaded, run.Failed, run.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("insert restore run: %w", err)
	}
	return res.LastInsertId()
}

// ListRestoreRuns returns up to limit runs, newest first.
func ListRestoreRuns(db *sql.DB, limit int) ([]RestoreRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(
		"SELECT id, started_at, finished_at, total, loaded, failed, error FROM restore_runs ORDER BY started_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query restore runs: %w", err)
	}
	defer rows.Close()

	var result []RestoreRun
	for rows.Next() {
		var r RestoreRun
		var errText sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Total, &r.Loaded, &r.Failed, &errText); err != nil {
			return nil, fmt.Errorf("scan restore run: %w", err)
		}
		r.Error = errText.String
		result = append(result, r)
	}
	return result, rows.Err()
}

// Recorder adapts a database to the restore run recorder.
type Recorder struct {
	DB *sql.DB
}

// RecordRun stores one restore run.
func (r Recorder) RecordRun(run RestoreRun) error {
	_, err := RecordRestoreRun(r.DB, run)
	return err
}

// Package runindex maintains a queryable SQLite index of research runs.
// The index is a convenience layer over runs-ledger.jsonl; the ledger and
// the per-run manifests stay authoritative, and the index can always be
// rebuilt from them.
package runindex

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"meridian/pkg/models"
)

// DB wraps the run index database.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// DefaultPath returns the index location under the runs directory.
func DefaultPath(runsDir string) string {
	return filepath.Join(runsDir, "index.db")
}

// Open opens (creating if needed) the index at path with WAL enabled.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run index: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the database file location.
func (db *DB) Path() string {
	return db.path
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Runs},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Runs = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	root TEXT NOT NULL,
	mode TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'running',
	stage TEXT NOT NULL DEFAULT 'init',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Run is one indexed run.
type Run struct {
	ID        string
	Root      string
	Mode      models.RunMode
	Status    models.RunStatus
	Stage     models.Stage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Record inserts or refreshes a run row.
func (db *DB) Record(run Run) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		INSERT INTO runs (id, root, mode, status, stage, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			stage = excluded.stage,
			updated_at = excluded.updated_at
	`, run.ID, run.Root, string(run.Mode), string(run.Status), string(run.Stage),
		formatTime(run.CreatedAt), formatTime(run.UpdatedAt))
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// Touch updates a run's status and stage.
func (db *DB) Touch(id string, status models.RunStatus, stage models.Stage, at time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.Exec(`
		UPDATE runs SET status = ?, stage = ?, updated_at = ? WHERE id = ?
	`, string(status), string(stage), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("touch run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s not indexed", id)
	}
	return nil
}

// Get returns one run by id.
func (db *DB) Get(id string) (*Run, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRow(`
		SELECT id, root, mode, status, stage, created_at, updated_at
		FROM runs WHERE id = ?
	`, id)
	return scanRun(row.Scan)
}

// List returns runs newest first, optionally filtered by status.
func (db *DB) List(status models.RunStatus, limit int) ([]Run, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	query := `
		SELECT id, root, mode, status, stage, created_at, updated_at
		FROM runs`
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes terminal runs created before the cutoff. Returns
// the number of rows removed.
func (db *DB) PurgeOlderThan(olderThan time.Duration) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	cutoff := formatTime(time.Now().Add(-olderThan))
	res, err := db.conn.Exec(`
		DELETE FROM runs WHERE status != ? AND created_at < ?
	`, string(models.RunRunning), cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(scan func(dest ...any) error) (*Run, error) {
	var run Run
	var mode, status, stage, createdAt, updatedAt string
	if err := scan(&run.ID, &run.Root, &mode, &status, &stage, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run not found")
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.Mode = models.RunMode(mode)
	run.Status = models.RunStatus(status)
	run.Stage = models.Stage(stage)
	var err error
	if run.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if run.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

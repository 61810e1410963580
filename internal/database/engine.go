// Package database opens and migrates the four embedded SQLite stores
// (systems, locations, stations, trade) with production-tuned PRAGMAs.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Engine wraps a single store's database connection.
type Engine struct {
	conn *sql.DB
	path string
	name string
}

// Config configures how a store's database file is opened.
type Config struct {
	Path string
	Name string // "systems", "locations", "stations", "trade"
}

// Open creates (if absent) and opens one store's database with the
// journaling/caching PRAGMAs spec.md §4.10 requires.
func Open(cfg Config) (*Engine, error) {
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve path for %s: %w", cfg.Name, err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", cfg.Name, err)
	}

	conn, err := sql.Open("sqlite", buildConnectionString(absPath))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Name, err)
	}

	// A single writer per store at a time (ingestor xor maintenance); keep
	// the pool small so SQLite's own locking, not Go's pool, serializes
	// writers.
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping %s: %w", cfg.Name, err)
	}

	return &Engine{conn: conn, path: absPath, name: cfg.Name}, nil
}

// buildConnectionString encodes the WAL-style durability PRAGMAs as
// connection-string query parameters, mirroring modernc.org/sqlite's
// `_pragma=` convention.
func buildConnectionString(path string) string {
	connStr := path + "?_pragma=journal_mode(WAL)"
	connStr += "&_pragma=synchronous(NORMAL)"
	connStr += "&_pragma=busy_timeout(5000)"
	connStr += "&_pragma=temp_store(MEMORY)"
	connStr += "&_pragma=cache_size(-64000)"  // 64MB, negative = KiB
	connStr += "&_pragma=mmap_size(268435456)" // 256MiB
	connStr += "&_pragma=foreign_keys(1)"
	return connStr
}

// Close closes the underlying connection.
func (e *Engine) Close() error { return e.conn.Close() }

// Conn returns the underlying *sql.DB for repositories/statement caches.
func (e *Engine) Conn() *sql.DB { return e.conn }

// Name returns the store's friendly name ("systems", "trade", ...).
func (e *Engine) Name() string { return e.name }

// Path returns the database file's absolute path.
func (e *Engine) Path() string { return e.path }

// Migrate runs the store's table/index DDL plus any additive migrations.
// schema is expected to be idempotent (CREATE TABLE/INDEX IF NOT EXISTS).
// Additive migrations are plain ALTER TABLE ... ADD COLUMN statements;
// "duplicate column" errors are swallowed so re-running is always safe.
func (e *Engine) Migrate(schema string, additive ...string) error {
	tx, err := e.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin migration for %s: %w", e.name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(schema); err != nil {
		return fmt.Errorf("apply schema for %s: %w", e.name, err)
	}

	for _, stmt := range additive {
		if _, err := tx.Exec(stmt); err != nil {
			if isBenignMigrationError(err) {
				continue
			}
			return fmt.Errorf("apply migration for %s: %w", e.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration for %s: %w", e.name, err)
	}
	return nil
}

func isBenignMigrationError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists")
}

// IntegrityCheck runs SQLite's PRAGMA integrity_check.
func (e *Engine) IntegrityCheck(ctx context.Context) error {
	var result string
	if err := e.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed for %s: %w", e.name, err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed for %s: %s", e.name, result)
	}
	return nil
}

// VacuumInto produces a defragmented, consistent copy of the live file at
// destPath without holding a long write lock. Used by both the snapshot
// manager (C7) and the backup job (C9) — see SPEC_FULL.md's Open Question
// decision on SQLite's backup primitive.
func (e *Engine) VacuumInto(destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("create destination directory for %s: %w", e.name, err)
	}
	quoted := strings.ReplaceAll(destPath, "'", "''")
	if _, err := e.conn.Exec(fmt.Sprintf("VACUUM INTO '%s'", quoted)); err != nil {
		return fmt.Errorf("vacuum into for %s: %w", e.name, err)
	}
	return nil
}

// Vacuum rebuilds the live file in place to reclaim deleted pages. Must
// only be called with the write-lock held (§4.7).
func (e *Engine) Vacuum() error {
	if _, err := e.conn.Exec("VACUUM"); err != nil {
		return fmt.Errorf("vacuum failed for %s: %w", e.name, err)
	}
	return nil
}

// Analyze refreshes the query planner's statistics.
func (e *Engine) Analyze() error {
	if _, err := e.conn.Exec("ANALYZE"); err != nil {
		return fmt.Errorf("analyze failed for %s: %w", e.name, err)
	}
	return nil
}

// SetTempStoreOnDisk switches temp_store to a file-backed directory for
// the duration of an expensive VACUUM on large files, then restores the
// in-memory default. Call Defer the returned func to restore.
func (e *Engine) SetTempStoreOnDisk(dir string) (restore func(), err error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create temp dir for %s: %w", e.name, err)
	}
	if _, err := e.conn.Exec(fmt.Sprintf("PRAGMA temp_store_directory = '%s'", strings.ReplaceAll(dir, "'", "''"))); err != nil {
		return nil, fmt.Errorf("set temp_store_directory for %s: %w", e.name, err)
	}
	if _, err := e.conn.Exec("PRAGMA temp_store(FILE)"); err != nil {
		return nil, fmt.Errorf("set temp_store(FILE) for %s: %w", e.name, err)
	}
	return func() {
		_, _ = e.conn.Exec("PRAGMA temp_store(MEMORY)")
	}, nil
}

// FileSize returns the on-disk size of the live database file.
func (e *Engine) FileSize() (int64, error) {
	info, err := os.Stat(e.path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Package snapshot produces point-in-time copies of the four live store
// files so analytics never contend with ingestion writes (spec.md §4.5).
package snapshot

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/EDDataAPI/eddata-collector/internal/database"
)

// StoreNames lists the four embedded stores, in the order they appear
// throughout the codebase.
var StoreNames = []string{"systems", "locations", "stations", "trade"}

// Manager creates and tracks freshness of point-in-time copies under a
// dedicated snapshot directory (spec.md §4.5).
type Manager struct {
	dir        string
	freshness  time.Duration
	engines    map[string]*database.Engine
	log        zerolog.Logger
}

// New creates a Manager. engines must have one entry per name in
// StoreNames.
func New(dir string, freshness time.Duration, engines map[string]*database.Engine, log zerolog.Logger) *Manager {
	if freshness <= 0 {
		freshness = 2 * time.Hour
	}
	return &Manager{dir: dir, freshness: freshness, engines: engines, log: log.With().Str("component", "snapshot").Logger()}
}

// Paths returns the map of store name to snapshot file path, used by C8.
func (m *Manager) Paths() map[string]string {
	paths := make(map[string]string, len(StoreNames))
	for _, name := range StoreNames {
		paths[name] = filepath.Join(m.dir, name+".db")
	}
	return paths
}

// AreFresh reports whether every expected snapshot exists and its mtime
// is within the freshness window.
func (m *Manager) AreFresh() bool {
	for _, path := range m.Paths() {
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		if time.Since(info.ModTime()) > m.freshness {
			return false
		}
	}
	return true
}

// Refresh deletes old snapshots (including journal side-files) and
// creates new ones via each engine's VacuumInto. Idempotent; safe to
// call while ingestion is running since VacuumInto only holds a brief
// read lock on the source (spec.md §4.5).
func (m *Manager) Refresh() error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	for _, name := range StoreNames {
		dest := filepath.Join(m.dir, name+".db")
		if err := removeWithSideFiles(dest); err != nil {
			return fmt.Errorf("clear old %s snapshot: %w", name, err)
		}

		engine, ok := m.engines[name]
		if !ok {
			return fmt.Errorf("no engine registered for store %q", name)
		}
		if err := engine.VacuumInto(dest); err != nil {
			return fmt.Errorf("refresh %s snapshot: %w", name, err)
		}
	}

	m.log.Info().Strs("stores", StoreNames).Msg("snapshots refreshed")
	return nil
}

// OpenReadOnly opens a fresh read-only connection against every snapshot
// file for C8's stats generators (spec.md §4.6 "all queries run against
// snapshot files opened read-only"). The caller must invoke the returned
// close func once done to release the connections.
func (m *Manager) OpenReadOnly() (conns map[string]*sql.DB, closeAll func(), err error) {
	conns = make(map[string]*sql.DB, len(StoreNames))
	closeAll = func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}

	for name, path := range m.Paths() {
		conn, openErr := sql.Open("sqlite", path+"?mode=ro")
		if openErr != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open %s snapshot read-only: %w", name, openErr)
		}
		conns[name] = conn
	}
	return conns, closeAll, nil
}

// removeWithSideFiles deletes a database file and its WAL/SHM/journal
// side-files, ignoring not-exist errors.
func removeWithSideFiles(path string) error {
	suffixes := []string{"", "-wal", "-shm", "-journal"}
	for _, suffix := range suffixes {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

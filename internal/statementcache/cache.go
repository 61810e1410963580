// Package statementcache memoizes upsert/update SQL statement text per
// (database file, table, column set) so ingestion builds the SQL for an
// event shape only once. It does not hold prepared *sql.Stmt handles:
// every Upsert/Update call passes the text to db.Exec, which prepares it
// again on each call. Grounded on the
// `INSERT ... ON CONFLICT(...) DO UPDATE SET` idiom used throughout
// the teacher's repositories (e.g. internal/modules/settings).
package statementcache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Record is a mapping of column name to value for one row; its columns
// are sorted by name when a statement is built.
type Record map[string]interface{}

// Cache memoizes generated statement text keyed by a hash of the
// database path, table name, and sorted column set. It never evicts:
// the number of distinct handler shapes is small and bounded.
type Cache struct {
	mu    sync.RWMutex
	stmts map[string]string // memo key -> statement text
}

// New creates an empty statement cache.
func New() *Cache {
	return &Cache{stmts: make(map[string]string)}
}

// Upsert inserts or replaces a row keyed by the table's declared primary
// key column(s). conflictCols names the primary key; any column not in
// conflictCols is updated via `excluded.<col>` on conflict.
func (c *Cache) Upsert(db *sql.DB, dbPath, table string, record Record, conflictCols []string) (sql.Result, error) {
	stmt, args := c.upsertStatement(dbPath, table, record, conflictCols)
	return db.Exec(stmt, args...)
}

// Update runs a partial update restricted to the given predicate column
// (typically the primary key), only setting the columns present in
// record. Columns absent from record are left untouched — this is what
// lets a station placement update survive without wiping economies.
func (c *Cache) Update(db *sql.DB, dbPath, table string, record Record, predicateCol string, predicateVal interface{}) (sql.Result, error) {
	stmt, args := c.updateStatement(dbPath, table, record, predicateCol)
	args = append(args, predicateVal)
	return db.Exec(stmt, args...)
}

func (c *Cache) upsertStatement(dbPath, table string, record Record, conflictCols []string) (string, []interface{}) {
	cols := sortedKeys(record)
	key := memoKey(dbPath, table, "upsert", cols)

	c.mu.RLock()
	stmt, ok := c.stmts[key]
	c.mu.RUnlock()

	if !ok {
		stmt = buildUpsertSQL(table, cols, conflictCols)
		c.mu.Lock()
		c.stmts[key] = stmt
		c.mu.Unlock()
	}

	args := make([]interface{}, len(cols))
	for i, col := range cols {
		args[i] = record[col]
	}
	return stmt, args
}

func (c *Cache) updateStatement(dbPath, table string, record Record, predicateCol string) (string, []interface{}) {
	cols := sortedKeys(record)
	key := memoKey(dbPath, table, "update:"+predicateCol, cols)

	c.mu.RLock()
	stmt, ok := c.stmts[key]
	c.mu.RUnlock()

	if !ok {
		stmt = buildUpdateSQL(table, cols, predicateCol)
		c.mu.Lock()
		c.stmts[key] = stmt
		c.mu.Unlock()
	}

	args := make([]interface{}, len(cols))
	for i, col := range cols {
		args[i] = record[col]
	}
	return stmt, args
}

func buildUpsertSQL(table string, cols []string, conflictCols []string) string {
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = "?"
	}

	var sets []string
	for _, col := range cols {
		if contains(conflictCols, col) {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		table,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(conflictCols, ", "),
		strings.Join(sets, ", "),
	)
}

func buildUpdateSQL(table string, cols []string, predicateCol string) string {
	var sets []string
	for _, col := range cols {
		sets = append(sets, fmt.Sprintf("%s = ?", col))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", table, strings.Join(sets, ", "), predicateCol)
}

func sortedKeys(record Record) []string {
	cols := make([]string, 0, len(record))
	for col := range record {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

func memoKey(dbPath, table, kind string, cols []string) string {
	h := sha256.New()
	h.Write([]byte(dbPath))
	h.Write([]byte{0})
	h.Write([]byte(table))
	h.Write([]byte{0})
	h.Write([]byte(kind))
	for _, col := range cols {
		h.Write([]byte{0})
		h.Write([]byte(col))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func contains(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

// Size reports the number of distinct memoized statements — bounded by
// the number of distinct handler shapes, never by event volume.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.stmts)
}

package systems

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Repository provides insert-if-absent access to the systems store.
// Grounded on the teacher's thin single-table repositories
// (internal/modules/settings/repository.go) generalized to the
// insert-if-absent semantics spec.md §4.3 requires for discovery-scan,
// nav-route, approach-settlement, and journal events.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a systems repository over the systems.db connection.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{db: db, log: log.With().Str("store", "systems").Logger()}
}

// GetByAddress returns a row by its 64-bit system address, or nil if absent.
func (r *Repository) GetByAddress(systemAddress int64) (*Record, error) {
	row := r.db.QueryRow(`
		SELECT system_address, system_name, system_x, system_y, system_z, system_sector, updated_at
		FROM systems WHERE system_address = ?`, systemAddress)
	return scanOne(row)
}

// GetByName returns a row by case-insensitive name, or nil if absent.
func (r *Repository) GetByName(name string) (*Record, error) {
	row := r.db.QueryRow(`
		SELECT system_address, system_name, system_x, system_y, system_z, system_sector, updated_at
		FROM systems WHERE system_name = ? COLLATE NOCASE`, name)
	return scanOne(row)
}

func scanOne(row *sql.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.SystemAddress, &rec.SystemName, &rec.SystemX, &rec.SystemY, &rec.SystemZ,
		&rec.SystemSector, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan system row: %w", err)
	}
	return &rec, nil
}

// EnsureExists inserts the system if it is absent. It never overwrites an
// existing row's coordinates (spec.md §3 invariant: "route-echo events
// that lack coordinates" must not clobber known coordinates — generalized
// here to: discovery/route/approach events never update an existing row
// at all, only insert when missing).
//
// The caller — the event handler — must already have applied the
// origin-system exception (it decides whether (0,0,0) is acceptable for
// this system name); EnsureExists itself only performs the idempotent
// insert-if-absent.
func (r *Repository) EnsureExists(systemAddress int64, name string, x, y, z float64, sector string) error {
	name = strings.TrimSpace(name)
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := r.db.Exec(`
		INSERT INTO systems (system_address, system_name, system_x, system_y, system_z, system_sector, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(system_address) DO NOTHING`,
		systemAddress, name, x, y, z, sector, now)
	if err != nil {
		return fmt.Errorf("ensure system exists: %w", err)
	}
	return nil
}

// CountAll returns the total number of systems. C8's database totals
// run their own COUNT query rather than calling this.
func (r *Repository) CountAll() (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM systems").Scan(&count); err != nil {
		return 0, fmt.Errorf("count systems: %w", err)
	}
	return count, nil
}

package locations

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/EDDataAPI/eddata-collector/internal/statementcache"
)

// Repository upserts points-of-interest via the shared statement cache.
// Grounded on internal/statementcache and the teacher's settings
// repository's upsert-on-conflict idiom, generalized to a multi-column
// table with a content-hash key.
type Repository struct {
	db    *sql.DB
	dbPath string
	cache *statementcache.Cache
	log   zerolog.Logger
}

// NewRepository creates a locations repository.
func NewRepository(db *sql.DB, dbPath string, cache *statementcache.Cache, log zerolog.Logger) *Repository {
	return &Repository{db: db, dbPath: dbPath, cache: cache, log: log.With().Str("store", "locations").Logger()}
}

// Upsert inserts or refreshes a location row. Rows whose name matches the
// excluded construction-site prefix must be filtered by the caller before
// invoking Upsert (spec.md §3).
func (r *Repository) Upsert(rec Record) error {
	record := statementcache.Record{
		"location_id":    rec.LocationID,
		"location_name":  rec.LocationName,
		"system_address": rec.SystemAddress,
		"system_name":    rec.SystemName,
		"system_x":       rec.SystemX,
		"system_y":       rec.SystemY,
		"system_z":       rec.SystemZ,
		"body_id":        nullableInt(rec.BodyID),
		"body_name":      nullableStr(rec.BodyName),
		"latitude":       nullableFloat(rec.Latitude),
		"longitude":      nullableFloat(rec.Longitude),
		"updated_at":     rec.UpdatedAt,
	}
	_, err := r.cache.Upsert(r.db, r.dbPath, "locations", record, []string{"location_id"})
	if err != nil {
		return fmt.Errorf("upsert location: %w", err)
	}
	return nil
}

// CountAll returns the total number of locations. C8's database totals
// run their own COUNT query rather than calling this.
func (r *Repository) CountAll() (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM locations").Scan(&count); err != nil {
		return 0, fmt.Errorf("count locations: %w", err)
	}
	return count, nil
}

func nullableInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableStr(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

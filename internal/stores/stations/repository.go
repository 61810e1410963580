package stations

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/EDDataAPI/eddata-collector/internal/statementcache"
)

// Repository upserts station rows via the shared statement cache. Every
// write method names only the columns its caller's event actually
// carries, so a partial update from one event type never clobbers
// fields only a different event type owns (spec.md §3 "rows survive
// partial updates").
type Repository struct {
	db     *sql.DB
	dbPath string
	cache  *statementcache.Cache
	log    zerolog.Logger
}

// NewRepository creates a stations repository.
func NewRepository(db *sql.DB, dbPath string, cache *statementcache.Cache, log zerolog.Logger) *Repository {
	return &Repository{db: db, dbPath: dbPath, cache: cache, log: log.With().Str("store", "stations").Logger()}
}

// EnsureExists inserts a minimal row keyed by marketId if one is not
// already present, so a commodity event's station reference never fails
// for want of a prior placement event (spec.md §4.3 "Commodity event").
func (r *Repository) EnsureExists(marketID int64, name string, updatedAt string) error {
	_, err := r.db.Exec(`
		INSERT INTO stations (market_id, station_name, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(market_id) DO NOTHING`,
		marketID, name, updatedAt)
	if err != nil {
		return fmt.Errorf("ensure station exists: %w", err)
	}
	return nil
}

// UpdatePlacement writes name/body/system fields only, leaving economies,
// services, prohibited, and docking access untouched.
func (r *Repository) UpdatePlacement(p Placement, updatedAt string) error {
	record := statementcache.Record{
		"market_id":      p.MarketID,
		"station_name":   p.StationName,
		"body_id":        nullableInt(p.BodyID),
		"body_name":      nullableStr(p.BodyName),
		"latitude":       nullableFloat(p.Latitude),
		"longitude":      nullableFloat(p.Longitude),
		"system_address": p.SystemAddress,
		"system_name":    p.SystemName,
		"system_x":       p.SystemX,
		"system_y":       p.SystemY,
		"system_z":       p.SystemZ,
		"updated_at":     updatedAt,
	}
	_, err := r.cache.Upsert(r.db, r.dbPath, "stations", record, []string{"market_id"})
	if err != nil {
		return fmt.Errorf("update station placement: %w", err)
	}
	return nil
}

// UpdateClassification writes the Docked-event surface: name,
// classification, economies, landing pad size, prohibited list, and
// carrier docking access. Placement fields and service flags are left
// untouched, since a Docked event in this feed carries neither (spec.md
// §3 "rows survive partial updates").
func (r *Repository) UpdateClassification(rec Record) error {
	record := statementcache.Record{
		"market_id":              rec.MarketID,
		"station_name":           rec.StationName,
		"distance_to_arrival":    nullableFloat(rec.DistanceToArrival),
		"station_type":           rec.StationType,
		"allegiance":             rec.Allegiance,
		"government":             rec.Government,
		"controlling_faction":    rec.ControllingFaction,
		"primary_economy":        rec.PrimaryEconomy,
		"secondary_economy":      rec.SecondaryEconomy,
		"max_landing_pad_size":   rec.MaxLandingPadSize,
		"prohibited":             nullableStr(rec.Prohibited),
		"carrier_docking_access": nullableStr(rec.CarrierDockingAccess),
		"updated_at":             rec.UpdatedAt,
	}
	_, err := r.cache.Upsert(r.db, r.dbPath, "stations", record, []string{"market_id"})
	if err != nil {
		return fmt.Errorf("update station classification: %w", err)
	}
	return nil
}

// UpdateEconomies writes the narrower commodity-event surface: name,
// type, and primary/secondary economy, plus the prohibited list when
// present. A commodity event carries none of allegiance, government,
// controlling faction, landing pad size, or service flags, so this
// method must not name those columns — doing so would zero them on
// every commodity tick, the highest-volume event type (spec.md §3, §4.3
// "Commodity event ... where present").
func (r *Repository) UpdateEconomies(upd EconomiesUpdate) error {
	record := statementcache.Record{
		"market_id":         upd.MarketID,
		"station_name":      upd.StationName,
		"station_type":      upd.StationType,
		"primary_economy":   upd.PrimaryEconomy,
		"secondary_economy": upd.SecondaryEconomy,
		"prohibited":        nullableStr(upd.Prohibited),
		"updated_at":        upd.UpdatedAt,
	}
	_, err := r.cache.Upsert(r.db, r.dbPath, "stations", record, []string{"market_id"})
	if err != nil {
		return fmt.Errorf("update station economies: %w", err)
	}
	return nil
}

// UpdateCarrierDockingAccess writes docking access and prohibited list
// only, used by Docked journal events that carry no other station
// fields (spec.md §4.3 "Journal event").
func (r *Repository) UpdateCarrierDockingAccess(marketID int64, access, prohibited *string, updatedAt string) error {
	record := statementcache.Record{
		"market_id":              marketID,
		"carrier_docking_access": nullableStr(access),
		"prohibited":             nullableStr(prohibited),
		"updated_at":             updatedAt,
	}
	_, err := r.cache.Upsert(r.db, r.dbPath, "stations", record, []string{"market_id"})
	if err != nil {
		return fmt.Errorf("update carrier docking access: %w", err)
	}
	return nil
}

// GetByMarketID returns a station's market id, name, type and update
// time, or nil if no station has that market id. C9's retention sweep
// resolves station types through MarketIDsOfType instead.
func (r *Repository) GetByMarketID(marketID int64) (*Record, error) {
	row := r.db.QueryRow(`SELECT market_id, station_name, station_type, updated_at FROM stations WHERE market_id = ?`, marketID)
	var rec Record
	err := row.Scan(&rec.MarketID, &rec.StationName, &rec.StationType, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan station row: %w", err)
	}
	return &rec, nil
}

// MarketIDsOfType returns every marketId whose stationType matches,
// used by C9's retention sweep to apply the fleet-carrier/rescue-ship
// horizons without attaching the stations file to the trade connection
// (spec.md §9 "Cross-database JOINs").
func (r *Repository) MarketIDsOfType(stationType string) ([]int64, error) {
	rows, err := r.db.Query(`SELECT market_id FROM stations WHERE station_type = ?`, stationType)
	if err != nil {
		return nil, fmt.Errorf("list market ids by type: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan market id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountAll returns the total number of stations. C8's database totals
// run their own COUNT query rather than calling this.
func (r *Repository) CountAll() (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM stations").Scan(&count); err != nil {
		return 0, fmt.Errorf("count stations: %w", err)
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

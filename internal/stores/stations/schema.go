package stations

// Schema creates the stations table plus its additive migration list.
// Columns are deliberately enumerated rather than generated so that future
// upstream additions are applied via explicit ALTER TABLE statements,
// never a destructive rebuild (spec.md §9(c)).
//
// The service_* columns enumerate spec.md §3's full service-flag set but
// none of the currently dispatched event schemas carry station service
// data, so every row defaults to 0 until a handler for an event that
// does is added.
const Schema = `
CREATE TABLE IF NOT EXISTS stations (
	market_id INTEGER PRIMARY KEY,
	station_name TEXT NOT NULL,
	distance_to_arrival REAL,
	station_type TEXT,
	allegiance TEXT,
	government TEXT,
	controlling_faction TEXT,
	primary_economy TEXT,
	secondary_economy TEXT,
	max_landing_pad_size TEXT,
	system_address INTEGER,
	system_name TEXT,
	system_x REAL,
	system_y REAL,
	system_z REAL,
	body_id INTEGER,
	body_name TEXT,
	latitude REAL,
	longitude REAL,
	prohibited TEXT,
	carrier_docking_access TEXT,
	service_shipyard INTEGER NOT NULL DEFAULT 0,
	service_outfitting INTEGER NOT NULL DEFAULT 0,
	service_blackmarket INTEGER NOT NULL DEFAULT 0,
	service_repair INTEGER NOT NULL DEFAULT 0,
	service_refuel INTEGER NOT NULL DEFAULT 0,
	service_restock INTEGER NOT NULL DEFAULT 0,
	service_contacts INTEGER NOT NULL DEFAULT 0,
	service_interstellar_factors INTEGER NOT NULL DEFAULT 0,
	service_material_trader INTEGER NOT NULL DEFAULT 0,
	service_missions INTEGER NOT NULL DEFAULT 0,
	service_search_and_rescue INTEGER NOT NULL DEFAULT 0,
	service_technology_broker INTEGER NOT NULL DEFAULT 0,
	service_tuning INTEGER NOT NULL DEFAULT 0,
	service_universal_cartographics INTEGER NOT NULL DEFAULT 0,
	service_engineer INTEGER NOT NULL DEFAULT 0,
	service_frontline_solutions INTEGER NOT NULL DEFAULT 0,
	service_apex_interstellar INTEGER NOT NULL DEFAULT 0,
	service_vista_genomics INTEGER NOT NULL DEFAULT 0,
	service_pioneer_supplies INTEGER NOT NULL DEFAULT 0,
	service_bartender INTEGER NOT NULL DEFAULT 0,
	service_crew_lounge INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stations_name_nocase ON stations(station_name COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_stations_system_address ON stations(system_address);
`

// AdditiveMigrations lists ALTER TABLE statements applied on every startup
// after Schema. Errors for columns that already exist are swallowed by
// database.Engine.Migrate (spec.md §9(c): additive-only evolution).
var AdditiveMigrations = []string{
	`ALTER TABLE stations ADD COLUMN carrier_docking_access TEXT`,
	`ALTER TABLE stations ADD COLUMN prohibited TEXT`,
}

// DeferredIndexMigrations lists indexes expensive to build on an
// already-large table, skipped on first start when
// the service config's SkipExpensiveIndexes flag is set (spec.md §4.10). The coordinate
// index only serves the 6-hourly regional-report bounding-box query, not
// the hot ingestion path.
var DeferredIndexMigrations = []string{
	`CREATE INDEX IF NOT EXISTS idx_stations_coords ON stations(system_x, system_y, system_z)`,
}

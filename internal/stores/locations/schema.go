package locations

// Schema creates the locations table. Mirrors the systems table's
// Go-string-constant layout (internal/stores/systems/schema.go).
const Schema = `
CREATE TABLE IF NOT EXISTS locations (
	location_id TEXT PRIMARY KEY,
	location_name TEXT NOT NULL,
	system_address INTEGER NOT NULL,
	system_name TEXT NOT NULL,
	system_x REAL NOT NULL,
	system_y REAL NOT NULL,
	system_z REAL NOT NULL,
	body_id INTEGER,
	body_name TEXT,
	latitude REAL,
	longitude REAL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_locations_name_nocase ON locations(location_name COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_locations_system_address ON locations(system_address);
`

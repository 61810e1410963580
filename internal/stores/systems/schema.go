package systems

// Schema creates the systems table. Grounded on the teacher's
// InitSchema-as-Go-string-constant pattern
// (trader-go/internal/modules/cash_flows/schema.go).
const Schema = `
CREATE TABLE IF NOT EXISTS systems (
	system_address INTEGER PRIMARY KEY,
	system_name TEXT NOT NULL,
	system_x REAL NOT NULL,
	system_y REAL NOT NULL,
	system_z REAL NOT NULL,
	system_sector TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_systems_name_nocase ON systems(system_name COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_systems_sector ON systems(system_sector);
`

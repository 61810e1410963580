package scheduler

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EDDataAPI/eddata-collector/internal/backup"
	"github.com/EDDataAPI/eddata-collector/internal/database"
	"github.com/EDDataAPI/eddata-collector/internal/ingest"
	"github.com/EDDataAPI/eddata-collector/internal/snapshot"
	"github.com/EDDataAPI/eddata-collector/internal/stats"
	"github.com/EDDataAPI/eddata-collector/internal/stores/locations"
	"github.com/EDDataAPI/eddata-collector/internal/stores/stations"
	"github.com/EDDataAPI/eddata-collector/internal/stores/systems"
	"github.com/EDDataAPI/eddata-collector/internal/stores/trade"
)

func newTestEngine(t *testing.T, name, schema string) *database.Engine {
	t.Helper()
	e, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), name+".db"), Name: name})
	require.NoError(t, err)
	require.NoError(t, e.Migrate(schema))
	t.Cleanup(func() { e.Close() })
	return e
}

func TestMaintenanceWindowStartJob_HoldsLockAndBacksUp(t *testing.T) {
	engines := map[string]*database.Engine{
		"systems": newTestEngine(t, "systems", `CREATE TABLE systems (id INTEGER PRIMARY KEY)`),
	}
	lock := ingest.NewWriteLock()
	runner := backup.New(engines, t.TempDir(), zerolog.Nop())

	job := &MaintenanceWindowStartJob{
		Engines: engines,
		Backup:  runner,
		Lock:    lock,
		TempDir: t.TempDir(),
		Log:     zerolog.Nop(),
	}

	require.NoError(t, job.Run())
	assert.False(t, lock.IsSet(), "lock is released once the window completes")
	assert.FileExists(t, runner.ReportPath())
}

func TestMaintenanceWindowEndJob_WritesCommodityAggregates(t *testing.T) {
	tradeEngine := newTestEngine(t, "trade", `CREATE TABLE trade (
		commodity_name TEXT, market_id INTEGER, buy_price INTEGER, sell_price INTEGER,
		mean_price INTEGER, stock INTEGER, demand INTEGER, stock_bracket INTEGER,
		demand_bracket INTEGER, updated_at TEXT, updated_at_day TEXT)`)
	_, err := tradeEngine.Conn().Exec(`INSERT INTO trade VALUES ('Gold', 1, 100, 200, 150, 10, 10, 0, 0, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), "2026-01-01")
	require.NoError(t, err)

	engines := map[string]*database.Engine{"trade": tradeEngine}
	for _, name := range snapshot.StoreNames {
		if name == "trade" {
			continue
		}
		engines[name] = newTestEngine(t, name, `CREATE TABLE t (id INTEGER PRIMARY KEY)`)
	}
	mgr := snapshot.New(t.TempDir(), time.Hour, engines, zerolog.Nop())

	cacheDir := t.TempDir()
	job := &MaintenanceWindowEndJob{
		Snapshot: mgr,
		Writer:   stats.NewJSONWriter(cacheDir),
		Log:      zerolog.Nop(),
	}

	require.NoError(t, job.Run())
	assert.FileExists(t, filepath.Join(cacheDir, "commodities.json"))
}

func TestStatsJob_SkipsWhenSnapshotsAndCacheAreFresh(t *testing.T) {
	engines := map[string]*database.Engine{}
	for _, name := range snapshot.StoreNames {
		engines[name] = newTestEngine(t, name, `CREATE TABLE t (id INTEGER PRIMARY KEY)`)
	}
	snapDir := t.TempDir()
	mgr := snapshot.New(snapDir, time.Hour, engines, zerolog.Nop())
	require.NoError(t, mgr.Refresh())

	cacheDir := t.TempDir()
	writer := stats.NewJSONWriter(cacheDir)
	require.NoError(t, writer.Write("totals", map[string]int{"a": 1}))
	require.NoError(t, writer.Write("ticker", map[string]int{"b": 2}))

	job := &StatsJob{
		Snapshot:            mgr,
		Writer:              writer,
		OriginSystemName:    "Sol",
		ColonySystemName:    "Colonia",
		SkipRegionalReports: true,
		FreshnessThreshold:  time.Hour,
		Log:                 zerolog.Nop(),
	}

	require.NoError(t, job.Run())
}

// TestStatsJob_GeneratesFromSnapshotNotLiveStore writes a row directly
// to the live stations store, runs the job (which must refresh the
// snapshot before querying), then mutates the live row again without
// refreshing; the cached totals must reflect the snapshot at generation
// time, proving the generator never reads the live connection.
func TestStatsJob_GeneratesFromSnapshotNotLiveStore(t *testing.T) {
	engines := map[string]*database.Engine{
		"systems":   newTestEngine(t, "systems", systems.Schema),
		"locations": newTestEngine(t, "locations", locations.Schema),
		"stations":  newTestEngine(t, "stations", stations.Schema),
		"trade":     newTestEngine(t, "trade", trade.Schema),
	}

	_, err := engines["stations"].Conn().Exec(
		`INSERT INTO stations (market_id, station_name, updated_at) VALUES (1, 'Jameson Memorial', ?)`,
		time.Now().UTC().Format(time.RFC3339))
	require.NoError(t, err)

	mgr := snapshot.New(t.TempDir(), time.Hour, engines, zerolog.Nop())
	cacheDir := t.TempDir()
	job := &StatsJob{
		Snapshot:            mgr,
		Writer:              stats.NewJSONWriter(cacheDir),
		OriginSystemName:    "Sol",
		ColonySystemName:    "Colonia",
		SkipRegionalReports: true,
		Log:                 zerolog.Nop(),
	}

	require.NoError(t, job.Run())

	// Mutate the live store after the job ran; the snapshot on disk, and
	// the cache file it produced, must be unaffected.
	_, err = engines["stations"].Conn().Exec(
		`INSERT INTO stations (market_id, station_name, updated_at) VALUES (2, 'Abraham Lincoln', ?)`,
		time.Now().UTC().Format(time.RFC3339))
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(cacheDir, "totals.json"))
	raw, ok := stats.NewJSONWriter(cacheDir).ReadRaw("totals")
	require.True(t, ok)
	var totals stats.DatabaseTotals
	require.NoError(t, json.Unmarshal(raw, &totals))
	assert.Equal(t, int64(1), totals.TotalStations, "cached totals reflect the snapshot taken during Run")
	assert.True(t, mgr.AreFresh())
}

func TestWeeklyVacuumJob_RunsUnderWriteLock(t *testing.T) {
	engine := newTestEngine(t, "trade", `CREATE TABLE trade (id INTEGER PRIMARY KEY)`)
	lock := ingest.NewWriteLock()

	job := &WeeklyVacuumJob{TradeEngine: engine, Lock: lock, TempDir: t.TempDir(), Log: zerolog.Nop()}
	require.NoError(t, job.Run())
	assert.False(t, lock.IsSet())
}

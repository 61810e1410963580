package handlers

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	"github.com/EDDataAPI/eddata-collector/internal/sector"
	"github.com/EDDataAPI/eddata-collector/internal/statementcache"
	locstore "github.com/EDDataAPI/eddata-collector/internal/stores/locations"
	stastore "github.com/EDDataAPI/eddata-collector/internal/stores/stations"
	sysstore "github.com/EDDataAPI/eddata-collector/internal/stores/systems"
	tradestore "github.com/EDDataAPI/eddata-collector/internal/stores/trade"
)

func newTestDeps(t *testing.T) *Deps {
	t.Helper()
	sysDB := openSchema(t, sysstore.Schema)
	locDB := openSchema(t, locstore.Schema)
	staDB := openSchema(t, stastore.Schema)
	tradeDB := openSchema(t, tradestore.Schema)

	cache := statementcache.New()
	return &Deps{
		Systems:          sysstore.NewRepository(sysDB, zerolog.Nop()),
		Locations:        locstore.NewRepository(locDB, "locations.db", cache, zerolog.Nop()),
		Stations:         stastore.NewRepository(staDB, "stations.db", cache, zerolog.Nop()),
		Trade:            tradestore.NewRepository(tradeDB, "trade.db", cache, zerolog.Nop()),
		Sector:           sector.New(100, 16),
		OriginSystemName: "Sol",
		ColonySystemName: "Colonia",
		Log:              zerolog.Nop(),
	}
}

func openSchema(t *testing.T, schema string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// S1 in spec.md §8: commodity happy path.
func TestHandleCommodity_HappyPath(t *testing.T) {
	d := newTestDeps(t)

	message := []byte(`{
		"marketId": 1000,
		"systemName": "Sol",
		"stationName": "Abe",
		"timestamp": "2026-01-01T00:00:00Z",
		"commodities": [{"name":"Gold","buyPrice":9100,"sellPrice":10334,"stock":500,"demand":0,"meanPrice":9500}]
	}`)

	err := d.HandleCommodity(Header{GatewayTimestamp: "2026-01-01T00:00:00Z", GameVersion: "4.0.0.0"}, message)
	require.NoError(t, err)

	rows, err := d.Trade.ForCommodity("Gold")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1000), rows[0].MarketID)

	station, err := d.Stations.GetByMarketID(1000)
	require.NoError(t, err)
	require.NotNil(t, station)
	assert.Equal(t, "Abe", station.StationName)
}

// A commodity event must not wipe classification fields (allegiance,
// government, landing pad) that only a Docked journal event carries —
// commodity events never carry that data (spec.md §3, §4.3).
func TestHandleCommodity_DoesNotClobberClassificationSetByDockedEvent(t *testing.T) {
	staDB := openSchema(t, stastore.Schema)
	cache := statementcache.New()
	stationsRepo := stastore.NewRepository(staDB, "stations.db", cache, zerolog.Nop())

	d := &Deps{
		Systems:          sysstore.NewRepository(openSchema(t, sysstore.Schema), zerolog.Nop()),
		Locations:        locstore.NewRepository(openSchema(t, locstore.Schema), "locations.db", cache, zerolog.Nop()),
		Stations:         stationsRepo,
		Trade:            tradestore.NewRepository(openSchema(t, tradestore.Schema), "trade.db", cache, zerolog.Nop()),
		Sector:           sector.New(100, 16),
		OriginSystemName: "Sol",
		ColonySystemName: "Colonia",
		Log:              zerolog.Nop(),
	}

	require.NoError(t, stationsRepo.UpdateClassification(stastore.Record{
		MarketID: 1000, StationName: "Abe", StationType: "Coriolis",
		Allegiance: "Federation", Government: "Corporate", MaxLandingPadSize: "L",
		PrimaryEconomy: "HighTech", UpdatedAt: "2026-01-01T00:00:00Z",
	}))

	message := []byte(`{
		"marketId": 1000,
		"stationName": "Abe",
		"stationType": "Coriolis",
		"economies": ["HighTech"],
		"timestamp": "2026-01-02T00:00:00Z",
		"commodities": [{"name":"Gold","buyPrice":9100,"sellPrice":10334,"stock":500,"demand":0,"meanPrice":9500}]
	}`)
	require.NoError(t, d.HandleCommodity(Header{}, message))

	var allegiance, government, landingPad string
	require.NoError(t, staDB.QueryRow(
		"SELECT allegiance, government, max_landing_pad_size FROM stations WHERE market_id = 1000").
		Scan(&allegiance, &government, &landingPad))
	assert.Equal(t, "Federation", allegiance, "commodity event must not wipe allegiance")
	assert.Equal(t, "Corporate", government, "commodity event must not wipe government")
	assert.Equal(t, "L", landingPad, "commodity event must not wipe landing pad size")
}

func TestHandleCommodity_MissingCommoditiesLeavesExistingRowsIntact(t *testing.T) {
	d := newTestDeps(t)

	first := []byte(`{"marketId":1000,"stationName":"Abe","timestamp":"2026-01-01T00:00:00Z",
		"commodities":[{"name":"Gold","buyPrice":100,"sellPrice":200,"stock":10,"demand":10}]}`)
	require.NoError(t, d.HandleCommodity(Header{}, first))

	second := []byte(`{"marketId":1000,"stationName":"Abe","timestamp":"2026-01-02T00:00:00Z",
		"commodities":[{"name":"Silver","buyPrice":50,"sellPrice":80,"stock":5,"demand":5}]}`)
	require.NoError(t, d.HandleCommodity(Header{}, second))

	gold, err := d.Trade.ForCommodity("Gold")
	require.NoError(t, err)
	assert.Len(t, gold, 1, "commodities missing from a later event are not deleted")
}

// S2 in spec.md §8: nav-route with zero coordinates.
func TestHandleNavRoute_ZeroCoordinatesExceptOrigin(t *testing.T) {
	d := newTestDeps(t)

	message := []byte(`{"Route": [
		{"StarSystem":"X","SystemAddress":42,"StarPos":[0,0,0]},
		{"StarSystem":"Sol","SystemAddress":10477373803,"StarPos":[0,0,0]}
	]}`)

	require.NoError(t, d.HandleNavRoute(Header{}, message))

	x, err := d.Systems.GetByAddress(42)
	require.NoError(t, err)
	assert.Nil(t, x, "system with zero coordinates and non-origin name must not be inserted")

	sol, err := d.Systems.GetByAddress(10477373803)
	require.NoError(t, err)
	require.NotNil(t, sol, "origin system is exempt from the zero-coordinate rejection")
}

func TestHandleApproachSettlement_ExcludedPrefixIsDiscarded(t *testing.T) {
	d := newTestDeps(t)

	message := []byte(`{
		"Name": "$EXT_PANEL_ColonisationShip;reward",
		"SystemAddress": 99,
		"StarSystem": "Deciat",
		"StarPos": [10, 20, 30]
	}`)
	require.NoError(t, d.HandleApproachSettlement(Header{}, message))

	count, err := d.Locations.CountAll()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	sys, err := d.Systems.GetByAddress(99)
	require.NoError(t, err)
	assert.NotNil(t, sys, "containing system is still ensured even when the location row is discarded")
}

package stats

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	"github.com/EDDataAPI/eddata-collector/internal/stores/stations"
	"github.com/EDDataAPI/eddata-collector/internal/stores/trade"
)

func openSchema(t *testing.T, schema string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func insertTrade(t *testing.T, db *sql.DB, commodity string, marketID, buy, sell, stock, demand int64, updatedAt string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO trade (commodity_name, market_id, buy_price, sell_price, mean_price, stock, demand, stock_bracket, demand_bracket, updated_at, updated_at_day)
		VALUES (?, ?, ?, ?, 0, ?, ?, 0, 0, ?, ?)`,
		commodity, marketID, buy, sell, stock, demand, updatedAt, updatedAt[:10])
	require.NoError(t, err)
}

// S6 in spec.md §8: two rows for the same commodity across two markets
// produce a single hot trade with the expected profit.
func TestGenerateTicker_HotTradeProfitAndMarkets(t *testing.T) {
	db := openSchema(t, trade.Schema)
	now := time.Now().UTC().Format(time.RFC3339)

	insertTrade(t, db, "Gold", 1, 100, 1, 500, 0, now)
	insertTrade(t, db, "Gold", 2, 1, 200, 0, 500, now)

	ticker, err := GenerateTicker(db)
	require.NoError(t, err)
	require.Len(t, ticker.HotTrades, 1)

	hot := ticker.HotTrades[0]
	assert.Equal(t, "Gold", hot.Commodity)
	assert.Equal(t, int64(100), hot.Profit)
	assert.Equal(t, int64(1), hot.BuyMarketID)
	assert.Equal(t, int64(2), hot.SellMarketID)
}

func TestGenerateTicker_NoHotTradeBelowStockDemandThreshold(t *testing.T) {
	db := openSchema(t, trade.Schema)
	now := time.Now().UTC().Format(time.RFC3339)

	insertTrade(t, db, "Gold", 1, 100, 1, 5, 0, now)
	insertTrade(t, db, "Gold", 2, 1, 200, 0, 5, now)

	ticker, err := GenerateTicker(db)
	require.NoError(t, err)
	assert.Empty(t, ticker.HotTrades, "rows under the 100-unit stock/demand floor are excluded")
}

// Testable Property 10 in spec.md §8: buyPrice = 0 or >= 999_999 is
// excluded from min/avg/max aggregates.
func TestGenerateCommodityAggregate_ExcludesBoundaryPrices(t *testing.T) {
	db := openSchema(t, trade.Schema)
	now := time.Now().UTC().Format(time.RFC3339)

	insertTrade(t, db, "Tritium", 1, 0, 500, 10, 10, now)
	insertTrade(t, db, "Tritium", 2, 999_999, 500, 10, 10, now)
	insertTrade(t, db, "Tritium", 3, 100, 500, 10, 10, now)

	agg, err := GenerateCommodityAggregate(db, "Tritium")
	require.NoError(t, err)
	assert.Equal(t, float64(100), agg.MinBuyPrice)
	assert.Equal(t, float64(100), agg.AvgBuyPrice)
	assert.Equal(t, float64(100), agg.MaxBuyPrice)
}

func TestGenerateCommodityAggregate_RareOverride(t *testing.T) {
	db := openSchema(t, trade.Schema)
	now := time.Now().UTC().Format(time.RFC3339)

	insertTrade(t, db, "Leestian Evening Ale", 1, 1000, 1, 3, 0, now)

	agg, err := GenerateCommodityAggregate(db, "Leestian Evening Ale")
	require.NoError(t, err)
	require.True(t, agg.IsRare)
	assert.Equal(t, float64(1000), agg.AvgBuyPrice)
	assert.Equal(t, float64(1000+300), agg.AvgSellPrice)
	assert.Equal(t, int64(0), agg.TotalStock, "rare commodities zero out supply/demand aggregates")
}

func TestGenerateTotals_CountsAcrossStores(t *testing.T) {
	sysDB := openSchema(t, `CREATE TABLE systems (system_address INTEGER PRIMARY KEY)`)
	locDB := openSchema(t, `CREATE TABLE locations (location_id TEXT PRIMARY KEY)`)
	staDB := openSchema(t, stations.Schema)
	tradeDB := openSchema(t, trade.Schema)

	_, err := sysDB.Exec(`INSERT INTO systems (system_address) VALUES (1), (2)`)
	require.NoError(t, err)
	_, err = staDB.Exec(`INSERT INTO stations (market_id, station_name, updated_at) VALUES (1, 'Abe', '2020-01-01T00:00:00Z')`)
	require.NoError(t, err)
	insertTrade(t, tradeDB, "Gold", 1, 100, 200, 10, 10, time.Now().UTC().Format(time.RFC3339))

	totals, err := GenerateTotals(sysDB, locDB, staDB, tradeDB)
	require.NoError(t, err)
	assert.Equal(t, int64(2), totals.TotalSystems)
	assert.Equal(t, int64(1), totals.TotalStations)
	assert.Equal(t, int64(1), totals.TotalTradeOrders)
	assert.Equal(t, int64(1), totals.TradeUpdatedLast24h)
}

func TestGenerateRegionalReport_SkipsWhenReferenceSystemMissing(t *testing.T) {
	staDB := openSchema(t, stations.Schema)
	tradeDB := openSchema(t, trade.Schema)

	report, err := GenerateRegionalReport(staDB, tradeDB, "Sol", 0, 0, 0, 500, 1000, false, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, report)
}

func TestGenerateRegionalReport_RanksExportersAndImporters(t *testing.T) {
	staDB := openSchema(t, stations.Schema)
	tradeDB := openSchema(t, trade.Schema)
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := staDB.Exec(`
		INSERT INTO stations (market_id, station_name, system_x, system_y, system_z, updated_at)
		VALUES (1, 'Near Exporter', 1, 0, 0, ?), (2, 'Far Importer', 2, 0, 0, ?)`, now, now)
	require.NoError(t, err)

	insertTrade(t, tradeDB, "Gold", 1, 100, 1, 2000, 0, now)
	insertTrade(t, tradeDB, "Gold", 2, 1, 500, 0, 2000, now)

	report, err := GenerateRegionalReport(staDB, tradeDB, "Sol", 0, 0, 0, 10, 1000, true, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, report)

	gold, ok := report.Commodities["Gold"]
	require.True(t, ok)
	require.Len(t, gold.BestExporters, 1)
	require.Len(t, gold.BestImporters, 1)
	assert.Equal(t, int64(1), gold.BestExporters[0].MarketID)
	assert.Equal(t, int64(2), gold.BestImporters[0].MarketID)
	require.NotNil(t, gold.MaxPriceDelta)
	assert.Equal(t, int64(400), *gold.MaxPriceDelta)
}

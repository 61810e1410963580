// Package stats generates the derived JSON analytics consumed by the
// read API: database totals, per-commodity aggregates, the hot-trade
// ticker, and regional reports (spec.md §4.6). Every query here runs
// against read-only snapshot connections, never the live stores.
package stats

import (
	"database/sql"
	"fmt"
	"time"
)

// DatabaseTotals is the combined per-store totals report.
type DatabaseTotals struct {
	GeneratedAt            string `json:"generatedAt"`
	TotalSystems           int64  `json:"totalSystems"`
	TotalPointsOfInterest  int64  `json:"totalPointsOfInterest"`
	TotalStations          int64  `json:"totalStations"`
	TotalFleetCarriers     int64  `json:"totalFleetCarriers"`
	StationsUpdatedLast24h int64  `json:"stationsUpdatedLast24h"`
	TotalTradeOrders       int64  `json:"totalTradeOrders"`
	UniqueCommodities      int64  `json:"uniqueCommodities"`
	UniqueMarkets          int64  `json:"uniqueMarkets"`
	TradeUpdatedLast24h    int64  `json:"tradeUpdatedLast24h"`
	UpdatesLast24h         int64  `json:"updatesLast24h"`
}

// GenerateTotals computes the database-totals report over the four
// snapshot connections (spec.md §4.6 "Database totals").
func GenerateTotals(systemsDB, locationsDB, stationsDB, tradeDB *sql.DB) (*DatabaseTotals, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-24 * time.Hour).Format(time.RFC3339)

	totals := &DatabaseTotals{GeneratedAt: now.Format(time.RFC3339)}

	if err := systemsDB.QueryRow("SELECT COUNT(*) FROM systems").Scan(&totals.TotalSystems); err != nil {
		return nil, fmt.Errorf("count systems: %w", err)
	}
	if err := locationsDB.QueryRow("SELECT COUNT(*) FROM locations").Scan(&totals.TotalPointsOfInterest); err != nil {
		return nil, fmt.Errorf("count locations: %w", err)
	}

	err := stationsDB.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN station_type = 'FleetCarrier' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN updated_at > ? THEN 1 ELSE 0 END), 0)
		FROM stations`, cutoff).Scan(&totals.TotalStations, &totals.TotalFleetCarriers, &totals.StationsUpdatedLast24h)
	if err != nil {
		return nil, fmt.Errorf("aggregate stations: %w", err)
	}

	err = tradeDB.QueryRow(`
		SELECT COUNT(*),
		       COUNT(DISTINCT commodity_name),
		       COUNT(DISTINCT market_id),
		       COALESCE(SUM(CASE WHEN updated_at > ? THEN 1 ELSE 0 END), 0)
		FROM trade`, cutoff).Scan(&totals.TotalTradeOrders, &totals.UniqueCommodities, &totals.UniqueMarkets, &totals.TradeUpdatedLast24h)
	if err != nil {
		return nil, fmt.Errorf("aggregate trade: %w", err)
	}

	totals.UpdatesLast24h = totals.StationsUpdatedLast24h + totals.TradeUpdatedLast24h
	return totals, nil
}

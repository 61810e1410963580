package stats

import (
	"database/sql"
	"fmt"
	"time"
)

// Ticker bundles the three ranked views spec.md §4.6 "Ticker" names.
type Ticker struct {
	GeneratedAt string      `json:"generatedAt"`
	HotTrades   []HotTrade  `json:"hotTrades"`
	HighValue   []HighValue `json:"highValue"`
	MostActive  []MostActive `json:"mostActive"`
}

// HotTrade is one profitable buy/sell pair for the same commodity across
// two different markets (spec.md §8 Testable Property 11).
type HotTrade struct {
	Commodity   string `json:"commodity"`
	BuyMarketID int64  `json:"buyMarketId"`
	BuyPrice    int64  `json:"buyPrice"`
	SellMarketID int64 `json:"sellMarketId"`
	SellPrice   int64  `json:"sellPrice"`
	Profit      int64  `json:"profit"`
}

// HighValue ranks commodities by the single highest observed sell price.
type HighValue struct {
	Commodity      string `json:"commodity"`
	MaxSellPrice   int64  `json:"maxSellPrice"`
	DistinctMarkets int64 `json:"distinctMarkets"`
	TotalDemand    int64  `json:"totalDemand"`
}

// MostActive ranks commodities by number of markets updated in the last
// 24 hours.
type MostActive struct {
	Commodity      string  `json:"commodity"`
	ActiveMarkets  int64   `json:"activeMarkets"`
	TotalStock     int64   `json:"totalStock"`
	TotalDemand    int64   `json:"totalDemand"`
	AvgBuyPrice    float64 `json:"avgBuyPrice"`
	AvgSellPrice   float64 `json:"avgSellPrice"`
}

// GenerateTicker computes hotTrades, highValue, and mostActive over the
// trade snapshot (spec.md §4.6 "Ticker").
func GenerateTicker(tradeDB *sql.DB) (*Ticker, error) {
	hot, err := hotTrades(tradeDB)
	if err != nil {
		return nil, fmt.Errorf("compute hot trades: %w", err)
	}
	high, err := highValue(tradeDB)
	if err != nil {
		return nil, fmt.Errorf("compute high value: %w", err)
	}
	active, err := mostActive(tradeDB)
	if err != nil {
		return nil, fmt.Errorf("compute most active: %w", err)
	}
	return &Ticker{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		HotTrades:   hot,
		HighValue:   high,
		MostActive:  active,
	}, nil
}

// hotTrades self-joins trade on commodityName requiring different
// marketId, stock/demand >= 100, and both prices in the valid range,
// ordered by sellPrice - buyPrice descending (top 20).
func hotTrades(db *sql.DB) ([]HotTrade, error) {
	rows, err := db.Query(`
		SELECT b.commodity_name, b.market_id, b.buy_price, s.market_id, s.sell_price,
		       (s.sell_price - b.buy_price) AS profit
		FROM trade b
		JOIN trade s ON b.commodity_name = s.commodity_name AND b.market_id != s.market_id
		WHERE b.stock >= 100 AND s.demand >= 100
		  AND b.buy_price > 0 AND b.buy_price < 999999
		  AND s.sell_price > 0 AND s.sell_price < 999999
		  AND s.sell_price > b.buy_price
		ORDER BY profit DESC
		LIMIT 20`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HotTrade
	for rows.Next() {
		var h HotTrade
		if err := rows.Scan(&h.Commodity, &h.BuyMarketID, &h.BuyPrice, &h.SellMarketID, &h.SellPrice, &h.Profit); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func highValue(db *sql.DB) ([]HighValue, error) {
	rows, err := db.Query(`
		SELECT commodity_name, MAX(sell_price), COUNT(DISTINCT market_id), COALESCE(SUM(demand), 0)
		FROM trade
		WHERE sell_price > 0 AND sell_price < 999999
		GROUP BY commodity_name
		ORDER BY MAX(sell_price) DESC
		LIMIT 10`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HighValue
	for rows.Next() {
		var h HighValue
		if err := rows.Scan(&h.Commodity, &h.MaxSellPrice, &h.DistinctMarkets, &h.TotalDemand); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func mostActive(db *sql.DB) ([]MostActive, error) {
	cutoff := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339)
	rows, err := db.Query(`
		SELECT commodity_name, COUNT(DISTINCT market_id), COALESCE(SUM(stock), 0), COALESCE(SUM(demand), 0),
		       AVG(buy_price), AVG(sell_price)
		FROM trade
		WHERE updated_at > ?
		GROUP BY commodity_name
		HAVING COUNT(DISTINCT market_id) >= 5
		ORDER BY COUNT(DISTINCT market_id) DESC
		LIMIT 10`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MostActive
	for rows.Next() {
		var m MostActive
		if err := rows.Scan(&m.Commodity, &m.ActiveMarkets, &m.TotalStock, &m.TotalDemand, &m.AvgBuyPrice, &m.AvgSellPrice); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

package stats

import (
	"database/sql"
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// RegionalReport lists the best exporters/importers for every commodity
// traded within a radius of a reference system (spec.md §4.6 "Regional
// reports").
type RegionalReport struct {
	ReferenceSystem string                     `json:"referenceSystem"`
	RadiusLY        float64                    `json:"radiusLy"`
	Commodities     map[string]CommodityRegion `json:"commodities"`
}

// CommodityRegion holds the ranked exporters/importers for one
// commodity within a regional report.
type CommodityRegion struct {
	BestExporters []MarketPrice `json:"bestExporters"`
	BestImporters []MarketPrice `json:"bestImporters"`
	MaxPriceDelta *int64        `json:"maxPriceDelta,omitempty"`
}

// MarketPrice is one station's price/location entry in a regional report.
type MarketPrice struct {
	MarketID    int64   `json:"marketId"`
	StationName string  `json:"stationName"`
	Price       int64   `json:"price"`
	DistanceLY  float64 `json:"distanceLy"`
}

type stationLocation struct {
	marketID    int64
	stationName string
	x, y, z     float64
}

// GenerateRegionalReport builds the report for one reference system. If
// the reference system is missing from the systems store, it returns
// (nil, nil) and logs a warning rather than fabricating coordinates
// (spec.md §4.6).
func GenerateRegionalReport(stationsDB, tradeDB *sql.DB, referenceSystem string, refX, refY, refZ, radiusLY float64, minVolume int64, found bool, log zerolog.Logger) (*RegionalReport, error) {
	if !found {
		log.Warn().Str("system", referenceSystem).Msg("regional report skipped: reference system not found")
		return nil, nil
	}

	stationsInRange, err := stationsWithinBoundingBox(stationsDB, refX, refY, refZ, radiusLY)
	if err != nil {
		return nil, fmt.Errorf("query stations for regional report: %w", err)
	}
	if len(stationsInRange) == 0 {
		return &RegionalReport{ReferenceSystem: referenceSystem, RadiusLY: radiusLY, Commodities: map[string]CommodityRegion{}}, nil
	}

	marketIDs := make([]int64, 0, len(stationsInRange))
	byMarket := make(map[int64]stationLocation, len(stationsInRange))
	for _, s := range stationsInRange {
		marketIDs = append(marketIDs, s.marketID)
		byMarket[s.marketID] = s
	}

	trades, err := tradeRowsForMarkets(tradeDB, marketIDs, minVolume)
	if err != nil {
		return nil, fmt.Errorf("query trade rows for regional report: %w", err)
	}

	byCommodity := make(map[string][]marketTrade)
	for _, t := range trades {
		byCommodity[t.commodity] = append(byCommodity[t.commodity], t)
	}

	commodities := make(map[string]CommodityRegion, len(byCommodity))
	for name, rows := range byCommodity {
		region := rankCommodityRegion(rows, byMarket, refX, refY, refZ, minVolume)
		commodities[name] = region
	}

	return &RegionalReport{ReferenceSystem: referenceSystem, RadiusLY: radiusLY, Commodities: commodities}, nil
}

type marketTrade struct {
	commodity string
	marketID  int64
	buyPrice  int64
	sellPrice int64
	stock     int64
	demand    int64
}

// stationsWithinBoundingBox pre-filters stations by an axis-aligned box
// around the reference point (mandatory for performance, spec.md §9
// "Spatial filtering"), then applies the exact-distance check since the
// box over-includes corners.
func stationsWithinBoundingBox(db *sql.DB, refX, refY, refZ, radiusLY float64) ([]stationLocation, error) {
	query := `SELECT market_id, station_name, system_x, system_y, system_z FROM stations
		WHERE system_x BETWEEN ? AND ? AND system_y BETWEEN ? AND ? AND system_z BETWEEN ? AND ?`

	rows, err := db.Query(query,
		refX-radiusLY, refX+radiusLY,
		refY-radiusLY, refY+radiusLY,
		refZ-radiusLY, refZ+radiusLY)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []stationLocation
	for rows.Next() {
		var s stationLocation
		if err := rows.Scan(&s.marketID, &s.stationName, &s.x, &s.y, &s.z); err != nil {
			return nil, err
		}
		if distance(s.x, s.y, s.z, refX, refY, refZ) > radiusLY {
			continue
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func tradeRowsForMarkets(db *sql.DB, marketIDs []int64, minVolume int64) ([]marketTrade, error) {
	if len(marketIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(marketIDs))
	args := make([]interface{}, 0, len(marketIDs)+2)
	for i, id := range marketIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	args = append(args, minVolume, minVolume)

	query := fmt.Sprintf(`
		SELECT commodity_name, market_id, buy_price, sell_price, stock, demand
		FROM trade
		WHERE market_id IN (%s) AND (stock >= ? OR demand >= ?)`, join(placeholders, ","))

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []marketTrade
	for rows.Next() {
		var t marketTrade
		if err := rows.Scan(&t.commodity, &t.marketID, &t.buyPrice, &t.sellPrice, &t.stock, &t.demand); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func rankCommodityRegion(rows []marketTrade, byMarket map[int64]stationLocation, refX, refY, refZ float64, minVolume int64) CommodityRegion {
	exporters := make([]marketTrade, 0, len(rows))
	importers := make([]marketTrade, 0, len(rows))
	for _, r := range rows {
		if validPrice(r.buyPrice) && r.stock >= minVolume {
			exporters = append(exporters, r)
		}
		if validPrice(r.sellPrice) && r.demand >= minVolume {
			importers = append(importers, r)
		}
	}

	sortByPrice(exporters, true)
	sortByPrice(importers, false)

	region := CommodityRegion{
		BestExporters: toMarketPrices(exporters, byMarket, refX, refY, refZ, true, 10),
		BestImporters: toMarketPrices(importers, byMarket, refX, refY, refZ, false, 10),
	}

	// §9(a): treat maxPriceDelta as bestImporters[0].sellPrice -
	// bestExporters[0].buyPrice where both exist, else skip.
	if len(region.BestExporters) > 0 && len(region.BestImporters) > 0 {
		delta := region.BestImporters[0].Price - region.BestExporters[0].Price
		region.MaxPriceDelta = &delta
	}
	return region
}

func sortByPrice(rows []marketTrade, ascending bool) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0; j-- {
			var swap bool
			if ascending {
				swap = rows[j].buyPrice < rows[j-1].buyPrice
			} else {
				swap = rows[j].sellPrice > rows[j-1].sellPrice
			}
			if !swap {
				break
			}
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}

func toMarketPrices(rows []marketTrade, byMarket map[int64]stationLocation, refX, refY, refZ float64, useBuy bool, limit int) []MarketPrice {
	out := make([]MarketPrice, 0, limit)
	for _, r := range rows {
		if len(out) >= limit {
			break
		}
		loc, ok := byMarket[r.marketID]
		if !ok {
			continue
		}
		price := r.sellPrice
		if useBuy {
			price = r.buyPrice
		}
		out = append(out, MarketPrice{
			MarketID:    r.marketID,
			StationName: loc.stationName,
			Price:       price,
			DistanceLY:  distance(loc.x, loc.y, loc.z, refX, refY, refZ),
		})
	}
	return out
}

func distance(x1, y1, z1, x2, y2, z2 float64) float64 {
	dx, dy, dz := x1-x2, y1-y2, z1-z2
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func join(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

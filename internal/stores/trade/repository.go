package trade

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/EDDataAPI/eddata-collector/internal/statementcache"
)

// Repository upserts trade rows, exactly one per (commodityName, marketId)
// pair, latest write always winning (spec.md §3 "Trade store").
type Repository struct {
	db     *sql.DB
	dbPath string
	cache  *statementcache.Cache
	log    zerolog.Logger
}

// NewRepository creates a trade repository.
func NewRepository(db *sql.DB, dbPath string, cache *statementcache.Cache, log zerolog.Logger) *Repository {
	return &Repository{db: db, dbPath: dbPath, cache: cache, log: log.With().Str("store", "trade").Logger()}
}

// Upsert writes the latest price/stock tuple for a commodity at a market.
// Commodities absent from a later event are never deleted here — only
// C9's retention sweep removes trade rows (spec.md §4.3 "Commodity event").
func (r *Repository) Upsert(rec Record) error {
	record := statementcache.Record{
		"commodity_name": rec.CommodityName,
		"market_id":      rec.MarketID,
		"buy_price":      rec.BuyPrice,
		"sell_price":     rec.SellPrice,
		"mean_price":     rec.MeanPrice,
		"stock":          rec.Stock,
		"demand":         rec.Demand,
		"stock_bracket":  rec.StockBracket,
		"demand_bracket": rec.DemandBracket,
		"updated_at":     rec.UpdatedAt,
		"updated_at_day": rec.UpdatedAtDay,
	}
	_, err := r.cache.Upsert(r.db, r.dbPath, "trade", record, []string{"commodity_name", "market_id"})
	if err != nil {
		return fmt.Errorf("upsert trade row: %w", err)
	}
	return nil
}

// DeleteOlderThan removes trade rows whose updated_at predates the cutoff,
// used by C9's retention sweep.
func (r *Repository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM trade WHERE updated_at < ?`, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("delete stale trade rows: %w", err)
	}
	return res.RowsAffected()
}

// DeleteOlderThanForMarkets removes trade rows for the given markets
// whose updated_at predates the cutoff, used by C9's retention sweep to
// apply a separate horizon to a subset of markets (e.g. fleet carriers,
// rescue ships) identified by the caller via the stations store.
func (r *Repository) DeleteOlderThanForMarkets(cutoff time.Time, marketIDs []int64) (int64, error) {
	if len(marketIDs) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(marketIDs))
	args := make([]interface{}, 0, len(marketIDs)+1)
	args = append(args, cutoff.UTC().Format(time.RFC3339))
	for i, id := range marketIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := fmt.Sprintf(`DELETE FROM trade WHERE updated_at < ? AND market_id IN (%s)`, joinPlaceholders(placeholders))
	res, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete stale trade rows for markets: %w", err)
	}
	return res.RowsAffected()
}

func joinPlaceholders(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

// CountAll returns the total number of trade rows. C8's database totals
// run their own COUNT query rather than calling this.
func (r *Repository) CountAll() (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM trade").Scan(&count); err != nil {
		return 0, fmt.Errorf("count trade rows: %w", err)
	}
	return count, nil
}

// DistinctCommodities returns every commodity name observed in the store.
// C8's per-commodity aggregate generation runs its own query.
func (r *Repository) DistinctCommodities() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT commodity_name FROM trade ORDER BY commodity_name`)
	if err != nil {
		return nil, fmt.Errorf("list distinct commodities: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan commodity name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ForCommodity returns every trade row for a given commodity name. C8's
// aggregate and regional report generators run their own queries.
func (r *Repository) ForCommodity(name string) ([]Record, error) {
	rows, err := r.db.Query(`
		SELECT commodity_name, market_id, buy_price, sell_price, mean_price, stock, demand,
		       stock_bracket, demand_bracket, updated_at, updated_at_day
		FROM trade WHERE commodity_name = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("query trade rows for commodity: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.CommodityName, &rec.MarketID, &rec.BuyPrice, &rec.SellPrice, &rec.MeanPrice,
			&rec.Stock, &rec.Demand, &rec.StockBracket, &rec.DemandBracket, &rec.UpdatedAt, &rec.UpdatedAtDay); err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdatedSince returns trade rows updated strictly after the given time.
// C8's ticker runs its own queries.
func (r *Repository) UpdatedSince(since time.Time) ([]Record, error) {
	rows, err := r.db.Query(`
		SELECT commodity_name, market_id, buy_price, sell_price, mean_price, stock, demand,
		       stock_bracket, demand_bracket, updated_at, updated_at_day
		FROM trade WHERE updated_at > ?`, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("query recently updated trade rows: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.CommodityName, &rec.MarketID, &rec.BuyPrice, &rec.SellPrice, &rec.MeanPrice,
			&rec.Stock, &rec.Demand, &rec.StockBracket, &rec.DemandBracket, &rec.UpdatedAt, &rec.UpdatedAtDay); err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

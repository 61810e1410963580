package trade

// Schema creates the trade table, keyed by the composite
// (commodity_name, market_id) pair (spec.md §3 "Trade store").
const Schema = `
CREATE TABLE IF NOT EXISTS trade (
	commodity_name TEXT NOT NULL,
	market_id INTEGER NOT NULL,
	buy_price INTEGER NOT NULL,
	sell_price INTEGER NOT NULL,
	mean_price INTEGER NOT NULL,
	stock INTEGER NOT NULL,
	demand INTEGER NOT NULL,
	stock_bracket INTEGER NOT NULL,
	demand_bracket INTEGER NOT NULL,
	updated_at TEXT NOT NULL,
	updated_at_day TEXT NOT NULL,
	PRIMARY KEY (commodity_name, market_id)
);

CREATE INDEX IF NOT EXISTS idx_trade_commodity ON trade(commodity_name);
CREATE INDEX IF NOT EXISTS idx_trade_market ON trade(market_id);
`

// DeferredIndexMigrations lists indexes that are expensive to build on an
// already-large table but aren't needed for the hot ingestion path — only
// for the retention sweep's cutoff scan. Skipped on first start when
// the service config's SkipExpensiveIndexes flag is set (spec.md §4.10).
var DeferredIndexMigrations = []string{
	`CREATE INDEX IF NOT EXISTS idx_trade_updated_at ON trade(updated_at)`,
}

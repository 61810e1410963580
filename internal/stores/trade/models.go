package trade

// Record is one row of the trade store: the latest observed price/stock
// tuple for a commodity at a market (spec.md §3 "Trade store").
type Record struct {
	CommodityName string
	MarketID      int64
	BuyPrice      int64
	SellPrice     int64
	MeanPrice     int64
	Stock         int64
	Demand        int64
	StockBracket  int64
	DemandBracket int64
	UpdatedAt     string
	UpdatedAtDay  string
}

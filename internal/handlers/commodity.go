package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/EDDataAPI/eddata-collector/internal/stores/stations"
	"github.com/EDDataAPI/eddata-collector/internal/stores/trade"
)

// commodityPayload mirrors the `.../commodity/3` schema's message body.
type commodityPayload struct {
	MarketID    int64             `json:"marketId"`
	SystemName  string            `json:"systemName"`
	StationName string            `json:"stationName"`
	StationType string            `json:"stationType"`
	Economies   []string          `json:"economies"`
	Prohibited  []string          `json:"prohibited"`
	Timestamp   string            `json:"timestamp"`
	Commodities []commodityEntry  `json:"commodities"`
}

type commodityEntry struct {
	Name          string `json:"name"`
	BuyPrice      int64  `json:"buyPrice"`
	SellPrice     int64  `json:"sellPrice"`
	MeanPrice     int64  `json:"meanPrice"`
	Stock         int64  `json:"stock"`
	Demand        int64  `json:"demand"`
	StockBracket  int64  `json:"stockBracket"`
	DemandBracket int64  `json:"demandBracket"`
}

// HandleCommodity implements the commodity-event handler (spec.md §4.3
// "Commodity event"): it ensures the station exists, refreshes whatever
// station attributes the payload carries, then upserts one trade row per
// commodity in the payload. Commodities absent from this event are left
// untouched — only C9's retention sweep ever deletes trade rows.
func (d *Deps) HandleCommodity(header Header, message []byte) error {
	var p commodityPayload
	if err := json.Unmarshal(message, &p); err != nil {
		return fmt.Errorf("parse commodity payload: %w", err)
	}
	if p.MarketID == 0 {
		return fmt.Errorf("commodity payload missing marketId")
	}

	updatedAt := header.EffectiveTimestamp()
	if p.Timestamp != "" {
		updatedAt = p.Timestamp
	}

	if err := d.Stations.EnsureExists(p.MarketID, p.StationName, updatedAt); err != nil {
		return err
	}

	if p.StationName != "" || p.StationType != "" || len(p.Economies) > 0 {
		primary, secondary := "", ""
		if len(p.Economies) > 0 {
			primary = p.Economies[0]
		}
		if len(p.Economies) > 1 {
			secondary = p.Economies[1]
		}
		var prohibited *string
		if len(p.Prohibited) > 0 {
			b, err := json.Marshal(p.Prohibited)
			if err == nil {
				s := string(b)
				prohibited = &s
			}
		}
		err := d.Stations.UpdateEconomies(stations.EconomiesUpdate{
			MarketID:         p.MarketID,
			StationName:      p.StationName,
			StationType:      p.StationType,
			PrimaryEconomy:   primary,
			SecondaryEconomy: secondary,
			Prohibited:       prohibited,
			UpdatedAt:        updatedAt,
		})
		if err != nil {
			return err
		}
	}

	day := dayOnly(updatedAt)
	for _, c := range p.Commodities {
		if c.Name == "" {
			continue
		}
		err := d.Trade.Upsert(trade.Record{
			CommodityName: c.Name,
			MarketID:      p.MarketID,
			BuyPrice:      c.BuyPrice,
			SellPrice:     c.SellPrice,
			MeanPrice:     c.MeanPrice,
			Stock:         c.Stock,
			Demand:        c.Demand,
			StockBracket:  c.StockBracket,
			DemandBracket: c.DemandBracket,
			UpdatedAt:     updatedAt,
			UpdatedAtDay:  day,
		})
		if err != nil {
			return fmt.Errorf("upsert trade row for %s: %w", c.Name, err)
		}
	}
	return nil
}

// Package handlers implements the per-schema normalizers that turn feed
// payloads into writes against the four stores (spec.md §4.3).
package handlers

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/EDDataAPI/eddata-collector/internal/sector"
	"github.com/EDDataAPI/eddata-collector/internal/stores/locations"
	"github.com/EDDataAPI/eddata-collector/internal/stores/stations"
	"github.com/EDDataAPI/eddata-collector/internal/stores/systems"
	"github.com/EDDataAPI/eddata-collector/internal/stores/trade"
)

// Header carries the frame envelope fields every handler needs: the
// gateway/local timestamps used for both upsert timestamps and the
// dedup key in C6.
type Header struct {
	GatewayTimestamp string `json:"gatewayTimestamp"`
	Timestamp        string `json:"timestamp"`
	GameVersion      string `json:"gameversion"`
}

// EffectiveTimestamp prefers the gateway timestamp, falling back to the
// header's own timestamp, and finally to now in UTC RFC3339.
func (h Header) EffectiveTimestamp() string {
	if h.GatewayTimestamp != "" {
		return h.GatewayTimestamp
	}
	if h.Timestamp != "" {
		return h.Timestamp
	}
	return time.Now().UTC().Format(time.RFC3339)
}

// Deps bundles every collaborator a handler needs: the four store
// repositories and the sector hasher. One instance is shared by the
// dispatcher across the life of the process.
type Deps struct {
	Systems          *systems.Repository
	Locations        *locations.Repository
	Stations         *stations.Repository
	Trade            *trade.Repository
	Sector           sector.Hasher
	OriginSystemName string
	ColonySystemName string
	Log              zerolog.Logger
}

// dayOnly extracts the date portion of an RFC3339-ish timestamp, falling
// back to the input unmodified if it cannot be parsed (spec.md §3 "Trade
// store" updatedAtDay).
func dayOnly(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		if len(ts) >= 10 {
			return ts[:10]
		}
		return ts
	}
	return t.UTC().Format("2006-01-02")
}

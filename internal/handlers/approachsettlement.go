package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/EDDataAPI/eddata-collector/internal/stores/locations"
	"github.com/EDDataAPI/eddata-collector/internal/stores/stations"
)

// approachSettlementPayload mirrors the `.../approachsettlement/1` schema.
// MarketID is the discriminator between a station placement update and a
// plain point-of-interest (spec.md §4.3 "Approach-settlement event").
type approachSettlementPayload struct {
	MarketID      *int64     `json:"MarketID"`
	Name          string     `json:"Name"`
	BodyID        *int64     `json:"BodyID"`
	BodyName      string     `json:"BodyName"`
	Latitude      *float64   `json:"Latitude"`
	Longitude     *float64   `json:"Longitude"`
	SystemAddress int64      `json:"SystemAddress"`
	SystemName    string     `json:"StarSystem"`
	StarPos       [3]float64 `json:"StarPos"`
}

// HandleApproachSettlement implements spec.md §4.3 "Approach-settlement
// event". A marketId present means a station placement update; its
// absence means a point-of-interest row in the locations store, subject
// to the excluded construction-site prefix. Both branches also ensure
// the containing system exists.
func (d *Deps) HandleApproachSettlement(header Header, message []byte) error {
	var p approachSettlementPayload
	if err := json.Unmarshal(message, &p); err != nil {
		return fmt.Errorf("parse approach-settlement payload: %w", err)
	}
	if p.SystemAddress == 0 {
		return fmt.Errorf("approach-settlement payload missing SystemAddress")
	}

	updatedAt := header.EffectiveTimestamp()
	bodyName := p.BodyName

	if p.MarketID != nil {
		if err := d.Stations.UpdatePlacement(stations.Placement{
			MarketID:      *p.MarketID,
			StationName:   p.Name,
			BodyID:        p.BodyID,
			BodyName:      &bodyName,
			Latitude:      p.Latitude,
			Longitude:     p.Longitude,
			SystemAddress: p.SystemAddress,
			SystemName:    p.SystemName,
			SystemX:       p.StarPos[0],
			SystemY:       p.StarPos[1],
			SystemZ:       p.StarPos[2],
		}, updatedAt); err != nil {
			return err
		}
	} else if !locations.IsExcludedName(p.Name) {
		locID := locations.ComputeLocationID(p.SystemAddress, p.Name, p.BodyID, p.Latitude, p.Longitude)
		if err := d.Locations.Upsert(locations.Record{
			LocationID:    locID,
			LocationName:  p.Name,
			SystemAddress: p.SystemAddress,
			SystemName:    p.SystemName,
			SystemX:       p.StarPos[0],
			SystemY:       p.StarPos[1],
			SystemZ:       p.StarPos[2],
			BodyID:        p.BodyID,
			BodyName:      &bodyName,
			Latitude:      p.Latitude,
			Longitude:     p.Longitude,
			UpdatedAt:     updatedAt,
		}); err != nil {
			return err
		}
	}

	return d.ensureSystem(p.SystemAddress, p.SystemName, p.StarPos[0], p.StarPos[1], p.StarPos[2], header)
}

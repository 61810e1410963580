package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/EDDataAPI/eddata-collector/internal/stores/stations"
)

// journalEnvelope carries just enough of the journal message to pick an
// inner handler (spec.md §4.3 "Journal event").
type journalEnvelope struct {
	Event string `json:"event"`
}

// journalEconomy mirrors one entry of a Docked event's StationEconomies list.
type journalEconomy struct {
	Name string `json:"Name"`
}

// journalPayload is the superset of fields Location, Docked, and
// CarrierJump events carry that this service cares about.
type journalPayload struct {
	StarSystem           string           `json:"StarSystem"`
	SystemAddress        int64            `json:"SystemAddress"`
	StarPos              [3]float64       `json:"StarPos"`
	MarketID             *int64           `json:"MarketID"`
	StationName          string           `json:"StationName"`
	StationType          string           `json:"StationType"`
	StationEconomies     []journalEconomy `json:"StationEconomies"`
	StationAllegiance    string           `json:"StationAllegiance"`
	StationGovernment    string           `json:"StationGovernment"`
	StationFaction       json.RawMessage  `json:"StationFaction"`
	DistFromStarLS       *float64         `json:"DistFromStarLS"`
	LandingPads          json.RawMessage  `json:"LandingPads"`
	CarrierDockingAccess string           `json:"CarrierDockingAccess"`
	Prohibited           []string         `json:"ProhibitedCommodities"`
	BodyID               *int64           `json:"BodyID"`
	BodyName             string           `json:"Body"`
}

// HandleJournal sub-dispatches by inner event kind (spec.md §4.3
// "Journal event"): Location and Docked feed systems and stations;
// CarrierJump is handled like Location (system plus station placement
// when a MarketID is present).
func (d *Deps) HandleJournal(header Header, message []byte) error {
	var envelope journalEnvelope
	if err := json.Unmarshal(message, &envelope); err != nil {
		return fmt.Errorf("parse journal envelope: %w", err)
	}

	switch envelope.Event {
	case "Location", "CarrierJump":
		return d.handleJournalLocationLike(header, message)
	case "Docked":
		return d.handleJournalDocked(header, message)
	default:
		return nil
	}
}

func (d *Deps) handleJournalLocationLike(header Header, message []byte) error {
	var p journalPayload
	if err := json.Unmarshal(message, &p); err != nil {
		return fmt.Errorf("parse journal payload: %w", err)
	}
	if p.SystemAddress == 0 {
		return nil
	}
	updatedAt := header.EffectiveTimestamp()

	if p.MarketID != nil {
		if err := d.Stations.UpdatePlacement(stations.Placement{
			MarketID:      *p.MarketID,
			StationName:   p.StationName,
			BodyID:        p.BodyID,
			SystemAddress: p.SystemAddress,
			SystemName:    p.StarSystem,
			SystemX:       p.StarPos[0],
			SystemY:       p.StarPos[1],
			SystemZ:       p.StarPos[2],
		}, updatedAt); err != nil {
			return err
		}
	}

	return d.ensureSystem(p.SystemAddress, p.StarSystem, p.StarPos[0], p.StarPos[1], p.StarPos[2], header)
}

func (d *Deps) handleJournalDocked(header Header, message []byte) error {
	var p journalPayload
	if err := json.Unmarshal(message, &p); err != nil {
		return fmt.Errorf("parse journal payload: %w", err)
	}
	if p.MarketID == nil {
		return nil
	}
	updatedAt := header.EffectiveTimestamp()

	if err := d.Stations.EnsureExists(*p.MarketID, p.StationName, updatedAt); err != nil {
		return err
	}

	if p.SystemAddress != 0 {
		if err := d.Stations.UpdatePlacement(stations.Placement{
			MarketID:      *p.MarketID,
			StationName:   p.StationName,
			SystemAddress: p.SystemAddress,
			SystemName:    p.StarSystem,
			SystemX:       p.StarPos[0],
			SystemY:       p.StarPos[1],
			SystemZ:       p.StarPos[2],
		}, updatedAt); err != nil {
			return err
		}
		if err := d.ensureSystem(p.SystemAddress, p.StarSystem, p.StarPos[0], p.StarPos[1], p.StarPos[2], header); err != nil {
			return err
		}
	}

	primary, secondary := "", ""
	if len(p.StationEconomies) > 0 {
		primary = p.StationEconomies[0].Name
	}
	if len(p.StationEconomies) > 1 {
		secondary = p.StationEconomies[1].Name
	}

	var prohibited *string
	if len(p.Prohibited) > 0 {
		if b, err := json.Marshal(p.Prohibited); err == nil {
			s := string(b)
			prohibited = &s
		}
	}
	var access *string
	if p.CarrierDockingAccess != "" {
		access = &p.CarrierDockingAccess
	}

	// A Docked event carries docking access and prohibited list even when
	// no other station fields changed — write these independently so a
	// carrier-only ping never waits on a full economy refresh.
	if access != nil || prohibited != nil {
		if err := d.Stations.UpdateCarrierDockingAccess(*p.MarketID, access, prohibited, updatedAt); err != nil {
			return err
		}
	}

	if p.StationType != "" || len(p.StationEconomies) > 0 {
		return d.Stations.UpdateClassification(stations.Record{
			MarketID:             *p.MarketID,
			StationName:          p.StationName,
			StationType:          p.StationType,
			Allegiance:           p.StationAllegiance,
			Government:           p.StationGovernment,
			DistanceToArrival:    p.DistFromStarLS,
			PrimaryEconomy:       primary,
			SecondaryEconomy:     secondary,
			Prohibited:           prohibited,
			CarrierDockingAccess: access,
			UpdatedAt:            updatedAt,
		})
	}
	return nil
}

package handlers

import (
	"encoding/json"
	"fmt"
)

// discoveryScanPayload mirrors the `.../fssdiscoveryscan/1` schema.
type discoveryScanPayload struct {
	SystemName    string     `json:"SystemName"`
	SystemAddress int64      `json:"SystemAddress"`
	StarPos       [3]float64 `json:"StarPos"`
}

// HandleDiscoveryScan implements spec.md §4.3 "Discovery-scan event":
// insert-if-absent keyed by systemAddress, valid only when coordinates
// are non-zero or the system is the designated origin.
func (d *Deps) HandleDiscoveryScan(header Header, message []byte) error {
	var p discoveryScanPayload
	if err := json.Unmarshal(message, &p); err != nil {
		return fmt.Errorf("parse discovery-scan payload: %w", err)
	}
	if p.SystemAddress == 0 {
		return fmt.Errorf("discovery-scan payload missing SystemAddress")
	}
	return d.ensureSystem(p.SystemAddress, p.SystemName, p.StarPos[0], p.StarPos[1], p.StarPos[2], header)
}

// ensureSystem applies the zero-coordinate/origin-exception rule shared
// by discovery-scan, nav-route, and approach-settlement handlers before
// delegating to the systems store's insert-if-absent write.
func (d *Deps) ensureSystem(systemAddress int64, name string, x, y, z float64, header Header) error {
	if x == 0 && y == 0 && z == 0 && name != d.OriginSystemName {
		return nil
	}
	s := d.Sector.SectorOf(x, y, z)
	return d.Systems.EnsureExists(systemAddress, name, x, y, z, s)
}

package handlers

import (
	"encoding/json"
	"fmt"
)

// navRoutePayload mirrors the `.../navroute/1` schema.
type navRoutePayload struct {
	Route []navRouteHop `json:"Route"`
}

type navRouteHop struct {
	StarSystem    string     `json:"StarSystem"`
	SystemAddress int64      `json:"SystemAddress"`
	StarPos       [3]float64 `json:"StarPos"`
}

// HandleNavRoute implements spec.md §4.3 "Nav-route event": the same
// insert-if-absent rule as discovery-scan, applied independently to every
// hop in the route (S2 in spec.md §8).
func (d *Deps) HandleNavRoute(header Header, message []byte) error {
	var p navRoutePayload
	if err := json.Unmarshal(message, &p); err != nil {
		return fmt.Errorf("parse nav-route payload: %w", err)
	}
	for _, hop := range p.Route {
		if hop.SystemAddress == 0 {
			continue
		}
		if err := d.ensureSystem(hop.SystemAddress, hop.StarSystem, hop.StarPos[0], hop.StarPos[1], hop.StarPos[2], header); err != nil {
			return err
		}
	}
	return nil
}

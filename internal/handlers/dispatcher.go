package handlers

import (
	"strings"
)

// Dispatch routes a frame's message to the handler registered for its
// schema reference. Schemas outside the recognized set are silently
// ignored (spec.md §4.4 step 6). Matching is by case-insensitive
// substring since the feed prefixes schema references with a namespace
// URL.
func (d *Deps) Dispatch(schemaRef string, header Header, message []byte) error {
	schemaRef = strings.ToLower(schemaRef)

	switch {
	case strings.Contains(schemaRef, "/commodity/"):
		return d.HandleCommodity(header, message)
	case strings.Contains(schemaRef, "/fssdiscoveryscan/"):
		return d.HandleDiscoveryScan(header, message)
	case strings.Contains(schemaRef, "/navroute/"):
		return d.HandleNavRoute(header, message)
	case strings.Contains(schemaRef, "/approachsettlement/"):
		return d.HandleApproachSettlement(header, message)
	case strings.Contains(schemaRef, "/journal/"):
		return d.HandleJournal(header, message)
	default:
		return nil
	}
}

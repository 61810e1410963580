package locations

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Record is one row of the locations store (spec.md §3 "Locations store").
type Record struct {
	LocationID    string
	LocationName  string
	SystemAddress int64
	SystemName    string
	SystemX       float64
	SystemY       float64
	SystemZ       float64
	BodyID        *int64
	BodyName      *string
	Latitude      *float64
	Longitude     *float64
	UpdatedAt     string
}

// ExcludedNamePrefix marks settlement rows that are not yet real points of
// interest and must be discarded (spec.md §3 "Locations store").
const ExcludedNamePrefix = "$EXT_PANEL_ColonisationShip"

// IsExcludedName reports whether a location name matches the excluded
// "construction site" prefix.
func IsExcludedName(name string) bool {
	return strings.HasPrefix(name, ExcludedNamePrefix)
}

// ComputeLocationID derives the content-hash primary key over
// systemAddress|name|bodyId|lat|lon (spec.md §8 Testable Property 4).
func ComputeLocationID(systemAddress int64, name string, bodyID *int64, lat, lon *float64) string {
	b := int64(0)
	if bodyID != nil {
		b = *bodyID
	}
	la, lo := 0.0, 0.0
	if lat != nil {
		la = *lat
	}
	if lon != nil {
		lo = *lon
	}
	input := fmt.Sprintf("%d|%s|%d|%.6f|%.6f", systemAddress, strings.ToLower(name), b, la, lo)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

package systems

// Record is one row of the systems store (spec.md §3 "Systems store").
type Record struct {
	SystemAddress int64
	SystemName    string
	SystemX       float64
	SystemY       float64
	SystemZ       float64
	SystemSector  string
	UpdatedAt     string
}

// IsZeroCoordinates reports whether (x,y,z) is the origin point, which is
// only valid for the designated origin system (spec.md §3 invariant 1).
func IsZeroCoordinates(x, y, z float64) bool {
	return x == 0 && y == 0 && z == 0
}

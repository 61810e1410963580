package sector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSectorOf_Deterministic(t *testing.T) {
	h := New(100, 16)
	a := h.SectorOf(12.3, -45.6, 78.9)
	b := h.SectorOf(12.3, -45.6, 78.9)
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

func TestSectorOf_DifferentCellsDiffer(t *testing.T) {
	h := New(100, 16)
	a := h.SectorOf(0, 0, 0)
	b := h.SectorOf(150, 0, 0)
	assert.NotEqual(t, a, b)
}

func TestSectorOf_SameCellMatches(t *testing.T) {
	h := New(100, 16)
	a := h.SectorOf(10, 10, 10)
	b := h.SectorOf(90, 90, 90)
	assert.Equal(t, a, b)
}

func TestNearbySectors_NoFalseNegatives(t *testing.T) {
	h := New(100, 16)
	cx, cy, cz := 250.0, -75.0, 1000.0
	radius := 120.0

	nearby := h.NearbySectors(cx, cy, cz, radius)

	// Sample points within the radius on each axis; their sectors must
	// all be present in the nearby set (spec.md §8 invariant 6).
	samples := [][3]float64{
		{cx + radius, cy, cz},
		{cx - radius, cy, cz},
		{cx, cy + radius, cz},
		{cx, cy - radius, cz},
		{cx, cy, cz + radius},
		{cx, cy, cz - radius},
		{cx + radius/math.Sqrt(3), cy + radius/math.Sqrt(3), cz + radius/math.Sqrt(3)},
	}

	for _, p := range samples {
		dist := math.Sqrt(math.Pow(p[0]-cx, 2) + math.Pow(p[1]-cy, 2) + math.Pow(p[2]-cz, 2))
		if dist > radius {
			continue
		}
		sid := h.SectorOf(p[0], p[1], p[2])
		_, ok := nearby[sid]
		assert.True(t, ok, "sector for point %v (dist %.2f) missing from nearby set", p, dist)
	}
}

func TestNearbySectors_ZeroRadiusIncludesCenter(t *testing.T) {
	h := New(100, 16)
	nearby := h.NearbySectors(10, 10, 10, 0)
	_, ok := nearby[h.SectorOf(10, 10, 10)]
	assert.True(t, ok)
}

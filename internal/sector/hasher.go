// Package sector partitions 3D space into fixed-size cubes for coarse
// geographic indexing. Pure and deterministic: no state, no I/O.
package sector

import (
	"encoding/binary"
	"encoding/hex"
	"hash/fnv"
	"math"
)

// Hasher maps coordinates to sector ids using a grid of side GridSizeLY,
// truncating digests to HashLength hex characters.
type Hasher struct {
	GridSizeLY float64
	HashLength int
}

// New creates a Hasher with the given grid size (light-years) and hash
// length (hex characters, <= 16).
func New(gridSizeLY float64, hashLength int) Hasher {
	if gridSizeLY <= 0 {
		gridSizeLY = 100
	}
	if hashLength <= 0 || hashLength > 16 {
		hashLength = 16
	}
	return Hasher{GridSizeLY: gridSizeLY, HashLength: hashLength}
}

// cell is the integer grid coordinate of a point.
type cell struct {
	x, y, z int64
}

func (h Hasher) cellOf(x, y, z float64) cell {
	return cell{
		x: int64(math.Floor(x / h.GridSizeLY)),
		y: int64(math.Floor(y / h.GridSizeLY)),
		z: int64(math.Floor(z / h.GridSizeLY)),
	}
}

// SectorOf returns the fixed-length hex sector id for a point.
func (h Hasher) SectorOf(x, y, z float64) string {
	return h.digest(h.cellOf(x, y, z))
}

func (h Hasher) digest(c cell) string {
	var buf [24]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(c.x))
	binary.BigEndian.PutUint64(buf[8:16], uint64(c.y))
	binary.BigEndian.PutUint64(buf[16:24], uint64(c.z))

	sum := fnv.New64a()
	_, _ = sum.Write(buf[:])
	full := hex.EncodeToString(sum.Sum(nil))

	if h.HashLength >= len(full) {
		return full
	}
	return full[:h.HashLength]
}

// NearbySectors enumerates every sector id whose cube could contain a
// point within radius d of (x,y,z). It walks the inclusive bounding box
// of cells, which may over-include corners — callers follow up with an
// exact-distance check (§9 of spec.md).
func (h Hasher) NearbySectors(x, y, z, d float64) map[string]struct{} {
	center := h.cellOf(x, y, z)
	minX := int64(math.Floor((x - d) / h.GridSizeLY))
	maxX := int64(math.Ceil((x + d) / h.GridSizeLY))
	minY := int64(math.Floor((y - d) / h.GridSizeLY))
	maxY := int64(math.Ceil((y + d) / h.GridSizeLY))
	minZ := int64(math.Floor((z - d) / h.GridSizeLY))
	maxZ := int64(math.Ceil((z + d) / h.GridSizeLY))

	result := make(map[string]struct{})
	// center is always included even if the loop bounds degenerate for d=0.
	result[h.digest(center)] = struct{}{}

	for cx := minX; cx <= maxX; cx++ {
		for cy := minY; cy <= maxY; cy++ {
			for cz := minZ; cz <= maxZ; cz++ {
				result[h.digest(cell{cx, cy, cz})] = struct{}{}
			}
		}
	}
	return result
}

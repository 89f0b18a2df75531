/*
Copyright © 2024 the sleuth authors.
This file is part of sleuth.

sleuth is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

sleuth is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with sleuth.  If not, see <http://www.gnu.org/licenses/>.
*/

package raster

// Op is a pixel comparison operator used by CountPixels/ConditionAssign.
type Op int

// The six comparison operators spec.md §4.8 requires.
const (
	LT Op = iota
	LE
	EQ
	NE
	GE
	GT
)

func (op Op) apply(a, b int) bool {
	switch op {
	case LT:
		return a < b
	case LE:
		return a <= b
	case EQ:
		return a == b
	case NE:
		return a != b
	case GE:
		return a >= b
	case GT:
		return a > b
	default:
		panic("sleuth: raster: unknown operator")
	}
}

// CountPixels returns the number of pixels in g satisfying
// g[i] op value.
func CountPixels(g *Grid, op Op, value int) int {
	n := 0
	for _, v := range g.Pix {
		if op.apply(int(v), value) {
			n++
		}
	}
	return n
}

// ConditionAssign sets dst[i] = setValue everywhere src[i] op value.
// src and dst must share dimensions.
func ConditionAssign(src *Grid, op Op, value int, dst *Grid, setValue uint8) {
	for i, v := range src.Pix {
		if op.apply(int(v), value) {
			dst.Pix[i] = setValue
		}
	}
	dst.dirty = true
}

// Copy copies every pixel of src into dst. src and dst must share
// dimensions.
func Copy(src, dst *Grid) {
	copy(dst.Pix, src.Pix)
	dst.dirty = true
}

// neighborOffsets is the fixed 8-neighborhood offset table, in the
// clockwise-from-north order the source code walks.
var neighborOffsets = [8][2]int{
	{-1, 0}, {-1, 1}, {0, 1}, {1, 1},
	{1, 0}, {1, -1}, {0, -1}, {-1, -1},
}

// CountNeighbors returns the number of g's 8-neighbors of (r,c)
// satisfying neighbor op value. Neighbors outside the grid are not
// counted.
func CountNeighbors(g *Grid, r, c int, op Op, value int) int {
	n := 0
	for _, d := range neighborOffsets {
		nr, nc := r+d[0], c+d[1]
		if g.InBounds(nr, nc) && op.apply(int(g.At(nr, nc)), value) {
			n++
		}
	}
	return n
}

// Shuffle8 returns a random permutation of the 8 neighbor-offset
// indices, using pick to draw one index in [0,n).
func Shuffle8(pick func(n int) int) [8]int {
	var order [8]int
	for i := range order {
		order[i] = i
	}
	for i := 7; i > 0; i-- {
		j := pick(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// GetNeighbor walks the 8-neighborhood of (r,c) in an order given by
// pick (spec.md §4.8's "random-order walk") and returns the first
// neighbor that lies within g's bounds. ok is false if none do (only
// possible for a 1x1 grid).
func GetNeighbor(g *Grid, r, c int, pick func(n int) int) (nr, nc int, ok bool) {
	order := Shuffle8(pick)
	for _, idx := range order {
		d := neighborOffsets[idx]
		cr, cc := r+d[0], c+d[1]
		if g.InBounds(cr, cc) {
			return cr, cc, true
		}
	}
	return 0, 0, false
}

// NeighborAt returns the (r,c) of the neighbor at the given clockwise
// index in [0,8).
func NeighborAt(r, c, idx int) (int, int) {
	d := neighborOffsets[idx%8]
	return r + d[0], c + d[1]
}

// Intersection returns the count of pixels where a[i] == b[i]. a and b
// must share dimensions.
func Intersection(a, b *Grid) int {
	n := 0
	for i := range a.Pix {
		if a.Pix[i] == b.Pix[i] {
			n++
		}
	}
	return n
}

// NormalizeRoads rescales every road grid in roads so its pixel values
// are re-based to 0-100 while preserving relative magnitude across
// years, per spec.md §4.8:
//
//	value' = (100*value/max_of_this_grid) * (max_of_this_grid/max_over_all_road_grids)
//
// which simplifies to value' = 100*value/max_over_all_road_grids, but
// is computed in the two explicit steps the source takes, in floating
// point to avoid the intermediate-truncation error integer division
// would introduce. A grid whose own max is 0 (no roads at all) is
// skipped and stays all-zero, so no divide-by-zero occurs.
func NormalizeRoads(roads []*Grid) {
	globalMax := 0
	for _, g := range roads {
		if m := int(g.Max()); m > globalMax {
			globalMax = m
		}
	}
	if globalMax == 0 {
		return
	}
	for _, g := range roads {
		localMax := int(g.Max())
		if localMax == 0 {
			continue
		}
		for i, v := range g.Pix {
			rebased := 100 * float64(v) / float64(localMax)
			g.Pix[i] = uint8(rebased * float64(localMax) / float64(globalMax))
		}
		g.dirty = true
	}
}

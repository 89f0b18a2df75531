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

package engine

import (
	"fmt"

	"github.com/sleuth-model/sleuth/internal/raster"
)

// LandClass is one LANDUSE_CLASS entry: grayscale code, short id, name,
// RGB color, and the derived excluded/transition flags spec.md §3
// describes.
type LandClass struct {
	Grayscale uint8
	ID        string // "URB", "EXC", "UNC", or a land-cover class id
	Name      string
	R, G, B   uint8

	Excluded   bool // EXC
	Transition bool // eligible for deltatron transitions (not URB/EXC/UNC)

	AvgSlope float64 // per-class average slope, used by deltatron step B
}

// LandClassTable is the ordered set of land classes plus the two
// derived collections spec.md §3 names.
type LandClassTable struct {
	Classes []LandClass

	// NewIndices maps grayscale -> ordinal position in Classes. Always
	// 256 entries (spec.md §3 invariant); unused grayscale values map
	// to -1.
	NewIndices [256]int

	// ReducedClasses holds the ordinal indices (into Classes) of every
	// class eligible for deltatron transitions.
	ReducedClasses []int

	urbanIndex int
}

// NewLandClassTable builds the derived collections from an ordered
// class list and validates the invariants spec.md §3 requires: exactly
// one class has id "URB"; maximum grayscale < 256.
func NewLandClassTable(classes []LandClass) (LandClassTable, error) {
	t := LandClassTable{Classes: classes, urbanIndex: -1}
	for i := range t.NewIndices {
		t.NewIndices[i] = -1
	}
	urbanCount := 0
	for i, c := range classes {
		if int(c.Grayscale) >= 256 {
			return t, fmt.Errorf("sleuth: land class %q: grayscale %d >= 256", c.ID, c.Grayscale)
		}
		t.NewIndices[c.Grayscale] = i
		switch c.ID {
		case "URB":
			urbanCount++
			t.urbanIndex = i
		case "EXC", "UNC":
			// excluded from reduced-class set
		default:
			if !classes[i].Excluded {
				t.ReducedClasses = append(t.ReducedClasses, i)
			}
		}
	}
	if urbanCount != 1 {
		return t, fmt.Errorf("sleuth: land class table: expected exactly one class with id URB, found %d", urbanCount)
	}
	return t, nil
}

// UrbanCode returns the grayscale value standing in for "urban" in the
// land grid (deltatron step A overlays urban pixels with this code).
func (t *LandClassTable) UrbanCode() uint8 {
	if t.urbanIndex < 0 {
		return 0
	}
	return t.Classes[t.urbanIndex].Grayscale
}

// ClassOf returns the ordinal class index for a grayscale pixel value,
// or -1 if unrecognized.
func (t *LandClassTable) ClassOf(grayscale uint8) int {
	return t.NewIndices[grayscale]
}

// IsTransitionEligible reports whether the class at grayscale value v
// is a reduced class (eligible for deltatron transitions).
func (t *LandClassTable) IsTransitionEligible(v uint8) bool {
	idx := t.NewIndices[v]
	if idx < 0 {
		return false
	}
	return t.Classes[idx].Transition
}

// ComputeAvgSlope fills in each class's AvgSlope from a land-cover grid
// and a co-registered slope grid, averaging the slope of every pixel
// whose land-cover value maps to that class. Classes with no matching
// pixels keep an AvgSlope of 0.
func (t *LandClassTable) ComputeAvgSlope(landuse, slope *raster.Grid) {
	var sum [256]float64
	var n [256]int
	for i, v := range landuse.Pix {
		idx := t.NewIndices[v]
		if idx < 0 {
			continue
		}
		sum[idx] += float64(slope.Pix[i])
		n[idx]++
	}
	for i := range t.Classes {
		if n[i] > 0 {
			t.Classes[i].AvgSlope = sum[i] / float64(n[i])
		}
	}
}

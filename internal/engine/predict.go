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

import "github.com/sleuth-model/sleuth/internal/raster"

// ClassProbabilityAccumulator tallies, per pixel, how many simulated
// years (across every Monte Carlo realization of a tuple) landed in
// each land-cover class, spec.md §4.7's "annual class probability
// accumulation": a counter slab of num_classes x total_pixels,
// incremented once per simulated year in any mode whenever land-cover
// processing is enabled.
type ClassProbabilityAccumulator struct {
	rows, cols, classes int
	counts              []uint32
}

// NewClassProbabilityAccumulator allocates a zeroed counter slab sized
// for rows x cols pixels and the given number of ordinal land classes.
func NewClassProbabilityAccumulator(rows, cols, classes int) *ClassProbabilityAccumulator {
	return &ClassProbabilityAccumulator{
		rows: rows, cols: cols, classes: classes,
		counts: make([]uint32, rows*cols*classes),
	}
}

// Add increments, for every pixel, the counter of land's class at that
// pixel (spec.md §4.7: "incremented where class == new_indices[land[i]]").
func (a *ClassProbabilityAccumulator) Add(land *raster.Grid, classes *LandClassTable) {
	for i, v := range land.Pix {
		idx := classes.ClassOf(v)
		if idx < 0 {
			continue
		}
		a.counts[i*a.classes+idx]++
	}
}

// MostProbable derives the most-probable-class raster (grayscale value
// of the class with the highest count at each pixel) and the
// uncertainty raster (100 - 100*max/sum, spec.md §4.7), both 0 for
// pixels with no accumulated counts.
func (a *ClassProbabilityAccumulator) MostProbable(classes *LandClassTable) (mostProbable, uncertainty *raster.Grid) {
	mostProbable = raster.New(a.rows, a.cols)
	uncertainty = raster.New(a.rows, a.cols)
	n := a.rows * a.cols
	for i := 0; i < n; i++ {
		var max, sum uint32
		best := -1
		base := i * a.classes
		for c := 0; c < a.classes; c++ {
			v := a.counts[base+c]
			sum += v
			if v > max {
				max = v
				best = c
			}
		}
		if best >= 0 {
			mostProbable.Pix[i] = classes.Classes[best].Grayscale
		}
		if sum > 0 {
			uncertainty.Pix[i] = uint8(100 - 100*max/sum)
		}
	}
	mostProbable.MarkDirty()
	uncertainty.MarkDirty()
	return mostProbable, uncertainty
}

// CumulatePrediction is the per-tuple output of spec.md §4.7's "after
// all MC realizations, normalize cumulate by 100/num_mc": the
// percentage of realizations in which each pixel ended urban, plus
// (only when land-cover processing is enabled) the most-probable land
// class and its uncertainty derived from the class-probability
// counters.
type CumulatePrediction struct {
	Urban        *raster.Grid
	MostProbable *raster.Grid // nil unless land-cover processing is enabled
	Uncertainty  *raster.Grid // nil unless land-cover processing is enabled
}

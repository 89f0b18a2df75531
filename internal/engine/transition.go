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
	"github.com/sleuth-model/sleuth/internal/raster"
	"gonum.org/v1/gonum/mat"
)

// BuildTransitionMatrix derives the deltatron transition-probability
// matrix T[from,to] (spec.md §4.5) from the two observed land-cover
// layers a scenario's LANDUSE_DATA pair provides: T[i][j] is the
// fraction of pixels classified i in before that were classified j in
// after, counted over every recognized class (reduced or not).
// Classes with no observed "before" pixels fall back to an even split
// across the reduced classes, so every row sums to 1.
func BuildTransitionMatrix(before, after *raster.Grid, classes *LandClassTable) *mat.Dense {
	n := len(classes.Classes)
	counts := make([][]int, n)
	totals := make([]int, n)
	for i := range counts {
		counts[i] = make([]int, n)
	}
	for i := range before.Pix {
		fromIdx := classes.NewIndices[before.Pix[i]]
		toIdx := classes.NewIndices[after.Pix[i]]
		if fromIdx < 0 || toIdx < 0 {
			continue
		}
		counts[fromIdx][toIdx]++
		totals[fromIdx]++
	}

	T := mat.NewDense(n, n, nil)
	evenShare := 0.0
	if len(classes.ReducedClasses) > 0 {
		evenShare = 1.0 / float64(len(classes.ReducedClasses))
	}
	for i := 0; i < n; i++ {
		if totals[i] == 0 {
			for _, j := range classes.ReducedClasses {
				T.Set(i, j, evenShare)
			}
			continue
		}
		for j := 0; j < n; j++ {
			if counts[i][j] > 0 {
				T.Set(i, j, float64(counts[i][j])/float64(totals[i]))
			}
		}
	}
	return T
}

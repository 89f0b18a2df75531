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
	"github.com/sleuth-model/sleuth/internal/rng"
	"gonum.org/v1/gonum/mat"
)

// Constants from original_source/src/ugm_defines.h, carried over
// literally since they are spec-pinned (spec.md §4.5).
const (
	regionSize                 = 30
	deltaPhase2Sensitivity     = 1.0
	minYearsBetweenTransitions = 5
)

// Deltatron-age states, spec.md §4.5/glossary: 0 means eligible to
// transition this year; 1..minYearsBetweenTransitions mean "transitioned
// that many years ago"; only exactly 2 is a step-C recruiter.
const (
	deltatronEligible  = 0
	deltatronRecruiter = 2
)

// DeltatronState holds the land-cover sub-model's persistent state: the
// deltatron-age grid and the working land grid, both carried across
// years within one Monte Carlo realization.
type DeltatronState struct {
	Age  *raster.Grid // deltatron-age grid
	Land *raster.Grid // working land-cover grid

	Phase1Count, Phase2Count int // supplemented diagnostic, SPEC_FULL.md §4.5

	initialized bool
}

// InitDeltatron performs the first-year-only initialization of spec.md
// §4.5: zero the age grid and copy initialLand into the working grid.
// RunRealization passes land year-0 normally and land year-1 in
// prediction mode.
func (ds *DeltatronState) InitDeltatron(rows, cols int, initialLand *raster.Grid) {
	ds.Age = raster.New(rows, cols)
	ds.Land = initialLand.Clone()
	ds.initialized = true
}

// RunDeltatron runs one year of the land-cover transition sub-model,
// spec.md §4.5 steps A-D. T is the [from][to] transition-probability
// matrix (square, one row/column per ordinal class), classSlope gives
// the per-class average slope, and numGrowthPix is the growth rule's
// pixel count for this year (the seeding budget for step B). The
// phase-1/phase-2 working buffers come from pool's scratch class for
// worker, rather than ad hoc allocation, per the raster pool's
// checkout/release discipline (spec.md §4.1).
func RunDeltatron(ds *DeltatronState, urban, slope *raster.Grid, classes *LandClassTable, T *mat.Dense, numGrowthPix int, rs *rng.Stream, pool *raster.Pool, worker int) {
	ds.Phase1Count, ds.Phase2Count = 0, 0 // per-year diagnostic counts

	// Step A: overlay urban pixels onto the land grid.
	urbanCode := classes.UrbanCode()
	for i, v := range urban.Pix {
		if v > 0 {
			ds.Land.Pix[i] = urbanCode
		}
	}
	ds.Land.MarkDirty()

	phase1 := pool.AcquireScratch(worker, "deltatron-phase1")
	raster.Copy(ds.Land, phase1)
	deltatronPhase1(phase1, ds, slope, classes, T, numGrowthPix, rs)

	phase2 := pool.AcquireScratch(worker, "deltatron-phase2")
	raster.Copy(phase1, phase2)
	deltatronPhase2(phase2, ds, classes, T, rs)

	raster.Copy(phase2, ds.Land)
	_ = pool.ReleaseScratch(worker, phase1, "deltatron:phase1")
	_ = pool.ReleaseScratch(worker, phase2, "deltatron:phase2")

	ageDeltatrons(ds.Age)
}

// deltatronPhase1 implements spec.md §4.5 step B: seed up to
// numGrowthPix new transitions at random transition-eligible pixels,
// each optionally growing a cluster of up to regionSize pixels.
func deltatronPhase1(land *raster.Grid, ds *DeltatronState, slope *raster.Grid, classes *LandClassTable, T *mat.Dense, numGrowthPix int, rs *rng.Stream) {
	rows, cols := land.Rows, land.Cols
	if rows <= 2 || cols <= 2 {
		return
	}
	for k := 0; k < numGrowthPix; k++ {
		r, c := findEligiblePixel(land, classes, rs)
		if r < 0 {
			continue
		}
		a, b := pickTwoReducedClasses(classes, rs)
		newLanduse := closerBySlope(classes, a, b, float64(slope.At(r, c)))

		fromClass := classes.ClassOf(ds.Land.At(r, c))
		if fromClass < 0 {
			continue
		}
		p := T.At(fromClass, newLanduse)
		if rs.Uniform() >= p {
			continue
		}
		land.Set(r, c, classes.Classes[newLanduse].Grayscale)
		ds.Age.Set(r, c, 1)
		ds.Phase1Count++
		growCluster(land, ds, classes, T, r, c, newLanduse, rs)
	}
}

func findEligiblePixel(land *raster.Grid, classes *LandClassTable, rs *rng.Stream) (int, int) {
	rows, cols := land.Rows, land.Cols
	const maxAttempts = 1000
	for i := 0; i < maxAttempts; i++ {
		r, c := pickInterior(rs, rows, cols)
		if classes.IsTransitionEligible(land.At(r, c)) {
			return r, c
		}
	}
	return -1, -1
}

func pickTwoReducedClasses(classes *LandClassTable, rs *rng.Stream) (int, int) {
	n := len(classes.ReducedClasses)
	if n < 2 {
		c := classes.ReducedClasses[0]
		return c, c
	}
	i := rs.UniformInt(n)
	j := rs.UniformInt(n - 1)
	if j >= i {
		j++
	}
	return classes.ReducedClasses[i], classes.ReducedClasses[j]
}

// closerBySlope returns whichever of a, b has average slope closer to
// localSlope (smaller squared difference), per spec.md §4.5 step B.
func closerBySlope(classes *LandClassTable, a, b int, localSlope float64) int {
	da := classes.Classes[a].AvgSlope - localSlope
	db := classes.Classes[b].AvgSlope - localSlope
	if da*da <= db*db {
		return a
	}
	return b
}

// growCluster attempts to grow a transitioned pixel into a cluster of
// up to regionSize pixels, re-centering on a newly transitioned
// neighbor 1 time in 8, each step gated by the same transition
// probability, per spec.md §4.5 step B.
func growCluster(land *raster.Grid, ds *DeltatronState, classes *LandClassTable, T *mat.Dense, r0, c0, newLanduse int, rs *rng.Stream) {
	r, c := r0, c0
	fromClass := classes.ClassOf(ds.Land.At(r0, c0))
	for n := 1; n < regionSize; n++ {
		nr, nc, ok := raster.GetNeighbor(land, r, c, rs.UniformInt)
		if !ok {
			return
		}
		if !classes.IsTransitionEligible(land.At(nr, nc)) {
			continue
		}
		p := T.At(fromClass, newLanduse)
		if rs.Uniform() >= p {
			continue
		}
		land.Set(nr, nc, classes.Classes[newLanduse].Grayscale)
		ds.Age.Set(nr, nc, 1)
		ds.Phase1Count++
		if rs.UniformInt(8) == 0 {
			r, c = nr, nc
		}
	}
}

// deltatronPhase2 implements spec.md §4.5 step C: propagate transitions
// from last year's recruiters (deltatron==2) into eligible neighbors.
func deltatronPhase2(land *raster.Grid, ds *DeltatronState, classes *LandClassTable, T *mat.Dense, rs *rng.Stream) {
	rows, cols := land.Rows, land.Cols
	if rows <= 2 || cols <= 2 {
		return
	}
	for r := 1; r < rows-1; r++ {
		for c := 1; c < cols-1; c++ {
			if !classes.IsTransitionEligible(land.At(r, c)) {
				continue
			}
			if ds.Age.At(r, c) != deltatronEligible {
				continue
			}
			recruiterCount := raster.CountNeighbors(ds.Age, r, c, raster.EQ, deltatronRecruiter)
			t := 1 + rs.UniformInt(2) // uniform in {1,2}
			if recruiterCount < t {
				continue
			}
			nr, nc, ok := findRecruiterNeighbor(land, ds.Age, classes, r, c, rs)
			if !ok {
				continue
			}
			phase2Class := classes.ClassOf(land.At(r, c))
			neighborClass := classes.ClassOf(land.At(nr, nc))
			p := T.At(phase2Class, neighborClass) * deltaPhase2Sensitivity
			if rs.Uniform() >= p {
				continue
			}
			land.Set(r, c, land.At(nr, nc))
			ds.Age.Set(r, c, 1)
			ds.Phase2Count++
		}
	}
}

// findRecruiterNeighbor makes up to 16 random neighbor draws from the
// 8-neighborhood (with repeats possible) for a deltatron==2 neighbor whose class is
// transition-eligible, per spec.md §4.5 step C.
func findRecruiterNeighbor(land, age *raster.Grid, classes *LandClassTable, r, c int, rs *rng.Stream) (int, int, bool) {
	for attempt := 0; attempt < 16; attempt++ {
		nr, nc, ok := raster.GetNeighbor(land, r, c, rs.UniformInt)
		if !ok {
			continue
		}
		if age.At(nr, nc) == deltatronRecruiter && classes.IsTransitionEligible(land.At(nr, nc)) {
			return nr, nc, true
		}
	}
	return 0, 0, false
}

// ageDeltatrons implements spec.md §4.5 step D: increment every
// positive age value, resetting to 0 (eligible again) once the cooldown
// exceeds minYearsBetweenTransitions.
func ageDeltatrons(age *raster.Grid) {
	for i, v := range age.Pix {
		if v == 0 {
			continue
		}
		v++
		if v > minYearsBetweenTransitions {
			v = 0
		}
		age.Pix[i] = v
	}
	age.MarkDirty()
}

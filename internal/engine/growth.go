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
	"math"

	"github.com/sleuth-model/sleuth/internal/raster"
	"github.com/sleuth-model/sleuth/internal/rng"
)

// urbanizeFailure records why an Urbanize attempt failed, in the
// priority order spec.md §4.4 specifies.
type urbanizeFailure int

const (
	failNone urbanizeFailure = iota
	failZ
	failDelta
	failSlope
	failExcluded
)

// PhaseCounters tallies successes per phase and failures by cause,
// spec.md §4.4's "phase counter and global success/failure stat".
type PhaseCounters struct {
	Spontaneous, NewSpreadCenter, Edge, Road int
	FailZ, FailDelta, FailSlope, FailExcluded int
}

func (pc *PhaseCounters) recordFailure(f urbanizeFailure) {
	switch f {
	case failZ:
		pc.FailZ++
	case failDelta:
		pc.FailDelta++
	case failSlope:
		pc.FailSlope++
	case failExcluded:
		pc.FailExcluded++
	}
}

func (pc *PhaseCounters) recordSuccess(tag PhaseTag) {
	switch tag {
	case PhaseSpontaneous:
		pc.Spontaneous++
	case PhaseNewSpreadCenter:
		pc.NewSpreadCenter++
	case PhaseEdge:
		pc.Edge++
	case PhaseRoad:
		pc.Road++
	}
}

// urbanize is the single primitive every phase uses (spec.md §4.4).
// It succeeds iff z[r,c]==0, delta[r,c]==0, a slope-weighted coin flip
// passes, and the exclusion test passes; on success it writes tag into
// delta[r,c].
func urbanize(z, delta, slope, excluded *raster.Grid, weights [256]float64, r, c int, tag PhaseTag, rs *rng.Stream, pc *PhaseCounters) bool {
	if z.At(r, c) != 0 {
		pc.recordFailure(failZ)
		return false
	}
	if delta.At(r, c) != 0 {
		pc.recordFailure(failDelta)
		return false
	}
	w := weights[slope.At(r, c)]
	if !(rs.Uniform() > w) {
		pc.recordFailure(failSlope)
		return false
	}
	if !(int(excluded.At(r, c)) < rs.UniformInt(100)) {
		pc.recordFailure(failExcluded)
		return false
	}
	delta.Set(r, c, uint8(tag))
	pc.recordSuccess(tag)
	return true
}

func pickInterior(rs *rng.Stream, rows, cols int) (int, int) {
	if rows <= 2 || cols <= 2 {
		return rows / 2, cols / 2
	}
	r := 1 + rs.UniformInt(rows-2)
	c := 1 + rs.UniformInt(cols-2)
	return r, c
}

// YearGrowth is the per-year growth-phase output: the four phase pixel
// counts, the growth-pixel count, and the average slope of newly
// urbanized pixels, feeding directly into spec.md §3's urbanization
// statistics record.
type YearGrowth struct {
	Counters      PhaseCounters
	NumGrowthPix  int
	AverageSlope  float64
	Population    int
	NewGrowthPix  []raster.GridPoint // this year's (r,c) additions, collected by finalizeDelta after phase 5
}

// RunYear runs the four growth phases for one simulated year, mutating
// z (the urban grid, in-out) and delta (this year's scratch additions).
// delta must be zeroed on entry.
func RunYear(z, delta, slope, excluded, roads *raster.Grid, weights [256]float64, coeffs Coefficients, rs *rng.Stream) YearGrowth {
	var yg YearGrowth

	runPhase1And3(z, delta, slope, excluded, weights, coeffs, rs, &yg.Counters)
	runPhase4(z, delta, slope, excluded, weights, coeffs, rs, &yg.Counters)
	if roads != nil {
		runPhase5(z, delta, slope, excluded, roads, weights, coeffs, rs, &yg.Counters)
	}

	finalizeDelta(z, delta, excluded, slope, &yg)
	yg.Population = raster.CountPixels(z, raster.GT, 0)
	return yg
}

// runPhase1And3 implements spec.md §4.4 phases 1 (spontaneous) and 3
// (new spreading centers): repeat 1+floor(diffusionValue) times, each
// time trying one spontaneous urbanization and, on success, up to two
// neighbor spreading-center urbanizations gated by breed probability.
func runPhase1And3(z, delta, slope, excluded *raster.Grid, weights [256]float64, coeffs Coefficients, rs *rng.Stream, pc *PhaseCounters) {
	rows, cols := z.Rows, z.Cols
	diagonal := math.Sqrt(float64(rows*rows + cols*cols))
	diffusionValue := coeffs.Diffusion * 0.005 * diagonal
	iterations := 1 + int(diffusionValue)

	for i := 0; i < iterations; i++ {
		r, c := pickInterior(rs, rows, cols)
		if !urbanize(z, delta, slope, excluded, weights, r, c, PhaseSpontaneous, rs, pc) {
			continue
		}
		if rs.Uniform() > coeffs.Breed/100 {
			continue
		}
		successes := 0
		for n := 0; n < 8 && successes < 2; n++ {
			nr, nc := raster.NeighborAt(r, c, n)
			if !z.InBounds(nr, nc) {
				continue
			}
			if urbanize(z, delta, slope, excluded, weights, nr, nc, PhaseNewSpreadCenter, rs, pc) {
				successes++
			}
		}
	}
}

// runPhase4 implements spec.md §4.4 phase 4 (edge/organic growth):
// scan interior pixels, and for each urban pixel, with probability
// spread/100, urbanize one neighbor if the pixel's urban-neighbor count
// is in [2,7].
func runPhase4(z, delta, slope, excluded *raster.Grid, weights [256]float64, coeffs Coefficients, rs *rng.Stream, pc *PhaseCounters) {
	rows, cols := z.Rows, z.Cols
	for r := 1; r < rows-1; r++ {
		for c := 1; c < cols-1; c++ {
			if z.At(r, c) == 0 {
				continue
			}
			if rs.Uniform() > coeffs.Spread/100 {
				continue
			}
			n := raster.CountNeighbors(z, r, c, raster.GT, 0)
			if n < 2 || n > 7 {
				continue
			}
			nr, nc, ok := raster.GetNeighbor(z, r, c, rs.UniformInt)
			if !ok {
				continue
			}
			urbanize(z, delta, slope, excluded, weights, nr, nc, PhaseEdge, rs, pc)
		}
	}
}

// spiralRing returns the (dr,dc) offset for spiral index k (k>=0),
// spec.md glossary "Spiral index": band b covers indices 4b(b+1)
// through 4(b+1)(b+2)-1 and visits the Chebyshev ring at distance b+1.
func spiralRing(k int) (int, int) {
	if k < 0 {
		k = 0
	}
	b := 0
	for 4*(b+1)*(b+2) <= k {
		b++
	}
	d := b + 1
	j := k - 4*b*(b+1)
	side := j / (2 * d)
	off := j % (2 * d)
	switch side {
	case 0: // top row, left to right
		return -d, -d + off
	case 1: // right column, top to bottom
		return -d + off, d
	case 2: // bottom row, right to left
		return d, d - off
	default: // left column, bottom to top
		return d - off, -d
	}
}

// runPhase5 implements spec.md §4.4 phase 5 (road-influenced growth).
// It only runs when delta already holds this-year growth.
func runPhase5(z, delta, slope, excluded, roads *raster.Grid, weights [256]float64, coeffs Coefficients, rs *rng.Stream, pc *PhaseCounters) {
	points := collectNewGrowth(delta)
	if len(points) == 0 {
		return
	}
	rows, cols := z.Rows, z.Cols
	iterations := 1 + int(coeffs.Breed)
	maxDim := rows
	if cols > maxDim {
		maxDim = cols
	}

	for i := 0; i < iterations; i++ {
		p := points[rs.UniformInt(len(points))]

		g := int(coeffs.RoadGravity * float64(rows+cols) / (16 * 100))
		searchRadius := 4 * g * (g + 1)
		if searchRadius < maxDim {
			searchRadius = maxDim
		}

		hitR, hitC, ok := spiralFindRoad(roads, p.R, p.C, searchRadius)
		if !ok {
			continue
		}

		endR, endC := walkRoad(roads, hitR, hitC, coeffs.Diffusion)

		nr, nc, ok := raster.GetNeighbor(z, endR, endC, rs.UniformInt)
		if !ok {
			continue
		}
		if !urbanize(z, delta, slope, excluded, weights, nr, nc, PhaseRoad, rs, pc) {
			continue
		}
		// Three further attempts from the successful pixel's own
		// neighbors (SPEC_FULL.md Open Question #1 resolution).
		for j := 0; j < 3; j++ {
			onr, onc, ok := raster.GetNeighbor(z, nr, nc, rs.UniformInt)
			if !ok {
				continue
			}
			urbanize(z, delta, slope, excluded, weights, onr, onc, PhaseRoad, rs, pc)
		}
	}
}

func collectNewGrowth(delta *raster.Grid) []raster.GridPoint {
	var pts []raster.GridPoint
	for r := 0; r < delta.Rows; r++ {
		for c := 0; c < delta.Cols; c++ {
			if delta.At(r, c) != 0 {
				pts = append(pts, raster.GridPoint{R: r, C: c})
			}
		}
	}
	return pts
}

// spiralFindRoad walks an expanding spiral of at most maxSteps cells
// around (r0,c0) and returns the first cell containing a road pixel.
func spiralFindRoad(roads *raster.Grid, r0, c0, maxSteps int) (int, int, bool) {
	for k := 0; k < maxSteps; k++ {
		dr, dc := spiralRing(k)
		r, c := r0+dr, c0+dc
		if roads.InBounds(r, c) && roads.At(r, c) > 0 {
			return r, c, true
		}
	}
	return 0, 0, false
}

// walkRoad walks along road-pixel neighbors from (r,c), step-counting,
// until step_count > road[hit]*diffusion/100, per spec.md §4.4 phase 5
// step 3, returning the end-of-road pixel.
func walkRoad(roads *raster.Grid, r, c int, diffusion float64) (int, int) {
	limit := float64(roads.At(r, c)) * diffusion / 100
	steps := 0
	curR, curC := r, c
	for float64(steps) <= limit {
		nr, nc, ok := nextRoadNeighbor(roads, curR, curC)
		if !ok {
			break
		}
		curR, curC = nr, nc
		steps++
	}
	return curR, curC
}

func nextRoadNeighbor(roads *raster.Grid, r, c int) (int, int, bool) {
	for n := 0; n < 8; n++ {
		nr, nc := raster.NeighborAt(r, c, n)
		if roads.InBounds(nr, nc) && roads.At(nr, nc) > 0 {
			return nr, nc, true
		}
	}
	return 0, 0, false
}

// finalizeDelta applies the post-phase cleanup of spec.md §4.4: zero
// any stray tag above phase 5, zero any pixel the exclusion mask
// forbids, then merge delta into z and accumulate slope statistics
// over the newly urbanized pixels.
func finalizeDelta(z, delta, excluded, slope *raster.Grid, yg *YearGrowth) {
	for i := range delta.Pix {
		if delta.Pix[i] > uint8(PhaseRoad) {
			delta.Pix[i] = 0
		}
	}
	raster.ConditionAssign(excluded, raster.GE, 100, delta, 0)

	var slopeSum float64
	growthPix := 0
	for r := 0; r < z.Rows; r++ {
		for c := 0; c < z.Cols; c++ {
			if z.At(r, c) == 0 && delta.At(r, c) > 0 {
				z.Set(r, c, delta.At(r, c))
				slopeSum += float64(slope.At(r, c))
				growthPix++
				yg.NewGrowthPix = append(yg.NewGrowthPix, raster.GridPoint{R: r, C: c})
			}
		}
	}
	yg.NumGrowthPix = growthPix
	if growthPix > 0 {
		yg.AverageSlope = slopeSum / float64(growthPix)
	}
}

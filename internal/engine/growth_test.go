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
	"testing"

	"github.com/sleuth-model/sleuth/internal/raster"
	"github.com/sleuth-model/sleuth/internal/rng"
)

func flatWeights() [256]float64 {
	var w [256]float64 // slope everywhere 0 => weight should never reject
	for i := range w {
		w[i] = 0
	}
	return w
}

// Scenario 1: 4x4 grid, single urban pixel at (1,1), all slope=0, no
// roads, excluded=0, diffusion=100 breed=spread=0 slope-resist=1
// road-grav=1, 1 year, 1 MC, seed=1 -> phase-1 count > 0, phase-3 count
// = 0, phase-4 count = 0, phase-5 count = 0.
func TestScenario1SpontaneousOnly(t *testing.T) {
	z := raster.New(4, 4)
	z.Set(1, 1, 1)
	delta := raster.New(4, 4)
	slope := raster.New(4, 4)
	excluded := raster.New(4, 4)
	weights := flatWeights()
	coeffs := Coefficients{Diffusion: 100, Breed: 0, Spread: 0, SlopeResistance: 1, RoadGravity: 1}
	rs := rng.New(1)

	yg := RunYear(z, delta, slope, excluded, nil, weights, coeffs, rs)

	if yg.Counters.Spontaneous == 0 {
		t.Error("Spontaneous count = 0, want > 0")
	}
	if yg.Counters.NewSpreadCenter != 0 {
		t.Errorf("NewSpreadCenter count = %d, want 0 (breed=0)", yg.Counters.NewSpreadCenter)
	}
	if yg.Counters.Edge != 0 {
		t.Errorf("Edge count = %d, want 0 (spread=0)", yg.Counters.Edge)
	}
	if yg.Counters.Road != 0 {
		t.Errorf("Road count = %d, want 0 (no roads)", yg.Counters.Road)
	}
}

// Scenario 2: same grid, breed=100, expect phase-3 count > 0 whenever
// phase-1 succeeds.
func TestScenario2BreedProducesSpreadCenters(t *testing.T) {
	z := raster.New(4, 4)
	z.Set(1, 1, 1)
	delta := raster.New(4, 4)
	slope := raster.New(4, 4)
	excluded := raster.New(4, 4)
	weights := flatWeights()
	coeffs := Coefficients{Diffusion: 100, Breed: 100, Spread: 0, SlopeResistance: 1, RoadGravity: 1}
	rs := rng.New(1)

	yg := RunYear(z, delta, slope, excluded, nil, weights, coeffs, rs)

	if yg.Counters.Spontaneous > 0 && yg.Counters.NewSpreadCenter == 0 {
		t.Error("phase-1 succeeded but phase-3 (breed=100) produced no spread centers")
	}
}

// Scenario 3: 10x10 solid-urban grid, spread=100 -> phase-4 count = 0
// (edges exist but neighbor count = 8, excluded by the < 8 clause for
// interior pixels, and border pixels are skipped by phase 4's interior
// scan).
func TestScenario3SolidUrbanNoEdgeGrowth(t *testing.T) {
	z := raster.New(10, 10)
	for i := range z.Pix {
		z.Pix[i] = 1
	}
	z.MarkDirty()
	delta := raster.New(10, 10)
	slope := raster.New(10, 10)
	excluded := raster.New(10, 10)
	weights := flatWeights()
	coeffs := Coefficients{Diffusion: 0, Breed: 0, Spread: 100, SlopeResistance: 1, RoadGravity: 1}
	rs := rng.New(1)

	yg := RunYear(z, delta, slope, excluded, nil, weights, coeffs, rs)

	if yg.Counters.Edge != 0 {
		t.Errorf("Edge count = %d, want 0 (every interior pixel has 8 urban neighbors)", yg.Counters.Edge)
	}
}

// Scenario 4: grid with excluded=100 everywhere, any coefficients ->
// growth_pix = 0 after any year.
func TestScenario4ExcludedEverywhereBlocksGrowth(t *testing.T) {
	z := raster.New(6, 6)
	z.Set(3, 3, 1)
	delta := raster.New(6, 6)
	slope := raster.New(6, 6)
	excluded := raster.New(6, 6)
	for i := range excluded.Pix {
		excluded.Pix[i] = 100
	}
	excluded.MarkDirty()
	weights := flatWeights()
	coeffs := Coefficients{Diffusion: 100, Breed: 100, Spread: 100, SlopeResistance: 1, RoadGravity: 100}
	rs := rng.New(1)

	yg := RunYear(z, delta, slope, excluded, nil, weights, coeffs, rs)

	if yg.NumGrowthPix != 0 {
		t.Errorf("NumGrowthPix = %d, want 0 (fully excluded scenario)", yg.NumGrowthPix)
	}
}

func TestUrbanizeOnAlreadyUrbanPixelFails(t *testing.T) {
	z := raster.New(3, 3)
	z.Set(1, 1, 1)
	delta := raster.New(3, 3)
	slope := raster.New(3, 3)
	excluded := raster.New(3, 3)
	weights := flatWeights()
	rs := rng.New(1)
	var pc PhaseCounters

	ok := urbanize(z, delta, slope, excluded, weights, 1, 1, PhaseSpontaneous, rs, &pc)
	if ok {
		t.Error("urbanize on an already-urban pixel succeeded, want false")
	}
	if pc.FailZ != 1 {
		t.Errorf("FailZ = %d, want 1", pc.FailZ)
	}
	if pc.FailDelta != 0 || pc.FailSlope != 0 || pc.FailExcluded != 0 {
		t.Error("only the z-failure counter should have incremented")
	}
}

func TestPopulationMonotonicNonDecreasing(t *testing.T) {
	z := raster.New(8, 8)
	z.Set(4, 4, 1)
	slope := raster.New(8, 8)
	excluded := raster.New(8, 8)
	weights := flatWeights()
	coeffs := Coefficients{Diffusion: 80, Breed: 50, Spread: 50, SlopeResistance: 1, RoadGravity: 1}
	rs := rng.New(5)

	prev := raster.CountPixels(z, raster.GT, 0)
	for year := 0; year < 5; year++ {
		delta := raster.New(8, 8)
		RunYear(z, delta, slope, excluded, nil, weights, coeffs, rs)
		cur := raster.CountPixels(z, raster.GT, 0)
		if cur < prev {
			t.Fatalf("year %d: population %d < previous %d", year, cur, prev)
		}
		prev = cur
	}
}

func TestWalkRoadZeroLengthDoesNotAdvance(t *testing.T) {
	roads := raster.New(3, 3)
	r, c := walkRoad(roads, 1, 1, 50)
	if r != 1 || c != 1 {
		t.Errorf("walkRoad on a zero-value road grid moved to (%d,%d), want (1,1)", r, c)
	}
}

func TestSpiralRingCoversExpandingChebyshevBands(t *testing.T) {
	seen := map[[2]int]bool{}
	for k := 0; k < 4*1*2; k++ { // band 0: indices [0,8)
		dr, dc := spiralRing(k)
		d := dr
		if d < 0 {
			d = -d
		}
		dc2 := dc
		if dc2 < 0 {
			dc2 = -dc2
		}
		if d > 1 || dc2 > 1 {
			t.Fatalf("spiralRing(%d) = (%d,%d), want within band-0 Chebyshev distance 1", k, dr, dc)
		}
		seen[[2]int{dr, dc}] = true
	}
	if len(seen) != 8 {
		t.Errorf("band 0 visited %d distinct cells, want 8", len(seen))
	}
}

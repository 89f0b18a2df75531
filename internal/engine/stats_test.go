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
)

func TestCountEdgesCountsOnlyBorderingUrbanPixels(t *testing.T) {
	z := raster.New(5, 5)
	z.Set(2, 2, 1)
	z.Set(2, 3, 1) // (2,2) and (2,3) are adjacent, each still borders a 0 pixel
	if got := countEdges(z); got != 2 {
		t.Errorf("countEdges = %d, want 2", got)
	}
}

func TestCountClustersSeparatesDisjointBlobs(t *testing.T) {
	z := raster.New(6, 6)
	z.Set(1, 1, 1)
	z.Set(4, 4, 1)
	clusters, mean := countClusters(z)
	if clusters != 2 {
		t.Errorf("countClusters = %d, want 2", clusters)
	}
	if mean != 1 {
		t.Errorf("mean cluster size = %v, want 1", mean)
	}
}

func TestCountClustersMergesAdjacentPixels(t *testing.T) {
	z := raster.New(6, 6)
	z.Set(2, 2, 1)
	z.Set(2, 3, 1)
	z.Set(3, 2, 1)
	clusters, mean := countClusters(z)
	if clusters != 1 {
		t.Errorf("countClusters = %d, want 1 (all 4-connected)", clusters)
	}
	if mean != 3 {
		t.Errorf("mean cluster size = %v, want 3", mean)
	}
}

func TestCentroidOfSinglePixel(t *testing.T) {
	z := raster.New(5, 5)
	z.Set(2, 3, 1)
	x, y := centroid(z)
	if x != 3 || y != 2 {
		t.Errorf("centroid = (%v,%v), want (3,2)", x, y)
	}
}

func TestLeeSalleePerfectOverlapIsOne(t *testing.T) {
	a := raster.New(3, 3)
	a.Set(1, 1, 1)
	b := a.Clone()
	if got := LeeSallee(a, b); got != 1 {
		t.Errorf("LeeSallee(identical) = %v, want 1", got)
	}
}

func TestLeeSalleeDisjointIsZero(t *testing.T) {
	a := raster.New(3, 3)
	a.Set(0, 0, 1)
	b := raster.New(3, 3)
	b.Set(2, 2, 1)
	if got := LeeSallee(a, b); got != 0 {
		t.Errorf("LeeSallee(disjoint) = %v, want 0", got)
	}
}

func TestLeeSalleeEmptyBothIsZero(t *testing.T) {
	a := raster.New(3, 3)
	b := raster.New(3, 3)
	if got := LeeSallee(a, b); got != 0 {
		t.Errorf("LeeSallee(empty,empty) = %v, want 0", got)
	}
}

func TestMonteCarloAccumulatorMeanAcrossRealizations(t *testing.T) {
	acc := NewMonteCarloAccumulator()
	acc.Add(YearStats{Year: 2000, Area: 10})
	acc.Add(YearStats{Year: 2000, Area: 20})
	if got := acc.Mean(2000, "area"); got != 15 {
		t.Errorf("Mean(area) = %v, want 15", got)
	}
}

func TestMonteCarloAccumulatorYearsSorted(t *testing.T) {
	acc := NewMonteCarloAccumulator()
	acc.Add(YearStats{Year: 2010})
	acc.Add(YearStats{Year: 1990})
	acc.Add(YearStats{Year: 2000})
	years := acc.Years()
	want := []int{1990, 2000, 2010}
	for i, y := range want {
		if years[i] != y {
			t.Fatalf("Years() = %v, want %v", years, want)
		}
	}
}

func TestTopNOrdersByProductDescending(t *testing.T) {
	scored := []ScoredTuple{
		{Tuple: SweepTuple{Diffusion: 1}, Score: CalibrationAggregate{Product: 0.2}},
		{Tuple: SweepTuple{Diffusion: 2}, Score: CalibrationAggregate{Product: 0.9}},
		{Tuple: SweepTuple{Diffusion: 3}, Score: CalibrationAggregate{Product: 0.5}},
	}
	top := TopN(scored, 2)
	if len(top) != 2 {
		t.Fatalf("len(TopN) = %d, want 2", len(top))
	}
	if top[0].Tuple.Diffusion != 2 || top[1].Tuple.Diffusion != 3 {
		t.Errorf("TopN order = %+v, want diffusion 2 then 3", top)
	}
}

func TestTopNDoesNotMutateInput(t *testing.T) {
	scored := []ScoredTuple{
		{Tuple: SweepTuple{Diffusion: 1}, Score: CalibrationAggregate{Product: 0.1}},
		{Tuple: SweepTuple{Diffusion: 2}, Score: CalibrationAggregate{Product: 0.9}},
	}
	_ = TopN(scored, 1)
	if scored[0].Tuple.Diffusion != 1 {
		t.Error("TopN mutated its input slice's original order")
	}
}

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
	"gonum.org/v1/gonum/mat"
)

func testClasses(t *testing.T) LandClassTable {
	t.Helper()
	classes, err := NewLandClassTable([]LandClass{
		{Grayscale: 1, ID: "URB", Name: "urban"},
		{Grayscale: 2, ID: "AGR", Name: "agriculture", Transition: true},
		{Grayscale: 3, ID: "FOR", Name: "forest", Transition: true},
	})
	if err != nil {
		t.Fatalf("NewLandClassTable: %v", err)
	}
	return classes
}

// Scenario 6: with num_growth_pix = 0, the land grid after RunDeltatron
// equals the urban-overlayed land grid, and the deltatron-age grid
// stays all zero.
func TestScenario6ZeroGrowthPixLeavesLandUnchanged(t *testing.T) {
	classes := testClasses(t)
	land := raster.New(6, 6)
	for i := range land.Pix {
		land.Pix[i] = 2 // all agriculture
	}
	land.MarkDirty()

	urban := raster.New(6, 6)
	urban.Set(2, 2, 1)

	slope := raster.New(6, 6)
	T := mat.NewDense(len(classes.Classes), len(classes.Classes), nil)
	for i := 0; i < len(classes.Classes); i++ {
		for j := 0; j < len(classes.Classes); j++ {
			T.Set(i, j, 1) // would always accept a transition if offered one
		}
	}

	ds := DeltatronState{}
	ds.InitDeltatron(6, 6, land)
	rs := rng.New(1)
	pool := raster.NewPool(6, 6, 1, 0, 2)

	RunDeltatron(&ds, urban, slope, &classes, T, 0, rs, pool, 0)

	want := land.Clone()
	want.Set(2, 2, classes.UrbanCode())
	want.MarkDirty()

	for r := 0; r < 6; r++ {
		for c := 0; c < 6; c++ {
			if ds.Land.At(r, c) != want.At(r, c) {
				t.Fatalf("Land(%d,%d) = %d, want %d (urban-overlay only, no transitions)", r, c, ds.Land.At(r, c), want.At(r, c))
			}
		}
	}
	for i, v := range ds.Age.Pix {
		if v != 0 {
			t.Fatalf("Age.Pix[%d] = %d, want 0 (no transitions occurred)", i, v)
		}
	}
}

func TestAgeDeltatronsResetsAfterCooldown(t *testing.T) {
	age := raster.New(1, 1)
	age.Set(0, 0, minYearsBetweenTransitions)
	ageDeltatrons(age)
	if got := age.At(0, 0); got != 0 {
		t.Errorf("age after exceeding cooldown = %d, want reset to 0", got)
	}
}

func TestAgeDeltatronsIncrementsBelowCooldown(t *testing.T) {
	age := raster.New(1, 1)
	age.Set(0, 0, 1)
	ageDeltatrons(age)
	if got := age.At(0, 0); got != 2 {
		t.Errorf("age after one increment = %d, want 2", got)
	}
}

func TestCloserBySlopePicksNearerClass(t *testing.T) {
	classes := testClasses(t)
	classes.Classes[1].AvgSlope = 2.0 // index 1 = AGR
	classes.Classes[2].AvgSlope = 20.0 // index 2 = FOR

	if got := closerBySlope(&classes, 1, 2, 3.0); got != 1 {
		t.Errorf("closerBySlope chose class %d, want 1 (AvgSlope=2.0 nearer to 3.0)", got)
	}
	if got := closerBySlope(&classes, 1, 2, 19.0); got != 2 {
		t.Errorf("closerBySlope chose class %d, want 2 (AvgSlope=20.0 nearer to 19.0)", got)
	}
}

func TestIsTransitionEligibleExcludesUrbanAndUnrecognized(t *testing.T) {
	classes := testClasses(t)
	if classes.IsTransitionEligible(1) {
		t.Error("urban grayscale reported transition-eligible")
	}
	if classes.IsTransitionEligible(99) {
		t.Error("unrecognized grayscale reported transition-eligible")
	}
	if !classes.IsTransitionEligible(2) {
		t.Error("agriculture grayscale reported not transition-eligible")
	}
}

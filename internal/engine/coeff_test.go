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

	"github.com/google/go-cmp/cmp"
)

func testScenarioForCoeff() *Scenario {
	return &Scenario{
		Boom: 1.5, Bust: 0.5,
		CriticalLow: 1, CriticalHigh: 10,
		SlopeSensitivity: 0.1, RoadGravSensitivity: 0.1,
	}
}

func TestSelfModifyBoomsAboveCriticalHigh(t *testing.T) {
	cs := CoeffState{Saved: Coefficients{Diffusion: 50, Breed: 50, Spread: 50, SlopeResistance: 50, RoadGravity: 50}}
	cs.ResetForRealization()
	s := testScenarioForCoeff()

	cs.SelfModify(20, 30, s) // growthRate=20 > CriticalHigh=10

	if cs.Current.Diffusion <= 50 {
		t.Errorf("Diffusion after boom = %v, want > 50", cs.Current.Diffusion)
	}
	if cs.Current.Breed <= 50 {
		t.Errorf("Breed after boom = %v, want > 50", cs.Current.Breed)
	}
}

func TestSelfModifyBustsBelowCriticalLow(t *testing.T) {
	cs := CoeffState{Saved: Coefficients{Diffusion: 50, Breed: 50, Spread: 50, SlopeResistance: 50, RoadGravity: 50}}
	cs.ResetForRealization()
	s := testScenarioForCoeff()

	cs.SelfModify(0, 30, s) // growthRate=0 < CriticalLow=1

	if cs.Current.Diffusion >= 50 {
		t.Errorf("Diffusion after bust = %v, want < 50", cs.Current.Diffusion)
	}
}

func TestSelfModifyIdempotentInNormalRange(t *testing.T) {
	start := Coefficients{Diffusion: 50, Breed: 50, Spread: 50, SlopeResistance: 50, RoadGravity: 50}
	cs := CoeffState{Saved: start}
	cs.ResetForRealization()
	s := testScenarioForCoeff()

	cs.SelfModify(5, 30, s) // growthRate=5 is within [CriticalLow=1, CriticalHigh=10]

	if diff := cmp.Diff(start, cs.Current); diff != "" {
		t.Errorf("Current after in-range self-modify changed unexpectedly (-want +got):\n%s", diff)
	}
}

func TestClampPinsZeroToOne(t *testing.T) {
	c := Coefficients{}
	c.Clamp()
	want := Coefficients{Diffusion: 1, Breed: 1, Spread: 1, SlopeResistance: 1, RoadGravity: 1}
	if c != want {
		t.Errorf("Clamp() on zero-valued coefficients = %+v, want %+v", c, want)
	}
}

func TestClampCapsAboveMax(t *testing.T) {
	c := Coefficients{Diffusion: 500, Breed: 500, Spread: 500, SlopeResistance: 500, RoadGravity: 500}
	c.Clamp()
	if c.Diffusion != 100 {
		t.Errorf("Diffusion after Clamp = %v, want 100", c.Diffusion)
	}
}

func TestSweepTuplesCartesianProductOrder(t *testing.T) {
	s := &Scenario{
		DiffusionRange: SweepRange{Start: 1, Stop: 2, Step: 1},
		BreedRange:     SweepRange{Start: 10, Stop: 10, Step: 1},
		SpreadRange:    SweepRange{Start: 20, Stop: 20, Step: 1},
		SlopeRange:     SweepRange{Start: 1, Stop: 1, Step: 1},
		RoadGravRange:  SweepRange{Start: 1, Stop: 2, Step: 1},
	}
	tuples := SweepTuples(s)
	if len(tuples) != 4 { // 2 diffusion values x 2 road-gravity values
		t.Fatalf("len(SweepTuples) = %d, want 4", len(tuples))
	}
	want := []SweepTuple{
		{1, 10, 20, 1, 1},
		{1, 10, 20, 1, 2},
		{2, 10, 20, 1, 1},
		{2, 10, 20, 1, 2},
	}
	for i, w := range want {
		if tuples[i] != w {
			t.Errorf("tuples[%d] = %+v, want %+v", i, tuples[i], w)
		}
	}
}

func TestSweepRangeValuesInclusiveOfStop(t *testing.T) {
	r := SweepRange{Start: 1, Stop: 5, Step: 2}
	got := r.Values()
	want := []int{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("Values() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Values() = %v, want %v", got, want)
		}
	}
}

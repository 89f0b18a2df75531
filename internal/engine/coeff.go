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

// Coefficients holds the five scalar growth-behavior coefficients,
// spec.md §2/§4.3. A value of 0 is pinned to 1 by Clamp.
type Coefficients struct {
	Diffusion       float64
	Breed           float64
	Spread          float64
	SlopeResistance float64
	RoadGravity     float64
}

const (
	coeffMin = 1.0
	coeffMax = 100.0
)

func clampCoeff(v float64) float64 {
	if v == 0 {
		return coeffMin
	}
	if v < coeffMin {
		return coeffMin
	}
	if v > coeffMax {
		return coeffMax
	}
	return v
}

// Clamp pins every field into [1,100], treating 0 as 1.
func (c *Coefficients) Clamp() {
	c.Diffusion = clampCoeff(c.Diffusion)
	c.Breed = clampCoeff(c.Breed)
	c.Spread = clampCoeff(c.Spread)
	c.SlopeResistance = clampCoeff(c.SlopeResistance)
	c.RoadGravity = clampCoeff(c.RoadGravity)
}

// CoeffState is the coefficient state of spec.md §3/§4.3: Saved (start
// of Monte Carlo run) and Current (mutated during the run by
// self-modification). The calibration sweep ranges are not held here;
// they live on Scenario as SweepRange values, and each sweep point is a
// SweepTuple.
type CoeffState struct {
	Saved   Coefficients
	Current Coefficients
}

// ResetForRealization resets Current from Saved, as required at the
// start of each Monte Carlo realization (spec.md §4.3/§4.7 step 1).
func (cs *CoeffState) ResetForRealization() {
	cs.Current = cs.Saved
}

// SelfModify applies the end-of-year self-modification rule, spec.md
// §4.3. growthRate and percentUrban are the year's statistics.
func (cs *CoeffState) SelfModify(growthRate, percentUrban float64, s *Scenario) {
	c := &cs.Current
	switch {
	case growthRate > s.CriticalHigh && c.Diffusion < coeffMax:
		c.Diffusion *= s.Boom
		c.Breed *= s.Boom
		c.Spread *= s.Boom
		if c.Diffusion > coeffMax {
			c.Diffusion = coeffMax
		}
		if c.Breed > coeffMax {
			c.Breed = coeffMax
		}
		if c.Spread > coeffMax {
			c.Spread = coeffMax
		}
		c.SlopeResistance -= percentUrban * s.SlopeSensitivity
		if c.SlopeResistance < coeffMin {
			c.SlopeResistance = coeffMin
		}
		c.RoadGravity += percentUrban * s.RoadGravSensitivity
		if c.RoadGravity > coeffMax {
			c.RoadGravity = coeffMax
		}
	case growthRate < s.CriticalLow && c.Diffusion > 0:
		c.Diffusion *= s.Bust
		c.Spread *= s.Bust
		c.Breed *= s.Bust
		if c.Diffusion < coeffMin {
			c.Diffusion = coeffMin
		}
		if c.Spread < coeffMin {
			c.Spread = coeffMin
		}
		if c.Breed < coeffMin {
			c.Breed = coeffMin
		}
		c.SlopeResistance += percentUrban * s.SlopeSensitivity
		if c.SlopeResistance > coeffMax {
			c.SlopeResistance = coeffMax
		}
		c.RoadGravity -= percentUrban * s.RoadGravSensitivity
		if c.RoadGravity < coeffMin {
			c.RoadGravity = coeffMin
		}
	default:
		// growth rate in [CriticalLow, CriticalHigh]: leave Current
		// unchanged, making self-modification idempotent (spec.md §8).
	}
}

// SweepTuple is one point in the five-dimensional calibration sweep,
// spec.md glossary "Sweep tuple".
type SweepTuple struct {
	Diffusion, Breed, Spread, SlopeResistance, RoadGravity int
}

func (t SweepTuple) toCoefficients() Coefficients {
	return Coefficients{
		Diffusion:       float64(t.Diffusion),
		Breed:           float64(t.Breed),
		Spread:          float64(t.Spread),
		SlopeResistance: float64(t.SlopeResistance),
		RoadGravity:     float64(t.RoadGravity),
	}
}

// SweepTuples returns the full cartesian product of the scenario's five
// calibration ranges, in nested (diffusion outermost, road-gravity
// innermost) order, matching spec.md §4.7's "five nested sweeps".
func SweepTuples(s *Scenario) []SweepTuple {
	var out []SweepTuple
	for _, d := range s.DiffusionRange.Values() {
		for _, b := range s.BreedRange.Values() {
			for _, sp := range s.SpreadRange.Values() {
				for _, sl := range s.SlopeRange.Values() {
					for _, rg := range s.RoadGravRange.Values() {
						out = append(out, SweepTuple{d, b, sp, sl, rg})
					}
				}
			}
		}
	}
	return out
}

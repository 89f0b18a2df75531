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

package raster

import "testing"

func TestGridSetAndAt(t *testing.T) {
	g := New(4, 4)
	g.Set(1, 2, 7)
	if got := g.At(1, 2); got != 7 {
		t.Errorf("At(1,2) = %d, want 7", got)
	}
	if got := g.At(0, 0); got != 0 {
		t.Errorf("At(0,0) = %d, want 0", got)
	}
}

func TestGridHistogramMaxMin(t *testing.T) {
	g := New(2, 2)
	g.Set(0, 0, 5)
	g.Set(0, 1, 9)
	g.Set(1, 0, 1)
	g.Set(1, 1, 5)

	if got := g.Max(); got != 9 {
		t.Errorf("Max() = %d, want 9", got)
	}
	if got := g.Min(); got != 1 {
		t.Errorf("Min() = %d, want 1 (smallest value set)", got)
	}
	hist := g.Histogram()
	if hist[5] != 2 {
		t.Errorf("Histogram()[5] = %d, want 2", hist[5])
	}
}

func TestGridCloneIndependence(t *testing.T) {
	g := New(2, 2)
	g.Set(0, 0, 3)
	clone := g.Clone()
	clone.Set(0, 0, 9)
	if g.At(0, 0) != 3 {
		t.Errorf("mutating clone affected original: At(0,0) = %d, want 3", g.At(0, 0))
	}
}

func TestGridResetZeroesAllPixels(t *testing.T) {
	g := New(3, 3)
	for i := range g.Pix {
		g.Pix[i] = 42
	}
	g.MarkDirty()
	g.Reset()
	for i, v := range g.Pix {
		if v != 0 {
			t.Fatalf("Pix[%d] = %d after Reset, want 0", i, v)
		}
	}
}

func TestSameDims(t *testing.T) {
	a := New(3, 4)
	b := New(3, 4)
	c := New(4, 3)
	if !a.SameDims(b) {
		t.Error("SameDims(a,b) = false, want true")
	}
	if a.SameDims(c) {
		t.Error("SameDims(a,c) = true, want false")
	}
}

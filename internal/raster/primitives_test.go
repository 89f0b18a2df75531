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

func TestCountPixels(t *testing.T) {
	g := New(2, 2)
	g.Set(0, 0, 1)
	g.Set(0, 1, 1)
	g.Set(1, 0, 0)
	g.Set(1, 1, 2)

	cases := []struct {
		op   Op
		val  int
		want int
	}{
		{GT, 0, 3},
		{EQ, 1, 2},
		{EQ, 0, 1},
		{GE, 2, 1},
	}
	for _, c := range cases {
		if got := CountPixels(g, c.op, c.val); got != c.want {
			t.Errorf("CountPixels(op=%v,val=%d) = %d, want %d", c.op, c.val, got, c.want)
		}
	}
}

func TestCountNeighborsExcludesOutOfBounds(t *testing.T) {
	g := New(3, 3)
	g.Set(0, 1, 1)
	g.Set(1, 0, 1)
	n := CountNeighbors(g, 0, 0, EQ, 1)
	if n != 2 {
		t.Errorf("CountNeighbors(0,0) = %d, want 2 (only in-bounds neighbors counted)", n)
	}
}

func TestShuffle8IsAPermutation(t *testing.T) {
	calls := 0
	pick := func(n int) int {
		calls++
		return (calls * 3) % n
	}
	order := Shuffle8(pick)
	seen := make(map[int]bool)
	for _, v := range order {
		if v < 0 || v > 7 {
			t.Fatalf("Shuffle8 produced out-of-range index %d", v)
		}
		seen[v] = true
	}
	if len(seen) != 8 {
		t.Errorf("Shuffle8 produced %d distinct indices, want 8", len(seen))
	}
}

func TestGetNeighborStaysInBounds(t *testing.T) {
	g := New(3, 3)
	calls := 0
	pick := func(n int) int {
		calls++
		return 0
	}
	nr, nc, ok := GetNeighbor(g, 0, 0, pick)
	if !ok {
		t.Fatal("GetNeighbor at a corner returned ok=false, want a valid in-bounds neighbor")
	}
	if !g.InBounds(nr, nc) {
		t.Errorf("GetNeighbor returned out-of-bounds (%d,%d)", nr, nc)
	}
}

func TestIntersection(t *testing.T) {
	a := New(2, 2)
	b := New(2, 2)
	a.Set(0, 0, 1)
	b.Set(0, 0, 1)
	a.Set(0, 1, 1)
	b.Set(0, 1, 2)
	if got := Intersection(a, b); got != 3 {
		t.Errorf("Intersection = %d, want 3 (3 of 4 pixels match)", got)
	}
}

func TestNormalizeRoadsRebasesToGlobalMax(t *testing.T) {
	a := New(1, 2)
	a.Set(0, 0, 50)
	a.Set(0, 1, 100)
	b := New(1, 2)
	b.Set(0, 0, 25)
	b.Set(0, 1, 50)

	NormalizeRoads([]*Grid{a, b})

	if got := a.At(0, 1); got != 100 {
		t.Errorf("a's own max pixel = %d after normalize, want 100 (a has the global max)", got)
	}
	if got := b.At(0, 1); got != 50 {
		t.Errorf("b's pixel (local max, half of global max) = %d, want 50", got)
	}
}

func TestNormalizeRoadsAllZeroStaysZero(t *testing.T) {
	a := New(1, 2)
	NormalizeRoads([]*Grid{a})
	if a.Max() != 0 {
		t.Errorf("NormalizeRoads on all-zero road grids produced max %d, want 0", a.Max())
	}
}

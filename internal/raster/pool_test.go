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

func TestPoolAcquireReleaseScratch(t *testing.T) {
	p := NewPool(4, 4, 1, 2, 2)
	g := p.AcquireScratch(0, "test-1")
	if g == nil {
		t.Fatal("AcquireScratch returned nil")
	}
	if err := p.ReleaseScratch(0, g, "test-1-done"); err != nil {
		t.Fatalf("ReleaseScratch: %v", err)
	}
}

func TestPoolDoubleFreeDetected(t *testing.T) {
	p := NewPool(4, 4, 1, 2, 2)
	g := p.AcquireScratch(0, "dbl")
	if err := p.ReleaseScratch(0, g, "first-release"); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := p.ReleaseScratch(0, g, "second-release"); err == nil {
		t.Fatal("second ReleaseScratch of the same buffer succeeded, want double-free error")
	}
}

func TestPoolScratchExhaustionPanics(t *testing.T) {
	p := NewPool(2, 2, 1, 0, 1)
	p.AcquireScratch(0, "only-slot")
	defer func() {
		if recover() == nil {
			t.Fatal("AcquireScratch on an exhausted stack did not panic")
		}
	}()
	p.AcquireScratch(0, "should-panic")
}

func TestPoolCheckMemoryDeep(t *testing.T) {
	p := NewPool(3, 3, 1, 1, 2)
	g := p.AcquireScratch(0, "deep-check")
	if err := p.ReleaseScratch(0, g, "deep-check-done"); err != nil {
		t.Fatalf("ReleaseScratch: %v", err)
	}
	if err := p.CheckMemory(0, true); err != nil {
		t.Fatalf("CheckMemory(deep=true) = %v, want nil", err)
	}
}

func TestPoolMinScratchDepthTracksLowWaterMark(t *testing.T) {
	p := NewPool(2, 2, 1, 0, 3)
	a := p.AcquireScratch(0, "a")
	b := p.AcquireScratch(0, "b")
	if got := p.MinScratchDepth(0); got != 1 {
		t.Errorf("MinScratchDepth() = %d after 2 acquires from depth 3, want 1", got)
	}
	p.ReleaseScratch(0, a, "a-done")
	p.ReleaseScratch(0, b, "b-done")
}

func TestAcquireInputSharedAcrossCalls(t *testing.T) {
	p := NewPool(2, 2, 1, 0, 0)
	a := p.AcquireInput("urban1950")
	b := p.AcquireInput("urban1950")
	if a != b {
		t.Error("AcquireInput returned distinct buffers for the same tag")
	}
}

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

import (
	"fmt"
	"sync"
)

// invalidMarker is the sentinel value written into released scratch
// buffers and into the guard words between slots, per spec.md §4.1.
const invalidMarker = 0xAA

// slot is one pool-owned raster buffer plus its bookkeeping.
type slot struct {
	grid    *Grid
	free    bool
	owner   string // current owner tag
	prevOwner string // previous owner tag, kept for double-free diagnostics
	releaseSite string
	sentinelPre, sentinelPost uint8
}

func newSlot(rows, cols int) *slot {
	return &slot{
		grid:        New(rows, cols),
		free:        true,
		sentinelPre: invalidMarker,
		sentinelPost: invalidMarker,
	}
}

func (s *slot) fillInvalid() {
	for i := range s.grid.Pix {
		s.grid.Pix[i] = invalidMarker
	}
}

// checkSentinels reports an error if either guard word has been
// corrupted by an out-of-bounds write.
func (s *slot) checkSentinels(tag string) error {
	if s.sentinelPre != invalidMarker || s.sentinelPost != invalidMarker {
		return fmt.Errorf("sleuth: raster pool: sentinel corruption around slot %q (pre=%x post=%x)",
			tag, s.sentinelPre, s.sentinelPost)
	}
	return nil
}

// threadPool is the set of persistent ("pgrid") and scratch ("wgrid")
// free-stacks owned by a single worker thread, per spec.md §4.1/§5.
type threadPool struct {
	rows, cols int

	persistent     []*slot // all persistent slots, for bookkeeping
	persistentFree []*slot // free-stack (LIFO)

	scratch     []*slot
	scratchFree []*slot // free-stack (LIFO)

	minScratchDepth int // low-water mark, for capacity tuning
}

// Pool is the raster arena: a fixed set of input-raster slots shared by
// the whole process, plus one threadPool per worker thread.
type Pool struct {
	rows, cols int

	mu     sync.Mutex
	inputs map[string]*Grid // acquired once at init, shared read-only

	threads []*threadPool
}

// NewPool allocates a pool sized for rasters of rows x cols, with
// nPersistent persistent slots and nScratch scratch slots per worker
// thread (spec.md §3 "NUM_WORKING_GRIDS" sizes the scratch class).
func NewPool(rows, cols, workers, nPersistent, nScratch int) *Pool {
	p := &Pool{
		rows:    rows,
		cols:    cols,
		inputs:  make(map[string]*Grid),
		threads: make([]*threadPool, workers),
	}
	for w := range p.threads {
		tp := &threadPool{rows: rows, cols: cols}
		for i := 0; i < nPersistent; i++ {
			s := newSlot(rows, cols)
			tp.persistent = append(tp.persistent, s)
			tp.persistentFree = append(tp.persistentFree, s)
		}
		for i := 0; i < nScratch; i++ {
			s := newSlot(rows, cols)
			s.fillInvalid()
			tp.scratch = append(tp.scratch, s)
			tp.scratchFree = append(tp.scratchFree, s)
		}
		tp.minScratchDepth = nScratch
		p.threads[w] = tp
	}
	return p
}

// AcquireInput hands out (creating if necessary) the shared, read-only
// raster buffer for the named input layer. Every input buffer has the
// pool's rows x cols; a repeated tag returns the buffer already handed
// out under it.
func (p *Pool) AcquireInput(tag string) *Grid {
	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok := p.inputs[tag]; ok {
		return g
	}
	g := New(p.rows, p.cols)
	g.Filename = tag
	p.inputs[tag] = g
	return g
}

func (p *Pool) thread(worker int) *threadPool {
	if worker < 0 || worker >= len(p.threads) {
		panic(fmt.Sprintf("sleuth: raster pool: worker index %d out of range [0,%d)", worker, len(p.threads)))
	}
	return p.threads[worker]
}

// AcquirePersistent pops a raster buffer from worker's persistent
// free-stack. Fatal (panics) on exhaustion, per spec.md §4.1.
func (p *Pool) AcquirePersistent(worker int, tag string) *Grid {
	tp := p.thread(worker)
	n := len(tp.persistentFree)
	if n == 0 {
		panic(fmt.Sprintf("sleuth: raster pool: persistent stack exhausted (worker %d, tag %q)", worker, tag))
	}
	s := tp.persistentFree[n-1]
	tp.persistentFree = tp.persistentFree[:n-1]
	s.free = false
	s.prevOwner, s.owner = s.owner, tag
	return s.grid
}

// ReleasePersistent returns a persistent buffer to its worker's
// free-stack. Persistent buffers are not released until the Monte
// Carlo realization that acquired them completes.
func (p *Pool) ReleasePersistent(worker int, g *Grid) error {
	return p.release(p.thread(worker), p.thread(worker).persistent, &p.thread(worker).persistentFree, g, "release-site-unspecified")
}

// AcquireScratch pops a raster buffer from worker's scratch free-stack.
// Fatal (panics) on exhaustion.
func (p *Pool) AcquireScratch(worker int, tag string) *Grid {
	tp := p.thread(worker)
	n := len(tp.scratchFree)
	if n == 0 {
		panic(fmt.Sprintf("sleuth: raster pool: scratch stack exhausted (worker %d, tag %q)", worker, tag))
	}
	s := tp.scratchFree[n-1]
	tp.scratchFree = tp.scratchFree[:n-1]
	s.free = false
	s.prevOwner, s.owner = s.owner, tag
	if n-1 < tp.minScratchDepth {
		tp.minScratchDepth = n - 1
	}
	return s.grid
}

// ReleaseScratch returns a scratch buffer to its worker's free-stack,
// overwriting it with the invalid-marker sentinel. releaseSite
// identifies the call site, for double-free diagnostics.
func (p *Pool) ReleaseScratch(worker int, g *Grid, releaseSite string) error {
	tp := p.thread(worker)
	return p.release(tp, tp.scratch, &tp.scratchFree, g, releaseSite)
}

func (p *Pool) release(tp *threadPool, all []*slot, free *[]*slot, g *Grid, releaseSite string) error {
	for _, s := range all {
		if s.grid == g {
			if s.free {
				return fmt.Errorf("sleuth: raster pool: double free of slot owned by %q (previously released at %q), release attempted at %q",
					s.owner, s.releaseSite, releaseSite)
			}
			s.free = true
			s.releaseSite = releaseSite
			s.fillInvalid()
			*free = append(*free, s)
			return nil
		}
	}
	return fmt.Errorf("sleuth: raster pool: release of buffer not owned by this pool (site %q)", releaseSite)
}

// MinScratchDepth returns the minimum remaining scratch-stack depth
// ever observed for worker, used to inform NUM_WORKING_GRIDS tuning.
func (p *Pool) MinScratchDepth(worker int) int {
	return p.thread(worker).minScratchDepth
}

// CheckMemory audits every sentinel word and every buffer currently on
// the free stack for worker, per spec.md §4.1. deep, when true, also
// verifies that every free scratch buffer contains only invalid-marker
// bytes (an O(n) check, intended for debug builds / tests).
func (p *Pool) CheckMemory(worker int, deep bool) error {
	tp := p.thread(worker)
	for _, s := range tp.persistent {
		if err := s.checkSentinels(s.owner); err != nil {
			return err
		}
	}
	for _, s := range tp.scratch {
		if err := s.checkSentinels(s.owner); err != nil {
			return err
		}
	}
	if deep {
		for _, s := range tp.scratchFree {
			for _, v := range s.grid.Pix {
				if v != invalidMarker {
					return fmt.Errorf("sleuth: raster pool: free scratch slot (last owner %q) contains non-sentinel byte %x", s.owner, v)
				}
			}
		}
	}
	return nil
}

// Workers returns the number of worker threads this pool was built for.
func (p *Pool) Workers() int { return len(p.threads) }

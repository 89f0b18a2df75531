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
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/sleuth-model/sleuth/internal/raster"
	"gonum.org/v1/gonum/mat"
)

// Inputs bundles the static, read-only rasters every realization shares:
// the dated urban/road/land-cover layers, the exclusion and slope
// layers, and (when land-cover processing is enabled) the land-class
// transition matrix, spec.md §3.
type Inputs struct {
	Urban, Road, Landuse []*raster.Grid // parallel to Scenario's DatedLayer slices
	Excluded, Slope      *raster.Grid
	Background           *raster.Grid

	Classes    LandClassTable
	Transition *mat.Dense // nil if land-cover processing is disabled
}

// Engine is the per-process simulation context: the scenario
// configuration, the shared inputs, and a raster.Pool sized for the
// worker count, replacing the source's file-scope static/global state
// (spec.md §9's first design note).
type Engine struct {
	Scenario *Scenario
	Inputs   Inputs
	Pool     *raster.Pool

	Log *logrus.Logger
}

// New builds an Engine, sizing the raster pool from the scenario's
// worker count and NUM_WORKING_GRIDS.
func New(s *Scenario, in Inputs, workers int, log *logrus.Logger) (*Engine, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	rows, cols := 0, 0
	if len(in.Urban) > 0 {
		rows, cols = in.Urban[0].Rows, in.Urban[0].Cols
	}
	for _, g := range in.Urban {
		if !g.SameDims(in.Urban[0]) {
			return nil, fmt.Errorf("sleuth: engine: urban layer %q dimensions mismatch", g.Filename)
		}
	}
	const nPersistent = 4 // per worker; AcquireWorkerState takes three (z, delta, cumulate)
	nScratch := s.NumWorkingGrids
	if nScratch <= 0 {
		nScratch = 6
	}
	pool := raster.NewPool(rows, cols, workers, nPersistent, nScratch)

	if s.LandCoverEnabled() && len(in.Landuse) > 0 && in.Slope != nil {
		in.Classes.ComputeAvgSlope(in.Landuse[0], in.Slope)
	}

	if log == nil {
		log = logrus.New()
	}
	return &Engine{Scenario: s, Inputs: in, Pool: pool, Log: log}, nil
}

// WorkerState is the per-worker, per-Monte-Carlo working state acquired
// from the pool at the start of a realization and released at its end.
type WorkerState struct {
	Worker int

	Z, Delta, Cumulate *raster.Grid
	Deltatron          DeltatronState

	Coeffs CoeffState
	Stats  *MonteCarloAccumulator

	// YearImage, if non-nil, is invoked once per simulated year from
	// RunRealization with that year's phase-tagged delta grid and (when
	// land-cover processing is enabled) the deltatron-age grid, letting
	// a caller emit the ViewGrowthTypes/ViewDeltatronAging diagnostic
	// images of spec.md §6 for a representative Monte Carlo realization.
	YearImage func(year int, delta, deltatronAge *raster.Grid)

	// ClassProb accumulates, year by year, which land-cover class each
	// pixel landed in, spec.md §4.7's prediction annual-class-
	// probability counters. It also backs the cumulative-probability-
	// class raster drv_fmatch compares against the observed final
	// land-use layer (original_source/src/driver.c), so it is non-nil
	// whenever land-cover processing is enabled, not only when
	// predicting. Nil when land-cover processing is disabled.
	ClassProb *ClassProbabilityAccumulator
}

// AcquireWorkerState pulls the persistent buffers a realization needs
// from the pool and seeds the coefficient state from the sweep tuple.
func (e *Engine) AcquireWorkerState(worker int, tuple SweepTuple) *WorkerState {
	ws := &WorkerState{Worker: worker}
	ws.Z = e.Pool.AcquirePersistent(worker, "z")
	ws.Delta = e.Pool.AcquirePersistent(worker, "delta")
	ws.Cumulate = e.Pool.AcquirePersistent(worker, "cumulate")
	ws.Cumulate.Reset() // AcquirePersistent does not zero a reused slot; this tuple's count starts fresh

	ws.Coeffs.Saved = tuple.toCoefficients()
	ws.Coeffs.Saved.Clamp()
	ws.Stats = NewMonteCarloAccumulator()

	if e.Scenario.LandCoverEnabled() {
		ws.Deltatron.InitDeltatron(ws.Z.Rows, ws.Z.Cols, e.Inputs.Landuse[0])
		ws.ClassProb = NewClassProbabilityAccumulator(ws.Z.Rows, ws.Z.Cols, len(e.Inputs.Classes.Classes))
	}
	return ws
}

// Release returns worker's persistent buffers to the pool.
func (e *Engine) Release(ws *WorkerState) {
	_ = e.Pool.ReleasePersistent(ws.Worker, ws.Z)
	_ = e.Pool.ReleasePersistent(ws.Worker, ws.Delta)
	_ = e.Pool.ReleasePersistent(ws.Worker, ws.Cumulate)
}

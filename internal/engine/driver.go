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
	"math"
	"runtime"
	"sync"

	"github.com/kr/pretty"

	"github.com/sleuth-model/sleuth/internal/raster"
	"github.com/sleuth-model/sleuth/internal/rng"
)

// SlopeWeightTable builds the per-value [0,255] slope-resistance weight
// table used by urbanize, spec.md §4.4: w(s) = 1-(1-s/CRITICAL_SLOPE)^e
// for s < CRITICAL_SLOPE, else 1, with e = slope_resistance/(MAX/2).
func SlopeWeightTable(slopeResistance, criticalSlope float64) [256]float64 {
	var w [256]float64
	e := slopeResistance / (coeffMax / 2)
	for v := 0; v < 256; v++ {
		s := float64(v)
		if s >= criticalSlope || criticalSlope <= 0 {
			w[v] = 1
			continue
		}
		w[v] = 1 - math.Pow(1-s/criticalSlope, e)
	}
	return w
}

// RealizationResult is the per-year statistics series produced by one
// Monte Carlo realization of one sweep tuple.
type RealizationResult struct {
	Tuple SweepTuple
	Years []YearStats
}

// RunRealization runs one full Monte Carlo realization: it resets the
// coefficient state, walks every simulated year applying growth and
// (when enabled) the deltatron sub-model, self-modifies the
// coefficients, and accumulates per-year statistics, per spec.md §4.7
// step 1.
func RunRealization(e *Engine, ws *WorkerState, realization int, startYear, stopYear int) RealizationResult {
	s := e.Scenario
	ws.Coeffs.ResetForRealization()
	ws.Delta.Reset()
	if s.LandCoverEnabled() && len(e.Inputs.Landuse) > 0 {
		initialLand := e.Inputs.Landuse[0]
		if s.Mode == Predicting && len(e.Inputs.Landuse) > 1 {
			initialLand = e.Inputs.Landuse[1]
		}
		ws.Deltatron.InitDeltatron(ws.Z.Rows, ws.Z.Cols, initialLand)
	}

	rs := rng.ForRealization(s.RandomSeed, tupleIndex(ws.Coeffs.Saved), realization)

	var result RealizationResult
	result.Tuple = SweepTuple{
		Diffusion:       int(ws.Coeffs.Saved.Diffusion),
		Breed:           int(ws.Coeffs.Saved.Breed),
		Spread:          int(ws.Coeffs.Saved.Spread),
		SlopeResistance: int(ws.Coeffs.Saved.SlopeResistance),
		RoadGravity:     int(ws.Coeffs.Saved.RoadGravity),
	}

	for year := startYear; year <= stopYear; year++ {
		roadLayer, hasRoad := roadGridFor(e, s, year)
		var roads *raster.Grid
		if hasRoad {
			roads = roadLayer
		} else {
			roads = e.Inputs.Road[0]
		}

		weights := SlopeWeightTable(ws.Coeffs.Current.SlopeResistance, s.CriticalSlope)
		ws.Delta.Reset()
		yg := RunYear(ws.Z, ws.Delta, e.Inputs.Slope, e.Inputs.Excluded, roads, weights, ws.Coeffs.Current, rs)

		if s.LandCoverEnabled() && e.Inputs.Transition != nil {
			RunDeltatron(&ws.Deltatron, ws.Z, e.Inputs.Slope, &e.Inputs.Classes, e.Inputs.Transition, yg.NumGrowthPix, rs, e.Pool, ws.Worker)
			if ws.ClassProb != nil {
				ws.ClassProb.Add(ws.Deltatron.Land, &e.Inputs.Classes)
			}
		}

		if ws.YearImage != nil {
			ws.YearImage(year, ws.Delta, ws.Deltatron.Age)
		}

		ys := ComputeYearStats(ws.Z, roads, e.Inputs.Slope, year, ws.Coeffs.Current, yg)
		if ws.Deltatron.initialized {
			ys.Deltatron = DeltatronStats{Phase1: ws.Deltatron.Phase1Count, Phase2: ws.Deltatron.Phase2Count}
		}
		if obs, ok := observedUrban(e, year); ok {
			ys.LeeSallee = LeeSallee(ws.Z, obs)
		}
		growthRate := 100 * float64(yg.NumGrowthPix) / ys.Area
		if ys.Area == 0 {
			growthRate = 0
		}
		ys.GrowthRate = growthRate
		ws.Coeffs.SelfModify(growthRate, ys.PercentUrban, s)

		result.Years = append(result.Years, ys)
	}
	return result
}

func tupleIndex(c Coefficients) int {
	// A stable, deterministic mixing of the five coefficients into one
	// int, used only to key the RNG stream derivation (spec.md §5); the
	// actual coefficient values are carried separately in the result.
	return int(c.Diffusion)*1_000_000 + int(c.Breed)*10_000 + int(c.Spread)*100 + int(c.SlopeResistance)*10 + int(c.RoadGravity)
}

func roadGridFor(e *Engine, s *Scenario, year int) (*raster.Grid, bool) {
	layer, ok := s.RoadYearFor(year)
	if !ok {
		return nil, false
	}
	for i, l := range s.RoadLayers {
		if l == layer && i < len(e.Inputs.Road) {
			return e.Inputs.Road[i], true
		}
	}
	return nil, false
}

func observedUrban(e *Engine, year int) (*raster.Grid, bool) {
	for i, l := range e.Scenario.UrbanLayers {
		if l.Year == year && i < len(e.Inputs.Urban) {
			return e.Inputs.Urban[i], true
		}
	}
	return nil, false
}

// SweepObserver receives per-tuple and per-realization hooks as a
// sweep proceeds, used to persist the restart checkpoint and the
// coeff/control-stats/avg/std-dev logs of spec.md §6 without coupling
// the driver to any particular storage format. RunSweep invokes these
// from multiple goroutines concurrently, one per in-flight tuple; a
// non-nil SweepObserver's callbacks must be safe for concurrent use.
type SweepObserver struct {
	// BeforeTuple fires once per tuple, before its realizations run,
	// spec.md §4.7: "write a restart checkpoint ... before each tuple".
	BeforeTuple func(tuple SweepTuple, seed int64, run int)
	// AfterRealization fires once per completed realization, in run
	// order, with that realization's per-year series.
	AfterRealization func(run int, res RealizationResult)
	// AfterTuple fires once per tuple after every realization has
	// completed, with the tuple's accumulated statistics.
	AfterTuple func(tuple SweepTuple, acc *MonteCarloAccumulator)
	// YearImage fires once per simulated year of the last (most
	// representative) Monte Carlo realization of a tuple, in
	// Predicting/Testing mode only, spec.md §6's optional per-year
	// growth-type/deltatron-age image emission (Open Question 3).
	YearImage func(tuple SweepTuple, run, year int, delta, deltatronAge *raster.Grid)
}

// RunSweepTuple runs MonteCarloIterations realizations of one sweep
// tuple on a single worker, returning the per-year running accumulator,
// every realization's per-year series, and the normalized cumulative-
// urban/class-probability prediction outputs, spec.md §4.7 steps 1-3.
// The calibration aggregate is not computed here (RunSweep builds it
// from these results via scoreFromAccumulator). run
// identifies this tuple's position for BeforeTuple's checkpoint. obs
// may be nil.
func RunSweepTuple(e *Engine, worker int, tuple SweepTuple, startYear, stopYear int, run int, obs *SweepObserver) (*MonteCarloAccumulator, []RealizationResult, CumulatePrediction) {
	if obs != nil && obs.BeforeTuple != nil {
		obs.BeforeTuple(tuple, e.Scenario.RandomSeed, run)
	}

	acc := NewMonteCarloAccumulator()
	ws := e.AcquireWorkerState(worker, tuple)
	defer e.Release(ws)

	emitImages := obs != nil && obs.YearImage != nil &&
		(e.Scenario.Mode == Predicting || e.Scenario.Mode == Testing)

	var all []RealizationResult
	for m := 0; m < e.Scenario.MonteCarloIterations; m++ {
		if len(e.Inputs.Urban) > 0 {
			raster.Copy(e.Inputs.Urban[0], ws.Z)
		}
		if emitImages && m == e.Scenario.MonteCarloIterations-1 {
			mc := m
			ws.YearImage = func(year int, delta, deltatronAge *raster.Grid) {
				obs.YearImage(tuple, mc, year, delta, deltatronAge)
			}
		} else {
			ws.YearImage = nil
		}
		res := RunRealization(e, ws, m, startYear, stopYear)
		for _, ys := range res.Years {
			acc.Add(ys)
		}
		all = append(all, res)
		if obs != nil && obs.AfterRealization != nil {
			obs.AfterRealization(m, res)
		}

		// Cumulate observes the final urban state of each realization,
		// once per realization (original_source/src/driver.c's
		// drv_monte_carlo), not once per simulated year.
		for i, v := range ws.Z.Pix {
			if v != 0 {
				ws.Cumulate.Pix[i]++
			}
		}
		ws.Cumulate.MarkDirty()
	}

	cp := CumulatePrediction{Urban: raster.New(ws.Z.Rows, ws.Z.Cols)}
	n := e.Scenario.MonteCarloIterations
	if n > 0 {
		for i, v := range ws.Cumulate.Pix {
			pct := 100 * int(v) / n
			if pct > 255 {
				pct = 255
			}
			cp.Urban.Pix[i] = uint8(pct)
		}
	}
	cp.Urban.MarkDirty()
	if ws.ClassProb != nil {
		cp.MostProbable, cp.Uncertainty = ws.ClassProb.MostProbable(&e.Inputs.Classes)
	}

	if obs != nil && obs.AfterTuple != nil {
		obs.AfterTuple(tuple, acc)
	}
	return acc, all, cp
}

// RunSweep fans the calibration/testing sweep out across goroutines,
// one per tuple of this rank's share (sweep tuple i belongs to rank
// i mod worldSize), with at most Pool.Workers() goroutines in flight
// (runtime.GOMAXPROCS(0) if the pool reports no workers). Tuple idx
// runs on worker slot idx mod workers, and each slot runs one tuple at
// a time, so no two tuples share a worker's pool grids. In Testing mode
// only the first sweep tuple is run. Each tuple's result is stored at
// its own index of the returned slice, so ordering is independent of
// scheduling (spec.md §5).
func RunSweep(e *Engine, rank, worldSize int, startYear, stopYear int, obs *SweepObserver) ([]ScoredTuple, error) {
	tuples := SweepTuples(e.Scenario)
	if e.Scenario.Mode == Testing && len(tuples) > 1 {
		tuples = tuples[:1]
	}
	var mine []SweepTuple
	for i, t := range tuples {
		if i%worldSize == rank {
			mine = append(mine, t)
		}
	}

	workers := e.Pool.Workers()
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]ScoredTuple, len(mine))
	errs := make([]error, len(mine))

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	workerLocks := make([]sync.Mutex, workers)
	for idx, tuple := range mine {
		idx, tuple := idx, tuple
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			worker := idx % workers
			workerLocks[worker].Lock()
			defer workerLocks[worker].Unlock()
			func() {
				defer func() {
					if r := recover(); r != nil {
						errs[idx] = fmt.Errorf("sleuth: engine: sweep tuple %s panicked: %v", pretty.Sprint(tuple), r)
					}
				}()
				acc, realizations, cp := RunSweepTuple(e, worker, tuple, startYear, stopYear, idx, obs)
				results[idx] = ScoredTuple{Tuple: tuple, Score: scoreFromAccumulator(e, acc, realizations, cp)}
			}()
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// scoreFromAccumulator builds the calibration aggregate of spec.md §3
// from one tuple's accumulated statistics, comparing against the
// scenario's final observed urban layer.
func scoreFromAccumulator(e *Engine, acc *MonteCarloAccumulator, realizations []RealizationResult, cp CumulatePrediction) CalibrationAggregate {
	if len(e.Inputs.Urban) == 0 || len(realizations) == 0 {
		return CalibrationAggregate{}
	}
	finalYear := e.Scenario.UrbanLayers[len(e.Scenario.UrbanLayers)-1].Year
	actualFinal := float64(raster.CountPixels(e.Inputs.Urban[len(e.Inputs.Urban)-1], raster.GT, 0))
	simFinal := acc.Mean(finalYear, "area")

	var obsYears []int
	var edgesObs, clustersObs, popObs, xmeanObs, ymeanObs, radObs, slopeObs, csObs, puObs []float64
	for i, l := range e.Scenario.UrbanLayers {
		if i >= len(e.Inputs.Urban) {
			break
		}
		g := e.Inputs.Urban[i]
		ys := ComputeYearStats(g, nil, e.Inputs.Slope, l.Year, Coefficients{}, YearGrowth{})
		obsYears = append(obsYears, l.Year)
		popObs = append(popObs, ys.Area)
		edgesObs = append(edgesObs, float64(ys.Edges))
		clustersObs = append(clustersObs, float64(ys.Clusters))
		xmeanObs = append(xmeanObs, ys.Xmean)
		ymeanObs = append(ymeanObs, ys.Ymean)
		radObs = append(radObs, ys.Rad)
		slopeObs = append(slopeObs, ys.Slope)
		csObs = append(csObs, ys.MeanClusterSize)
		puObs = append(puObs, ys.PercentUrban)
	}

	lastRealization := realizations[len(realizations)-1]
	fmatch := 1.0 // drv_fmatch is neutral when land-cover processing is off
	var leesalee float64
	if len(lastRealization.Years) > 0 {
		last := lastRealization.Years[len(lastRealization.Years)-1]
		leesalee = last.LeeSallee
	}
	if e.Scenario.LandCoverEnabled() && cp.MostProbable != nil && len(e.Inputs.Landuse) > 0 {
		finalLanduse := e.Inputs.Landuse[len(e.Inputs.Landuse)-1]
		total := len(finalLanduse.Pix)
		if total > 0 {
			fmatch = float64(raster.Intersection(cp.MostProbable, finalLanduse)) / float64(total)
		}
	}

	mk := func(years []int, vals []float64) ObservedSeries { return ObservedSeries{Years: years, Values: vals} }
	return AggregateCalibration(acc, actualFinal, simFinal, leesalee, fmatch,
		mk(obsYears, edgesObs), mk(obsYears, clustersObs), mk(obsYears, popObs),
		mk(obsYears, xmeanObs), mk(obsYears, ymeanObs), mk(obsYears, radObs),
		mk(obsYears, slopeObs), mk(obsYears, csObs), mk(obsYears, puObs))
}

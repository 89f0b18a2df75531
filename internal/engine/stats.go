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
	"math"
	"sort"

	gostats "github.com/GaryBoone/GoStats/stats"
	"github.com/sleuth-model/sleuth/internal/raster"
	"gonum.org/v1/gonum/stat"
)

// YearStats is the per-year, per-Monte-Carlo urbanization statistics
// record of spec.md §3.
type YearStats struct {
	Year int

	SNG, SDC, OG, RT int // phase pixel counts
	Pop              int
	Area             float64
	Edges            int
	Clusters         int
	Xmean, Ymean     float64
	Rad              float64
	Slope            float64
	MeanClusterSize  float64

	Diffusion, Spread, Breed, SlopeResistance, RoadGravity float64

	PercentUrban, PercentRoad, GrowthRate float64
	LeeSallee                             float64 // only set when an observed year matches
	NumGrowthPix                          int

	Deltatron DeltatronStats // supplemented, SPEC_FULL.md §4.5
}

// DeltatronStats is the supplemented per-year deltatron diagnostic
// counter, SPEC_FULL.md §4.5.
type DeltatronStats struct {
	Phase1, Phase2 int
}

// ComputeYearStats computes the spatial statistics of spec.md §4.6 from
// the urban grid z (post-growth) for one simulated year.
func ComputeYearStats(z, roads, slope *raster.Grid, year int, coeffs Coefficients, yg YearGrowth) YearStats {
	ys := YearStats{
		Year:            year,
		SNG:             yg.Counters.Spontaneous,
		SDC:             yg.Counters.NewSpreadCenter,
		OG:              yg.Counters.Edge,
		RT:              yg.Counters.Road,
		NumGrowthPix:    yg.NumGrowthPix,
		Slope:           yg.AverageSlope,
		Diffusion:       coeffs.Diffusion,
		Spread:          coeffs.Spread,
		Breed:           coeffs.Breed,
		SlopeResistance: coeffs.SlopeResistance,
		RoadGravity:     coeffs.RoadGravity,
	}

	area := raster.CountPixels(z, raster.GT, 0)
	ys.Pop = area
	ys.Area = float64(area)
	ys.PercentUrban = 100 * float64(area) / float64(z.Rows*z.Cols)
	if roads != nil {
		roadPix := raster.CountPixels(roads, raster.GT, 0)
		ys.PercentRoad = 100 * float64(roadPix) / float64(roads.Rows*roads.Cols)
	}

	ys.Edges = countEdges(z)
	ys.Clusters, ys.MeanClusterSize = countClusters(z)
	ys.Xmean, ys.Ymean = centroid(z)
	ys.Rad = math.Sqrt(ys.Area / math.Pi)

	return ys
}

// countEdges counts urban pixels having any 4-neighbor equal to 0,
// spec.md §4.6.
func countEdges(z *raster.Grid) int {
	n := 0
	for r := 0; r < z.Rows; r++ {
		for c := 0; c < z.Cols; c++ {
			if z.At(r, c) == 0 {
				continue
			}
			if hasZero4Neighbor(z, r, c) {
				n++
			}
		}
	}
	return n
}

func hasZero4Neighbor(z *raster.Grid, r, c int) bool {
	offs := [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	for _, d := range offs {
		nr, nc := r+d[0], c+d[1]
		if !z.InBounds(nr, nc) || z.At(nr, nc) == 0 {
			return true
		}
	}
	return false
}

// countClusters performs a 4-connected component count over the urban
// mask, borders forced to 0 (interior only), using a BFS over a queue
// sized generously, per spec.md §4.6.
func countClusters(z *raster.Grid) (clusters int, meanSize float64) {
	rows, cols := z.Rows, z.Cols
	visited := make([]bool, rows*cols)

	markBorderVisited := func() {
		for c := 0; c < cols; c++ {
			visited[c] = true
			visited[(rows-1)*cols+c] = true
		}
		for r := 0; r < rows; r++ {
			visited[r*cols] = true
			visited[r*cols+cols-1] = true
		}
	}
	if rows > 1 && cols > 1 {
		markBorderVisited()
	}

	const queueCapacity = 5000 // spec.md §4.6: source uses 5000
	queue := make([]raster.GridPoint, 0, queueCapacity)
	var sizes []int

	for r := 1; r < rows-1; r++ {
		for c := 1; c < cols-1; c++ {
			idx := r*cols + c
			if visited[idx] || z.At(r, c) == 0 {
				continue
			}
			size := 0
			queue = queue[:0]
			queue = append(queue, raster.GridPoint{R: r, C: c})
			visited[idx] = true
			for head := 0; head < len(queue); head++ {
				p := queue[head]
				size++
				offs := [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
				for _, d := range offs {
					nr, nc := p.R+d[0], p.C+d[1]
					if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
						continue
					}
					nidx := nr*cols + nc
					if visited[nidx] || z.At(nr, nc) == 0 {
						continue
					}
					visited[nidx] = true
					queue = append(queue, raster.GridPoint{R: nr, C: nc})
				}
			}
			sizes = append(sizes, size)
		}
	}
	if len(sizes) == 0 {
		return 0, 0
	}
	total := 0
	for _, s := range sizes {
		total += s
	}
	return len(sizes), float64(total) / float64(len(sizes))
}

func centroid(z *raster.Grid) (xmean, ymean float64) {
	var sumX, sumY float64
	n := 0
	for r := 0; r < z.Rows; r++ {
		for c := 0; c < z.Cols; c++ {
			if z.At(r, c) > 0 {
				sumX += float64(c)
				sumY += float64(r)
				n++
			}
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sumX / float64(n), sumY / float64(n)
}

// LeeSallee computes the Jaccard similarity between two binary urban
// masks, spec.md §4.6/glossary.
func LeeSallee(sim, observed *raster.Grid) float64 {
	var inter, union int
	for i := range sim.Pix {
		a := sim.Pix[i] > 0
		b := observed.Pix[i] > 0
		if a && b {
			inter++
		}
		if a || b {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// RunningStat accumulates a running mean/standard-deviation using
// github.com/GaryBoone/GoStats, spec.md §3's "running sums and (by
// square-root) running standard deviations".
type RunningStat struct {
	s gostats.Stats
}

// Update adds one observation.
func (r *RunningStat) Update(v float64) { r.s.Update(v) }

// Mean returns the running mean.
func (r *RunningStat) Mean() float64 { return r.s.Mean() }

// StdDev returns the running sample standard deviation.
func (r *RunningStat) StdDev() float64 { return r.s.SampleStandardDeviation() }

// Count returns the number of observations accumulated.
func (r *RunningStat) Count() int { return int(r.s.Count()) }

// MonteCarloAccumulator holds one RunningStat per tracked field, per
// simulated year, across the Monte Carlo realizations of one sweep
// tuple (spec.md §3 "Per-Monte-Carlo, per-year: running sums...").
type MonteCarloAccumulator struct {
	byYear map[int]*yearAccumulator
}

type yearAccumulator struct {
	Area, Edges, Clusters, Xmean, Ymean, Rad, Slope, MeanClusterSize, PercentUrban RunningStat
}

// NewMonteCarloAccumulator returns an empty accumulator.
func NewMonteCarloAccumulator() *MonteCarloAccumulator {
	return &MonteCarloAccumulator{byYear: make(map[int]*yearAccumulator)}
}

// Add folds one Monte Carlo realization's year statistics into the
// running totals for that year.
func (a *MonteCarloAccumulator) Add(ys YearStats) {
	ya, ok := a.byYear[ys.Year]
	if !ok {
		ya = &yearAccumulator{}
		a.byYear[ys.Year] = ya
	}
	ya.Area.Update(ys.Area)
	ya.Edges.Update(float64(ys.Edges))
	ya.Clusters.Update(float64(ys.Clusters))
	ya.Xmean.Update(ys.Xmean)
	ya.Ymean.Update(ys.Ymean)
	ya.Rad.Update(ys.Rad)
	ya.Slope.Update(ys.Slope)
	ya.MeanClusterSize.Update(ys.MeanClusterSize)
	ya.PercentUrban.Update(ys.PercentUrban)
}

// Years returns the set of years with accumulated statistics, sorted
// ascending.
func (a *MonteCarloAccumulator) Years() []int {
	years := make([]int, 0, len(a.byYear))
	for y := range a.byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Mean returns the running mean of field for the given year. field is
// one of "area","edges","clusters","xmean","ymean","rad","slope",
// "mean_cluster_size","percent_urban".
func (a *MonteCarloAccumulator) Mean(year int, field string) float64 {
	ya, ok := a.byYear[year]
	if !ok {
		return 0
	}
	switch field {
	case "area":
		return ya.Area.Mean()
	case "edges":
		return ya.Edges.Mean()
	case "clusters":
		return ya.Clusters.Mean()
	case "xmean":
		return ya.Xmean.Mean()
	case "ymean":
		return ya.Ymean.Mean()
	case "rad":
		return ya.Rad.Mean()
	case "slope":
		return ya.Slope.Mean()
	case "mean_cluster_size":
		return ya.MeanClusterSize.Mean()
	case "percent_urban":
		return ya.PercentUrban.Mean()
	default:
		return 0
	}
}

// StdDev returns the running sample standard deviation of field for the
// given year, mirroring Mean's field set.
func (a *MonteCarloAccumulator) StdDev(year int, field string) float64 {
	ya, ok := a.byYear[year]
	if !ok {
		return 0
	}
	switch field {
	case "area":
		return ya.Area.StdDev()
	case "edges":
		return ya.Edges.StdDev()
	case "clusters":
		return ya.Clusters.StdDev()
	case "xmean":
		return ya.Xmean.StdDev()
	case "ymean":
		return ya.Ymean.StdDev()
	case "rad":
		return ya.Rad.StdDev()
	case "slope":
		return ya.Slope.StdDev()
	case "mean_cluster_size":
		return ya.MeanClusterSize.StdDev()
	case "percent_urban":
		return ya.PercentUrban.StdDev()
	default:
		return 0
	}
}

// ObservedSeries pairs an observed-history field value with the year it
// was recorded, used to build the r² terms of the calibration
// aggregate.
type ObservedSeries struct {
	Years  []int
	Values []float64
}

// CalibrationAggregate is the per-tuple scalar score of spec.md §3.
type CalibrationAggregate struct {
	Compare           float64
	LeeSallee         float64
	R2Edges           float64
	R2Clusters        float64
	R2Pop             float64
	R2Xmean           float64
	R2Ymean           float64
	R2Rad             float64
	R2Slope           float64
	R2ClusterSize     float64
	R2PercentUrban    float64
	FMatch            float64
	Product           float64
}

// r2 returns the squared Pearson correlation between modeled annual
// means (from acc, field) and observed, restricted to the years both
// series have in common, using gonum.org/v1/gonum/stat.Correlation.
func r2(acc *MonteCarloAccumulator, field string, observed ObservedSeries) float64 {
	var modeled, obs []float64
	for i, y := range observed.Years {
		if _, ok := acc.byYear[y]; !ok {
			continue
		}
		modeled = append(modeled, acc.Mean(y, field))
		obs = append(obs, observed.Values[i])
	}
	if len(modeled) < 2 {
		return 0
	}
	c := stat.Correlation(modeled, obs, nil)
	return c * c
}

// AggregateCalibration computes the calibration aggregate of spec.md
// §3: compare x leesalee x the nine r² terms x fmatch.
func AggregateCalibration(acc *MonteCarloAccumulator, actualFinal, simFinal float64, leesalee, fmatch float64,
	edgesObs, clustersObs, popObs, xmeanObs, ymeanObs, radObs, slopeObs, clusterSizeObs, percentUrbanObs ObservedSeries) CalibrationAggregate {

	var agg CalibrationAggregate
	if actualFinal == 0 || simFinal == 0 {
		agg.Compare = 0
	} else if actualFinal < simFinal {
		agg.Compare = actualFinal / simFinal
	} else {
		agg.Compare = simFinal / actualFinal
	}
	agg.LeeSallee = leesalee
	agg.R2Edges = r2(acc, "edges", edgesObs)
	agg.R2Clusters = r2(acc, "clusters", clustersObs)
	agg.R2Pop = r2(acc, "area", popObs)
	agg.R2Xmean = r2(acc, "xmean", xmeanObs)
	agg.R2Ymean = r2(acc, "ymean", ymeanObs)
	agg.R2Rad = r2(acc, "rad", radObs)
	agg.R2Slope = r2(acc, "slope", slopeObs)
	agg.R2ClusterSize = r2(acc, "mean_cluster_size", clusterSizeObs)
	agg.R2PercentUrban = r2(acc, "percent_urban", percentUrbanObs)
	agg.FMatch = fmatch

	agg.Product = agg.Compare * agg.LeeSallee * agg.R2Edges * agg.R2Clusters * agg.R2Pop *
		agg.R2Xmean * agg.R2Ymean * agg.R2Rad * agg.R2Slope * agg.R2ClusterSize * agg.R2PercentUrban * agg.FMatch
	return agg
}

// ScoredTuple pairs a sweep tuple with its calibration aggregate, for
// ranking.
type ScoredTuple struct {
	Tuple SweepTuple
	Score CalibrationAggregate
}

// TopN returns the n tuples with the highest Product, descending, a
// fresh/correct reimplementation of the source's top-50 ranking
// utility (spec.md §9's aliasing-bug note; the bug is not reproduced).
func TopN(scored []ScoredTuple, n int) []ScoredTuple {
	out := make([]ScoredTuple, len(scored))
	copy(out, scored)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score.Product > out[j].Score.Product
	})
	if n < len(out) {
		out = out[:n]
	}
	return out
}

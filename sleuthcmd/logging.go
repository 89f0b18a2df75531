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

package sleuthcmd

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/sleuth-model/sleuth/internal/engine"
	"github.com/sleuth-model/sleuth/internal/raster"
	"github.com/sleuth-model/sleuth/internal/sleuthio"
)

// sweepLogs bundles the text logs one sweep run writes through, all
// closed together once the sweep completes.
type sweepLogs struct {
	coeff, controlStats, avg, stdDev *sleuthio.TextLog
}

func (l *sweepLogs) Close() {
	for _, lg := range []*sleuthio.TextLog{l.coeff, l.controlStats, l.avg, l.stdDev} {
		if lg != nil {
			lg.Close()
		}
	}
}

// setupSweepLogging opens the coeff/control-stats/avg/std-dev logs
// under s's output directory and builds the engine.SweepObserver that
// drives them, the per-tuple restart checkpoint, and (when enabled) the
// per-year growth-type/deltatron-age diagnostic images, spec.md §6. The
// observer's callbacks run from multiple goroutines concurrently under
// engine.RunSweep, so every write is serialized behind mu. The caller
// must call the returned close func once the sweep is done.
func setupSweepLogging(ctx context.Context, fetcher *sleuthio.Fetcher, s *engine.Scenario, rank int) (*engine.SweepObserver, func(), error) {
	if s.OutputDir != "" {
		if err := os.MkdirAll(s.OutputDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("sleuth: sleuthcmd: create output dir: %w", err)
		}
	}

	logs := &sweepLogs{}
	var err error
	if logs.coeff, err = sleuthio.OpenTextLog(s.OutputDir, "coeff.log"); err != nil {
		return nil, nil, err
	}
	if err := sleuthio.WriteCoeffLogHeader(logs.coeff); err != nil {
		return nil, nil, err
	}
	if logs.controlStats, err = sleuthio.OpenTextLog(s.OutputDir, "control_stats.log"); err != nil {
		return nil, nil, err
	}
	if err := sleuthio.WriteControlStatsHeader(logs.controlStats); err != nil {
		return nil, nil, err
	}
	if logs.avg, err = sleuthio.OpenTextLog(s.OutputDir, "avg.log"); err != nil {
		return nil, nil, err
	}
	if logs.stdDev, err = sleuthio.OpenTextLog(s.OutputDir, "std_dev.log"); err != nil {
		return nil, nil, err
	}

	var mu sync.Mutex
	obs := &engine.SweepObserver{
		BeforeTuple: func(tuple engine.SweepTuple, seed int64, run int) {
			mu.Lock()
			defer mu.Unlock()
			if err := sleuthio.WriteCheckpoint(checkpointPath(s, rank), sleuthio.Checkpoint{
				Diffusion: tuple.Diffusion, Breed: tuple.Breed, Spread: tuple.Spread,
				SlopeResistance: tuple.SlopeResistance, RoadGravity: tuple.RoadGravity,
				Seed: seed, Run: run,
			}); err != nil {
				Log.WithError(err).Warn("sleuth: failed to write restart checkpoint")
			}
		},
		AfterRealization: func(run int, res engine.RealizationResult) {
			mu.Lock()
			defer mu.Unlock()
			for _, ys := range res.Years {
				_ = sleuthio.WriteControlStatsRow(logs.controlStats, run, ys)
				_ = sleuthio.WriteCoeffLogRow(logs.coeff, run, ys.Year, engine.Coefficients{
					Diffusion: ys.Diffusion, Breed: ys.Breed, Spread: ys.Spread,
					SlopeResistance: ys.SlopeResistance, RoadGravity: ys.RoadGravity,
				}, ys.GrowthRate)
			}
		},
		AfterTuple: func(tuple engine.SweepTuple, acc *engine.MonteCarloAccumulator) {
			mu.Lock()
			defer mu.Unlock()
			for _, year := range acc.Years() {
				_ = sleuthio.WriteAvgLogRow(logs.avg, year, acc)
				_ = sleuthio.WriteStdDevLogRow(logs.stdDev, year, acc)
			}
			_ = sleuthio.AppendRankLog(s.OutputDir, rank, fmt.Sprintf(
				"tuple diff=%d breed=%d spread=%d slope=%d road=%d done",
				tuple.Diffusion, tuple.Breed, tuple.Spread, tuple.SlopeResistance, tuple.RoadGravity))
		},
	}

	if s.ViewGrowthTypes || s.ViewDeltatronAging {
		growthCM := sleuthio.GrowthTypeColormap()
		ageCM := sleuthio.DeltatronAgeColormap()
		obs.YearImage = func(tuple engine.SweepTuple, run, year int, delta, deltatronAge *raster.Grid) {
			if s.ViewGrowthTypes {
				key := fmt.Sprintf("%s/growth_%d.png", s.OutputDir, year)
				if err := fetcher.WriteGrid(ctx, key, delta, growthCM, true); err != nil {
					Log.WithError(err).Warn("sleuth: failed to write growth-type image")
				}
			}
			if s.ViewDeltatronAging && deltatronAge != nil {
				key := fmt.Sprintf("%s/deltatron_age_%d.png", s.OutputDir, year)
				if err := fetcher.WriteGrid(ctx, key, deltatronAge, ageCM, true); err != nil {
					Log.WithError(err).Warn("sleuth: failed to write deltatron-age image")
				}
			}
		}
	}

	return obs, logs.Close, nil
}

func checkpointPath(s *engine.Scenario, rank int) string {
	path := Cfg.GetString("checkpoint")
	if path == "" {
		path = fmt.Sprintf("%s/checkpoint_%d.txt", s.OutputDir, rank)
	}
	return path
}

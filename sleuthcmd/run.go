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
	"runtime"

	"github.com/spf13/cobra"

	"github.com/sleuth-model/sleuth/internal/engine"
	"github.com/sleuth-model/sleuth/internal/raster"
	"github.com/sleuth-model/sleuth/internal/sleuthio"
)

type cliMode int

const (
	modeCalibrate cliMode = iota
	modeTest
	modePredict
	modeRestart
)

// runMode loads scenarioPath and its input rasters, builds an engine,
// and dispatches to the requested processing mode, per spec.md §4.7's
// mode state machine.
func runMode(cmd *cobra.Command, scenarioPath string, mode cliMode) error {
	ctx := context.Background()

	f, err := os.Open(scenarioPath)
	if err != nil {
		return fmt.Errorf("sleuth: open scenario file: %w", err)
	}
	scenario, err := sleuthio.ReadScenario(f)
	f.Close()
	if err != nil {
		return err
	}
	switch mode {
	case modeCalibrate:
		scenario.Mode = engine.Calibrating
	case modeTest:
		scenario.Mode = engine.Testing
	case modePredict:
		scenario.Mode = engine.Predicting
	case modeRestart:
		scenario.Mode = engine.Restart
	}

	bucketURL := Cfg.GetString("bucket")
	if bucketURL == "" {
		bucketURL = "file://" + scenario.InputDir
	}
	fetcher, err := sleuthio.NewFetcher(ctx, bucketURL, 64)
	if err != nil {
		return err
	}
	defer fetcher.Close()

	inputs, err := loadInputs(ctx, fetcher, scenario)
	if err != nil {
		return err
	}

	workers := Cfg.GetInt("workers")
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	e, err := engine.New(scenario, inputs, workers, Log)
	if err != nil {
		return err
	}

	rank := Cfg.GetInt("rank")
	worldSize := Cfg.GetInt("worldsize")
	if worldSize <= 0 {
		worldSize = 1
	}
	startYear := scenario.UrbanLayers[0].Year
	stopYear := scenario.UrbanLayers[len(scenario.UrbanLayers)-1].Year

	obs, closeLogs, err := setupSweepLogging(ctx, fetcher, scenario, rank)
	if err != nil {
		return err
	}
	defer closeLogs()

	switch mode {
	case modeCalibrate, modeTest:
		scored, err := engine.RunSweep(e, rank, worldSize, startYear, stopYear, obs)
		if err != nil {
			return err
		}
		top := engine.TopN(scored, 50)
		for _, st := range top {
			Log.WithFields(map[string]interface{}{
				"diffusion": st.Tuple.Diffusion,
				"breed":     st.Tuple.Breed,
				"spread":    st.Tuple.Spread,
				"slope":     st.Tuple.SlopeResistance,
				"roadgrav":  st.Tuple.RoadGravity,
				"product":   st.Score.Product,
			}).Info("sleuth: ranked sweep tuple")
			_ = sleuthio.AppendRankLog(scenario.OutputDir, rank, fmt.Sprintf(
				"ranked diff=%d breed=%d spread=%d slope=%d road=%d product=%.4f",
				st.Tuple.Diffusion, st.Tuple.Breed, st.Tuple.Spread, st.Tuple.SlopeResistance, st.Tuple.RoadGravity, st.Score.Product))
		}
		if scenario.WriteOSMPlot && len(top) > 0 {
			if err := writeGrowthCurvePlot(e, scenario, top[0].Tuple, startYear, stopYear); err != nil {
				Log.WithError(err).Warn("sleuth: failed to write growth curve plot")
			}
		}
		return nil

	case modeRestart:
		cp, err := sleuthio.ReadCheckpoint(Cfg.GetString("checkpoint"))
		if err != nil {
			return err
		}
		tuple := engine.SweepTuple{
			Diffusion: cp.Diffusion, Breed: cp.Breed, Spread: cp.Spread,
			SlopeResistance: cp.SlopeResistance, RoadGravity: cp.RoadGravity,
		}
		acc, _, _ := engine.RunSweepTuple(e, 0, tuple, startYear, stopYear, cp.Run, obs)
		Log.Infof("sleuth: resumed tuple scored final-year area %.1f", acc.Mean(stopYear, "area"))
		return nil

	case modePredict:
		tuple := engine.SweepTuple{
			Diffusion: scenario.PredictionDiffusion, Breed: scenario.PredictionBreed,
			Spread: scenario.PredictionSpread, SlopeResistance: scenario.PredictionSlope,
			RoadGravity: scenario.PredictionRoadGrav,
		}
		acc, _, cp := engine.RunSweepTuple(e, 0, tuple, startYear, scenario.PredictionStopDate, 0, obs)
		Log.Infof("sleuth: prediction final-year (%d) mean urban area %.1f", scenario.PredictionStopDate,
			acc.Mean(scenario.PredictionStopDate, "area"))
		return writePredictionImages(ctx, fetcher, scenario, rank, cp)
	}
	return fmt.Errorf("sleuth: unknown processing mode")
}

// loadInputs fetches every raster a scenario names, builds the land-
// class transition matrix, and assembles an engine.Inputs.
func loadInputs(ctx context.Context, fetcher *sleuthio.Fetcher, s *engine.Scenario) (engine.Inputs, error) {
	var in engine.Inputs
	for _, l := range s.UrbanLayers {
		g, err := fetcher.FetchGrid(ctx, l.Filename, l.Year)
		if err != nil {
			return in, err
		}
		in.Urban = append(in.Urban, g)
	}
	for _, l := range s.RoadLayers {
		g, err := fetcher.FetchGrid(ctx, l.Filename, l.Year)
		if err != nil {
			return in, err
		}
		in.Road = append(in.Road, g)
	}
	raster.NormalizeRoads(in.Road)

	for _, l := range s.LanduseLayers {
		g, err := fetcher.FetchGrid(ctx, l.Filename, l.Year)
		if err != nil {
			return in, err
		}
		in.Landuse = append(in.Landuse, g)
	}
	if s.ExcludedData != "" {
		g, err := fetcher.FetchGrid(ctx, s.ExcludedData, 0)
		if err != nil {
			return in, err
		}
		in.Excluded = g
	}
	if s.SlopeData != "" {
		g, err := fetcher.FetchGrid(ctx, s.SlopeData, 0)
		if err != nil {
			return in, err
		}
		in.Slope = g
	}
	if s.BackgroundData != "" {
		g, err := fetcher.FetchGrid(ctx, s.BackgroundData, 0)
		if err != nil {
			return in, err
		}
		in.Background = g
	}
	in.Classes = s.Classes
	if s.LandCoverEnabled() {
		in.Transition = engine.BuildTransitionMatrix(in.Landuse[0], in.Landuse[1], &in.Classes)
	}
	return in, nil
}

// writeGrowthCurvePlot re-runs the winning sweep tuple to collect its
// accumulator, then renders the WRITE_OSM_PLOT diagnostic chart of
// observed against modeled urbanized area.
func writeGrowthCurvePlot(e *engine.Engine, s *engine.Scenario, tuple engine.SweepTuple, startYear, stopYear int) error {
	acc, _, _ := engine.RunSweepTuple(e, 0, tuple, startYear, stopYear, 0, nil)

	var years []int
	var observed []float64
	for i, l := range s.UrbanLayers {
		if i >= len(e.Inputs.Urban) {
			break
		}
		years = append(years, l.Year)
		observed = append(observed, float64(raster.CountPixels(e.Inputs.Urban[i], raster.GT, 0)))
	}

	path := s.OutputDir + "/growth_curve.png"
	return sleuthio.WriteGrowthCurvePlot(path, years, observed, acc)
}

// writePredictionImages persists the cumulative-urban-probability image
// and, when land-cover processing is enabled, the most-probable-class
// and uncertainty images under their "_<rank>" names, spec.md §4.7's
// prediction-mode outputs.
func writePredictionImages(ctx context.Context, fetcher *sleuthio.Fetcher, s *engine.Scenario, rank int, cp engine.CumulatePrediction) error {
	rampCM := sleuthio.ProbabilityRampColormap()
	if cp.Urban != nil {
		key := fmt.Sprintf("%s/cumulative_urban_%d.png", s.OutputDir, rank)
		if err := fetcher.WriteGrid(ctx, key, cp.Urban, rampCM, false); err != nil {
			return fmt.Errorf("sleuth: sleuthcmd: write cumulative urban image: %w", err)
		}
	}
	if cp.MostProbable != nil {
		classCM := sleuthio.LandClassColormap(&s.Classes)
		key := fmt.Sprintf("%s/annual_class_probabilities_%d.png", s.OutputDir, rank)
		if err := fetcher.WriteGrid(ctx, key, cp.MostProbable, classCM, false); err != nil {
			return fmt.Errorf("sleuth: sleuthcmd: write most-probable-class image: %w", err)
		}
	}
	if cp.Uncertainty != nil {
		key := fmt.Sprintf("%s/annual_class_probabilities_uncertainty_%d.png", s.OutputDir, rank)
		if err := fetcher.WriteGrid(ctx, key, cp.Uncertainty, rampCM, false); err != nil {
			return fmt.Errorf("sleuth: sleuthcmd: write class-probability uncertainty image: %w", err)
		}
	}
	return nil
}

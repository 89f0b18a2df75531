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

package sleuthio

import (
	"fmt"

	"github.com/sleuth-model/sleuth/internal/engine"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// WriteGrowthCurvePlot renders the calibration run's annual urbanized-
// area series (observed against the best-fit tuple's modeled mean) to a
// PNG, the WRITE_OSM_PLOT diagnostic output.
func WriteGrowthCurvePlot(path string, observedYears []int, observed []float64, acc *engine.MonteCarloAccumulator) error {
	p := plot.New()
	p.Title.Text = "Urbanized area by year"
	p.X.Label.Text = "Year"
	p.Y.Label.Text = "Urbanized pixels"

	obsPts := make(plotter.XYs, len(observedYears))
	for i, y := range observedYears {
		obsPts[i].X = float64(y)
		obsPts[i].Y = observed[i]
	}
	obsLine, err := plotter.NewLine(obsPts)
	if err != nil {
		return fmt.Errorf("sleuth: sleuthio: build observed line: %w", err)
	}
	p.Add(obsLine)
	p.Legend.Add("observed", obsLine)

	years := acc.Years()
	modeledPts := make(plotter.XYs, len(years))
	for i, y := range years {
		modeledPts[i].X = float64(y)
		modeledPts[i].Y = acc.Mean(y, "area")
	}
	modeledLine, err := plotter.NewLine(modeledPts)
	if err != nil {
		return fmt.Errorf("sleuth: sleuthio: build modeled line: %w", err)
	}
	p.Add(modeledLine)
	p.Legend.Add("modeled", modeledLine)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("sleuth: sleuthio: save growth curve plot %q: %w", path, err)
	}
	return nil
}

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
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sleuth-model/sleuth/internal/engine"
)

// Checkpoint is the restart-checkpoint record of spec.md §4.7's restart
// mode: the sweep tuple a rank was working on, its random seed, and the
// run/realization index to resume from.
type Checkpoint struct {
	Diffusion, Breed, Spread, SlopeResistance, RoadGravity int
	Seed                                                   int64
	Run                                                    int
}

// WriteCheckpoint writes a restart checkpoint as seven whitespace-
// separated fields, one line, matching the fixed-field text-log
// convention the rest of this package uses (spec.md §6).
func WriteCheckpoint(path string, c Checkpoint) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sleuth: sleuthio: write checkpoint: %w", err)
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%d %d %d %d %d %d %d\n",
		c.Diffusion, c.Breed, c.Spread, c.SlopeResistance, c.RoadGravity, c.Seed, c.Run)
	return err
}

// ReadCheckpoint reads a checkpoint written by WriteCheckpoint.
func ReadCheckpoint(path string) (Checkpoint, error) {
	var c Checkpoint
	f, err := os.Open(path)
	if err != nil {
		return c, fmt.Errorf("sleuth: sleuthio: read checkpoint: %w", err)
	}
	defer f.Close()
	_, err = fmt.Fscan(f, &c.Diffusion, &c.Breed, &c.Spread, &c.SlopeResistance, &c.RoadGravity, &c.Seed, &c.Run)
	if err != nil {
		return c, fmt.Errorf("sleuth: sleuthio: parse checkpoint %q: %w", path, err)
	}
	return c, nil
}

// TextLog is an append-only, buffered (bufio) text log backing the
// scenario's LOG_<rank>/coeff.log/control_stats.log family of files
// (spec.md §6).
type TextLog struct {
	f *os.File
	w *bufio.Writer
}

// OpenTextLog opens (creating and truncating) the named log file under
// dir.
func OpenTextLog(dir, name string) (*TextLog, error) {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sleuth: sleuthio: open log %q: %w", path, err)
	}
	return &TextLog{f: f, w: bufio.NewWriter(f)}, nil
}

// Printf writes one formatted, newline-terminated record.
func (l *TextLog) Printf(format string, args ...interface{}) error {
	_, err := fmt.Fprintf(l.w, format+"\n", args...)
	return err
}

// Close flushes and closes the underlying file.
func (l *TextLog) Close() error {
	if err := l.w.Flush(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}

// WriteCoeffLogHeader writes the coeff.log column header, spec.md §6.
func WriteCoeffLogHeader(l *TextLog) error {
	return l.Printf("%-6s %-6s %-6s %-6s %-6s %-8s %-6s %-10s",
		"run", "year", "diff", "breed", "spread", "slope_r", "road_g", "growth_rate")
}

// WriteCoeffLogRow appends one year's coefficient state to coeff.log.
func WriteCoeffLogRow(l *TextLog, run, year int, c engine.Coefficients, growthRate float64) error {
	return l.Printf("%-6d %-6d %-6.1f %-6.1f %-6.1f %-8.1f %-6.1f %-10.4f",
		run, year, c.Diffusion, c.Breed, c.Spread, c.SlopeResistance, c.RoadGravity, growthRate)
}

// WriteControlStatsHeader writes the control_stats.log column header,
// spec.md §6.
func WriteControlStatsHeader(l *TextLog) error {
	return l.Printf("%-6s %-6s %-10s %-8s %-10s %-10s %-10s %-10s %-10s",
		"run", "year", "area", "edges", "clusters", "xmean", "ymean", "rad", "leesalee")
}

// WriteControlStatsRow appends one year's spatial statistics to
// control_stats.log.
func WriteControlStatsRow(l *TextLog, run int, ys engine.YearStats) error {
	return l.Printf("%-6d %-6d %-10.1f %-8d %-10d %-10.2f %-10.2f %-10.2f %-10.4f",
		run, ys.Year, ys.Area, ys.Edges, ys.Clusters, ys.Xmean, ys.Ymean, ys.Rad, ys.LeeSallee)
}

// WriteAvgLogRow appends one year's running mean across Monte Carlo
// realizations to avg.log.
func WriteAvgLogRow(l *TextLog, year int, acc *engine.MonteCarloAccumulator) error {
	return l.Printf("%-6d %-10.2f %-8.2f %-10.2f %-10.4f",
		year, acc.Mean(year, "area"), acc.Mean(year, "edges"), acc.Mean(year, "clusters"), acc.Mean(year, "percent_urban"))
}

// WriteStdDevLogRow appends one year's running standard deviation
// (held in the same RunningStat accumulators) to std_dev.log.
func WriteStdDevLogRow(l *TextLog, year int, acc *engine.MonteCarloAccumulator) error {
	return l.Printf("%-6d %-10.2f %-8.2f %-10.2f %-10.4f",
		year, acc.StdDev(year, "area"), acc.StdDev(year, "edges"), acc.StdDev(year, "clusters"), acc.StdDev(year, "percent_urban"))
}

// AppendRankLog appends one free-form diagnostic line to a rank-scoped
// log file, spec.md §6's "LOG_<rank>".
func AppendRankLog(dir string, rank int, line string) error {
	path := filepath.Join(dir, fmt.Sprintf("LOG_%d", rank))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("sleuth: sleuthio: append rank log: %w", err)
	}
	defer f.Close()
	_, err = io.WriteString(f, line+"\n")
	return err
}

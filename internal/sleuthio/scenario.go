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
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/sleuth-model/sleuth/internal/engine"
	"github.com/spf13/cast"
)

// yearSuffix extracts a trailing 4-digit year from a data filename, the
// convention every dated layer (URBAN_DATA/ROAD_DATA/LANDUSE_DATA) uses,
// spec.md §3.
var yearSuffix = regexp.MustCompile(`(\d{4})(\.[A-Za-z0-9]+)?$`)

func yearOf(filename string) int {
	base := filepath.Base(filename)
	m := yearSuffix.FindStringSubmatch(strings.TrimSuffix(base, filepath.Ext(base)) + filepath.Ext(base))
	if m == nil {
		return 0
	}
	y, _ := strconv.Atoi(m[1])
	return y
}

// rawScenario accumulates every key=value pair (repeated keys appended,
// as spec.md §6 requires) before being resolved into an engine.Scenario.
// No third-party line-format parser in the corpus fits this sparse,
// repeated-key, `#`-comment format, so the line reader is hand-written
// against bufio/strings only (see DESIGN.md); everything downstream of
// "split into key/value strings" uses spf13/cast for coercion.
type rawScenario struct {
	values map[string][]string
}

func (r *rawScenario) get(key string) (string, bool) {
	vs := r.values[key]
	if len(vs) == 0 {
		return "", false
	}
	return vs[len(vs)-1], true
}

func (r *rawScenario) all(key string) []string { return r.values[key] }

func (r *rawScenario) int(key string, def int) int {
	v, ok := r.get(key)
	if !ok {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return n
}

func (r *rawScenario) float(key string, def float64) float64 {
	v, ok := r.get(key)
	if !ok {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return def
	}
	return f
}

func (r *rawScenario) bool(key string, def bool) bool {
	v, ok := r.get(key)
	if !ok {
		return def
	}
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "YES", "TRUE", "1", "ON":
		return true
	case "NO", "FALSE", "0", "OFF":
		return false
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

func (r *rawScenario) int64(key string, def int64) int64 {
	v, ok := r.get(key)
	if !ok {
		return def
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return def
	}
	return n
}

// parseColor parses a LANDUSE_CLASS/PROBABILITY_COLOR/DELTATRON_COLOR
// color field, either hex (0xRRGGBB) or decimal comma-tuple (r,g,b).
func parseColor(v string) (r, g, b uint8, err error) {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(strings.ToLower(v), "0x") {
		n, err := strconv.ParseUint(v[2:], 16, 32)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("sleuth: sleuthio: invalid hex color %q: %w", v, err)
		}
		return uint8(n >> 16), uint8(n >> 8), uint8(n), nil
	}
	parts := strings.Split(v, ",")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("sleuth: sleuthio: invalid color %q: want 0xRRGGBB or r,g,b", v)
	}
	vals := make([]uint8, 3)
	for i, p := range parts {
		n, err := cast.ToUint8E(strings.TrimSpace(p))
		if err != nil {
			return 0, 0, 0, fmt.Errorf("sleuth: sleuthio: invalid color component %q: %w", p, err)
		}
		vals[i] = n
	}
	return vals[0], vals[1], vals[2], nil
}

// readRaw tokenizes a scenario file: `#` begins a comment, blank lines
// are ignored, and `KEY value` / `KEY=value` lines are split on the
// first `=` or run of whitespace.
func readRaw(r io.Reader) (*rawScenario, error) {
	raw := &rawScenario{values: make(map[string][]string)}
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var key, val string
		if i := strings.IndexByte(line, '='); i >= 0 {
			key, val = line[:i], line[i+1:]
		} else {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return nil, fmt.Errorf("sleuth: sleuthio: scenario line %d: expected KEY value, got %q", lineNo, line)
			}
			key, val = fields[0], strings.Join(fields[1:], " ")
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		raw.values[key] = append(raw.values[key], val)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("sleuth: sleuthio: read scenario: %w", err)
	}
	return raw, nil
}

func datedLayers(vals []string) []engine.DatedLayer {
	out := make([]engine.DatedLayer, 0, len(vals))
	for _, v := range vals {
		out = append(out, engine.DatedLayer{Filename: v, Year: yearOf(v)})
	}
	return out
}

func sweepRange(r *rawScenario, prefix string) engine.SweepRange {
	return engine.SweepRange{
		Start: r.int(prefix+"_START", 1),
		Stop:  r.int(prefix+"_STOP", 1),
		Step:  r.int(prefix+"_STEP", 1),
	}
}

// ReadScenario parses a scenario file into an engine.Scenario, spec.md
// §6/SPEC_FULL.md §4.10.
func ReadScenario(r io.Reader) (*engine.Scenario, error) {
	raw, err := readRaw(r)
	if err != nil {
		return nil, err
	}

	s := &engine.Scenario{
		InputDir:  firstOr(raw, "INPUT_DIR"),
		OutputDir: firstOr(raw, "OUTPUT_DIR"),

		UrbanLayers:   datedLayers(raw.all("URBAN_DATA")),
		RoadLayers:    datedLayers(raw.all("ROAD_DATA")),
		LanduseLayers: datedLayers(raw.all("LANDUSE_DATA")),

		ExcludedData:   firstOr(raw, "EXCLUDED_DATA"),
		SlopeData:      firstOr(raw, "SLOPE_DATA"),
		BackgroundData: firstOr(raw, "BACKGROUND_DATA"),

		DiffusionRange: sweepRange(raw, "CALIBRATION_DIFF"),
		BreedRange:     sweepRange(raw, "CALIBRATION_BREED"),
		SpreadRange:    sweepRange(raw, "CALIBRATION_SPREAD"),
		SlopeRange:     sweepRange(raw, "CALIBRATION_SLOPE"),
		RoadGravRange:  sweepRange(raw, "CALIBRATION_ROAD"),

		PredictionDiffusion: raw.int("PREDICTION_DIFFUSION_BEST_FIT", 1),
		PredictionBreed:     raw.int("PREDICTION_BREED_BEST_FIT", 1),
		PredictionSpread:    raw.int("PREDICTION_SPREAD_BEST_FIT", 1),
		PredictionSlope:     raw.int("PREDICTION_SLOPE_BEST_FIT", 1),
		PredictionRoadGrav:  raw.int("PREDICTION_ROAD_GRAV_BEST_FIT", 1),
		PredictionStartDate: raw.int("PREDICTION_START_DATE", 0),
		PredictionStopDate:  raw.int("PREDICTION_STOP_DATE", 0),

		MonteCarloIterations: raw.int("MONTE_CARLO_ITERATIONS", 1),
		RandomSeed:           raw.int64("RANDOM_SEED", 1),
		NumWorkingGrids:      raw.int("NUM_WORKING_GRIDS", 6),

		Boom:                raw.float("BOOM", 1.1),
		Bust:                raw.float("BUST", 0.9),
		CriticalLow:         raw.float("CRITICAL_LOW", 1.0),
		CriticalHigh:        raw.float("CRITICAL_HIGH", 5.0),
		CriticalSlope:       raw.float("CRITICAL_SLOPE", 21.0),
		RoadGravSensitivity: raw.float("ROAD_GRAV_SENSITIVITY", 0.01),
		SlopeSensitivity:    raw.float("SLOPE_SENSITIVITY", 0.1),

		ViewGrowthTypes:     raw.bool("VIEW_GROWTH_TYPES", false),
		ViewDeltatronAging:  raw.bool("VIEW_DELTATRON_AGING", false),
		ViewWindowStart:     raw.int("VIEW_WINDOW_START", 0),
		ViewWindowStop:      raw.int("VIEW_WINDOW_STOP", 0),
		WriteOSMPlot:        raw.bool("WRITE_OSM_PLOT", false),

		LogFlags:   boolFlags(raw, "LOG_"),
		WriteFlags: boolFlags(raw, "WRITE_"),
	}

	classes, err := parseLandClasses(raw.all("LANDUSE_CLASS"))
	if err != nil {
		return nil, err
	}
	table, err := engine.NewLandClassTable(classes)
	if err != nil {
		return nil, err
	}
	s.Classes = table

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func firstOr(r *rawScenario, key string) string {
	v, _ := r.get(key)
	return v
}

// boolFlags collects every scalar key sharing prefix into a name->bool
// map, for the open-ended LOG_*/WRITE_* observability flags spec.md §6
// names without enumerating.
func boolFlags(r *rawScenario, prefix string) map[string]bool {
	out := make(map[string]bool)
	for k, vs := range r.values {
		if !strings.HasPrefix(k, prefix) || len(vs) == 0 {
			continue
		}
		v := strings.ToUpper(strings.TrimSpace(vs[len(vs)-1]))
		out[k] = v == "YES" || v == "TRUE" || v == "1" || v == "ON"
	}
	return out
}

// parseLandClasses parses repeated LANDUSE_CLASS tuples:
// "grayscale,name,id,color".
func parseLandClasses(vals []string) ([]engine.LandClass, error) {
	out := make([]engine.LandClass, 0, len(vals))
	for _, v := range vals {
		parts := strings.SplitN(v, ",", 4)
		if len(parts) < 4 {
			return nil, fmt.Errorf("sleuth: sleuthio: LANDUSE_CLASS %q: want grayscale,name,id,color", v)
		}
		gray, err := cast.ToUint8E(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("sleuth: sleuthio: LANDUSE_CLASS %q: %w", v, err)
		}
		r, g, b, err := parseColor(parts[3])
		if err != nil {
			return nil, err
		}
		id := strings.TrimSpace(parts[2])
		out = append(out, engine.LandClass{
			Grayscale:  gray,
			Name:       strings.TrimSpace(parts[1]),
			ID:         id,
			R:          r,
			G:          g,
			B:          b,
			Excluded:   id == "EXC",
			Transition: id != "URB" && id != "EXC" && id != "UNC",
		})
	}
	return out, nil
}

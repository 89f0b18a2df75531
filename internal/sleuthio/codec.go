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

// Package sleuthio implements raster and log persistence: indexed-
// palette PNG encode/decode for rasters, the restart-checkpoint and
// text-log formats of spec.md §6/§9, and remote/local input fetch.
//
// Indexed-palette image codec is implemented against the standard
// library only (image/image/color/draw/png): no package anywhere in
// the retrieved corpus models a palette raster with a custom colormap,
// so there is no third-party idiom to follow here (DESIGN.md).
package sleuthio

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strconv"

	"github.com/sleuth-model/sleuth/internal/engine"
	"github.com/sleuth-model/sleuth/internal/raster"
)

// Colormap assigns an RGB color to every raster pixel value, spec.md
// §4.9: land classes get their configured colors, growth-type phase
// tags get a fixed diagnostic palette, and deltatron ages get a ramp.
type Colormap [256]color.RGBA

// LandClassColormap builds a colormap from a land-class table, used for
// land-cover/urban snapshot rasters.
func LandClassColormap(classes *engine.LandClassTable) Colormap {
	var cm Colormap
	for _, c := range classes.Classes {
		cm[c.Grayscale] = color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
	}
	return cm
}

// GrowthTypeColormap builds the fixed diagnostic colormap for
// phase-tagged delta rasters, spec.md §4.9's "distinct diagnostic
// color per phase tag".
func GrowthTypeColormap() Colormap {
	var cm Colormap
	cm[0] = color.RGBA{0, 0, 0, 255}
	cm[uint8(engine.PhaseSpontaneous)] = color.RGBA{255, 0, 0, 255}
	cm[uint8(engine.PhaseNewSpreadCenter)] = color.RGBA{255, 255, 0, 255}
	cm[uint8(engine.PhaseEdge)] = color.RGBA{0, 255, 0, 255}
	cm[uint8(engine.PhaseRoad)] = color.RGBA{0, 255, 255, 255}
	return cm
}

// DeltatronAgeColormap builds a 0-5 ramp from green (eligible) through
// yellow (mid-cooldown) to red (about to expire), spec.md §4.9.
func DeltatronAgeColormap() Colormap {
	var cm Colormap
	ramp := [6]color.RGBA{
		{0, 200, 0, 255},
		{60, 200, 0, 255},
		{140, 200, 0, 255},
		{200, 200, 0, 255},
		{200, 120, 0, 255},
		{200, 0, 0, 255},
	}
	for i, c := range ramp {
		cm[i] = c
	}
	return cm
}

// ProbabilityRampColormap builds a white-to-red ramp over [0,100] used
// for the prediction mode's annual-class-probability rasters.
func ProbabilityRampColormap() Colormap {
	var cm Colormap
	for v := 0; v < 256; v++ {
		p := v
		if p > 100 {
			p = 100
		}
		t := uint8(255 - (255 * p / 100))
		cm[v] = color.RGBA{255, t, t, 255}
	}
	return cm
}

// palette converts a Colormap into an image/color.Palette indexed the
// same way, for use with image.Paletted.
func (cm Colormap) palette() color.Palette {
	pal := make(color.Palette, 256)
	for i, c := range cm {
		pal[i] = c
	}
	return pal
}

// EncodePNG writes g as an indexed-palette PNG using cm, optionally
// stamping the grid's Year in the bottom-left corner (spec.md §4.9
// "year stamp"), writing directly through the standard encoder.
func EncodePNG(w io.Writer, g *raster.Grid, cm Colormap, stampYear bool) error {
	img := image.NewPaletted(image.Rect(0, 0, g.Cols, g.Rows), cm.palette())
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			img.SetColorIndex(c, r, g.At(r, c))
		}
	}
	if stampYear && g.Year != 0 {
		drawYearStamp(img, g.Year)
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("sleuth: sleuthio: encode png: %w", err)
	}
	return nil
}

// digitGlyphs is a minimal 3x5 bitmap font for the ten digits, used
// only to burn a year label into diagnostic rasters.
var digitGlyphs = map[byte][15]bool{
	'0': {true, true, true, true, false, true, true, false, true, true, false, true, true, true, true},
	'1': {false, true, false, true, true, false, false, true, false, false, true, false, true, true, true},
	'2': {true, true, true, false, false, true, true, true, true, true, false, false, true, true, true},
	'3': {true, true, true, false, false, true, true, true, true, false, false, true, true, true, true},
	'4': {true, false, true, true, false, true, true, true, true, false, false, true, false, false, true},
	'5': {true, true, true, true, false, false, true, true, true, false, false, true, true, true, true},
	'6': {true, true, true, true, false, false, true, true, true, true, false, true, true, true, true},
	'7': {true, true, true, false, false, true, false, true, false, false, true, false, false, true, false},
	'8': {true, true, true, true, false, true, true, true, true, true, false, true, true, true, true},
	'9': {true, true, true, true, false, true, true, true, true, false, false, true, true, true, true},
}

func drawYearStamp(img *image.Paletted, year int) {
	s := strconv.Itoa(year)
	x0, y0 := 2, img.Rect.Dy()-7
	if y0 < 0 {
		return
	}
	ink := color.RGBA{255, 255, 255, 255}
	for i := 0; i < len(s); i++ {
		glyph, ok := digitGlyphs[s[i]]
		if !ok {
			continue
		}
		for row := 0; row < 5; row++ {
			for col := 0; col < 3; col++ {
				if glyph[row*3+col] {
					draw.Draw(img, image.Rect(x0+i*4+col, y0+row, x0+i*4+col+1, y0+row+1),
						&image.Uniform{C: ink}, image.Point{}, draw.Src)
				}
			}
		}
	}
}

// DecodePaletted reads a PNG into a raster.Grid, taking only the color
// index plane and discarding the palette (the pool's colormaps are
// reconstructed from the scenario's land-class table, not from the
// file).
func DecodePaletted(r io.Reader, filename string, year int) (*raster.Grid, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("sleuth: sleuthio: decode png %q: %w", filename, err)
	}
	bounds := img.Bounds()
	g := raster.NewNamed(bounds.Dy(), bounds.Dx(), filename, year)
	if pimg, ok := img.(*image.Paletted); ok {
		for r := 0; r < g.Rows; r++ {
			for c := 0; c < g.Cols; c++ {
				g.Set(r, c, pimg.ColorIndexAt(c, r))
			}
		}
		return g, nil
	}
	// Fall back to nearest-gray for non-paletted sources.
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			gr, _, _, _ := img.At(bounds.Min.X+c, bounds.Min.Y+r).RGBA()
			g.Set(r, c, uint8(gr>>8))
		}
	}
	return g, nil
}

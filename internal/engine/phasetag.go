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

// PhaseTag symbolically names which growth phase produced a pixel in
// the delta grid, spec.md glossary "Phase tags". Replacing the
// source's raw phase0..phase5 integers with a named type is the
// re-architecture spec.md §9 calls for; PhaseTag's underlying values
// are still the pixel values written into delta, for image-emission
// compatibility (SPEC_FULL.md §4.9).
type PhaseTag uint8

const (
	PhaseNone             PhaseTag = 0
	PhaseSpontaneous      PhaseTag = 1 // phase 1
	PhaseNewSpreadCenter  PhaseTag = 3 // phase 3
	PhaseEdge             PhaseTag = 4 // phase 4 (organic)
	PhaseRoad             PhaseTag = 5 // phase 5
)

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

// Package rng implements the reproducible, per-worker random stream
// spec.md §4.2 requires: a Park-Miller multiplicative LCG whose low-
// order correlation is broken by a 32-entry Bays-Durham shuffle table,
// seeded deterministically from (base seed, tuple index, Monte Carlo
// index) so that results do not depend on scheduling (spec.md §5's
// ordering guarantee, §8's reproducibility property).
package rng

const (
	ia = 16807
	im = 2147483647
	iq = 127773
	ir = 2836
	ntab = 32
	ndiv = 1 + (im-1)/ntab
	// eps keeps Uniform's result strictly below 1.
	eps = 1.2e-7
	rnmx = 1.0 - eps
)

// Stream is one independent, reproducible pseudo-random stream.
type Stream struct {
	seed  int64
	table [ntab]int64
	y     int64
}

// New initializes a stream from seed, priming the shuffle table with
// the first ntab+8 draws of the bare generator before any Uniform call
// returns a value, exactly as original_source/src/random.c does.
func New(seed int64) *Stream {
	s := &Stream{seed: normalizeSeed(seed)}
	for j := ntab + 7; j >= 0; j-- {
		s.seed = nextLCG(s.seed)
		if j < ntab {
			s.table[j] = s.seed
		}
	}
	s.y = s.table[0]
	return s
}

// ForRealization derives a deterministic per-(tuple,realization) seed
// from a base seed, matching spec.md §5's ordering guarantee that the
// stream for Monte Carlo realization m of tuple t is a function of
// (seed, t, m) regardless of scheduling.
func ForRealization(baseSeed int64, tuple, realization int) *Stream {
	// A simple, deterministic mixing function: distinct primes keep
	// (tuple, realization) pairs from colliding for any seed in the
	// scenario's practical range.
	mixed := baseSeed + int64(tuple)*1_000_003 + int64(realization)*7919
	return New(mixed)
}

func normalizeSeed(seed int64) int64 {
	if seed <= 0 {
		seed = -seed + 1
	}
	return seed
}

func nextLCG(seed int64) int64 {
	k := seed / iq
	seed = ia*(seed-k*iq) - ir*k
	if seed < 0 {
		seed += im
	}
	return seed
}

// Uniform returns a real in (0, 1-eps], the "real in (0, 1 - ε)" of
// spec.md §4.2.
func (s *Stream) Uniform() float64 {
	s.seed = nextLCG(s.seed)
	j := s.y / ndiv
	s.y = s.table[j]
	s.table[j] = s.seed
	out := float64(s.y) / float64(im)
	if out > rnmx {
		return rnmx
	}
	return out
}

// UniformInt returns an integer in [0, n).
func (s *Stream) UniformInt(n int) int {
	if n <= 0 {
		panic("sleuth: rng: UniformInt requires n > 0")
	}
	v := int(s.Uniform() * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
}

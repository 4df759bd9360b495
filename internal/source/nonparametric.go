package source

import (
	"errors"
	"fmt"
	"slices"
)

// NonParametric is a source made of explicit ruptures, each carrying its own
// occurrence-count distribution instead of a magnitude-frequency one.
type NonParametric struct {
	Base
	Data       []RupturePMF
	splittable bool
}

// NewNonParametric couples ruptures with their occurrence distributions.
// weights, when given, must hold one entry per rupture; they become the
// per-rupture weights and pin the ruptures together, disabling splits.
func NewNonParametric(b Base, data []RupturePMF, weights []float64) (*NonParametric, error) {
	if len(data) == 0 {
		return nil, errors.New("a non-parametric source needs at least one rupture")
	}
	if weights != nil {
		if len(weights) != len(data) {
			return nil, fmt.Errorf("%d rupture weights against %d ruptures", len(weights), len(data))
		}
		for i := range data {
			w := weights[i]
			data[i].Rup.Weight = &w
		}
	}
	return &NonParametric{Base: b, Data: data, splittable: weights == nil}, nil
}

// Splittable reports whether the ruptures may be distributed over split
// groups.
func (s *NonParametric) Splittable() bool { return s.splittable }

func (s *NonParametric) Kind() Kind { return KindNonParametric }

func (s *NonParametric) Mags() []float64 {
	var mags []float64
	for _, d := range s.Data {
		if d.Rup.Mag >= s.MinMag() {
			mags = append(mags, d.Rup.Mag)
		}
	}
	slices.Sort(mags)
	return slices.Compact(mags)
}

func (s *NonParametric) MinMaxMag() (float64, float64) {
	lo, hi := s.Data[0].Rup.Mag, s.Data[0].Rup.Mag
	for _, d := range s.Data[1:] {
		lo = min(lo, d.Rup.Mag)
		hi = max(hi, d.Rup.Mag)
	}
	return lo, hi
}

func (s *NonParametric) NumRuptures() int { return len(s.Data) }

func (s *NonParametric) Weight() float64 { return float64(s.NumRuptures()) }

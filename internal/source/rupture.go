package source

import (
	"github.com/quakeworks/srcmodel/internal/geo"
	"github.com/quakeworks/srcmodel/internal/pmf"
)

// Rupture is a single earthquake rupture: a magnitude and rake on a surface,
// breaking from a hypocenter.
type Rupture struct {
	Mag        float64
	Rake       float64
	Hypocenter geo.Point
	Surface    geo.Surface
	// TRT is assigned from the enclosing source or group.
	TRT string
	// Weight is the explicit rupture weight, required when the owning
	// group declares mutually exclusive ruptures.
	Weight *float64
}

// EBRupture ties a rupture to its identifier and the number of occurrences
// recorded for it across the stochastic event sets.
type EBRupture struct {
	Rup            *Rupture
	ID             int
	NumOccurrences int
}

// RupturePMF couples a rupture of a non-parametric source with its
// occurrence-count distribution: pair i gives the probability of observing
// exactly i occurrences.
type RupturePMF struct {
	Rup        *Rupture
	ProbsOccur *pmf.PMF[int]
}

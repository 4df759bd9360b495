package source

import (
	"math"

	"github.com/quakeworks/srcmodel/internal/geo"
	"github.com/quakeworks/srcmodel/internal/mfd"
	"github.com/quakeworks/srcmodel/internal/pmf"
	"github.com/quakeworks/srcmodel/internal/scalerel"
	"github.com/quakeworks/srcmodel/internal/tom"
)

// PointSource generates ruptures around a single location, spinning over the
// nodal-plane distribution and floating over the hypocentral depths.
type PointSource struct {
	Base
	Location         geo.Point
	UpperSeismoDepth float64
	LowerSeismoDepth float64
	MFD              mfd.MFD
	NodalPlaneDist   *pmf.PMF[geo.NodalPlane]
	HypoDepthDist    *pmf.PMF[float64]
	MagScaleRel      scalerel.MagScaleRel
	RuptAspectRatio  float64
	MeshSpacing      float64
	TOM              tom.TOM
}

func (s *PointSource) Kind() Kind { return KindPoint }

func (s *PointSource) Mags() []float64 { return magsAbove(s.MFD, s.MinMag()) }

func (s *PointSource) MinMaxMag() (float64, float64) { return s.MFD.MinMaxMag() }

func (s *PointSource) NumRuptures() int {
	return len(s.MFD.AnnualOccurrenceRates()) * s.NodalPlaneDist.Len() * s.HypoDepthDist.Len()
}

func (s *PointSource) Weight() float64 { return float64(s.NumRuptures()) }

// AreaSource behaves like a grid of point sources covering a polygon.
type AreaSource struct {
	Base
	Polygon          geo.Polygon
	Discretization   float64 // km between the generated points
	UpperSeismoDepth float64
	LowerSeismoDepth float64
	MFD              mfd.MFD
	NodalPlaneDist   *pmf.PMF[geo.NodalPlane]
	HypoDepthDist    *pmf.PMF[float64]
	MagScaleRel      scalerel.MagScaleRel
	RuptAspectRatio  float64
	MeshSpacing      float64
	TOM              tom.TOM
}

func (s *AreaSource) Kind() Kind { return KindArea }

func (s *AreaSource) Mags() []float64 { return magsAbove(s.MFD, s.MinMag()) }

func (s *AreaSource) MinMaxMag() (float64, float64) { return s.MFD.MinMaxMag() }

func (s *AreaSource) NumRuptures() int {
	return s.Polygon.DiscretizedCount(s.Discretization) *
		len(s.MFD.AnnualOccurrenceRates()) *
		s.NodalPlaneDist.Len() * s.HypoDepthDist.Len()
}

func (s *AreaSource) Weight() float64 { return float64(s.NumRuptures()) }

// MultiPointSource is a collection of point sources sharing their
// distributions, with one constituent distribution per mesh point.
type MultiPointSource struct {
	Base
	Mesh geo.Mesh
	// UpperSeismoDepths and LowerSeismoDepths hold one shared value or one
	// value per mesh point.
	UpperSeismoDepths []float64
	LowerSeismoDepths []float64
	MFD               *mfd.Multi
	NodalPlaneDist    *pmf.PMF[geo.NodalPlane]
	HypoDepthDist     *pmf.PMF[float64]
	MagScaleRel       scalerel.MagScaleRel
	RuptAspectRatio   float64
	MeshSpacing       float64
	TOM               tom.TOM
}

func (s *MultiPointSource) Kind() Kind { return KindMultiPoint }

func (s *MultiPointSource) Mags() []float64 { return magsAbove(s.MFD, s.MinMag()) }

func (s *MultiPointSource) MinMaxMag() (float64, float64) { return s.MFD.MinMaxMag() }

// NumRuptures sums the rates of every constituent distribution, so denser
// points count for more.
func (s *MultiPointSource) NumRuptures() int {
	return len(s.MFD.AnnualOccurrenceRates()) *
		s.NodalPlaneDist.Len() * s.HypoDepthDist.Len()
}

func (s *MultiPointSource) Weight() float64 { return float64(s.NumRuptures()) }

// SimpleFaultSource floats ruptures over a simple fault surface.
type SimpleFaultSource struct {
	Base
	Surface         *geo.SimpleFaultSurface
	Rake            float64
	MFD             mfd.MFD
	MagScaleRel     scalerel.MagScaleRel
	RuptAspectRatio float64
	// HypoList rows are (along-strike fraction, down-dip fraction, weight)
	// and SlipList rows are (slip angle, weight). Both optional.
	HypoList [][3]float64
	SlipList [][2]float64
	TOM      tom.TOM
}

func (s *SimpleFaultSource) Kind() Kind { return KindSimpleFault }

func (s *SimpleFaultSource) Mags() []float64 { return magsAbove(s.MFD, s.MinMag()) }

func (s *SimpleFaultSource) MinMaxMag() (float64, float64) { return s.MFD.MinMaxMag() }

func (s *SimpleFaultSource) NumRuptures() int {
	n := faultRuptureCount(s.MFD, s.MinMag(), s.MagScaleRel, s.Rake, s.RuptAspectRatio,
		s.Surface.Length(), s.Surface.Width(), s.Surface.MeshSpacing)
	if len(s.HypoList) > 0 {
		n *= len(s.HypoList)
	}
	if len(s.SlipList) > 0 {
		n *= len(s.SlipList)
	}
	return n
}

func (s *SimpleFaultSource) Weight() float64 { return float64(s.NumRuptures()) }

// ComplexFaultSource floats ruptures over a surface built from fault edges.
type ComplexFaultSource struct {
	Base
	Surface         *geo.ComplexFaultSurface
	Rake            float64
	MFD             mfd.MFD
	MagScaleRel     scalerel.MagScaleRel
	RuptAspectRatio float64
	TOM             tom.TOM
}

func (s *ComplexFaultSource) Kind() Kind { return KindComplexFault }

func (s *ComplexFaultSource) Mags() []float64 { return magsAbove(s.MFD, s.MinMag()) }

func (s *ComplexFaultSource) MinMaxMag() (float64, float64) { return s.MFD.MinMaxMag() }

func (s *ComplexFaultSource) NumRuptures() int {
	return faultRuptureCount(s.MFD, s.MinMag(), s.MagScaleRel, s.Rake, s.RuptAspectRatio,
		s.Surface.Length(), s.Surface.Width(), s.Surface.MeshSpacing)
}

func (s *ComplexFaultSource) Weight() float64 { return float64(s.NumRuptures()) }

// CharacteristicFaultSource ruptures the whole of a fixed surface, one
// rupture per magnitude bin.
type CharacteristicFaultSource struct {
	Base
	Surface geo.Surface
	Rake    float64
	MFD     mfd.MFD
	TOM     tom.TOM
}

func (s *CharacteristicFaultSource) Kind() Kind { return KindCharacteristicFault }

func (s *CharacteristicFaultSource) Mags() []float64 { return magsAbove(s.MFD, s.MinMag()) }

func (s *CharacteristicFaultSource) MinMaxMag() (float64, float64) { return s.MFD.MinMaxMag() }

func (s *CharacteristicFaultSource) NumRuptures() int {
	return len(s.MFD.AnnualOccurrenceRates())
}

func (s *CharacteristicFaultSource) Weight() float64 { return float64(s.NumRuptures()) }

// faultRuptureCount estimates how many ruptures float on a fault: for every
// magnitude bin at or above the floor, the number of positions a rupture of
// the median area can take on the fault mesh.
func faultRuptureCount(dist mfd.MFD, floor float64, msr scalerel.MagScaleRel,
	rake, aspect, faultLength, faultWidth, spacing float64) int {
	meshCols := int(math.Round(faultLength/spacing)) + 1
	meshRows := int(math.Round(faultWidth/spacing)) + 1
	total := 0
	for _, r := range dist.AnnualOccurrenceRates() {
		if r.Mag < floor {
			continue
		}
		area := msr.MedianArea(r.Mag, rake)
		rupLength := math.Sqrt(area * aspect)
		rupWidth := area / rupLength
		// Reshape the rupture, conserving area, when it overflows the
		// fault; clip whatever still overflows.
		switch {
		case rupLength <= faultLength && rupWidth <= faultWidth:
		case rupWidth > faultWidth:
			rupLength = rupLength * rupWidth / faultWidth
			rupWidth = faultWidth
			if rupLength > faultLength {
				rupLength = faultLength
			}
		default:
			rupWidth = rupWidth * rupLength / faultLength
			rupLength = faultLength
			if rupWidth > faultWidth {
				rupWidth = faultWidth
			}
		}
		rupCols := int(math.Round(rupLength/spacing)) + 1
		rupRows := int(math.Round(rupWidth/spacing)) + 1
		along := meshCols - rupCols + 1
		if along < 1 {
			along = 1
		}
		down := meshRows - rupRows + 1
		if down < 1 {
			down = 1
		}
		total += along * down
	}
	return total
}

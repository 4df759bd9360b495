package source

import (
	"slices"

	"github.com/quakeworks/srcmodel/internal/mfd"
)

// Kind identifies a source variant.
type Kind uint8

const (
	KindPoint Kind = iota + 1
	KindArea
	KindMultiPoint
	KindSimpleFault
	KindComplexFault
	KindCharacteristicFault
	KindNonParametric
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindArea:
		return "area"
	case KindMultiPoint:
		return "multi_point"
	case KindSimpleFault:
		return "simple_fault"
	case KindComplexFault:
		return "complex_fault"
	case KindCharacteristicFault:
		return "characteristic_fault"
	case KindNonParametric:
		return "non_parametric"
	}
	return "unknown"
}

// Source is one seismic source of any kind. The concrete types form a closed
// set; nothing outside this package implements the interface.
//
// A source is immutable after conversion except for the group finalization
// hooks: SetTRT (tectonic region inherited from the enclosing group),
// ApplyMinMag (group magnitude floor) and SetMutexWeight (positional
// srcs_weights assignment).
type Source interface {
	ID() string
	Name() string
	TRT() string
	SetTRT(trt string)
	MinMag() float64
	ApplyMinMag(floor float64)
	MutexWeight() (float64, bool)
	SetMutexWeight(w float64)

	Kind() Kind
	// Mags returns the distinct magnitudes at or above the floor, sorted.
	Mags() []float64
	MinMaxMag() (min, max float64)
	// NumRuptures estimates how many ruptures the source generates; it is
	// a deterministic load-balancing figure, not hazard output.
	NumRuptures() int
	// Weight is NumRuptures as a float, used to bound group splits.
	Weight() float64

	isSource()
}

// Base carries the identity shared by every source variant plus the fields
// assigned during group finalization.
type Base struct {
	id          string
	name        string
	trt         string
	minMag      float64
	mutexWeight *float64
}

func NewBase(id, name, trt string) Base {
	return Base{id: id, name: name, trt: trt}
}

func (b *Base) ID() string   { return b.id }
func (b *Base) Name() string { return b.name }
func (b *Base) TRT() string  { return b.trt }

func (b *Base) SetTRT(trt string) { b.trt = trt }

func (b *Base) MinMag() float64 { return b.minMag }

// ApplyMinMag assigns the magnitude floor unless the source already carries
// one.
func (b *Base) ApplyMinMag(floor float64) {
	if b.minMag == 0 {
		b.minMag = floor
	}
}

func (b *Base) MutexWeight() (float64, bool) {
	if b.mutexWeight == nil {
		return 0, false
	}
	return *b.mutexWeight, true
}

func (b *Base) SetMutexWeight(w float64) { b.mutexWeight = &w }

func (*Base) isSource() {}

// magsAbove collects the distinct bin magnitudes of m at or above the floor.
func magsAbove(m mfd.MFD, floor float64) []float64 {
	var mags []float64
	for _, r := range m.AnnualOccurrenceRates() {
		if r.Mag >= floor {
			mags = append(mags, r.Mag)
		}
	}
	slices.Sort(mags)
	return slices.Compact(mags)
}

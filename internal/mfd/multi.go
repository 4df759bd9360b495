package mfd

import (
	"fmt"
)

// Kind names of the distributions a Multi can be made of, matching the block
// tags of the source-description language.
const (
	KindIncremental = "incremental_mfd"
	KindTruncGR     = "trunc_gutenberg_richter_mfd"
	KindArbitrary   = "arbitrary_mfd"
	KindYC          = "youngs_coppersmith_mfd"
)

// multiFields lists, per kind, the scalar and list parameters each
// constituent needs.
var multiFields = map[string]struct{ scalars, lists []string }{
	KindIncremental: {scalars: []string{"min_mag", "bin_width"}, lists: []string{"occur_rates"}},
	KindTruncGR:     {scalars: []string{"min_mag", "max_mag", "a_value", "b_value"}},
	KindArbitrary:   {lists: []string{"magnitudes", "occur_rates"}},
	KindYC:          {scalars: []string{"min_mag", "b_value", "characteristic_mag", "characteristic_rate", "bin_width"}},
}

// FieldsOf reports the scalar and list parameter names of the given
// constituent kind. Converters use it to read exactly the fields a
// multi-distribution block may carry.
func FieldsOf(kind string) (scalars, lists []string, ok bool) {
	f, ok := multiFields[kind]
	return f.scalars, f.lists, ok
}

// MultiParams carries the raw field arrays of a multi distribution. A scalar
// field holds one shared value or Size values; a list field holds one shared
// row or Size rows.
type MultiParams struct {
	Kind   string
	Size   int
	Scalar map[string][]float64
	List   map[string][][]float64

	// DefaultBinWidth applies to Gutenberg-Richter constituents, whose bin
	// width comes from the converter configuration rather than the input.
	DefaultBinWidth float64
}

// Multi is an ordered sequence of same-kind distributions, one per point of a
// multi-point source.
type Multi struct {
	Kind string
	subs []MFD
}

// NewMulti validates the field arrays and builds every constituent
// distribution eagerly, so that invalid parameters surface at conversion
// time.
func NewMulti(p MultiParams) (*Multi, error) {
	fields, ok := multiFields[p.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown constituent kind %q", p.Kind)
	}
	if p.Size < 1 {
		return nil, fmt.Errorf("size %d must be at least 1", p.Size)
	}
	for _, name := range fields.scalars {
		if err := checkMultiLen(name, len(p.Scalar[name]), p.Size); err != nil {
			return nil, err
		}
	}
	for _, name := range fields.lists {
		if err := checkMultiLen(name, len(p.List[name]), p.Size); err != nil {
			return nil, err
		}
	}

	scalar := func(name string, i int) float64 {
		arr := p.Scalar[name]
		if len(arr) == 1 {
			return arr[0]
		}
		return arr[i]
	}
	list := func(name string, i int) []float64 {
		rows := p.List[name]
		if len(rows) == 1 {
			return rows[0]
		}
		return rows[i]
	}

	m := &Multi{Kind: p.Kind, subs: make([]MFD, p.Size)}
	for i := 0; i < p.Size; i++ {
		var sub MFD
		var err error
		switch p.Kind {
		case KindIncremental:
			sub, err = NewEvenlyDiscretized(
				scalar("min_mag", i), scalar("bin_width", i), list("occur_rates", i))
		case KindTruncGR:
			sub, err = NewTruncatedGR(
				scalar("a_value", i), scalar("b_value", i),
				scalar("min_mag", i), scalar("max_mag", i), p.DefaultBinWidth)
		case KindArbitrary:
			sub, err = NewArbitrary(list("magnitudes", i), list("occur_rates", i))
		case KindYC:
			rate := scalar("characteristic_rate", i)
			sub, err = NewYoungsCoppersmith(
				scalar("min_mag", i), scalar("b_value", i),
				scalar("characteristic_mag", i), &rate, nil, scalar("bin_width", i))
		}
		if err != nil {
			return nil, fmt.Errorf("constituent %d: %w", i, err)
		}
		m.subs[i] = sub
	}
	return m, nil
}

func checkMultiLen(name string, got, size int) error {
	if got == 0 {
		return fmt.Errorf("missing field %s", name)
	}
	if got != 1 && got != size {
		return fmt.Errorf("field %s has %d values, want 1 or %d", name, got, size)
	}
	return nil
}

// Len reports the number of constituent distributions.
func (m *Multi) Len() int { return len(m.subs) }

// At returns the i-th constituent distribution.
func (m *Multi) At(i int) MFD { return m.subs[i] }

func (m *Multi) MinMaxMag() (float64, float64) {
	lo, hi := m.subs[0].MinMaxMag()
	for _, sub := range m.subs[1:] {
		l, h := sub.MinMaxMag()
		if l < lo {
			lo = l
		}
		if h > hi {
			hi = h
		}
	}
	return lo, hi
}

// AnnualOccurrenceRates concatenates the rates of every constituent in point
// order.
func (m *Multi) AnnualOccurrenceRates() []Rate {
	var out []Rate
	for _, sub := range m.subs {
		out = append(out, sub.AnnualOccurrenceRates()...)
	}
	return out
}

package mfd

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// Rate is the annual occurrence rate of one magnitude bin, identified by its
// center magnitude.
type Rate struct {
	Mag  float64
	Rate float64
}

// MFD is a discrete magnitude-frequency distribution.
type MFD interface {
	// MinMaxMag returns the magnitude range covered by the distribution.
	MinMaxMag() (min, max float64)
	// AnnualOccurrenceRates returns the per-bin rates ordered by magnitude.
	AnnualOccurrenceRates() []Rate
}

func checkRates(rates []float64) error {
	if len(rates) == 0 {
		return errors.New("at least one occurrence rate is required")
	}
	for _, r := range rates {
		if math.IsNaN(r) || r < 0 {
			return fmt.Errorf("occurrence rate %v must not be negative", r)
		}
	}
	return nil
}

// EvenlyDiscretized is a histogram of annual occurrence rates over bins of
// constant width, the first centered on MinMag.
type EvenlyDiscretized struct {
	MinMag     float64
	BinWidth   float64
	OccurRates []float64
}

func NewEvenlyDiscretized(minMag, binWidth float64, occurRates []float64) (*EvenlyDiscretized, error) {
	if binWidth <= 0 {
		return nil, fmt.Errorf("bin width %v must be positive", binWidth)
	}
	if minMag < 0 {
		return nil, fmt.Errorf("minimum magnitude %v must not be negative", minMag)
	}
	if err := checkRates(occurRates); err != nil {
		return nil, err
	}
	return &EvenlyDiscretized{
		MinMag:     minMag,
		BinWidth:   binWidth,
		OccurRates: slices.Clone(occurRates),
	}, nil
}

func (m *EvenlyDiscretized) MinMaxMag() (float64, float64) {
	return m.MinMag, m.MinMag + m.BinWidth*float64(len(m.OccurRates)-1)
}

func (m *EvenlyDiscretized) AnnualOccurrenceRates() []Rate {
	out := make([]Rate, len(m.OccurRates))
	for i, r := range m.OccurRates {
		out[i] = Rate{Mag: m.MinMag + m.BinWidth*float64(i), Rate: r}
	}
	return out
}

// TruncatedGR is a Gutenberg-Richter relation truncated to [MinMag, MaxMag]
// and discretized into bins of BinWidth. Bin centers sit half a bin inside
// the magnitude limits rounded to the bin grid.
type TruncatedGR struct {
	AVal     float64
	BVal     float64
	MinMag   float64
	MaxMag   float64
	BinWidth float64
}

func NewTruncatedGR(aVal, bVal, minMag, maxMag, binWidth float64) (*TruncatedGR, error) {
	switch {
	case binWidth <= 0:
		return nil, fmt.Errorf("bin width %v must be positive", binWidth)
	case bVal <= 0:
		return nil, fmt.Errorf("b value %v must be positive", bVal)
	case minMag < 0:
		return nil, fmt.Errorf("minimum magnitude %v must not be negative", minMag)
	case maxMag < minMag+binWidth:
		return nil, fmt.Errorf("magnitude range [%v, %v] holds less than one bin of width %v",
			minMag, maxMag, binWidth)
	}
	return &TruncatedGR{AVal: aVal, BVal: bVal, MinMag: minMag, MaxMag: maxMag, BinWidth: binWidth}, nil
}

// cumulative is the annual rate of events with magnitude >= mag under the
// untruncated relation.
func (m *TruncatedGR) cumulative(mag float64) float64 {
	return math.Pow(10, m.AVal-m.BVal*mag)
}

func (m *TruncatedGR) bins() (first float64, n int) {
	lo := math.Round(m.MinMag/m.BinWidth) * m.BinWidth
	hi := math.Round(m.MaxMag/m.BinWidth) * m.BinWidth
	if lo != hi {
		lo += m.BinWidth / 2
		hi -= m.BinWidth / 2
	}
	return lo, int(math.Round((hi-lo)/m.BinWidth)) + 1
}

func (m *TruncatedGR) MinMaxMag() (float64, float64) {
	first, n := m.bins()
	return m.MinMag, first + m.BinWidth*float64(n-1)
}

func (m *TruncatedGR) AnnualOccurrenceRates() []Rate {
	first, n := m.bins()
	out := make([]Rate, n)
	for i := range out {
		mag := first + m.BinWidth*float64(i)
		out[i] = Rate{
			Mag:  mag,
			Rate: m.cumulative(mag-m.BinWidth/2) - m.cumulative(mag+m.BinWidth/2),
		}
	}
	return out
}

// Arbitrary pairs explicit magnitudes with their annual occurrence rates.
type Arbitrary struct {
	Mags       []float64
	OccurRates []float64
}

func NewArbitrary(mags, occurRates []float64) (*Arbitrary, error) {
	if len(mags) != len(occurRates) {
		return nil, fmt.Errorf("%d magnitudes against %d occurrence rates", len(mags), len(occurRates))
	}
	if err := checkRates(occurRates); err != nil {
		return nil, err
	}
	return &Arbitrary{Mags: slices.Clone(mags), OccurRates: slices.Clone(occurRates)}, nil
}

func (m *Arbitrary) MinMaxMag() (float64, float64) {
	return slices.Min(m.Mags), slices.Max(m.Mags)
}

func (m *Arbitrary) AnnualOccurrenceRates() []Rate {
	out := make([]Rate, len(m.Mags))
	for i, mag := range m.Mags {
		out[i] = Rate{Mag: mag, Rate: m.OccurRates[i]}
	}
	return out
}

// DeltaChar is the width of the characteristic box of the Youngs &
// Coppersmith (1985) model.
const DeltaChar = 0.5

// YoungsCoppersmith is the characteristic-earthquake model of Youngs &
// Coppersmith (1985): an exponential part running from MinMag up to
// CharMag-DeltaChar/2, coupled with a uniform characteristic box of width
// DeltaChar centered on CharMag.
type YoungsCoppersmith struct {
	MinMag   float64
	AVal     float64
	BVal     float64
	CharMag  float64
	CharRate float64
	BinWidth float64
}

// NewYoungsCoppersmith builds the model from either the characteristic rate
// or the total moment rate (N*m per year). Exactly one of charRate and
// totalMomentRate must be given.
func NewYoungsCoppersmith(minMag, bVal, charMag float64, charRate, totalMomentRate *float64, binWidth float64) (*YoungsCoppersmith, error) {
	switch {
	case charRate != nil && totalMomentRate != nil:
		return nil, errors.New("characteristic rate and total moment rate are mutually exclusive")
	case charRate != nil:
		return fromCharacteristicRate(minMag, bVal, charMag, *charRate, binWidth)
	case totalMomentRate != nil:
		return fromTotalMomentRate(minMag, bVal, charMag, *totalMomentRate, binWidth)
	}
	return nil, errors.New("either the characteristic rate or the total moment rate is required")
}

func fromCharacteristicRate(minMag, bVal, charMag, charRate, binWidth float64) (*YoungsCoppersmith, error) {
	if charRate <= 0 {
		return nil, fmt.Errorf("characteristic rate %v must be positive", charRate)
	}
	// The characteristic rate equals the exponential rate over the
	// half-magnitude interval one unit below the characteristic box.
	aVal := math.Log10(charRate /
		(math.Pow(10, -bVal*(charMag-1.25)) - math.Pow(10, -bVal*(charMag-0.75))))
	m := &YoungsCoppersmith{
		MinMag:   minMag,
		AVal:     aVal,
		BVal:     bVal,
		CharMag:  charMag,
		CharRate: charRate,
		BinWidth: binWidth,
	}
	if err := m.check(); err != nil {
		return nil, err
	}
	return m, nil
}

func fromTotalMomentRate(minMag, bVal, charMag, totalMomentRate, binWidth float64) (*YoungsCoppersmith, error) {
	if totalMomentRate <= 0 {
		return nil, fmt.Errorf("total moment rate %v must be positive", totalMomentRate)
	}
	// The moment rate scales linearly with the characteristic rate, so
	// build the unit-rate model and rescale it.
	unit, err := fromCharacteristicRate(minMag, bVal, charMag, 1, binWidth)
	if err != nil {
		return nil, err
	}
	return fromCharacteristicRate(minMag, bVal, charMag, totalMomentRate/unit.TotalMomentRate(), binWidth)
}

func (m *YoungsCoppersmith) check() error {
	switch {
	case m.BinWidth <= 0:
		return fmt.Errorf("bin width %v must be positive", m.BinWidth)
	case m.BVal <= 0:
		return fmt.Errorf("b value %v must be positive", m.BVal)
	case m.MinMag < 0:
		return fmt.Errorf("minimum magnitude %v must not be negative", m.MinMag)
	case m.CharMag-DeltaChar/2 < m.MinMag:
		return fmt.Errorf("characteristic box [%v, %v] starts below the minimum magnitude %v",
			m.CharMag-DeltaChar/2, m.CharMag+DeltaChar/2, m.MinMag)
	}
	// Whole bins must tile the exponential part and the characteristic box.
	if !aligned(m.CharMag-DeltaChar/2-m.MinMag, m.BinWidth) {
		return fmt.Errorf("bin width %v does not tile the exponential part [%v, %v]",
			m.BinWidth, m.MinMag, m.CharMag-DeltaChar/2)
	}
	if !aligned(DeltaChar, m.BinWidth) {
		return fmt.Errorf("bin width %v does not tile the characteristic box of width %v",
			m.BinWidth, DeltaChar)
	}
	return nil
}

func aligned(width, bin float64) bool {
	n := math.Round(width / bin)
	return math.Abs(width-n*bin) < 1e-9
}

func (m *YoungsCoppersmith) MinMaxMag() (float64, float64) {
	return m.MinMag, m.CharMag + DeltaChar/2
}

func (m *YoungsCoppersmith) AnnualOccurrenceRates() []Rate {
	expTop := m.CharMag - DeltaChar/2
	nExp := int(math.Round((expTop - m.MinMag) / m.BinWidth))
	nChar := int(math.Round(DeltaChar / m.BinWidth))
	out := make([]Rate, 0, nExp+nChar)
	for i := 0; i < nExp; i++ {
		lo := m.MinMag + m.BinWidth*float64(i)
		out = append(out, Rate{
			Mag:  lo + m.BinWidth/2,
			Rate: math.Pow(10, m.AVal-m.BVal*lo) - math.Pow(10, m.AVal-m.BVal*(lo+m.BinWidth)),
		})
	}
	for i := 0; i < nChar; i++ {
		out = append(out, Rate{
			Mag:  expTop + m.BinWidth*(float64(i)+0.5),
			Rate: m.CharRate / float64(nChar),
		})
	}
	return out
}

// TotalMomentRate sums the seismic moment released per year over all bins,
// with M0 = 10**(1.5 mag + 9.05) N*m.
func (m *YoungsCoppersmith) TotalMomentRate() float64 {
	total := 0.0
	for _, r := range m.AnnualOccurrenceRates() {
		total += r.Rate * math.Pow(10, 1.5*r.Mag+9.05)
	}
	return total
}

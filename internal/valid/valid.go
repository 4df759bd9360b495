package valid

import (
	"fmt"
	"math"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/quakeworks/srcmodel/internal/sml"
)

// Epsilon is the tolerance used whenever a set of probabilities or weights
// must sum to one.
const Epsilon = 1e-12

func number(v cty.Value) (float64, error) {
	cv, err := convert.Convert(v, cty.Number)
	if err != nil {
		return 0, fmt.Errorf("not a number: %s", err)
	}
	if cv.IsNull() {
		return 0, fmt.Errorf("null number")
	}
	f, _ := cv.AsBigFloat().Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return f, nil
}

// Float returns the named attribute as a float64. Missing attribute is fatal.
func Float(n *sml.Node, name string) (float64, error) {
	v, ok := n.Attr(name)
	if !ok {
		return 0, n.Errorf("missing required attribute %q", name)
	}
	f, err := number(v)
	if err != nil {
		return 0, n.Errorf("attribute %q: %s", name, err)
	}
	return f, nil
}

// FloatOpt returns the named attribute as a float64, or nil when absent.
func FloatOpt(n *sml.Node, name string) (*float64, error) {
	if !n.HasAttr(name) {
		return nil, nil
	}
	f, err := Float(n, name)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Int returns the named attribute as an int. Non-integral numbers are fatal.
func Int(n *sml.Node, name string) (int, error) {
	f, err := Float(n, name)
	if err != nil {
		return 0, err
	}
	i := int(f)
	if float64(i) != f {
		return 0, n.Errorf("attribute %q: expected an integer, got %v", name, f)
	}
	return i, nil
}

// Str returns the named attribute as a string. Missing attribute is fatal.
func Str(n *sml.Node, name string) (string, error) {
	v, ok := n.Attr(name)
	if !ok {
		return "", n.Errorf("missing required attribute %q", name)
	}
	cv, err := convert.Convert(v, cty.String)
	if err != nil || cv.IsNull() {
		return "", n.Errorf("attribute %q: not a string", name)
	}
	return cv.AsString(), nil
}

// StrOr returns the named attribute as a string, or the fallback when absent.
func StrOr(n *sml.Node, name, fallback string) (string, error) {
	if !n.HasAttr(name) {
		return fallback, nil
	}
	return Str(n, name)
}

// BoolOr returns the named attribute as a bool, or the fallback when absent.
func BoolOr(n *sml.Node, name string, fallback bool) (bool, error) {
	v, ok := n.Attr(name)
	if !ok {
		return fallback, nil
	}
	cv, err := convert.Convert(v, cty.Bool)
	if err != nil || cv.IsNull() {
		return false, n.Errorf("attribute %q: not a bool", name)
	}
	return cv.True(), nil
}

// Choice returns the named attribute constrained to one of the given
// options, or the fallback when the attribute is absent.
func Choice(n *sml.Node, name, fallback string, options ...string) (string, error) {
	s, err := StrOr(n, name, fallback)
	if err != nil {
		return "", err
	}
	for _, opt := range options {
		if s == opt {
			return s, nil
		}
	}
	return "", n.Errorf("attribute %q: invalid value %q, want one of %v", name, s, options)
}

// FloatList returns the named attribute as a flat list of float64.
func FloatList(n *sml.Node, name string) ([]float64, error) {
	v, ok := n.Attr(name)
	if !ok {
		return nil, n.Errorf("missing required attribute %q", name)
	}
	return floatSlice(n, name, v)
}

// FloatListOpt is FloatList for optional attributes; absent yields nil.
func FloatListOpt(n *sml.Node, name string) ([]float64, error) {
	if !n.HasAttr(name) {
		return nil, nil
	}
	return FloatList(n, name)
}

func floatSlice(n *sml.Node, name string, v cty.Value) ([]float64, error) {
	cv, err := convert.Convert(v, cty.List(cty.Number))
	if err != nil {
		return nil, n.Errorf("attribute %q: not a list of numbers: %s", name, err)
	}
	out := make([]float64, 0, cv.LengthInt())
	for it := cv.ElementIterator(); it.Next(); {
		_, ev := it.Element()
		f, err := number(ev)
		if err != nil {
			return nil, n.Errorf("attribute %q: element %d: %s", name, len(out), err)
		}
		out = append(out, f)
	}
	return out, nil
}

// rowList converts a list-of-lists attribute into rows of a fixed width.
func rowList(n *sml.Node, name string, width int) ([][]float64, error) {
	v, ok := n.Attr(name)
	if !ok {
		return nil, n.Errorf("missing required attribute %q", name)
	}
	cv, err := convert.Convert(v, cty.List(cty.List(cty.Number)))
	if err != nil {
		return nil, n.Errorf("attribute %q: not a list of rows: %s", name, err)
	}
	var rows [][]float64
	for it := cv.ElementIterator(); it.Next(); {
		_, row := it.Element()
		vals := make([]float64, 0, width)
		for rit := row.ElementIterator(); rit.Next(); {
			_, ev := rit.Element()
			f, err := number(ev)
			if err != nil {
				return nil, n.Errorf("attribute %q: row %d: %s", name, len(rows), err)
			}
			vals = append(vals, f)
		}
		if len(vals) != width {
			return nil, n.Errorf("attribute %q: row %d has %d values, want %d",
				name, len(rows), len(vals), width)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// CheckLongitude validates a longitude in decimal degrees.
func CheckLongitude(lon float64) error {
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", lon)
	}
	return nil
}

// CheckLatitude validates a latitude in decimal degrees.
func CheckLatitude(lat float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	return nil
}

// CheckProbability validates a probability.
func CheckProbability(p float64) error {
	if p < 0 || p > 1 {
		return fmt.Errorf("probability %v out of range [0, 1]", p)
	}
	return nil
}

// Probability returns the named attribute as a probability in [0, 1].
func Probability(n *sml.Node, name string) (float64, error) {
	p, err := Float(n, name)
	if err != nil {
		return 0, err
	}
	if err := CheckProbability(p); err != nil {
		return 0, n.Errorf("attribute %q: %s", name, err)
	}
	return p, nil
}

// ProbabilityOpt is Probability for optional attributes; absent yields nil.
func ProbabilityOpt(n *sml.Node, name string) (*float64, error) {
	if !n.HasAttr(name) {
		return nil, nil
	}
	p, err := Probability(n, name)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Probs returns the named attribute as a vector of probabilities. The sum is
// not checked here; distribution constructors own that invariant.
func Probs(n *sml.Node, name string) ([]float64, error) {
	ps, err := FloatList(n, name)
	if err != nil {
		return nil, err
	}
	for i, p := range ps {
		if err := CheckProbability(p); err != nil {
			return nil, n.Errorf("attribute %q: element %d: %s", name, i, err)
		}
	}
	return ps, nil
}

// Pairs splits a flat [lon, lat, lon, lat, ...] attribute into validated
// coordinate pairs.
func Pairs(n *sml.Node, name string) ([][2]float64, error) {
	flat, err := FloatList(n, name)
	if err != nil {
		return nil, err
	}
	if len(flat) == 0 || len(flat)%2 != 0 {
		return nil, n.Errorf("attribute %q: expected an even number of coordinates, got %d", name, len(flat))
	}
	out := make([][2]float64, len(flat)/2)
	for i := range out {
		lon, lat := flat[2*i], flat[2*i+1]
		if err := CheckLongitude(lon); err != nil {
			return nil, n.Errorf("attribute %q: pair %d: %s", name, i, err)
		}
		if err := CheckLatitude(lat); err != nil {
			return nil, n.Errorf("attribute %q: pair %d: %s", name, i, err)
		}
		out[i] = [2]float64{lon, lat}
	}
	return out, nil
}

// Triples splits a flat [lon, lat, depth, ...] attribute into validated
// coordinate triples.
func Triples(n *sml.Node, name string) ([][3]float64, error) {
	flat, err := FloatList(n, name)
	if err != nil {
		return nil, err
	}
	if len(flat) == 0 || len(flat)%3 != 0 {
		return nil, n.Errorf("attribute %q: expected coordinates in lon/lat/depth triples, got %d values", name, len(flat))
	}
	out := make([][3]float64, len(flat)/3)
	for i := range out {
		lon, lat, depth := flat[3*i], flat[3*i+1], flat[3*i+2]
		if err := CheckLongitude(lon); err != nil {
			return nil, n.Errorf("attribute %q: triple %d: %s", name, i, err)
		}
		if err := CheckLatitude(lat); err != nil {
			return nil, n.Errorf("attribute %q: triple %d: %s", name, i, err)
		}
		out[i] = [3]float64{lon, lat, depth}
	}
	return out, nil
}

// HypoList reads an optional hypo_list attribute: rows of
// [along_strike, down_dip, weight] with fractions in [0, 1] and weights
// summing to one.
func HypoList(n *sml.Node, name string) ([][3]float64, error) {
	if !n.HasAttr(name) {
		return nil, nil
	}
	rows, err := rowList(n, name, 3)
	if err != nil {
		return nil, err
	}
	var sum float64
	out := make([][3]float64, len(rows))
	for i, row := range rows {
		for j := 0; j < 2; j++ {
			if row[j] < 0 || row[j] > 1 {
				return nil, n.Errorf("attribute %q: row %d: fraction %v out of range [0, 1]", name, i, row[j])
			}
		}
		if err := CheckProbability(row[2]); err != nil {
			return nil, n.Errorf("attribute %q: row %d: %s", name, i, err)
		}
		sum += row[2]
		out[i] = [3]float64{row[0], row[1], row[2]}
	}
	if math.Abs(sum-1) > Epsilon {
		return nil, n.Errorf("attribute %q: weights sum to %v, want 1", name, sum)
	}
	return out, nil
}

// SlipList reads an optional slip_list attribute: rows of [slip, weight]
// with slip in [0, 360) degrees and weights summing to one.
func SlipList(n *sml.Node, name string) ([][2]float64, error) {
	if !n.HasAttr(name) {
		return nil, nil
	}
	rows, err := rowList(n, name, 2)
	if err != nil {
		return nil, err
	}
	var sum float64
	out := make([][2]float64, len(rows))
	for i, row := range rows {
		if row[0] < 0 || row[0] >= 360 {
			return nil, n.Errorf("attribute %q: row %d: slip %v out of range [0, 360)", name, i, row[0])
		}
		if err := CheckProbability(row[1]); err != nil {
			return nil, n.Errorf("attribute %q: row %d: %s", name, i, err)
		}
		sum += row[1]
		out[i] = [2]float64{row[0], row[1]}
	}
	if math.Abs(sum-1) > Epsilon {
		return nil, n.Errorf("attribute %q: weights sum to %v, want 1", name, sum)
	}
	return out, nil
}

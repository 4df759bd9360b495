package convert

import (
	"slices"

	"github.com/quakeworks/srcmodel/internal/mfd"
	"github.com/quakeworks/srcmodel/internal/sml"
	"github.com/quakeworks/srcmodel/internal/valid"
)

// multiMFDTag is the one distribution block that is not a constituent kind
// by itself.
const multiMFDTag = "multi_mfd"

func isMFDTag(tag string) bool {
	switch tag {
	case mfd.KindIncremental, mfd.KindTruncGR, mfd.KindArbitrary, mfd.KindYC, multiMFDTag:
		return true
	}
	return false
}

// findMFD returns the one distribution block of a source node. Zero or
// several recognized blocks are a structural error.
func findMFD(n *sml.Node) (*sml.Node, error) {
	var found []*sml.Node
	for _, child := range n.Children {
		if isMFDTag(child.Tag) {
			found = append(found, child)
		}
	}
	if len(found) != 1 {
		return nil, n.Errorf("expected exactly one magnitude-frequency distribution block, found %d", len(found))
	}
	return found[0], nil
}

// convertMFD builds the magnitude-frequency distribution declared on a
// source node. Gutenberg-Richter distributions are discretized at the
// converter's bin width; incremental and characteristic ones carry their
// own.
func (c *SourceConverter) convertMFD(n *sml.Node) (mfd.MFD, error) {
	mn, err := findMFD(n)
	if err != nil {
		return nil, err
	}
	switch mn.Tag {
	case mfd.KindIncremental:
		minMag, err := valid.Float(mn, "min_mag")
		if err != nil {
			return nil, err
		}
		binWidth, err := valid.Float(mn, "bin_width")
		if err != nil {
			return nil, err
		}
		rates, err := valid.FloatList(mn, "occur_rates")
		if err != nil {
			return nil, err
		}
		m, err := mfd.NewEvenlyDiscretized(minMag, binWidth, rates)
		if err != nil {
			return nil, mn.Errorf("%s", err)
		}
		return m, nil

	case mfd.KindTruncGR:
		aVal, err := valid.Float(mn, "a_value")
		if err != nil {
			return nil, err
		}
		bVal, err := valid.Float(mn, "b_value")
		if err != nil {
			return nil, err
		}
		minMag, err := valid.Float(mn, "min_mag")
		if err != nil {
			return nil, err
		}
		maxMag, err := valid.Float(mn, "max_mag")
		if err != nil {
			return nil, err
		}
		m, err := mfd.NewTruncatedGR(aVal, bVal, minMag, maxMag, c.p.WidthOfMFDBin)
		if err != nil {
			return nil, mn.Errorf("%s", err)
		}
		return m, nil

	case mfd.KindArbitrary:
		mags, err := valid.FloatList(mn, "magnitudes")
		if err != nil {
			return nil, err
		}
		rates, err := valid.FloatList(mn, "occur_rates")
		if err != nil {
			return nil, err
		}
		m, err := mfd.NewArbitrary(mags, rates)
		if err != nil {
			return nil, mn.Errorf("%s", err)
		}
		return m, nil

	case mfd.KindYC:
		minMag, err := valid.Float(mn, "min_mag")
		if err != nil {
			return nil, err
		}
		bVal, err := valid.Float(mn, "b_value")
		if err != nil {
			return nil, err
		}
		charMag, err := valid.Float(mn, "characteristic_mag")
		if err != nil {
			return nil, err
		}
		charRate, err := valid.FloatOpt(mn, "characteristic_rate")
		if err != nil {
			return nil, err
		}
		momentRate, err := valid.FloatOpt(mn, "total_moment_rate")
		if err != nil {
			return nil, err
		}
		binWidth, err := valid.Float(mn, "bin_width")
		if err != nil {
			return nil, err
		}
		m, err := mfd.NewYoungsCoppersmith(minMag, bVal, charMag, charRate, momentRate, binWidth)
		if err != nil {
			return nil, mn.Errorf("%s", err)
		}
		return m, nil

	default: // multi_mfd
		return c.convertMultiMFD(mn)
	}
}

// convertMultiMFD reads a multi-point distribution block: the kind and size
// attributes plus the kind's own fields, each either shared or per-point.
func (c *SourceConverter) convertMultiMFD(mn *sml.Node) (*mfd.Multi, error) {
	kind, err := valid.Str(mn, "kind")
	if err != nil {
		return nil, err
	}
	size, err := valid.Int(mn, "size")
	if err != nil {
		return nil, err
	}
	scalars, lists, ok := mfd.FieldsOf(kind)
	if !ok {
		return nil, mn.Errorf("unknown constituent kind %q", kind)
	}
	p := mfd.MultiParams{
		Kind:            kind,
		Size:            size,
		Scalar:          make(map[string][]float64, len(scalars)),
		List:            make(map[string][][]float64, len(lists)),
		DefaultBinWidth: c.p.WidthOfMFDBin,
	}
	for _, f := range scalars {
		if !mn.HasAttr(f) {
			continue // NewMulti reports what is actually required
		}
		vals, err := floatScalarOrList(mn, f)
		if err != nil {
			return nil, err
		}
		p.Scalar[f] = vals
	}
	for _, f := range lists {
		if !mn.HasAttr(f) {
			continue
		}
		flat, err := valid.FloatList(mn, f)
		if err != nil {
			return nil, err
		}
		rows, err := partitionRows(mn, flat, size)
		if err != nil {
			return nil, err
		}
		p.List[f] = rows
	}
	m, err := mfd.NewMulti(p)
	if err != nil {
		return nil, mn.Errorf("%s", err)
	}
	return m, nil
}

// partitionRows cuts a flat list field into per-point rows. Without a
// lengths attribute the whole list is one shared row; a scalar length cuts
// uniform rows; a list of lengths cuts ragged rows, one per point.
func partitionRows(mn *sml.Node, flat []float64, size int) ([][]float64, error) {
	if !mn.HasAttr("lengths") {
		return [][]float64{flat}, nil
	}
	raw, err := floatScalarOrList(mn, "lengths")
	if err != nil {
		return nil, err
	}
	lengths := make([]int, len(raw))
	for i, v := range raw {
		lengths[i] = int(v)
		if float64(lengths[i]) != v || lengths[i] < 1 {
			return nil, mn.Errorf("attribute %q: expected positive integers, got %v", "lengths", v)
		}
	}
	if len(lengths) == 1 {
		uniform := lengths[0]
		if uniform*size != len(flat) {
			return nil, mn.Errorf("length %d does not cut %d values into %d rows", uniform, len(flat), size)
		}
		lengths = slices.Repeat([]int{uniform}, size)
	} else if len(lengths) != size {
		return nil, mn.Errorf("attribute %q has %d values, want 1 or %d", "lengths", len(lengths), size)
	}
	total := 0
	for _, l := range lengths {
		total += l
	}
	if total != len(flat) {
		return nil, mn.Errorf("lengths sum to %d but the field holds %d values", total, len(flat))
	}
	rows := make([][]float64, size)
	off := 0
	for i, l := range lengths {
		rows[i] = flat[off : off+l]
		off += l
	}
	return rows, nil
}

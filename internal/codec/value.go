package codec

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/quakeworks/srcmodel/internal/geo"
	"github.com/quakeworks/srcmodel/internal/mfd"
	"github.com/quakeworks/srcmodel/internal/pmf"
	"github.com/quakeworks/srcmodel/internal/tom"
)

// Fragment types shared by the payload schemas. Union types (mfdType,
// surfaceType) declare one attribute set covering every variant and null
// the attributes a variant does not use.
var (
	coordType = cty.Object(map[string]cty.Type{
		"lon":   cty.Number,
		"lat":   cty.Number,
		"depth": cty.Number,
	})

	nodalPlaneType = cty.Object(map[string]cty.Type{
		"probability": cty.Number,
		"strike":      cty.Number,
		"dip":         cty.Number,
		"rake":        cty.Number,
	})

	hypoDepthType = cty.Object(map[string]cty.Type{
		"probability": cty.Number,
		"depth":       cty.Number,
	})

	tomType = cty.Object(map[string]cty.Type{
		"name":            cty.String,
		"time_span":       cty.Number,
		"occurrence_rate": cty.Number,
	})

	mfdType = cty.Object(map[string]cty.Type{
		"kind":        cty.String,
		"min_mag":     cty.Number,
		"bin_width":   cty.Number,
		"a_value":     cty.Number,
		"b_value":     cty.Number,
		"max_mag":     cty.Number,
		"char_mag":    cty.Number,
		"char_rate":   cty.Number,
		"magnitudes":  cty.List(cty.Number),
		"occur_rates": cty.List(cty.Number),
		// size, scalar and rows describe multi distributions; size is
		// null on the scalar kinds.
		"size":   cty.Number,
		"scalar": cty.Map(cty.List(cty.Number)),
		"rows":   cty.Map(cty.List(cty.List(cty.Number))),
	})

	planarType = cty.Object(map[string]cty.Type{
		"top_left":     coordType,
		"top_right":    coordType,
		"bottom_right": coordType,
		"bottom_left":  coordType,
	})

	surfaceType = cty.Object(map[string]cty.Type{
		"kind":    cty.String,
		"planes":  cty.List(planarType),
		"trace":   cty.List(coordType),
		"upper":   cty.Number,
		"lower":   cty.Number,
		"dip":     cty.Number,
		"spacing": cty.Number,
		"edges":   cty.List(cty.List(coordType)),
		"points":  cty.List(coordType),
	})

	ruptureType = cty.Object(map[string]cty.Type{
		"mag":         cty.Number,
		"rake":        cty.Number,
		"trt":         cty.String,
		"hypocenter":  coordType,
		"surface":     surfaceType,
		"probs_occur": cty.List(cty.Number),
		"weight":      cty.Number,
	})
)

func num(f float64) cty.Value { return cty.NumberFloatVal(f) }

func numOf(v cty.Value) float64 {
	f, _ := v.AsBigFloat().Float64()
	return f
}

func intOf(v cty.Value) int {
	i, _ := v.AsBigFloat().Int64()
	return int(i)
}

func listVal(ty cty.Type, elems []cty.Value) cty.Value {
	if len(elems) == 0 {
		return cty.ListValEmpty(ty)
	}
	return cty.ListVal(elems)
}

func numList(vals []float64) cty.Value {
	elems := make([]cty.Value, len(vals))
	for i, f := range vals {
		elems[i] = num(f)
	}
	return listVal(cty.Number, elems)
}

func floats(v cty.Value) []float64 {
	if v.IsNull() || v.LengthInt() == 0 {
		return nil
	}
	out := make([]float64, 0, v.LengthInt())
	for _, ev := range v.AsValueSlice() {
		out = append(out, numOf(ev))
	}
	return out
}

func coordValue(p geo.Point) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"lon":   num(p.Lon),
		"lat":   num(p.Lat),
		"depth": num(p.Depth),
	})
}

func decodeCoord(v cty.Value) geo.Point {
	return geo.Point{
		Lon:   numOf(v.GetAttr("lon")),
		Lat:   numOf(v.GetAttr("lat")),
		Depth: numOf(v.GetAttr("depth")),
	}
}

func coordList(pts []geo.Point) cty.Value {
	elems := make([]cty.Value, len(pts))
	for i, p := range pts {
		elems[i] = coordValue(p)
	}
	return listVal(coordType, elems)
}

func decodeCoords(v cty.Value) []geo.Point {
	out := make([]geo.Point, 0, v.LengthInt())
	for _, ev := range v.AsValueSlice() {
		out = append(out, decodeCoord(ev))
	}
	return out
}

func planesValue(d *pmf.PMF[geo.NodalPlane]) cty.Value {
	elems := make([]cty.Value, 0, d.Len())
	for _, p := range d.Pairs() {
		elems = append(elems, cty.ObjectVal(map[string]cty.Value{
			"probability": num(p.Prob),
			"strike":      num(p.Value.Strike),
			"dip":         num(p.Value.Dip),
			"rake":        num(p.Value.Rake),
		}))
	}
	return listVal(nodalPlaneType, elems)
}

func decodePlanes(v cty.Value) (*pmf.PMF[geo.NodalPlane], error) {
	pairs := make([]pmf.Pair[geo.NodalPlane], 0, v.LengthInt())
	for _, ev := range v.AsValueSlice() {
		np, err := geo.NewNodalPlane(
			numOf(ev.GetAttr("strike")), numOf(ev.GetAttr("dip")), numOf(ev.GetAttr("rake")))
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pmf.Pair[geo.NodalPlane]{Prob: numOf(ev.GetAttr("probability")), Value: np})
	}
	return pmf.New(pairs)
}

func depthsValue(d *pmf.PMF[float64]) cty.Value {
	elems := make([]cty.Value, 0, d.Len())
	for _, p := range d.Pairs() {
		elems = append(elems, cty.ObjectVal(map[string]cty.Value{
			"probability": num(p.Prob),
			"depth":       num(p.Value),
		}))
	}
	return listVal(hypoDepthType, elems)
}

func decodeDepths(v cty.Value) (*pmf.PMF[float64], error) {
	pairs := make([]pmf.Pair[float64], 0, v.LengthInt())
	for _, ev := range v.AsValueSlice() {
		pairs = append(pairs, pmf.Pair[float64]{
			Prob:  numOf(ev.GetAttr("probability")),
			Value: numOf(ev.GetAttr("depth")),
		})
	}
	return pmf.New(pairs)
}

func tomValue(t tom.TOM) cty.Value {
	if t == nil {
		return cty.NullVal(tomType)
	}
	rate := cty.NullVal(cty.Number)
	if r, ok := t.OccurrenceRate(); ok {
		rate = num(r)
	}
	return cty.ObjectVal(map[string]cty.Value{
		"name":            cty.StringVal(t.Name()),
		"time_span":       num(t.TimeSpan()),
		"occurrence_rate": rate,
	})
}

func decodeTOM(v cty.Value) (tom.TOM, error) {
	if v.IsNull() {
		return nil, nil
	}
	var rate *float64
	if rv := v.GetAttr("occurrence_rate"); !rv.IsNull() {
		r := numOf(rv)
		rate = &r
	}
	return tom.Builtin().New(v.GetAttr("name").AsString(), numOf(v.GetAttr("time_span")), rate)
}

// mfdValue flattens a distribution into the union object. A multi
// distribution stores its constituents as co-indexed parameter columns and
// is told apart by a non-null size.
func mfdValue(m mfd.MFD) (cty.Value, error) {
	attrs := make(map[string]cty.Value, len(mfdType.AttributeTypes()))
	for name, ty := range mfdType.AttributeTypes() {
		attrs[name] = cty.NullVal(ty)
	}
	switch d := m.(type) {
	case *mfd.EvenlyDiscretized:
		attrs["kind"] = cty.StringVal(mfd.KindIncremental)
		attrs["min_mag"] = num(d.MinMag)
		attrs["bin_width"] = num(d.BinWidth)
		attrs["occur_rates"] = numList(d.OccurRates)
	case *mfd.TruncatedGR:
		attrs["kind"] = cty.StringVal(mfd.KindTruncGR)
		attrs["a_value"] = num(d.AVal)
		attrs["b_value"] = num(d.BVal)
		attrs["min_mag"] = num(d.MinMag)
		attrs["max_mag"] = num(d.MaxMag)
		attrs["bin_width"] = num(d.BinWidth)
	case *mfd.Arbitrary:
		attrs["kind"] = cty.StringVal(mfd.KindArbitrary)
		attrs["magnitudes"] = numList(d.Mags)
		attrs["occur_rates"] = numList(d.OccurRates)
	case *mfd.YoungsCoppersmith:
		attrs["kind"] = cty.StringVal(mfd.KindYC)
		attrs["min_mag"] = num(d.MinMag)
		attrs["b_value"] = num(d.BVal)
		attrs["char_mag"] = num(d.CharMag)
		attrs["char_rate"] = num(d.CharRate)
		attrs["bin_width"] = num(d.BinWidth)
	case *mfd.Multi:
		p, err := multiColumns(d)
		if err != nil {
			return cty.NilVal, err
		}
		attrs["kind"] = cty.StringVal(d.Kind)
		attrs["size"] = cty.NumberIntVal(int64(p.Size))
		if d.Kind == mfd.KindTruncGR {
			attrs["bin_width"] = num(p.DefaultBinWidth)
		}
		attrs["scalar"] = scalarColumns(p.Scalar)
		attrs["rows"] = listColumns(p.List)
	default:
		return cty.NilVal, fmt.Errorf("distribution %T has no binary form", m)
	}
	return cty.ObjectVal(attrs), nil
}

// multiColumns projects a multi distribution back onto the per-constituent
// parameter columns NewMulti consumes.
func multiColumns(d *mfd.Multi) (mfd.MultiParams, error) {
	p := mfd.MultiParams{
		Kind:   d.Kind,
		Size:   d.Len(),
		Scalar: map[string][]float64{},
		List:   map[string][][]float64{},
	}
	sc := func(name string, v float64) { p.Scalar[name] = append(p.Scalar[name], v) }
	li := func(name string, v []float64) { p.List[name] = append(p.List[name], v) }
	for i := 0; i < d.Len(); i++ {
		switch sub := d.At(i).(type) {
		case *mfd.EvenlyDiscretized:
			sc("min_mag", sub.MinMag)
			sc("bin_width", sub.BinWidth)
			li("occur_rates", sub.OccurRates)
		case *mfd.TruncatedGR:
			sc("a_value", sub.AVal)
			sc("b_value", sub.BVal)
			sc("min_mag", sub.MinMag)
			sc("max_mag", sub.MaxMag)
			p.DefaultBinWidth = sub.BinWidth
		case *mfd.Arbitrary:
			li("magnitudes", sub.Mags)
			li("occur_rates", sub.OccurRates)
		case *mfd.YoungsCoppersmith:
			sc("min_mag", sub.MinMag)
			sc("b_value", sub.BVal)
			sc("characteristic_mag", sub.CharMag)
			sc("characteristic_rate", sub.CharRate)
			sc("bin_width", sub.BinWidth)
		default:
			return p, fmt.Errorf("constituent %T has no binary form", sub)
		}
	}
	return p, nil
}

func scalarColumns(cols map[string][]float64) cty.Value {
	if len(cols) == 0 {
		return cty.MapValEmpty(cty.List(cty.Number))
	}
	out := make(map[string]cty.Value, len(cols))
	for name, vals := range cols {
		out[name] = numList(vals)
	}
	return cty.MapVal(out)
}

func listColumns(cols map[string][][]float64) cty.Value {
	if len(cols) == 0 {
		return cty.MapValEmpty(cty.List(cty.List(cty.Number)))
	}
	out := make(map[string]cty.Value, len(cols))
	for name, rows := range cols {
		elems := make([]cty.Value, len(rows))
		for i, row := range rows {
			elems[i] = numList(row)
		}
		out[name] = listVal(cty.List(cty.Number), elems)
	}
	return cty.MapVal(out)
}

func decodeMFD(v cty.Value) (mfd.MFD, error) {
	kind := v.GetAttr("kind").AsString()
	if sz := v.GetAttr("size"); !sz.IsNull() {
		p := mfd.MultiParams{
			Kind:   kind,
			Size:   intOf(sz),
			Scalar: map[string][]float64{},
			List:   map[string][][]float64{},
		}
		if bw := v.GetAttr("bin_width"); !bw.IsNull() {
			p.DefaultBinWidth = numOf(bw)
		}
		for name, lv := range v.GetAttr("scalar").AsValueMap() {
			p.Scalar[name] = floats(lv)
		}
		for name, rv := range v.GetAttr("rows").AsValueMap() {
			rows := make([][]float64, 0, rv.LengthInt())
			for _, row := range rv.AsValueSlice() {
				rows = append(rows, floats(row))
			}
			p.List[name] = rows
		}
		return mfd.NewMulti(p)
	}
	switch kind {
	case mfd.KindIncremental:
		return mfd.NewEvenlyDiscretized(
			numOf(v.GetAttr("min_mag")), numOf(v.GetAttr("bin_width")), floats(v.GetAttr("occur_rates")))
	case mfd.KindTruncGR:
		return mfd.NewTruncatedGR(
			numOf(v.GetAttr("a_value")), numOf(v.GetAttr("b_value")),
			numOf(v.GetAttr("min_mag")), numOf(v.GetAttr("max_mag")), numOf(v.GetAttr("bin_width")))
	case mfd.KindArbitrary:
		return mfd.NewArbitrary(floats(v.GetAttr("magnitudes")), floats(v.GetAttr("occur_rates")))
	case mfd.KindYC:
		rate := numOf(v.GetAttr("char_rate"))
		return mfd.NewYoungsCoppersmith(
			numOf(v.GetAttr("min_mag")), numOf(v.GetAttr("b_value")),
			numOf(v.GetAttr("char_mag")), &rate, nil, numOf(v.GetAttr("bin_width")))
	}
	return nil, fmt.Errorf("unknown distribution kind %q", kind)
}

func planarValue(p *geo.PlanarSurface) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"top_left":     coordValue(p.TopLeft),
		"top_right":    coordValue(p.TopRight),
		"bottom_right": coordValue(p.BottomRight),
		"bottom_left":  coordValue(p.BottomLeft),
	})
}

func decodePlanar(v cty.Value) (*geo.PlanarSurface, error) {
	return geo.NewPlanarSurface(
		decodeCoord(v.GetAttr("top_left")),
		decodeCoord(v.GetAttr("top_right")),
		decodeCoord(v.GetAttr("bottom_right")),
		decodeCoord(v.GetAttr("bottom_left")),
	)
}

func surfaceValue(s geo.Surface) (cty.Value, error) {
	attrs := make(map[string]cty.Value, len(surfaceType.AttributeTypes()))
	for name, ty := range surfaceType.AttributeTypes() {
		attrs[name] = cty.NullVal(ty)
	}
	switch f := s.(type) {
	case *geo.PlanarSurface:
		attrs["kind"] = cty.StringVal("planar")
		attrs["planes"] = listVal(planarType, []cty.Value{planarValue(f)})
	case *geo.MultiSurface:
		elems := make([]cty.Value, len(f.Surfaces))
		for i, p := range f.Surfaces {
			elems[i] = planarValue(p)
		}
		attrs["kind"] = cty.StringVal("multi")
		attrs["planes"] = listVal(planarType, elems)
	case *geo.SimpleFaultSurface:
		attrs["kind"] = cty.StringVal("simple_fault")
		attrs["trace"] = coordList(f.Trace.Points)
		attrs["upper"] = num(f.UpperDepth)
		attrs["lower"] = num(f.LowerDepth)
		attrs["dip"] = num(f.Dip)
		attrs["spacing"] = num(f.MeshSpacing)
	case *geo.ComplexFaultSurface:
		elems := make([]cty.Value, len(f.Edges))
		for i, e := range f.Edges {
			elems[i] = coordList(e.Points)
		}
		attrs["kind"] = cty.StringVal("complex_fault")
		attrs["edges"] = listVal(cty.List(coordType), elems)
		attrs["spacing"] = num(f.MeshSpacing)
	case *geo.GriddedSurface:
		attrs["kind"] = cty.StringVal("gridded")
		attrs["points"] = coordList(f.Points)
	default:
		return cty.NilVal, fmt.Errorf("surface %T has no binary form", s)
	}
	return cty.ObjectVal(attrs), nil
}

func decodeSurface(v cty.Value) (geo.Surface, error) {
	switch kind := v.GetAttr("kind").AsString(); kind {
	case "planar":
		planes := v.GetAttr("planes").AsValueSlice()
		if len(planes) != 1 {
			return nil, fmt.Errorf("a planar surface holds 1 plane, got %d", len(planes))
		}
		return decodePlanar(planes[0])
	case "multi":
		pvs := v.GetAttr("planes").AsValueSlice()
		planes := make([]*geo.PlanarSurface, 0, len(pvs))
		for _, pv := range pvs {
			p, err := decodePlanar(pv)
			if err != nil {
				return nil, err
			}
			planes = append(planes, p)
		}
		return geo.NewMultiSurface(planes)
	case "simple_fault":
		trace, err := geo.NewLine(decodeCoords(v.GetAttr("trace")))
		if err != nil {
			return nil, err
		}
		return geo.NewSimpleFaultSurface(trace,
			numOf(v.GetAttr("upper")), numOf(v.GetAttr("lower")),
			numOf(v.GetAttr("dip")), numOf(v.GetAttr("spacing")))
	case "complex_fault":
		evs := v.GetAttr("edges").AsValueSlice()
		edges := make([]geo.Line, 0, len(evs))
		for _, ev := range evs {
			e, err := geo.NewLine(decodeCoords(ev))
			if err != nil {
				return nil, err
			}
			edges = append(edges, e)
		}
		return geo.NewComplexFaultSurface(edges, numOf(v.GetAttr("spacing")))
	case "gridded":
		return geo.NewGriddedSurface(decodeCoords(v.GetAttr("points")))
	default:
		return nil, fmt.Errorf("unknown surface kind %q", kind)
	}
}

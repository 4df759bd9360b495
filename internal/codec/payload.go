package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/zclconf/go-cty/cty"
	ctymsgpack "github.com/zclconf/go-cty/cty/msgpack"

	"github.com/quakeworks/srcmodel/internal/geo"
	"github.com/quakeworks/srcmodel/internal/mfd"
	"github.com/quakeworks/srcmodel/internal/pmf"
	"github.com/quakeworks/srcmodel/internal/scalerel"
	"github.com/quakeworks/srcmodel/internal/source"
	"github.com/quakeworks/srcmodel/internal/tom"
)

// payloadType builds a payload schema from the attributes every source
// stores plus the kind-specific ones.
func payloadType(attrs map[string]cty.Type) cty.Type {
	all := map[string]cty.Type{
		"id":           cty.String,
		"name":         cty.String,
		"min_mag":      cty.Number,
		"mutex_weight": cty.Number,
	}
	for name, ty := range attrs {
		all[name] = ty
	}
	return cty.Object(all)
}

var (
	pointPayload = payloadType(map[string]cty.Type{
		"lon":          cty.Number,
		"lat":          cty.Number,
		"upper":        cty.Number,
		"lower":        cty.Number,
		"mfd":          mfdType,
		"nodal_planes": cty.List(nodalPlaneType),
		"hypo_depths":  cty.List(hypoDepthType),
		"msr":          cty.String,
		"aspect":       cty.Number,
		"spacing":      cty.Number,
		"tom":          tomType,
	})

	areaPayload = payloadType(map[string]cty.Type{
		"polygon":        cty.List(coordType),
		"discretization": cty.Number,
		"upper":          cty.Number,
		"lower":          cty.Number,
		"mfd":            mfdType,
		"nodal_planes":   cty.List(nodalPlaneType),
		"hypo_depths":    cty.List(hypoDepthType),
		"msr":            cty.String,
		"aspect":         cty.Number,
		"spacing":        cty.Number,
		"tom":            tomType,
	})

	multiPointPayload = payloadType(map[string]cty.Type{
		"lons":         cty.List(cty.Number),
		"lats":         cty.List(cty.Number),
		"upper":        cty.List(cty.Number),
		"lower":        cty.List(cty.Number),
		"mfd":          mfdType,
		"nodal_planes": cty.List(nodalPlaneType),
		"hypo_depths":  cty.List(hypoDepthType),
		"msr":          cty.String,
		"aspect":       cty.Number,
		"spacing":      cty.Number,
		"tom":          tomType,
	})

	simpleFaultPayload = payloadType(map[string]cty.Type{
		"surface":   surfaceType,
		"rake":      cty.Number,
		"mfd":       mfdType,
		"msr":       cty.String,
		"aspect":    cty.Number,
		"hypo_list": cty.List(cty.List(cty.Number)),
		"slip_list": cty.List(cty.List(cty.Number)),
		"tom":       tomType,
	})

	complexFaultPayload = payloadType(map[string]cty.Type{
		"surface": surfaceType,
		"rake":    cty.Number,
		"mfd":     mfdType,
		"msr":     cty.String,
		"aspect":  cty.Number,
		"tom":     tomType,
	})

	characteristicPayload = payloadType(map[string]cty.Type{
		"surface": surfaceType,
		"rake":    cty.Number,
		"mfd":     mfdType,
		"tom":     tomType,
	})

	nonParametricPayload = payloadType(map[string]cty.Type{
		"ruptures":   cty.List(ruptureType),
		"splittable": cty.Bool,
	})
)

// payloadSchema returns the payload type and decoder of a source kind.
func payloadSchema(kind source.Kind) (cty.Type, func(cty.Value) (source.Source, error)) {
	switch kind {
	case source.KindPoint:
		return pointPayload, decodePoint
	case source.KindArea:
		return areaPayload, decodeArea
	case source.KindMultiPoint:
		return multiPointPayload, decodeMultiPoint
	case source.KindSimpleFault:
		return simpleFaultPayload, decodeSimpleFault
	case source.KindComplexFault:
		return complexFaultPayload, decodeComplexFault
	case source.KindCharacteristicFault:
		return characteristicPayload, decodeCharacteristic
	case source.KindNonParametric:
		return nonParametricPayload, decodeNonParametric
	}
	return cty.NilType, nil
}

func encodeSource(src source.Source) ([]byte, error) {
	var (
		val cty.Value
		err error
	)
	switch s := src.(type) {
	case *source.PointSource:
		val, err = pointValue(s)
	case *source.AreaSource:
		val, err = areaValue(s)
	case *source.MultiPointSource:
		val, err = multiPointValue(s)
	case *source.SimpleFaultSource:
		val, err = simpleFaultValue(s)
	case *source.ComplexFaultSource:
		val, err = complexFaultValue(s)
	case *source.CharacteristicFaultSource:
		val, err = characteristicValue(s)
	case *source.NonParametric:
		val, err = nonParametricValue(s)
	default:
		return nil, fmt.Errorf("%T has no binary form", src)
	}
	if err != nil {
		return nil, err
	}
	ty, _ := payloadSchema(src.Kind())
	blob, err := ctymsgpack.Marshal(val, ty)
	if err != nil {
		return nil, err
	}
	return append([]byte{payloadVersion, byte(src.Kind())}, blob...), nil
}

func decodeSource(payload []byte) (source.Source, error) {
	if len(payload) < 2 {
		return nil, io.ErrUnexpectedEOF
	}
	if payload[0] != payloadVersion {
		return nil, fmt.Errorf("unsupported payload version %d", payload[0])
	}
	ty, decode := payloadSchema(source.Kind(payload[1]))
	if decode == nil {
		return nil, fmt.Errorf("unknown source kind byte %d", payload[1])
	}
	val, err := ctymsgpack.Unmarshal(payload[2:], ty)
	if err != nil {
		return nil, err
	}
	return decode(val)
}

func baseAttrs(src source.Source) map[string]cty.Value {
	attrs := map[string]cty.Value{
		"id":           cty.StringVal(src.ID()),
		"name":         cty.StringVal(src.Name()),
		"min_mag":      num(src.MinMag()),
		"mutex_weight": cty.NullVal(cty.Number),
	}
	if w, ok := src.MutexWeight(); ok {
		attrs["mutex_weight"] = num(w)
	}
	return attrs
}

// decodeBase rebuilds the common fields. The tectonic region type comes
// from the group header, not the payload.
func decodeBase(v cty.Value) source.Base {
	b := source.NewBase(v.GetAttr("id").AsString(), v.GetAttr("name").AsString(), "")
	b.ApplyMinMag(numOf(v.GetAttr("min_mag")))
	if w := v.GetAttr("mutex_weight"); !w.IsNull() {
		b.SetMutexWeight(numOf(w))
	}
	return b
}

// distAttrs fills the seismicity attributes shared by the point-like
// sources.
func distAttrs(attrs map[string]cty.Value, m mfd.MFD, planes *pmf.PMF[geo.NodalPlane],
	depths *pmf.PMF[float64], rel scalerel.MagScaleRel, t tom.TOM) error {
	dist, err := mfdValue(m)
	if err != nil {
		return err
	}
	attrs["mfd"] = dist
	attrs["nodal_planes"] = planesValue(planes)
	attrs["hypo_depths"] = depthsValue(depths)
	attrs["msr"] = cty.StringVal(rel.Name())
	attrs["tom"] = tomValue(t)
	return nil
}

// dists is the decoded counterpart of distAttrs.
type dists struct {
	mfd    mfd.MFD
	planes *pmf.PMF[geo.NodalPlane]
	depths *pmf.PMF[float64]
	rel    scalerel.MagScaleRel
	tom    tom.TOM
}

func decodeDists(v cty.Value) (dists, error) {
	var d dists
	var err error
	if d.mfd, err = decodeMFD(v.GetAttr("mfd")); err != nil {
		return d, err
	}
	if d.planes, err = decodePlanes(v.GetAttr("nodal_planes")); err != nil {
		return d, err
	}
	if d.depths, err = decodeDepths(v.GetAttr("hypo_depths")); err != nil {
		return d, err
	}
	if d.rel, err = scalerel.Builtin().Get(v.GetAttr("msr").AsString()); err != nil {
		return d, err
	}
	if d.tom, err = decodeTOM(v.GetAttr("tom")); err != nil {
		return d, err
	}
	return d, nil
}

func pointValue(s *source.PointSource) (cty.Value, error) {
	attrs := baseAttrs(s)
	if err := distAttrs(attrs, s.MFD, s.NodalPlaneDist, s.HypoDepthDist, s.MagScaleRel, s.TOM); err != nil {
		return cty.NilVal, err
	}
	attrs["lon"] = num(s.Location.Lon)
	attrs["lat"] = num(s.Location.Lat)
	attrs["upper"] = num(s.UpperSeismoDepth)
	attrs["lower"] = num(s.LowerSeismoDepth)
	attrs["aspect"] = num(s.RuptAspectRatio)
	attrs["spacing"] = num(s.MeshSpacing)
	return cty.ObjectVal(attrs), nil
}

func decodePoint(v cty.Value) (source.Source, error) {
	d, err := decodeDists(v)
	if err != nil {
		return nil, err
	}
	return &source.PointSource{
		Base:             decodeBase(v),
		Location:         geo.Point{Lon: numOf(v.GetAttr("lon")), Lat: numOf(v.GetAttr("lat"))},
		UpperSeismoDepth: numOf(v.GetAttr("upper")),
		LowerSeismoDepth: numOf(v.GetAttr("lower")),
		MFD:              d.mfd,
		NodalPlaneDist:   d.planes,
		HypoDepthDist:    d.depths,
		MagScaleRel:      d.rel,
		RuptAspectRatio:  numOf(v.GetAttr("aspect")),
		MeshSpacing:      numOf(v.GetAttr("spacing")),
		TOM:              d.tom,
	}, nil
}

func areaValue(s *source.AreaSource) (cty.Value, error) {
	attrs := baseAttrs(s)
	if err := distAttrs(attrs, s.MFD, s.NodalPlaneDist, s.HypoDepthDist, s.MagScaleRel, s.TOM); err != nil {
		return cty.NilVal, err
	}
	attrs["polygon"] = coordList(s.Polygon.Points)
	attrs["discretization"] = num(s.Discretization)
	attrs["upper"] = num(s.UpperSeismoDepth)
	attrs["lower"] = num(s.LowerSeismoDepth)
	attrs["aspect"] = num(s.RuptAspectRatio)
	attrs["spacing"] = num(s.MeshSpacing)
	return cty.ObjectVal(attrs), nil
}

func decodeArea(v cty.Value) (source.Source, error) {
	d, err := decodeDists(v)
	if err != nil {
		return nil, err
	}
	poly, err := geo.NewPolygon(decodeCoords(v.GetAttr("polygon")))
	if err != nil {
		return nil, err
	}
	return &source.AreaSource{
		Base:             decodeBase(v),
		Polygon:          poly,
		Discretization:   numOf(v.GetAttr("discretization")),
		UpperSeismoDepth: numOf(v.GetAttr("upper")),
		LowerSeismoDepth: numOf(v.GetAttr("lower")),
		MFD:              d.mfd,
		NodalPlaneDist:   d.planes,
		HypoDepthDist:    d.depths,
		MagScaleRel:      d.rel,
		RuptAspectRatio:  numOf(v.GetAttr("aspect")),
		MeshSpacing:      numOf(v.GetAttr("spacing")),
		TOM:              d.tom,
	}, nil
}

func multiPointValue(s *source.MultiPointSource) (cty.Value, error) {
	attrs := baseAttrs(s)
	if err := distAttrs(attrs, s.MFD, s.NodalPlaneDist, s.HypoDepthDist, s.MagScaleRel, s.TOM); err != nil {
		return cty.NilVal, err
	}
	attrs["lons"] = numList(s.Mesh.Lons)
	attrs["lats"] = numList(s.Mesh.Lats)
	attrs["upper"] = numList(s.UpperSeismoDepths)
	attrs["lower"] = numList(s.LowerSeismoDepths)
	attrs["aspect"] = num(s.RuptAspectRatio)
	attrs["spacing"] = num(s.MeshSpacing)
	return cty.ObjectVal(attrs), nil
}

func decodeMultiPoint(v cty.Value) (source.Source, error) {
	d, err := decodeDists(v)
	if err != nil {
		return nil, err
	}
	multi, ok := d.mfd.(*mfd.Multi)
	if !ok {
		return nil, errors.New("a multi point source needs a multi distribution")
	}
	return &source.MultiPointSource{
		Base:              decodeBase(v),
		Mesh:              geo.Mesh{Lons: floats(v.GetAttr("lons")), Lats: floats(v.GetAttr("lats"))},
		UpperSeismoDepths: floats(v.GetAttr("upper")),
		LowerSeismoDepths: floats(v.GetAttr("lower")),
		MFD:               multi,
		NodalPlaneDist:    d.planes,
		HypoDepthDist:     d.depths,
		MagScaleRel:       d.rel,
		RuptAspectRatio:   numOf(v.GetAttr("aspect")),
		MeshSpacing:       numOf(v.GetAttr("spacing")),
		TOM:               d.tom,
	}, nil
}

func simpleFaultValue(s *source.SimpleFaultSource) (cty.Value, error) {
	surf, err := surfaceValue(s.Surface)
	if err != nil {
		return cty.NilVal, err
	}
	dist, err := mfdValue(s.MFD)
	if err != nil {
		return cty.NilVal, err
	}
	hypos := make([]cty.Value, len(s.HypoList))
	for i, r := range s.HypoList {
		hypos[i] = numList(r[:])
	}
	slips := make([]cty.Value, len(s.SlipList))
	for i, r := range s.SlipList {
		slips[i] = numList(r[:])
	}
	attrs := baseAttrs(s)
	attrs["surface"] = surf
	attrs["rake"] = num(s.Rake)
	attrs["mfd"] = dist
	attrs["msr"] = cty.StringVal(s.MagScaleRel.Name())
	attrs["aspect"] = num(s.RuptAspectRatio)
	attrs["hypo_list"] = listVal(cty.List(cty.Number), hypos)
	attrs["slip_list"] = listVal(cty.List(cty.Number), slips)
	attrs["tom"] = tomValue(s.TOM)
	return cty.ObjectVal(attrs), nil
}

func decodeSimpleFault(v cty.Value) (source.Source, error) {
	surf, err := decodeSurface(v.GetAttr("surface"))
	if err != nil {
		return nil, err
	}
	fault, ok := surf.(*geo.SimpleFaultSurface)
	if !ok {
		return nil, errors.New("a simple fault source needs a simple fault surface")
	}
	dist, err := decodeMFD(v.GetAttr("mfd"))
	if err != nil {
		return nil, err
	}
	rel, err := scalerel.Builtin().Get(v.GetAttr("msr").AsString())
	if err != nil {
		return nil, err
	}
	var hypos [][3]float64
	for _, rv := range v.GetAttr("hypo_list").AsValueSlice() {
		row := floats(rv)
		if len(row) != 3 {
			return nil, fmt.Errorf("hypocenter row holds %d values, want 3", len(row))
		}
		hypos = append(hypos, [3]float64(row))
	}
	var slips [][2]float64
	for _, rv := range v.GetAttr("slip_list").AsValueSlice() {
		row := floats(rv)
		if len(row) != 2 {
			return nil, fmt.Errorf("slip row holds %d values, want 2", len(row))
		}
		slips = append(slips, [2]float64(row))
	}
	t, err := decodeTOM(v.GetAttr("tom"))
	if err != nil {
		return nil, err
	}
	return &source.SimpleFaultSource{
		Base:            decodeBase(v),
		Surface:         fault,
		Rake:            numOf(v.GetAttr("rake")),
		MFD:             dist,
		MagScaleRel:     rel,
		RuptAspectRatio: numOf(v.GetAttr("aspect")),
		HypoList:        hypos,
		SlipList:        slips,
		TOM:             t,
	}, nil
}

func complexFaultValue(s *source.ComplexFaultSource) (cty.Value, error) {
	surf, err := surfaceValue(s.Surface)
	if err != nil {
		return cty.NilVal, err
	}
	dist, err := mfdValue(s.MFD)
	if err != nil {
		return cty.NilVal, err
	}
	attrs := baseAttrs(s)
	attrs["surface"] = surf
	attrs["rake"] = num(s.Rake)
	attrs["mfd"] = dist
	attrs["msr"] = cty.StringVal(s.MagScaleRel.Name())
	attrs["aspect"] = num(s.RuptAspectRatio)
	attrs["tom"] = tomValue(s.TOM)
	return cty.ObjectVal(attrs), nil
}

func decodeComplexFault(v cty.Value) (source.Source, error) {
	surf, err := decodeSurface(v.GetAttr("surface"))
	if err != nil {
		return nil, err
	}
	fault, ok := surf.(*geo.ComplexFaultSurface)
	if !ok {
		return nil, errors.New("a complex fault source needs a complex fault surface")
	}
	dist, err := decodeMFD(v.GetAttr("mfd"))
	if err != nil {
		return nil, err
	}
	rel, err := scalerel.Builtin().Get(v.GetAttr("msr").AsString())
	if err != nil {
		return nil, err
	}
	t, err := decodeTOM(v.GetAttr("tom"))
	if err != nil {
		return nil, err
	}
	return &source.ComplexFaultSource{
		Base:            decodeBase(v),
		Surface:         fault,
		Rake:            numOf(v.GetAttr("rake")),
		MFD:             dist,
		MagScaleRel:     rel,
		RuptAspectRatio: numOf(v.GetAttr("aspect")),
		TOM:             t,
	}, nil
}

func characteristicValue(s *source.CharacteristicFaultSource) (cty.Value, error) {
	surf, err := surfaceValue(s.Surface)
	if err != nil {
		return cty.NilVal, err
	}
	dist, err := mfdValue(s.MFD)
	if err != nil {
		return cty.NilVal, err
	}
	attrs := baseAttrs(s)
	attrs["surface"] = surf
	attrs["rake"] = num(s.Rake)
	attrs["mfd"] = dist
	attrs["tom"] = tomValue(s.TOM)
	return cty.ObjectVal(attrs), nil
}

func decodeCharacteristic(v cty.Value) (source.Source, error) {
	surf, err := decodeSurface(v.GetAttr("surface"))
	if err != nil {
		return nil, err
	}
	dist, err := decodeMFD(v.GetAttr("mfd"))
	if err != nil {
		return nil, err
	}
	t, err := decodeTOM(v.GetAttr("tom"))
	if err != nil {
		return nil, err
	}
	return &source.CharacteristicFaultSource{
		Base:    decodeBase(v),
		Surface: surf,
		Rake:    numOf(v.GetAttr("rake")),
		MFD:     dist,
		TOM:     t,
	}, nil
}

func nonParametricValue(s *source.NonParametric) (cty.Value, error) {
	elems := make([]cty.Value, len(s.Data))
	for i, d := range s.Data {
		rv, err := ruptureValue(d)
		if err != nil {
			return cty.NilVal, fmt.Errorf("rupture %d: %w", i, err)
		}
		elems[i] = rv
	}
	attrs := baseAttrs(s)
	attrs["ruptures"] = listVal(ruptureType, elems)
	attrs["splittable"] = cty.BoolVal(s.Splittable())
	return cty.ObjectVal(attrs), nil
}

func ruptureValue(d source.RupturePMF) (cty.Value, error) {
	surf, err := surfaceValue(d.Rup.Surface)
	if err != nil {
		return cty.NilVal, err
	}
	weight := cty.NullVal(cty.Number)
	if d.Rup.Weight != nil {
		weight = num(*d.Rup.Weight)
	}
	return cty.ObjectVal(map[string]cty.Value{
		"mag":         num(d.Rup.Mag),
		"rake":        num(d.Rup.Rake),
		"trt":         cty.StringVal(d.Rup.TRT),
		"hypocenter":  coordValue(d.Rup.Hypocenter),
		"surface":     surf,
		"probs_occur": numList(d.ProbsOccur.Probs()),
		"weight":      weight,
	}), nil
}

func decodeRupture(v cty.Value) (source.RupturePMF, error) {
	surf, err := decodeSurface(v.GetAttr("surface"))
	if err != nil {
		return source.RupturePMF{}, err
	}
	ps := floats(v.GetAttr("probs_occur"))
	pairs := make([]pmf.Pair[int], len(ps))
	for i, p := range ps {
		pairs[i] = pmf.Pair[int]{Prob: p, Value: i}
	}
	probs, err := pmf.New(pairs)
	if err != nil {
		return source.RupturePMF{}, err
	}
	rup := &source.Rupture{
		Mag:        numOf(v.GetAttr("mag")),
		Rake:       numOf(v.GetAttr("rake")),
		TRT:        v.GetAttr("trt").AsString(),
		Hypocenter: decodeCoord(v.GetAttr("hypocenter")),
		Surface:    surf,
	}
	if w := v.GetAttr("weight"); !w.IsNull() {
		f := numOf(w)
		rup.Weight = &f
	}
	return source.RupturePMF{Rup: rup, ProbsOccur: probs}, nil
}

func decodeNonParametric(v cty.Value) (source.Source, error) {
	rvs := v.GetAttr("ruptures").AsValueSlice()
	data := make([]source.RupturePMF, 0, len(rvs))
	for i, rv := range rvs {
		d, err := decodeRupture(rv)
		if err != nil {
			return nil, fmt.Errorf("rupture %d: %w", i, err)
		}
		data = append(data, d)
	}
	var weights []float64
	if !v.GetAttr("splittable").True() {
		weights = make([]float64, 0, len(data))
		for i, d := range data {
			if d.Rup.Weight == nil {
				return nil, fmt.Errorf("rupture %d carries no weight in an unsplittable source", i)
			}
			weights = append(weights, *d.Rup.Weight)
		}
	}
	return source.NewNonParametric(decodeBase(v), data, weights)
}

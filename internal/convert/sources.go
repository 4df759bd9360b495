package convert

import (
	"context"

	"github.com/quakeworks/srcmodel/internal/geo"
	"github.com/quakeworks/srcmodel/internal/mfd"
	"github.com/quakeworks/srcmodel/internal/pmf"
	"github.com/quakeworks/srcmodel/internal/scalerel"
	"github.com/quakeworks/srcmodel/internal/sml"
	"github.com/quakeworks/srcmodel/internal/source"
	"github.com/quakeworks/srcmodel/internal/valid"
)

func (c *SourceConverter) convertPointSource(ctx context.Context, n *sml.Node) (source.Source, error) {
	id, name, trt, err := ident(n)
	if err != nil {
		return nil, err
	}
	geom, err := requiredChild(n, "point_geometry")
	if err != nil {
		return nil, err
	}
	pos, err := valid.Pairs(geom, "pos")
	if err != nil {
		return nil, err
	}
	if len(pos) != 1 {
		return nil, geom.Errorf("attribute %q: expected a single lon/lat pair, got %d", "pos", len(pos))
	}
	usd, lsd, err := depthRange(geom)
	if err != nil {
		return nil, err
	}
	dist, err := c.convertMFD(n)
	if err != nil {
		return nil, err
	}
	rel, err := c.scaleRel(n)
	if err != nil {
		return nil, err
	}
	rar, err := aspectRatio(n)
	if err != nil {
		return nil, err
	}
	npd, err := c.npdist(ctx, n)
	if err != nil {
		return nil, err
	}
	hdd, err := c.hddist(ctx, n)
	if err != nil {
		return nil, err
	}
	t, err := c.tomOf(n)
	if err != nil {
		return nil, err
	}
	return &source.PointSource{
		Base:             source.NewBase(id, name, trt),
		Location:         geo.Point{Lon: pos[0][0], Lat: pos[0][1]},
		UpperSeismoDepth: usd,
		LowerSeismoDepth: lsd,
		MFD:              dist,
		NodalPlaneDist:   npd,
		HypoDepthDist:    hdd,
		MagScaleRel:      rel,
		RuptAspectRatio:  rar,
		MeshSpacing:      c.p.RuptureMeshSpacing,
		TOM:              t,
	}, nil
}

func (c *SourceConverter) convertAreaSource(ctx context.Context, n *sml.Node) (source.Source, error) {
	id, name, trt, err := ident(n)
	if err != nil {
		return nil, err
	}
	geom, err := requiredChild(n, "area_geometry")
	if err != nil {
		return nil, err
	}
	pairs, err := valid.Pairs(geom, "pos_list")
	if err != nil {
		return nil, err
	}
	points := make([]geo.Point, len(pairs))
	for i, xy := range pairs {
		points[i] = geo.Point{Lon: xy[0], Lat: xy[1]}
	}
	poly, err := geo.NewPolygon(points)
	if err != nil {
		return nil, geom.Errorf("attribute %q: %s", "pos_list", err)
	}
	usd, lsd, err := depthRange(geom)
	if err != nil {
		return nil, err
	}
	disc, err := valid.FloatOpt(geom, "discretization")
	if err != nil {
		return nil, err
	}
	var spacing float64
	switch {
	case disc != nil:
		spacing = *disc
	case c.p.AreaDiscretization > 0:
		spacing = c.p.AreaDiscretization
	default:
		return nil, n.Errorf("area source %q declares no discretization and the converter has no default area discretization", id)
	}
	if spacing <= 0 {
		return nil, geom.Errorf("discretization %v must be positive", spacing)
	}
	dist, err := c.convertMFD(n)
	if err != nil {
		return nil, err
	}
	rel, err := c.scaleRel(n)
	if err != nil {
		return nil, err
	}
	rar, err := aspectRatio(n)
	if err != nil {
		return nil, err
	}
	npd, err := c.npdist(ctx, n)
	if err != nil {
		return nil, err
	}
	hdd, err := c.hddist(ctx, n)
	if err != nil {
		return nil, err
	}
	t, err := c.tomOf(n)
	if err != nil {
		return nil, err
	}
	return &source.AreaSource{
		Base:             source.NewBase(id, name, trt),
		Polygon:          poly,
		Discretization:   spacing,
		UpperSeismoDepth: usd,
		LowerSeismoDepth: lsd,
		MFD:              dist,
		NodalPlaneDist:   npd,
		HypoDepthDist:    hdd,
		MagScaleRel:      rel,
		RuptAspectRatio:  rar,
		MeshSpacing:      c.p.RuptureMeshSpacing,
		TOM:              t,
	}, nil
}

func (c *SourceConverter) convertMultiPointSource(ctx context.Context, n *sml.Node) (source.Source, error) {
	id, name, trt, err := ident(n)
	if err != nil {
		return nil, err
	}
	geom, err := requiredChild(n, "multi_point_geometry")
	if err != nil {
		return nil, err
	}
	pairs, err := valid.Pairs(geom, "pos_list")
	if err != nil {
		return nil, err
	}
	mesh := geo.NewMesh(pairs)
	usds, err := perPointDepths(geom, "upper_seismo_depth", mesh.Len())
	if err != nil {
		return nil, err
	}
	lsds, err := perPointDepths(geom, "lower_seismo_depth", mesh.Len())
	if err != nil {
		return nil, err
	}
	for i := 0; i < mesh.Len(); i++ {
		u, l := at(usds, i), at(lsds, i)
		if u < 0 {
			return nil, geom.Errorf("upper seismogenic depth %v must be non-negative", u)
		}
		if l < u {
			return nil, geom.Errorf("lower seismogenic depth %v is above the upper one %v", l, u)
		}
	}
	dist, err := c.convertMFD(n)
	if err != nil {
		return nil, err
	}
	multi, ok := dist.(*mfd.Multi)
	if !ok {
		return nil, n.Errorf("a multi_point_source needs a multi_mfd block")
	}
	if multi.Len() != mesh.Len() {
		return nil, n.Errorf("multi_mfd of size %d against %d mesh points", multi.Len(), mesh.Len())
	}
	rel, err := c.scaleRel(n)
	if err != nil {
		return nil, err
	}
	rar, err := aspectRatio(n)
	if err != nil {
		return nil, err
	}
	npd, err := c.npdist(ctx, n)
	if err != nil {
		return nil, err
	}
	hdd, err := c.hddist(ctx, n)
	if err != nil {
		return nil, err
	}
	t, err := c.tomOf(n)
	if err != nil {
		return nil, err
	}
	return &source.MultiPointSource{
		Base:              source.NewBase(id, name, trt),
		Mesh:              mesh,
		UpperSeismoDepths: usds,
		LowerSeismoDepths: lsds,
		MFD:               multi,
		NodalPlaneDist:    npd,
		HypoDepthDist:     hdd,
		MagScaleRel:       rel,
		RuptAspectRatio:   rar,
		MeshSpacing:       c.p.RuptureMeshSpacing,
		TOM:               t,
	}, nil
}

func (c *SourceConverter) convertSimpleFaultSource(n *sml.Node) (source.Source, error) {
	id, name, trt, err := ident(n)
	if err != nil {
		return nil, err
	}
	geom, err := requiredChild(n, "simple_fault_geometry")
	if err != nil {
		return nil, err
	}
	surf, err := c.simpleFaultSurface(geom)
	if err != nil {
		return nil, err
	}
	rake, err := rakeOf(n)
	if err != nil {
		return nil, err
	}
	dist, err := c.convertMFD(n)
	if err != nil {
		return nil, err
	}
	rel, err := c.scaleRel(n)
	if err != nil {
		return nil, err
	}
	rar, err := aspectRatio(n)
	if err != nil {
		return nil, err
	}
	hypoList, err := valid.HypoList(n, "hypo_list")
	if err != nil {
		return nil, err
	}
	slipList, err := valid.SlipList(n, "slip_list")
	if err != nil {
		return nil, err
	}
	t, err := c.tomOf(n)
	if err != nil {
		return nil, err
	}
	return &source.SimpleFaultSource{
		Base:            source.NewBase(id, name, trt),
		Surface:         surf,
		Rake:            rake,
		MFD:             dist,
		MagScaleRel:     rel,
		RuptAspectRatio: rar,
		HypoList:        hypoList,
		SlipList:        slipList,
		TOM:             t,
	}, nil
}

func (c *SourceConverter) convertComplexFaultSource(n *sml.Node) (source.Source, error) {
	id, name, trt, err := ident(n)
	if err != nil {
		return nil, err
	}
	geom, err := requiredChild(n, "complex_fault_geometry")
	if err != nil {
		return nil, err
	}
	surf, err := c.complexFaultSurface(geom)
	if err != nil {
		return nil, err
	}
	rake, err := rakeOf(n)
	if err != nil {
		return nil, err
	}
	dist, err := c.convertMFD(n)
	if err != nil {
		return nil, err
	}
	rel, err := c.scaleRel(n)
	if err != nil {
		return nil, err
	}
	rar, err := aspectRatio(n)
	if err != nil {
		return nil, err
	}
	t, err := c.tomOf(n)
	if err != nil {
		return nil, err
	}
	return &source.ComplexFaultSource{
		Base:            source.NewBase(id, name, trt),
		Surface:         surf,
		Rake:            rake,
		MFD:             dist,
		MagScaleRel:     rel,
		RuptAspectRatio: rar,
		TOM:             t,
	}, nil
}

func (c *SourceConverter) convertCharacteristicFaultSource(n *sml.Node) (source.Source, error) {
	id, name, trt, err := ident(n)
	if err != nil {
		return nil, err
	}
	rake, err := rakeOf(n)
	if err != nil {
		return nil, err
	}
	dist, err := c.convertMFD(n)
	if err != nil {
		return nil, err
	}
	sn, err := requiredChild(n, "surface")
	if err != nil {
		return nil, err
	}
	if len(sn.Children) == 0 {
		return nil, sn.Errorf("missing surface geometry")
	}
	surf, err := c.convertSurfaces(sn.Children)
	if err != nil {
		return nil, err
	}
	t, err := c.tomOf(n)
	if err != nil {
		return nil, err
	}
	return &source.CharacteristicFaultSource{
		Base:    source.NewBase(id, name, trt),
		Surface: surf,
		Rake:    rake,
		MFD:     dist,
		TOM:     t,
	}, nil
}

// convertNonParametricSource builds a source out of explicit ruptures. All
// probs_occur vectors must have the same length; an external rup_weights
// list assigns per-rupture weights and pins the source together.
func (c *SourceConverter) convertNonParametricSource(n *sml.Node) (source.Source, error) {
	id, name, trt, err := ident(n)
	if err != nil {
		return nil, err
	}
	weights, err := valid.FloatListOpt(n, "rup_weights")
	if err != nil {
		return nil, err
	}
	numProbs := -1
	data := make([]source.RupturePMF, 0, len(n.Children))
	for _, rn := range n.Children {
		ps, err := valid.Probs(rn, "probs_occur")
		if err != nil {
			return nil, err
		}
		if numProbs < 0 {
			numProbs = len(ps)
		} else if len(ps) != numProbs {
			return nil, rn.Errorf("probs_occur has %d values, expected %d", len(ps), numProbs)
		}
		pairs := make([]pmf.Pair[int], len(ps))
		for i, p := range ps {
			pairs[i] = pmf.Pair[int]{Prob: p, Value: i}
		}
		probs, err := pmf.New(pairs)
		if err != nil {
			return nil, rn.Errorf("attribute %q: %s", "probs_occur", err)
		}
		rup, err := c.RuptureConverter.ConvertNode(rn)
		if err != nil {
			return nil, err
		}
		rup.TRT = trt
		data = append(data, source.RupturePMF{Rup: rup, ProbsOccur: probs})
	}
	nps, err := source.NewNonParametric(source.NewBase(id, name, trt), data, weights)
	if err != nil {
		return nil, n.Errorf("%s", err)
	}
	return nps, nil
}

func (c *SourceConverter) scaleRel(n *sml.Node) (scalerel.MagScaleRel, error) {
	name, err := valid.Str(n, "mag_scale_rel")
	if err != nil {
		return nil, err
	}
	rel, err := c.msr.Get(name)
	if err != nil {
		return nil, n.Errorf("attribute %q: %s", "mag_scale_rel", err)
	}
	return rel, nil
}

func aspectRatio(n *sml.Node) (float64, error) {
	rar, err := valid.Float(n, "rupt_aspect_ratio")
	if err != nil {
		return 0, err
	}
	if rar <= 0 {
		return 0, n.Errorf("rupture aspect ratio %v must be positive", rar)
	}
	return rar, nil
}

// perPointDepths reads a depth attribute holding either one shared value or
// one value per mesh point.
func perPointDepths(geom *sml.Node, name string, size int) ([]float64, error) {
	vals, err := floatScalarOrList(geom, name)
	if err != nil {
		return nil, err
	}
	if len(vals) != 1 && len(vals) != size {
		return nil, geom.Errorf("attribute %q has %d values, want 1 or %d", name, len(vals), size)
	}
	return vals, nil
}

func at(vals []float64, i int) float64 {
	if len(vals) == 1 {
		return vals[0]
	}
	return vals[i]
}

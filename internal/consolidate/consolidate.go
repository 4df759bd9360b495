package consolidate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/quakeworks/srcmodel/internal/mfd"
	"github.com/quakeworks/srcmodel/internal/sml"
	"github.com/quakeworks/srcmodel/internal/valid"
)

// Model rewrites a source_model tree in place. Within every group, point
// sources sharing the same hypocenter distribution, nodal-plane distribution
// and scaling relation are merged into one multi_point_source; the remaining
// children are re-sorted by (tag, id) and appended after the points. The
// per-source tectonic_region attributes are stripped, leaving the group's as
// the only authority. Merged ids are numbered model-wide.
func Model(root *sml.Node, fname string) error {
	next := 0
	for _, group := range root.Children {
		if group.HasAttr("srcs_weights") {
			return fmt.Errorf("srcs_weights must be removed in %s", fname)
		}
		if group.Tag != "source_group" {
			return fmt.Errorf("got a %s block instead of a source_group in %s", group.Tag, fname)
		}
		var points, others []*sml.Node
		for _, src := range group.Children {
			src.DelAttr("tectonic_region")
			if src.Tag == "point_source" {
				points = append(points, src)
			} else {
				others = append(others, src)
			}
		}
		slices.SortStableFunc(others, func(a, b *sml.Node) int {
			if c := strings.Compare(a.Tag, b.Tag); c != 0 {
				return c
			}
			return strings.Compare(a.ID(), b.ID())
		})
		merged, err := mergeRuns(points, &next)
		if err != nil {
			return err
		}
		group.Children = append(merged, others...)
	}
	return nil
}

// distKey identifies point sources that may share one multi-point source.
type distKey struct {
	hypo   [][2]float64 // probability, depth
	planes [][4]float64 // probability, strike, dip, rake
	msr    string
}

func (k distKey) signature() string {
	var b strings.Builder
	b.WriteString(k.msr)
	for _, h := range k.hypo {
		fmt.Fprintf(&b, "|h%v,%v", h[0], h[1])
	}
	for _, p := range k.planes {
		fmt.Fprintf(&b, "|n%v,%v,%v,%v", p[0], p[1], p[2], p[3])
	}
	return b.String()
}

// sourceKey reads the raw distribution values of a point source. Duplicate
// entries are not merged here: sources are only grouped when their blocks
// are literally identical, and the converter repairs duplicates later.
func sourceKey(src *sml.Node) (distKey, error) {
	var k distKey
	msr, err := valid.Str(src, "mag_scale_rel")
	if err != nil {
		return k, err
	}
	k.msr = msr

	hd, err := requiredChild(src, "hypo_depth_dist")
	if err != nil {
		return k, err
	}
	for _, e := range hd.Children {
		if e.Tag != "hypo_depth" {
			return k, e.Errorf("expected a hypo_depth block")
		}
		prob, err := valid.Float(e, "probability")
		if err != nil {
			return k, err
		}
		depth, err := valid.Float(e, "depth")
		if err != nil {
			return k, err
		}
		k.hypo = append(k.hypo, [2]float64{prob, depth})
	}

	npd, err := requiredChild(src, "nodal_plane_dist")
	if err != nil {
		return k, err
	}
	for _, e := range npd.Children {
		if e.Tag != "nodal_plane" {
			return k, e.Errorf("expected a nodal_plane block")
		}
		prob, err := valid.Float(e, "probability")
		if err != nil {
			return k, err
		}
		strike, err := valid.Float(e, "strike")
		if err != nil {
			return k, err
		}
		dip, err := valid.Float(e, "dip")
		if err != nil {
			return k, err
		}
		rake, err := valid.Float(e, "rake")
		if err != nil {
			return k, err
		}
		k.planes = append(k.planes, [4]float64{prob, strike, dip, rake})
	}
	return k, nil
}

// run is one group of point sources with identical distKey, in input order.
type run struct {
	key     distKey
	sources []*sml.Node
}

// mergeRuns groups the point sources by distKey, preserving first-seen
// order, and merges every run of two or more. Singleton runs pass through
// unchanged and do not consume an id.
func mergeRuns(points []*sml.Node, next *int) ([]*sml.Node, error) {
	var runs []*run
	index := make(map[string]*run)
	for _, src := range points {
		key, err := sourceKey(src)
		if err != nil {
			return nil, err
		}
		sig := key.signature()
		r, ok := index[sig]
		if !ok {
			r = &run{key: key}
			index[sig] = r
			runs = append(runs, r)
		}
		r.sources = append(r.sources, src)
	}
	out := make([]*sml.Node, 0, len(runs))
	for _, r := range runs {
		if len(r.sources) == 1 {
			out = append(out, r.sources[0])
			continue
		}
		merged, err := mergePoints(*next, r.key, r.sources)
		if err != nil {
			return nil, err
		}
		*next++
		out = append(out, merged)
	}
	return out, nil
}

// mergePoints builds the multi_point_source node replacing one run. The
// position list concatenates the member locations; per-point scalars
// collapse to one value only when homogeneous.
func mergePoints(id int, key distKey, sources []*sml.Node) (*sml.Node, error) {
	positions := make([]float64, 0, 2*len(sources))
	usd := make([]float64, 0, len(sources))
	lsd := make([]float64, 0, len(sources))
	rar := make([]float64, 0, len(sources))
	mfds := make([]*sml.Node, 0, len(sources))
	for _, src := range sources {
		geom, err := requiredChild(src, "point_geometry")
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
		positions = append(positions, pos[0][0], pos[0][1])

		u, err := valid.Float(geom, "upper_seismo_depth")
		if err != nil {
			return nil, err
		}
		usd = append(usd, u)
		l, err := valid.Float(geom, "lower_seismo_depth")
		if err != nil {
			return nil, err
		}
		lsd = append(lsd, l)
		r, err := valid.Float(src, "rupt_aspect_ratio")
		if err != nil {
			return nil, err
		}
		rar = append(rar, r)

		m, err := mfdChild(src)
		if err != nil {
			return nil, err
		}
		mfds = append(mfds, m)
	}

	geom := sml.NewNode("multi_point_geometry")
	geom.SetAttr("pos_list", numTuple(positions))
	geom.SetAttr("upper_seismo_depth", collapse(usd))
	geom.SetAttr("lower_seismo_depth", collapse(lsd))

	multi, err := multiMFD(mfds)
	if err != nil {
		return nil, err
	}

	node := sml.NewNode("multi_point_source")
	node.SetAttr("id", cty.StringVal(fmt.Sprintf("mps-%d", id)))
	node.SetAttr("name", cty.StringVal(fmt.Sprintf("multiPointSource-%d", id)))
	node.SetAttr("mag_scale_rel", cty.StringVal(key.msr))
	node.SetAttr("rupt_aspect_ratio", collapse(rar))
	node.Append(geom, multi, planeDistNode(key.planes), hypoDistNode(key.hypo))
	return node, nil
}

// multiMFD folds the per-point distribution blocks into one multi_mfd node.
// Every block must be of the same kind; list fields are concatenated with a
// lengths attribute when rows differ in size. Gutenberg-Richter bin widths
// are dropped: conversion always discretizes at the configured width.
func multiMFD(mfds []*sml.Node) (*sml.Node, error) {
	kind := mfds[0].Tag
	for _, m := range mfds[1:] {
		if m.Tag != kind {
			return nil, m.Errorf("cannot merge a %s into a run of %s blocks", m.Tag, kind)
		}
	}
	scalars, lists, ok := mfd.FieldsOf(kind)
	if !ok {
		return nil, mfds[0].Errorf("%s blocks cannot be merged", kind)
	}
	node := sml.NewNode("multi_mfd")
	node.SetAttr("kind", cty.StringVal(kind))
	node.SetAttr("size", cty.NumberIntVal(int64(len(mfds))))
	for _, f := range scalars {
		vals := make([]float64, len(mfds))
		for i, m := range mfds {
			v, err := valid.Float(m, f)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		node.SetAttr(f, collapse(vals))
	}
	for _, f := range lists {
		var flat []float64
		lengths := make([]float64, len(mfds))
		for i, m := range mfds {
			row, err := valid.FloatList(m, f)
			if err != nil {
				return nil, err
			}
			lengths[i] = float64(len(row))
			flat = append(flat, row...)
		}
		node.SetAttr(f, numTuple(flat))
		node.SetAttr("lengths", collapse(lengths))
	}
	return node, nil
}

func mfdChild(src *sml.Node) (*sml.Node, error) {
	var found []*sml.Node
	for _, c := range src.Children {
		_, _, known := mfd.FieldsOf(c.Tag)
		if known || c.Tag == "multi_mfd" {
			found = append(found, c)
		}
	}
	if len(found) != 1 {
		return nil, src.Errorf("expected exactly one magnitude-frequency distribution block, found %d", len(found))
	}
	return found[0], nil
}

func planeDistNode(planes [][4]float64) *sml.Node {
	dist := sml.NewNode("nodal_plane_dist")
	for _, p := range planes {
		e := sml.NewNode("nodal_plane")
		e.SetAttr("probability", cty.NumberFloatVal(p[0]))
		e.SetAttr("strike", cty.NumberFloatVal(p[1]))
		e.SetAttr("dip", cty.NumberFloatVal(p[2]))
		e.SetAttr("rake", cty.NumberFloatVal(p[3]))
		dist.Append(e)
	}
	return dist
}

func hypoDistNode(hypo [][2]float64) *sml.Node {
	dist := sml.NewNode("hypo_depth_dist")
	for _, h := range hypo {
		e := sml.NewNode("hypo_depth")
		e.SetAttr("probability", cty.NumberFloatVal(h[0]))
		e.SetAttr("depth", cty.NumberFloatVal(h[1]))
		dist.Append(e)
	}
	return dist
}

func requiredChild(n *sml.Node, tag string) (*sml.Node, error) {
	c := n.Child(tag)
	if c == nil {
		return nil, n.Errorf("missing %s block", tag)
	}
	return c, nil
}

// collapse reduces a homogeneous slice to its single value, keeping
// heterogeneous slices as co-indexed lists.
func collapse(vals []float64) cty.Value {
	for _, v := range vals[1:] {
		if v != vals[0] {
			return numTuple(vals)
		}
	}
	return cty.NumberFloatVal(vals[0])
}

func numTuple(vals []float64) cty.Value {
	elems := make([]cty.Value, len(vals))
	for i, v := range vals {
		elems[i] = cty.NumberFloatVal(v)
	}
	return cty.TupleVal(elems)
}

package convert

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/quakeworks/srcmodel/internal/ctxlog"
	"github.com/quakeworks/srcmodel/internal/geo"
	"github.com/quakeworks/srcmodel/internal/pmf"
	"github.com/quakeworks/srcmodel/internal/sml"
	"github.com/quakeworks/srcmodel/internal/valid"
)

// npdist reads the nodal plane distribution of a source node.
func (c *SourceConverter) npdist(ctx context.Context, n *sml.Node) (*pmf.PMF[geo.NodalPlane], error) {
	d, err := requiredChild(n, "nodal_plane_dist")
	if err != nil {
		return nil, err
	}
	pairs := make([]pmf.Pair[geo.NodalPlane], 0, len(d.Children))
	for _, pn := range d.Children {
		if pn.Tag != "nodal_plane" {
			return nil, pn.Errorf("expected a nodal_plane block")
		}
		prob, err := valid.Probability(pn, "probability")
		if err != nil {
			return nil, err
		}
		strike, err := valid.Float(pn, "strike")
		if err != nil {
			return nil, err
		}
		dip, err := valid.Float(pn, "dip")
		if err != nil {
			return nil, err
		}
		rake, err := valid.Float(pn, "rake")
		if err != nil {
			return nil, err
		}
		np, err := geo.NewNodalPlane(strike, dip, rake)
		if err != nil {
			return nil, pn.Errorf("%s", err)
		}
		pairs = append(pairs, pmf.Pair[geo.NodalPlane]{Prob: prob, Value: np})
	}
	if len(pairs) == 0 {
		return nil, d.Errorf("needs at least one nodal_plane block")
	}
	pairs, err = fixDupl(ctx, d, pairs, geo.NodalPlane.Compare, c.p.Strict)
	if err != nil {
		return nil, err
	}
	if c.p.DisableSpinningFloating {
		pairs = []pmf.Pair[geo.NodalPlane]{{Prob: 1, Value: pairs[0].Value}}
	}
	out, err := pmf.New(pairs)
	if err != nil {
		return nil, d.Errorf("%s", err)
	}
	return out, nil
}

// hddist reads the hypocentral depth distribution of a source node.
func (c *SourceConverter) hddist(ctx context.Context, n *sml.Node) (*pmf.PMF[float64], error) {
	d, err := requiredChild(n, "hypo_depth_dist")
	if err != nil {
		return nil, err
	}
	pairs := make([]pmf.Pair[float64], 0, len(d.Children))
	for _, pn := range d.Children {
		if pn.Tag != "hypo_depth" {
			return nil, pn.Errorf("expected a hypo_depth block")
		}
		prob, err := valid.Probability(pn, "probability")
		if err != nil {
			return nil, err
		}
		depth, err := valid.Float(pn, "depth")
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pmf.Pair[float64]{Prob: prob, Value: depth})
	}
	if len(pairs) == 0 {
		return nil, d.Errorf("needs at least one hypo_depth block")
	}
	pairs, err = fixDupl(ctx, d, pairs, cmp.Compare[float64], c.p.Strict)
	if err != nil {
		return nil, err
	}
	if c.p.DisableSpinningFloating {
		pairs = []pmf.Pair[float64]{{Prob: 1, Value: pairs[0].Value}}
	}
	out, err := pmf.New(pairs)
	if err != nil {
		return nil, d.Errorf("%s", err)
	}
	return out, nil
}

// fixDupl merges duplicated values of a distribution, summing their
// probabilities. Merging is worth a warning when reading a file; in strict
// mode it is an error. The merged list comes back reordered by
// (probability, value).
func fixDupl[V comparable](ctx context.Context, n *sml.Node, pairs []pmf.Pair[V],
	cmpVal func(V, V) int, strict bool) ([]pmf.Pair[V], error) {
	merged := make([]pmf.Pair[V], 0, len(pairs))
	index := make(map[V]int, len(pairs))
	repeated := make(map[V]bool)
	var dups []V
	for _, p := range pairs {
		i, ok := index[p.Value]
		if !ok {
			index[p.Value] = len(merged)
			merged = append(merged, p)
			continue
		}
		merged[i].Prob += p.Prob
		if !repeated[p.Value] {
			repeated[p.Value] = true
			dups = append(dups, p.Value)
		}
	}
	if len(merged) == len(pairs) {
		return pairs, nil
	}
	if strict {
		return nil, n.Errorf("repeated values %v in the distribution", dups)
	}
	ctxlog.FromContext(ctx).Warn("repeated values in a distribution",
		"values", dups, "at", n.DefRange.String())
	sum := 0.0
	for _, p := range merged {
		sum += p.Prob
	}
	if math.Abs(sum-1) > valid.Epsilon {
		return nil, n.Errorf("probabilities sum to %v after merging duplicates, want 1", sum)
	}
	slices.SortFunc(merged, func(a, b pmf.Pair[V]) int {
		if d := cmp.Compare(a.Prob, b.Prob); d != 0 {
			return d
		}
		return cmpVal(a.Value, b.Value)
	})
	return merged, nil
}

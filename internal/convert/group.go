package convert

import (
	"context"

	"github.com/quakeworks/srcmodel/internal/sml"
	"github.com/quakeworks/srcmodel/internal/source"
	"github.com/quakeworks/srcmodel/internal/valid"
)

// Model is a converted source model: its name and the groups holding every
// surviving source.
type Model struct {
	Name   string
	Groups []*source.Group
}

// Sources returns every source of the model in group order.
func (m *Model) Sources() []source.Source {
	var out []source.Source
	for _, g := range m.Groups {
		out = append(out, g.Sources()...)
	}
	return out
}

// Weight sums the group weights.
func (m *Model) Weight() float64 {
	total := 0.0
	for _, g := range m.Groups {
		total += g.Weight()
	}
	return total
}

// ConvertSourceGroup converts a source_group node and its member sources.
// The group's tectonic region type propagates to members that do not
// declare their own; an explicit mismatch is an error. A group of a
// discarded tectonic region type comes back as (nil, nil).
func (c *SourceConverter) ConvertSourceGroup(ctx context.Context, n *sml.Node) (*source.Group, error) {
	if n.Tag != "source_group" {
		return nil, n.Errorf("expected a source_group block")
	}
	trt, err := valid.Str(n, "tectonic_region")
	if err != nil {
		return nil, err
	}
	if c.discarded(trt) {
		return nil, nil
	}
	name, err := valid.StrOr(n, "name", "")
	if err != nil {
		return nil, err
	}
	srcInterdep, err := valid.Choice(n, "src_interdep",
		string(source.Indep), string(source.Indep), string(source.Mutex))
	if err != nil {
		return nil, err
	}
	rupInterdep, err := valid.Choice(n, "rup_interdep",
		string(source.Indep), string(source.Indep), string(source.Mutex))
	if err != nil {
		return nil, err
	}
	grpProb, err := valid.ProbabilityOpt(n, "grp_probability")
	if err != nil {
		return nil, err
	}
	cluster, err := valid.BoolOr(n, "cluster", false)
	if err != nil {
		return nil, err
	}
	weights, err := valid.FloatListOpt(n, "srcs_weights")
	if err != nil {
		return nil, err
	}
	if cluster && !n.HasAttr("tom") {
		return nil, n.Errorf("a cluster group needs a tom attribute")
	}
	groupTOM, err := c.tomOf(n)
	if err != nil {
		return nil, err
	}
	g, err := source.NewGroup(trt, source.GroupOptions{
		Name:           name,
		SrcInterdep:    source.Interdep(srcInterdep),
		RupInterdep:    source.Interdep(rupInterdep),
		GrpProbability: grpProb,
		Cluster:        cluster,
		TOM:            groupTOM,
		MinMag:         c.p.MinimumMagnitude,
	})
	if err != nil {
		return nil, n.Errorf("%s", err)
	}
	for _, sn := range n.Children {
		src, err := c.ConvertNode(ctx, sn)
		if err != nil {
			return nil, err
		}
		if src == nil { // filtered out
			continue
		}
		if st := src.TRT(); st != "" && st != trt {
			return nil, sn.Errorf("found tectonic region type %q, expected %q", st, trt)
		}
		src.SetTRT(trt)
		if _, err := g.Update(src); err != nil {
			return nil, sn.Errorf("%s", err)
		}
	}
	if weights != nil {
		// The count is checked against the declared sources, the weights
		// land on the converted ones.
		if len(n.Children) > 0 && len(weights) != len(n.Children) {
			return nil, n.Errorf("there are %d srcs_weights but %d source(s)", len(weights), len(n.Children))
		}
		for i, src := range g.Sources() {
			src.SetMutexWeight(weights[i])
		}
	}
	return g, nil
}

// ConvertSourceModel converts a whole source_model node. Children are
// either source_group blocks, converted in order, or bare sources, which
// are collected into one group per tectonic region type.
func (c *SourceConverter) ConvertSourceModel(ctx context.Context, root *sml.Node) (*Model, error) {
	if root.Tag != "source_model" {
		return nil, root.Errorf("expected a source_model block")
	}
	name, err := valid.StrOr(root, "name", "")
	if err != nil {
		return nil, err
	}
	var groups []*source.Group
	var bare []source.Source
	for _, child := range root.Children {
		if child.Tag == "source_group" {
			g, err := c.ConvertSourceGroup(ctx, child)
			if err != nil {
				return nil, err
			}
			if g != nil {
				groups = append(groups, g)
			}
			continue
		}
		src, err := c.ConvertNode(ctx, child)
		if err != nil {
			return nil, err
		}
		if src == nil {
			continue
		}
		if src.TRT() == "" {
			return nil, child.Errorf("a source outside a group needs a tectonic_region")
		}
		bare = append(bare, src)
	}
	if len(bare) > 0 {
		grouped, err := source.CollectByTRT(bare, c.p.MinimumMagnitude)
		if err != nil {
			return nil, root.Errorf("%s", err)
		}
		groups = append(groups, grouped...)
	}
	return &Model{Name: name, Groups: groups}, nil
}

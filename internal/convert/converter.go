package convert

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/quakeworks/srcmodel/internal/scalerel"
	"github.com/quakeworks/srcmodel/internal/sml"
	"github.com/quakeworks/srcmodel/internal/source"
	"github.com/quakeworks/srcmodel/internal/tom"
	"github.com/quakeworks/srcmodel/internal/valid"
)

// Defaults applied by NewSourceConverter for zero Params fields.
const (
	DefaultInvestigationTime  = 50.0
	DefaultRuptureMeshSpacing = 5.0
	DefaultWidthOfMFDBin      = 1.0
)

// Params configures a SourceConverter. The zero value is usable: every
// field falls back to the documented default.
type Params struct {
	// InvestigationTime in years, used to build temporal occurrence
	// models. Default 50.
	InvestigationTime float64

	// RuptureMeshSpacing in km for point, area, simple fault and planar
	// surfaces. Default 5.
	RuptureMeshSpacing float64

	// ComplexFaultMeshSpacing in km; defaults to RuptureMeshSpacing.
	ComplexFaultMeshSpacing float64

	// WidthOfMFDBin is the magnitude bin width for Gutenberg-Richter
	// distributions. Default 1.0.
	WidthOfMFDBin float64

	// AreaDiscretization in km applies to area sources whose geometry does
	// not declare its own. Zero means no fallback: such sources fail.
	AreaDiscretization float64

	// MinimumMagnitude maps tectonic region types to magnitude floors,
	// with the "default" key as fallback. Nil means no floor.
	MinimumMagnitude source.MagFloor

	// DisableSpinningFloating collapses nodal plane and hypocentral depth
	// distributions to their first value with probability one.
	DisableSpinningFloating bool

	// SourceIDs restricts conversion to the listed source ids. Empty
	// means all sources.
	SourceIDs []string

	// DiscardTRTs drops sources and groups of the listed tectonic region
	// types without error.
	DiscardTRTs []string

	// Strict makes duplicated values in a nodal plane or hypocentral
	// depth distribution an error instead of a merge-and-warn.
	Strict bool

	// ScaleRels resolves magnitude scaling relation names. Nil means the
	// builtin registry.
	ScaleRels *scalerel.Registry

	// TOMs resolves temporal occurrence model names. Nil means the
	// builtin registry.
	TOMs *tom.Registry
}

// SourceConverter turns source nodes into typed sources and groups. It
// embeds a RuptureConverter for the rupture geometries of non-parametric
// sources and rupture collections.
type SourceConverter struct {
	*RuptureConverter
	p       Params
	msr     *scalerel.Registry
	toms    *tom.Registry
	allow   map[string]bool
	discard map[string]bool
}

// NewSourceConverter builds a converter, normalizing the parameters.
func NewSourceConverter(p Params) *SourceConverter {
	if p.InvestigationTime <= 0 {
		p.InvestigationTime = DefaultInvestigationTime
	}
	if p.RuptureMeshSpacing <= 0 {
		p.RuptureMeshSpacing = DefaultRuptureMeshSpacing
	}
	if p.ComplexFaultMeshSpacing <= 0 {
		p.ComplexFaultMeshSpacing = p.RuptureMeshSpacing
	}
	if p.WidthOfMFDBin <= 0 {
		p.WidthOfMFDBin = DefaultWidthOfMFDBin
	}
	if p.MinimumMagnitude == nil {
		p.MinimumMagnitude = source.MagFloor{source.DefaultKey: 0}
	}
	c := &SourceConverter{
		RuptureConverter: NewRuptureConverter(p.RuptureMeshSpacing, p.ComplexFaultMeshSpacing),
		p:                p,
		msr:              p.ScaleRels,
		toms:             p.TOMs,
	}
	if c.msr == nil {
		c.msr = scalerel.Builtin()
	}
	if c.toms == nil {
		c.toms = tom.Builtin()
	}
	if len(p.SourceIDs) > 0 {
		c.allow = make(map[string]bool, len(p.SourceIDs))
		for _, id := range p.SourceIDs {
			c.allow[id] = true
		}
	}
	if len(p.DiscardTRTs) > 0 {
		c.discard = make(map[string]bool, len(p.DiscardTRTs))
		for _, trt := range p.DiscardTRTs {
			c.discard[trt] = true
		}
	}
	return c
}

// Params returns the normalized parameters the converter runs with.
func (c *SourceConverter) Params() Params { return c.p }

func (c *SourceConverter) allowed(id string) bool {
	return c.allow == nil || c.allow[id]
}

func (c *SourceConverter) discarded(trt string) bool {
	return c.discard[trt]
}

// ConvertNode converts one source node, dispatching on its tag. Sources
// dropped by the tectonic region or source id filters come back as
// (nil, nil).
func (c *SourceConverter) ConvertNode(ctx context.Context, n *sml.Node) (source.Source, error) {
	if trt, ok := n.Attr("tectonic_region"); ok && trt.Type() == cty.String && c.discarded(trt.AsString()) {
		return nil, nil
	}
	if !c.allowed(n.ID()) {
		return nil, nil
	}
	switch n.Tag {
	case "point_source":
		return c.convertPointSource(ctx, n)
	case "area_source":
		return c.convertAreaSource(ctx, n)
	case "multi_point_source":
		return c.convertMultiPointSource(ctx, n)
	case "simple_fault_source":
		return c.convertSimpleFaultSource(n)
	case "complex_fault_source":
		return c.convertComplexFaultSource(n)
	case "characteristic_fault_source":
		return c.convertCharacteristicFaultSource(n)
	case "non_parametric_source":
		return c.convertNonParametricSource(n)
	default:
		return nil, n.Errorf("unknown source tag")
	}
}

// tomOf resolves the temporal occurrence model declared on a node: the tom
// attribute names the model, defaulting to Poisson, and occurrence_rate
// feeds models that need one. The time span is the investigation time.
func (c *SourceConverter) tomOf(n *sml.Node) (tom.TOM, error) {
	name, err := valid.StrOr(n, "tom", tom.Default)
	if err != nil {
		return nil, err
	}
	rate, err := valid.FloatOpt(n, "occurrence_rate")
	if err != nil {
		return nil, err
	}
	t, err := c.toms.New(name, c.p.InvestigationTime, rate)
	if err != nil {
		return nil, n.Errorf("%s", err)
	}
	return t, nil
}

// ident reads the identification attributes shared by every source: the id
// label, the name, and the optional explicit tectonic region type.
func ident(n *sml.Node) (id, name, trt string, err error) {
	id = n.ID()
	if id == "" {
		return "", "", "", n.Errorf("missing source id label")
	}
	name, err = valid.Str(n, "name")
	if err != nil {
		return "", "", "", err
	}
	trt, err = valid.StrOr(n, "tectonic_region", "")
	if err != nil {
		return "", "", "", err
	}
	return id, name, trt, nil
}

// floatScalarOrList reads an attribute that may be a single number, applied
// everywhere, or a list of numbers.
func floatScalarOrList(n *sml.Node, name string) ([]float64, error) {
	v, ok := n.Attr(name)
	if !ok {
		return nil, n.Errorf("missing required attribute %q", name)
	}
	if v.Type().IsTupleType() || v.Type().IsListType() || v.Type().IsSetType() {
		return valid.FloatList(n, name)
	}
	f, err := valid.Float(n, name)
	if err != nil {
		return nil, err
	}
	return []float64{f}, nil
}

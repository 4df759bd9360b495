package convert

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/quakeworks/srcmodel/internal/sml"
	"github.com/quakeworks/srcmodel/internal/valid"
)

// Row is one source flattened for tabular export. The depth columns are
// text because multi-point sources may carry per-point lists and complex
// faults have no scalar depths at all.
type Row struct {
	ID               string
	Name             string
	TRT              string
	MFD              string
	MagScaleRel      string
	RuptAspectRatio  float64
	UpperSeismoDepth string
	LowerSeismoDepth string
	NodalPlaneDist   string
	HypoDepthDist    string
	WKT              string
}

// Header lists the export column names in Row field order.
func Header() []string {
	return []string{"id", "name", "tectonic_region", "mfd", "mag_scale_rel",
		"rupt_aspect_ratio", "upper_seismo_depth", "lower_seismo_depth",
		"nodal_plane_dist", "hypo_depth_dist", "wkt"}
}

// Record renders the row as export fields, in Header order.
func (r Row) Record() []string {
	return []string{r.ID, r.Name, r.TRT, r.MFD, r.MagScaleRel,
		ftoa(r.RuptAspectRatio), r.UpperSeismoDepth, r.LowerSeismoDepth,
		r.NodalPlaneDist, r.HypoDepthDist, r.WKT}
}

// RowConverter flattens sources into rows with WKT geometry. It shares the
// parameters, distribution handling and tectonic region filter of the
// underlying SourceConverter; the source id allow-list does not apply.
type RowConverter struct {
	c *SourceConverter
}

func NewRowConverter(c *SourceConverter) *RowConverter { return &RowConverter{c: c} }

// ConvertNode flattens one source node. Sources of discarded tectonic
// region types come back as (nil, nil); characteristic and non-parametric
// sources have no tabular form and are an error.
func (rc *RowConverter) ConvertNode(ctx context.Context, n *sml.Node) (*Row, error) {
	trt, err := valid.StrOr(n, "tectonic_region", "")
	if err != nil {
		return nil, err
	}
	return rc.convertRow(ctx, n, trt)
}

// ConvertModel flattens every source of a source_model node, stamping the
// group tectonic region type on members that lack their own.
func (rc *RowConverter) ConvertModel(ctx context.Context, root *sml.Node) ([]Row, error) {
	if root.Tag != "source_model" {
		return nil, root.Errorf("expected a source_model block")
	}
	var rows []Row
	add := func(n *sml.Node, trt string) error {
		row, err := rc.convertRow(ctx, n, trt)
		if err != nil {
			return err
		}
		if row != nil {
			rows = append(rows, *row)
		}
		return nil
	}
	for _, child := range root.Children {
		if child.Tag != "source_group" {
			if err := rc.addOwnTRT(add, child); err != nil {
				return nil, err
			}
			continue
		}
		gtrt, err := valid.Str(child, "tectonic_region")
		if err != nil {
			return nil, err
		}
		for _, sn := range child.Children {
			trt, err := valid.StrOr(sn, "tectonic_region", gtrt)
			if err != nil {
				return nil, err
			}
			if err := add(sn, trt); err != nil {
				return nil, err
			}
		}
	}
	return rows, nil
}

func (rc *RowConverter) addOwnTRT(add func(*sml.Node, string) error, n *sml.Node) error {
	trt, err := valid.StrOr(n, "tectonic_region", "")
	if err != nil {
		return err
	}
	return add(n, trt)
}

func (rc *RowConverter) convertRow(ctx context.Context, n *sml.Node, trt string) (*Row, error) {
	if trt == "" {
		return nil, n.Errorf("missing tectonic_region")
	}
	if rc.c.discarded(trt) {
		return nil, nil
	}
	switch n.Tag {
	case "point_source":
		return rc.pointRow(ctx, n, trt)
	case "area_source":
		return rc.areaRow(ctx, n, trt)
	case "multi_point_source":
		return rc.multiPointRow(ctx, n, trt)
	case "simple_fault_source":
		return rc.simpleFaultRow(n, trt)
	case "complex_fault_source":
		return rc.complexFaultRow(n, trt)
	case "characteristic_fault_source", "non_parametric_source":
		return nil, n.Errorf("no tabular form for this source kind")
	default:
		return nil, n.Errorf("unknown source tag")
	}
}

// rowHead reads the columns shared by every representable source kind.
func rowHead(n *sml.Node, trt string) (Row, error) {
	id := n.ID()
	if id == "" {
		return Row{}, n.Errorf("missing source id label")
	}
	name, err := valid.Str(n, "name")
	if err != nil {
		return Row{}, err
	}
	msr, err := valid.Str(n, "mag_scale_rel")
	if err != nil {
		return Row{}, err
	}
	rar, err := valid.Float(n, "rupt_aspect_ratio")
	if err != nil {
		return Row{}, err
	}
	mfdNode, err := findMFD(n)
	if err != nil {
		return Row{}, err
	}
	return Row{
		ID:              id,
		Name:            name,
		TRT:             trt,
		MFD:             mfdText(mfdNode),
		MagScaleRel:     msr,
		RuptAspectRatio: rar,
	}, nil
}

func (rc *RowConverter) pointRow(ctx context.Context, n *sml.Node, trt string) (*Row, error) {
	row, err := rowHead(n, trt)
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
	if err := rc.depthColumns(&row, geom); err != nil {
		return nil, err
	}
	if err := rc.distColumns(ctx, &row, n); err != nil {
		return nil, err
	}
	row.WKT = fmt.Sprintf("POINT(%s %s)", ftoa(pos[0][0]), ftoa(pos[0][1]))
	return &row, nil
}

func (rc *RowConverter) areaRow(ctx context.Context, n *sml.Node, trt string) (*Row, error) {
	row, err := rowHead(n, trt)
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
	if err := rc.depthColumns(&row, geom); err != nil {
		return nil, err
	}
	if err := rc.distColumns(ctx, &row, n); err != nil {
		return nil, err
	}
	row.WKT = fmt.Sprintf("POLYGON((%s))", wktCoords(pairs))
	return &row, nil
}

func (rc *RowConverter) multiPointRow(ctx context.Context, n *sml.Node, trt string) (*Row, error) {
	row, err := rowHead(n, trt)
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
	if err := rc.depthColumns(&row, geom); err != nil {
		return nil, err
	}
	if err := rc.distColumns(ctx, &row, n); err != nil {
		return nil, err
	}
	row.WKT = fmt.Sprintf("MULTIPOINT((%s))", wktCoords(pairs))
	return &row, nil
}

func (rc *RowConverter) simpleFaultRow(n *sml.Node, trt string) (*Row, error) {
	row, err := rowHead(n, trt)
	if err != nil {
		return nil, err
	}
	geom, err := requiredChild(n, "simple_fault_geometry")
	if err != nil {
		return nil, err
	}
	trace, err := geoLine(geom)
	if err != nil {
		return nil, err
	}
	if err := rc.depthColumns(&row, geom); err != nil {
		return nil, err
	}
	dip, err := valid.Float(geom, "dip")
	if err != nil {
		return nil, err
	}
	rake, err := valid.Float(n, "rake")
	if err != nil {
		return nil, err
	}
	coords := make([][2]float64, len(trace.Points))
	for i, p := range trace.Points {
		coords[i] = [2]float64{p.Lon, p.Lat}
	}
	row.NodalPlaneDist = fmt.Sprintf("[{dip: %s, rake: %s}]", ftoa(dip), ftoa(rake))
	row.HypoDepthDist = "[]"
	row.WKT = fmt.Sprintf("LINESTRING(%s)", wktCoords(coords))
	return &row, nil
}

func (rc *RowConverter) complexFaultRow(n *sml.Node, trt string) (*Row, error) {
	row, err := rowHead(n, trt)
	if err != nil {
		return nil, err
	}
	geom, err := requiredChild(n, "complex_fault_geometry")
	if err != nil {
		return nil, err
	}
	edges, err := geoEdges(geom)
	if err != nil {
		return nil, err
	}
	rake, err := valid.Float(n, "rake")
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(edges))
	for i, edge := range edges {
		parts := make([]string, len(edge.Points))
		for j, p := range edge.Points {
			parts[j] = fmt.Sprintf("%s %s %s", ftoa(p.Lon), ftoa(p.Lat), ftoa(p.Depth))
		}
		lines[i] = "(" + strings.Join(parts, ", ") + ")"
	}
	row.NodalPlaneDist = fmt.Sprintf("[{rake: %s}]", ftoa(rake))
	row.HypoDepthDist = "[]"
	row.WKT = fmt.Sprintf("MULTILINESTRING Z(%s)", strings.Join(lines, ", "))
	return &row, nil
}

// depthColumns fills the seismogenic depth columns from a geometry node.
// The attributes may be per-point lists on multi-point geometries.
func (rc *RowConverter) depthColumns(row *Row, geom *sml.Node) error {
	usd, err := floatScalarOrList(geom, "upper_seismo_depth")
	if err != nil {
		return err
	}
	lsd, err := floatScalarOrList(geom, "lower_seismo_depth")
	if err != nil {
		return err
	}
	row.UpperSeismoDepth = depthText(usd)
	row.LowerSeismoDepth = depthText(lsd)
	return nil
}

// distColumns fills the distribution columns, reusing the converter's
// duplicate handling and collapse behavior.
func (rc *RowConverter) distColumns(ctx context.Context, row *Row, n *sml.Node) error {
	npd, err := rc.c.npdist(ctx, n)
	if err != nil {
		return err
	}
	hdd, err := rc.c.hddist(ctx, n)
	if err != nil {
		return err
	}
	nps := make([]string, 0, npd.Len())
	for _, p := range npd.Pairs() {
		nps = append(nps, fmt.Sprintf("{probability: %s, strike: %s, dip: %s, rake: %s}",
			ftoa(p.Prob), ftoa(p.Value.Strike), ftoa(p.Value.Dip), ftoa(p.Value.Rake)))
	}
	hds := make([]string, 0, hdd.Len())
	for _, p := range hdd.Pairs() {
		hds = append(hds, fmt.Sprintf("{probability: %s, depth: %s}", ftoa(p.Prob), ftoa(p.Value)))
	}
	row.NodalPlaneDist = "[" + strings.Join(nps, ", ") + "]"
	row.HypoDepthDist = "[" + strings.Join(hds, ", ") + "]"
	return nil
}

// mfdText renders a distribution block as its tag plus the attributes in
// name order.
func mfdText(mn *sml.Node) string {
	keys := slices.Sorted(maps.Keys(mn.Attrs))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, ctyText(mn.Attrs[k])))
	}
	return fmt.Sprintf("%s{%s}", mn.Tag, strings.Join(parts, ", "))
}

func ctyText(v cty.Value) string {
	t := v.Type()
	switch {
	case v.IsNull():
		return "null"
	case t == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return ftoa(f)
	case t == cty.String:
		return v.AsString()
	case t == cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	case t.IsTupleType() || t.IsListType() || t.IsSetType():
		var elems []string
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			elems = append(elems, ctyText(ev))
		}
		return "[" + strings.Join(elems, ", ") + "]"
	default:
		return v.GoString()
	}
}

func depthText(vals []float64) string {
	if len(vals) == 1 {
		return ftoa(vals[0])
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = ftoa(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func wktCoords(pairs [][2]float64) string {
	parts := make([]string, len(pairs))
	for i, xy := range pairs {
		parts[i] = ftoa(xy[0]) + " " + ftoa(xy[1])
	}
	return strings.Join(parts, ", ")
}

// ftoa renders a float with the shortest representation that round-trips.
func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

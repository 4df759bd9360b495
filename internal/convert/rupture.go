package convert

import (
	"strconv"
	"strings"

	"github.com/quakeworks/srcmodel/internal/geo"
	"github.com/quakeworks/srcmodel/internal/sml"
	"github.com/quakeworks/srcmodel/internal/source"
	"github.com/quakeworks/srcmodel/internal/valid"
)

// RuptureConverter builds ruptures out of rupture nodes. Surfaces derived
// from simple fault geometries are meshed at MeshSpacing, complex fault
// geometries at ComplexMeshSpacing.
type RuptureConverter struct {
	meshSpacing        float64
	complexMeshSpacing float64
	handlers           map[string]func(*sml.Node) (*source.Rupture, error)
}

// NewRuptureConverter returns a converter with the given mesh spacings in
// km. Zero or negative spacings take the defaults: DefaultRuptureMeshSpacing
// for the simple one, the simple one for the complex one.
func NewRuptureConverter(meshSpacing, complexMeshSpacing float64) *RuptureConverter {
	if meshSpacing <= 0 {
		meshSpacing = DefaultRuptureMeshSpacing
	}
	if complexMeshSpacing <= 0 {
		complexMeshSpacing = meshSpacing
	}
	rc := &RuptureConverter{
		meshSpacing:        meshSpacing,
		complexMeshSpacing: complexMeshSpacing,
	}
	rc.handlers = map[string]func(*sml.Node) (*source.Rupture, error){
		"simple_fault_rupture":  rc.convertSimpleFaultRupture,
		"complex_fault_rupture": rc.convertComplexFaultRupture,
		"single_plane_rupture":  rc.convertSinglePlaneRupture,
		"multi_planes_rupture":  rc.convertMultiPlanesRupture,
		"gridded_rupture":       rc.convertGriddedRupture,
	}
	return rc
}

// ConvertNode converts one rupture node, dispatching on its tag.
func (rc *RuptureConverter) ConvertNode(n *sml.Node) (*source.Rupture, error) {
	h, ok := rc.handlers[n.Tag]
	if !ok {
		return nil, n.Errorf("unknown rupture tag")
	}
	return h(n)
}

// ConvertRuptureCollection converts a rupture_collection node into event
// based ruptures keyed by group id. The number of occurrences of a rupture
// is the total number of event tokens over its stochastic event sets.
func (rc *RuptureConverter) ConvertRuptureCollection(n *sml.Node) (map[int][]source.EBRupture, error) {
	if n.Tag != "rupture_collection" {
		return nil, n.Errorf("expected a rupture_collection block")
	}
	coll := make(map[int][]source.EBRupture, len(n.Children))
	for _, grp := range n.Children {
		if grp.Tag != "rup_group" {
			return nil, grp.Errorf("expected a rup_group block")
		}
		grpID, err := strconv.Atoi(grp.ID())
		if err != nil {
			return nil, grp.Errorf("group id %q is not an integer", grp.ID())
		}
		if _, dup := coll[grpID]; dup {
			return nil, grp.Errorf("duplicated group id %d", grpID)
		}
		ebrs := make([]source.EBRupture, 0, len(grp.Children))
		for _, rn := range grp.Children {
			rup, err := rc.ConvertNode(rn)
			if err != nil {
				return nil, err
			}
			rupID, err := strconv.Atoi(rn.ID())
			if err != nil {
				return nil, rn.Errorf("rupture id %q is not an integer", rn.ID())
			}
			ses, err := requiredChild(rn, "stochastic_event_sets")
			if err != nil {
				return nil, err
			}
			occ := 0
			for _, s := range ses.ChildrenTagged("ses") {
				events, err := valid.Str(s, "events")
				if err != nil {
					return nil, err
				}
				occ += len(strings.Fields(events))
			}
			ebrs = append(ebrs, source.EBRupture{Rup: rup, ID: rupID, NumOccurrences: occ})
		}
		coll[grpID] = ebrs
	}
	return coll, nil
}

func (rc *RuptureConverter) convertSimpleFaultRupture(n *sml.Node) (*source.Rupture, error) {
	geom, err := requiredChild(n, "simple_fault_geometry")
	if err != nil {
		return nil, err
	}
	return rc.rupture(n, []*sml.Node{geom})
}

func (rc *RuptureConverter) convertComplexFaultRupture(n *sml.Node) (*source.Rupture, error) {
	geom, err := requiredChild(n, "complex_fault_geometry")
	if err != nil {
		return nil, err
	}
	return rc.rupture(n, []*sml.Node{geom})
}

func (rc *RuptureConverter) convertSinglePlaneRupture(n *sml.Node) (*source.Rupture, error) {
	plane, err := requiredChild(n, "planar_surface")
	if err != nil {
		return nil, err
	}
	return rc.rupture(n, []*sml.Node{plane})
}

func (rc *RuptureConverter) convertMultiPlanesRupture(n *sml.Node) (*source.Rupture, error) {
	planes := n.ChildrenTagged("planar_surface")
	if len(planes) == 0 {
		return nil, n.Errorf("needs at least one planar_surface block")
	}
	return rc.rupture(n, planes)
}

func (rc *RuptureConverter) convertGriddedRupture(n *sml.Node) (*source.Rupture, error) {
	grid, err := requiredChild(n, "gridded_surface")
	if err != nil {
		return nil, err
	}
	return rc.rupture(n, []*sml.Node{grid})
}

// rupture assembles a rupture from the shared scalar attributes and the
// given surface nodes.
func (rc *RuptureConverter) rupture(n *sml.Node, surfaces []*sml.Node) (*source.Rupture, error) {
	mag, rake, hypo, err := magRakeHypo(n)
	if err != nil {
		return nil, err
	}
	surf, err := rc.convertSurfaces(surfaces)
	if err != nil {
		return nil, err
	}
	return &source.Rupture{Mag: mag, Rake: rake, Hypocenter: hypo, Surface: surf}, nil
}

// convertSurfaces builds a surface from geometry nodes. The first node's tag
// decides the shape; only planar surfaces may come in numbers, forming a
// multi surface.
func (rc *RuptureConverter) convertSurfaces(nodes []*sml.Node) (geo.Surface, error) {
	first := nodes[0]
	switch first.Tag {
	case "simple_fault_geometry":
		return rc.simpleFaultSurface(first)
	case "complex_fault_geometry":
		return rc.complexFaultSurface(first)
	case "gridded_surface":
		triples, err := valid.Triples(first, "pos_list")
		if err != nil {
			return nil, err
		}
		surf, err := geo.NewGriddedSurface(points3(triples))
		if err != nil {
			return nil, first.Errorf("%s", err)
		}
		return surf, nil
	default:
		planes := make([]*geo.PlanarSurface, len(nodes))
		for i, pn := range nodes {
			if pn.Tag != "planar_surface" {
				return nil, pn.Errorf("unexpected surface block")
			}
			p, err := geoPlanar(pn)
			if err != nil {
				return nil, err
			}
			planes[i] = p
		}
		surf, err := geo.NewMultiSurface(planes)
		if err != nil {
			return nil, first.Errorf("%s", err)
		}
		return surf, nil
	}
}

func (rc *RuptureConverter) simpleFaultSurface(geom *sml.Node) (*geo.SimpleFaultSurface, error) {
	trace, err := geoLine(geom)
	if err != nil {
		return nil, err
	}
	usd, lsd, err := depthRange(geom)
	if err != nil {
		return nil, err
	}
	dip, err := valid.Float(geom, "dip")
	if err != nil {
		return nil, err
	}
	surf, err := geo.NewSimpleFaultSurface(trace, usd, lsd, dip, rc.meshSpacing)
	if err != nil {
		return nil, geom.Errorf("%s", err)
	}
	return surf, nil
}

func (rc *RuptureConverter) complexFaultSurface(geom *sml.Node) (*geo.ComplexFaultSurface, error) {
	edges, err := geoEdges(geom)
	if err != nil {
		return nil, err
	}
	surf, err := geo.NewComplexFaultSurface(edges, rc.complexMeshSpacing)
	if err != nil {
		return nil, geom.Errorf("%s", err)
	}
	return surf, nil
}

// magRakeHypo extracts the three scalar parts every rupture carries.
func magRakeHypo(n *sml.Node) (mag, rake float64, hypo geo.Point, err error) {
	mag, err = valid.Float(n, "magnitude")
	if err != nil {
		return 0, 0, geo.Point{}, err
	}
	if mag <= 0 {
		return 0, 0, geo.Point{}, n.Errorf("magnitude %v must be positive", mag)
	}
	rake, err = rakeOf(n)
	if err != nil {
		return 0, 0, geo.Point{}, err
	}
	hn, err := requiredChild(n, "hypocenter")
	if err != nil {
		return 0, 0, geo.Point{}, err
	}
	hypo, err = geoPoint3(hn)
	if err != nil {
		return 0, 0, geo.Point{}, err
	}
	return mag, rake, hypo, nil
}

// geoLine reads a flat 2D pos_list into a surface trace.
func geoLine(geom *sml.Node) (geo.Line, error) {
	pairs, err := valid.Pairs(geom, "pos_list")
	if err != nil {
		return geo.Line{}, err
	}
	points := make([]geo.Point, len(pairs))
	for i, xy := range pairs {
		points[i] = geo.Point{Lon: xy[0], Lat: xy[1]}
	}
	line, err := geo.NewLine(points)
	if err != nil {
		return geo.Line{}, geom.Errorf("attribute %q: %s", "pos_list", err)
	}
	return line, nil
}

// geoEdges reads the ordered edges of a complex fault geometry: the top
// edge, any intermediate edges, and the bottom edge, each a flat 3D
// pos_list.
func geoEdges(geom *sml.Node) ([]geo.Line, error) {
	var edges []geo.Line
	for _, en := range geom.Children {
		switch en.Tag {
		case "fault_top_edge", "intermediate_edge", "fault_bottom_edge":
		default:
			return nil, en.Errorf("unexpected block in a complex fault geometry")
		}
		triples, err := valid.Triples(en, "pos_list")
		if err != nil {
			return nil, err
		}
		line, err := geo.NewLine(points3(triples))
		if err != nil {
			return nil, en.Errorf("attribute %q: %s", "pos_list", err)
		}
		edges = append(edges, line)
	}
	if len(edges) < 2 {
		return nil, geom.Errorf("needs a fault_top_edge and a fault_bottom_edge")
	}
	if geom.Children[0].Tag != "fault_top_edge" {
		return nil, geom.Children[0].Errorf("the first edge must be the fault_top_edge")
	}
	if last := geom.Children[len(geom.Children)-1]; last.Tag != "fault_bottom_edge" {
		return nil, last.Errorf("the last edge must be the fault_bottom_edge")
	}
	return edges, nil
}

// geoPlanar reads the four corner blocks of a planar surface.
func geoPlanar(n *sml.Node) (*geo.PlanarSurface, error) {
	var corners [4]geo.Point
	for i, tag := range [...]string{"top_left", "top_right", "bottom_right", "bottom_left"} {
		cn, err := requiredChild(n, tag)
		if err != nil {
			return nil, err
		}
		corners[i], err = geoPoint3(cn)
		if err != nil {
			return nil, err
		}
	}
	surf, err := geo.NewPlanarSurface(corners[0], corners[1], corners[2], corners[3])
	if err != nil {
		return nil, n.Errorf("%s", err)
	}
	return surf, nil
}

// geoPoint3 reads a lon/lat/depth attribute triple.
func geoPoint3(n *sml.Node) (geo.Point, error) {
	lon, err := valid.Float(n, "lon")
	if err != nil {
		return geo.Point{}, err
	}
	if err := valid.CheckLongitude(lon); err != nil {
		return geo.Point{}, n.Errorf("%s", err)
	}
	lat, err := valid.Float(n, "lat")
	if err != nil {
		return geo.Point{}, err
	}
	if err := valid.CheckLatitude(lat); err != nil {
		return geo.Point{}, n.Errorf("%s", err)
	}
	depth, err := valid.Float(n, "depth")
	if err != nil {
		return geo.Point{}, err
	}
	return geo.Point{Lon: lon, Lat: lat, Depth: depth}, nil
}

func points3(triples [][3]float64) []geo.Point {
	points := make([]geo.Point, len(triples))
	for i, t := range triples {
		points[i] = geo.Point{Lon: t[0], Lat: t[1], Depth: t[2]}
	}
	return points
}

// rakeOf reads a rake attribute, constrained to [-180, 180] degrees.
func rakeOf(n *sml.Node) (float64, error) {
	rake, err := valid.Float(n, "rake")
	if err != nil {
		return 0, err
	}
	if rake < -180 || rake > 180 {
		return 0, n.Errorf("rake %v out of range [-180, 180]", rake)
	}
	return rake, nil
}

// depthRange reads and orders the seismogenic depth attributes of a
// geometry node.
func depthRange(geom *sml.Node) (usd, lsd float64, err error) {
	usd, err = valid.Float(geom, "upper_seismo_depth")
	if err != nil {
		return 0, 0, err
	}
	lsd, err = valid.Float(geom, "lower_seismo_depth")
	if err != nil {
		return 0, 0, err
	}
	if usd < 0 {
		return 0, 0, geom.Errorf("upper seismogenic depth %v must be non-negative", usd)
	}
	if lsd < usd {
		return 0, 0, geom.Errorf("lower seismogenic depth %v is above the upper one %v", lsd, usd)
	}
	return usd, lsd, nil
}

func requiredChild(n *sml.Node, tag string) (*sml.Node, error) {
	c := n.Child(tag)
	if c == nil {
		return nil, n.Errorf("missing %s block", tag)
	}
	return c, nil
}

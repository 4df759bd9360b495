package geo

import (
	"fmt"
	"math"
)

// SurfaceKind discriminates the closed set of rupture surface variants.
type SurfaceKind uint8

const (
	KindPlanar SurfaceKind = iota + 1
	KindSimpleFault
	KindComplexFault
	KindGridded
	KindMulti
)

func (k SurfaceKind) String() string {
	switch k {
	case KindPlanar:
		return "planar"
	case KindSimpleFault:
		return "simple fault"
	case KindComplexFault:
		return "complex fault"
	case KindGridded:
		return "gridded"
	case KindMulti:
		return "multi"
	}
	return fmt.Sprintf("surface kind %d", k)
}

// Surface is a rupture surface. The variants form a closed set; construction
// goes through the checked constructors below and the stored fields are the
// construction inputs, which keeps surfaces cheap to serialize.
type Surface interface {
	Kind() SurfaceKind
}

// PlanarSurface is a rectangle given by its four corners. Corners follow
// the top-left, top-right, bottom-right, bottom-left winding.
type PlanarSurface struct {
	TopLeft     Point
	TopRight    Point
	BottomRight Point
	BottomLeft  Point
}

// NewPlanarSurface validates the corner quad: both top corners at one depth,
// both bottom corners at one (deeper) depth.
func NewPlanarSurface(topLeft, topRight, bottomRight, bottomLeft Point) (*PlanarSurface, error) {
	if topLeft.Depth != topRight.Depth {
		return nil, fmt.Errorf("top corners at different depths: %v and %v", topLeft.Depth, topRight.Depth)
	}
	if bottomLeft.Depth != bottomRight.Depth {
		return nil, fmt.Errorf("bottom corners at different depths: %v and %v", bottomLeft.Depth, bottomRight.Depth)
	}
	if bottomLeft.Depth <= topLeft.Depth {
		return nil, fmt.Errorf("bottom depth %v not below top depth %v", bottomLeft.Depth, topLeft.Depth)
	}
	return &PlanarSurface{
		TopLeft:     topLeft,
		TopRight:    topRight,
		BottomRight: bottomRight,
		BottomLeft:  bottomLeft,
	}, nil
}

func (*PlanarSurface) Kind() SurfaceKind { return KindPlanar }

// SimpleFaultSurface is defined by a surface trace, a dip and a pair of
// seismogenic depths, meshed at a given spacing.
type SimpleFaultSurface struct {
	Trace       Line
	UpperDepth  float64
	LowerDepth  float64
	Dip         float64
	MeshSpacing float64
}

// NewSimpleFaultSurface validates the fault data the way the converters
// need it: positive spacing, dip in (0, 90], lower depth strictly below a
// non-negative upper depth, trace at the surface.
func NewSimpleFaultSurface(trace Line, upperDepth, lowerDepth, dip, meshSpacing float64) (*SimpleFaultSurface, error) {
	if meshSpacing <= 0 {
		return nil, fmt.Errorf("mesh spacing must be positive, got %v", meshSpacing)
	}
	if dip <= 0 || dip > 90 {
		return nil, fmt.Errorf("dip %v out of range (0, 90]", dip)
	}
	if upperDepth < 0 {
		return nil, fmt.Errorf("upper seismogenic depth must be non-negative, got %v", upperDepth)
	}
	if lowerDepth <= upperDepth {
		return nil, fmt.Errorf("lower seismogenic depth %v not below upper %v", lowerDepth, upperDepth)
	}
	for _, p := range trace.Points {
		if p.Depth != 0 {
			return nil, fmt.Errorf("fault trace must be at the surface, got depth %v", p.Depth)
		}
	}
	return &SimpleFaultSurface{
		Trace:       trace,
		UpperDepth:  upperDepth,
		LowerDepth:  lowerDepth,
		Dip:         dip,
		MeshSpacing: meshSpacing,
	}, nil
}

func (*SimpleFaultSurface) Kind() SurfaceKind { return KindSimpleFault }

// Length returns the along-strike fault length in km.
func (s *SimpleFaultSurface) Length() float64 { return s.Trace.Length() }

// Width returns the down-dip fault width in km.
func (s *SimpleFaultSurface) Width() float64 {
	return (s.LowerDepth - s.UpperDepth) / math.Sin(s.Dip*math.Pi/180)
}

// ComplexFaultSurface is defined by ordered edges, top first and bottom
// last, meshed at a given spacing.
type ComplexFaultSurface struct {
	Edges       []Line
	MeshSpacing float64
}

// NewComplexFaultSurface validates edge count and spacing.
func NewComplexFaultSurface(edges []Line, meshSpacing float64) (*ComplexFaultSurface, error) {
	if meshSpacing <= 0 {
		return nil, fmt.Errorf("mesh spacing must be positive, got %v", meshSpacing)
	}
	if len(edges) < 2 {
		return nil, fmt.Errorf("a complex fault needs at least 2 edges, got %d", len(edges))
	}
	return &ComplexFaultSurface{Edges: edges, MeshSpacing: meshSpacing}, nil
}

func (*ComplexFaultSurface) Kind() SurfaceKind { return KindComplexFault }

// Length returns the along-strike length in km, taken from the top edge.
func (s *ComplexFaultSurface) Length() float64 { return s.Edges[0].Length() }

// Width returns the approximate down-dip width in km: the mean of the
// distances between the endpoints of the top and bottom edges.
func (s *ComplexFaultSurface) Width() float64 {
	top := s.Edges[0].Points
	bottom := s.Edges[len(s.Edges)-1].Points
	first := top[0].Distance3D(bottom[0])
	last := top[len(top)-1].Distance3D(bottom[len(bottom)-1])
	return (first + last) / 2
}

// GriddedSurface is an explicit cloud of surface points.
type GriddedSurface struct {
	Points []Point
}

// NewGriddedSurface builds a gridded surface from at least one point.
func NewGriddedSurface(points []Point) (*GriddedSurface, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("a gridded surface needs at least one point")
	}
	return &GriddedSurface{Points: points}, nil
}

func (*GriddedSurface) Kind() SurfaceKind { return KindGridded }

// MultiSurface is an ordered collection of planar surfaces treated as one.
type MultiSurface struct {
	Surfaces []*PlanarSurface
}

// NewMultiSurface builds a multi surface from at least one planar patch.
func NewMultiSurface(surfaces []*PlanarSurface) (*MultiSurface, error) {
	if len(surfaces) == 0 {
		return nil, fmt.Errorf("a multi surface needs at least one planar surface")
	}
	return &MultiSurface{Surfaces: surfaces}, nil
}

func (*MultiSurface) Kind() SurfaceKind { return KindMulti }

package geo

import (
	"fmt"
	"math"
)

// EarthRadius is the mean earth radius in km, the only earth model used here.
const EarthRadius = 6371.0

// Point is a geographic position. Lon and Lat are decimal degrees, Depth is
// km below the surface (negative above).
type Point struct {
	Lon   float64
	Lat   float64
	Depth float64
}

// Distance returns the great-circle distance to another point in km,
// ignoring depth.
func (p Point) Distance(q Point) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := q.Lat * math.Pi / 180
	dlat := lat2 - lat1
	dlon := (q.Lon - p.Lon) * math.Pi / 180
	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return 2 * EarthRadius * math.Asin(math.Min(1, math.Sqrt(a)))
}

// Distance3D returns the distance to another point in km including the
// depth difference.
func (p Point) Distance3D(q Point) float64 {
	h := p.Distance(q)
	dv := q.Depth - p.Depth
	return math.Sqrt(h*h + dv*dv)
}

// Line is an ordered sequence of points, open by convention.
type Line struct {
	Points []Point
}

// NewLine builds a line, requiring at least two points.
func NewLine(points []Point) (Line, error) {
	if len(points) < 2 {
		return Line{}, fmt.Errorf("a line needs at least 2 points, got %d", len(points))
	}
	return Line{Points: points}, nil
}

// Length returns the sum of segment lengths in km (3D, so sloping edges of
// complex faults measure true length).
func (l Line) Length() float64 {
	var total float64
	for i := 1; i < len(l.Points); i++ {
		total += l.Points[i-1].Distance3D(l.Points[i])
	}
	return total
}

// Polygon is a closed region described by its exterior ring. The ring is
// stored as given; the closing segment back to the first point is implicit.
type Polygon struct {
	Points []Point
}

// NewPolygon builds a polygon from its exterior ring, requiring at least
// three distinct vertices.
func NewPolygon(points []Point) (Polygon, error) {
	if len(points) >= 2 && points[0] == points[len(points)-1] {
		points = points[:len(points)-1]
	}
	if len(points) < 3 {
		return Polygon{}, fmt.Errorf("a polygon needs at least 3 points, got %d", len(points))
	}
	return Polygon{Points: points}, nil
}

// Area returns the approximate polygon area in km^2, using a planar
// shoelace on an equirectangular projection about the mean latitude. Good
// enough for discretization counts at source-zone scale.
func (pg Polygon) Area() float64 {
	n := len(pg.Points)
	if n < 3 {
		return 0
	}
	var meanLat float64
	for _, p := range pg.Points {
		meanLat += p.Lat
	}
	meanLat /= float64(n)
	kmPerDegLat := math.Pi * EarthRadius / 180
	kmPerDegLon := kmPerDegLat * math.Cos(meanLat*math.Pi/180)

	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		xi := pg.Points[i].Lon * kmPerDegLon
		yi := pg.Points[i].Lat * kmPerDegLat
		xj := pg.Points[j].Lon * kmPerDegLon
		yj := pg.Points[j].Lat * kmPerDegLat
		sum += xi*yj - xj*yi
	}
	return math.Abs(sum) / 2
}

// DiscretizedCount estimates how many grid points a discretization of the
// polygon at the given spacing (km) yields. Never less than one: a polygon
// smaller than one cell still produces a single seismicity point.
func (pg Polygon) DiscretizedCount(spacing float64) int {
	if spacing <= 0 {
		return 1
	}
	n := int(pg.Area()/(spacing*spacing) + 0.5)
	if n < 1 {
		return 1
	}
	return n
}

// Mesh is a flat collection of surface positions, used by multi-point
// sources. Lons and Lats are co-indexed.
type Mesh struct {
	Lons []float64
	Lats []float64
}

// NewMesh builds a mesh from coordinate pairs.
func NewMesh(pairs [][2]float64) Mesh {
	m := Mesh{
		Lons: make([]float64, len(pairs)),
		Lats: make([]float64, len(pairs)),
	}
	for i, p := range pairs {
		m.Lons[i] = p[0]
		m.Lats[i] = p[1]
	}
	return m
}

// Len returns the number of positions in the mesh.
func (m Mesh) Len() int { return len(m.Lons) }

// NodalPlane describes a rupture orientation: strike in [0, 360), dip in
// (0, 90], rake in (-180, 180].
type NodalPlane struct {
	Strike float64
	Dip    float64
	Rake   float64
}

// NewNodalPlane builds a validated nodal plane.
func NewNodalPlane(strike, dip, rake float64) (NodalPlane, error) {
	if strike < 0 || strike >= 360 {
		return NodalPlane{}, fmt.Errorf("strike %v out of range [0, 360)", strike)
	}
	if dip <= 0 || dip > 90 {
		return NodalPlane{}, fmt.Errorf("dip %v out of range (0, 90]", dip)
	}
	if rake <= -180 || rake > 180 {
		return NodalPlane{}, fmt.Errorf("rake %v out of range (-180, 180]", rake)
	}
	return NodalPlane{Strike: strike, Dip: dip, Rake: rake}, nil
}

// Compare orders nodal planes by (strike, dip, rake). Used when a repaired
// distribution must be re-sorted deterministically.
func (np NodalPlane) Compare(other NodalPlane) int {
	switch {
	case np.Strike != other.Strike:
		if np.Strike < other.Strike {
			return -1
		}
		return 1
	case np.Dip != other.Dip:
		if np.Dip < other.Dip {
			return -1
		}
		return 1
	case np.Rake != other.Rake:
		if np.Rake < other.Rake {
			return -1
		}
		return 1
	}
	return 0
}

// Package geo holds the geometry primitives consumed by source conversion:
// geographic points, lines, polygons, nodal planes, and the rupture surface
// variants. It implements only what conversion needs, such as construction
// validation, lengths and widths on a spherical earth, and the counts that
// feed rupture-number estimates. Ground-motion mathematics is out of scope.
package geo

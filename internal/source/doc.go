// Package source defines the seismic source variants produced by conversion,
// their ruptures, and the groups that carry them. The variant set is closed:
// area, point, multi-point, simple fault, complex fault, characteristic
// fault, and non-parametric.
package source

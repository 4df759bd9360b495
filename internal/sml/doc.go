// Package sml implements the seismic model language, the declarative HCL
// dialect in which source models are written. It lowers parsed HCL bodies
// into a generic tagged node tree that the converters traverse: block type
// becomes the node tag, evaluated attributes become the attribute map, and
// nested blocks become ordered children. Nodes keep their source ranges so
// that every downstream error can point at the offending line.
package sml

// Package scalerel provides magnitude-area scaling relations and the named
// lookup table the converter resolves them from.
package scalerel

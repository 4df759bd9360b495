// Package tom provides temporal occurrence models and the named constructor
// table the converter resolves them from. Within this subsystem a model is
// carried, not evaluated: sources and groups hold one so that downstream
// hazard code knows how occurrences are distributed in time.
package tom

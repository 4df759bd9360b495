// Package valid is the validation layer between raw model nodes and the
// converters. Every attribute dereference goes through here: values are
// coerced from their cty representation, checked against domain ranges
// (longitudes, latitudes, probabilities, weight columns), and failures come
// back as node-located errors.
package valid

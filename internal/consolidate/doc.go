// Package consolidate rewrites parsed model trees before conversion,
// replacing runs of point sources that share their distributions and
// scaling relation with single multi-point sources. Consolidated models
// parse to far fewer nodes and convert to sources that rupture calculators
// can vectorize over.
package consolidate

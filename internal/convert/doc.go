// Package convert turns parsed model trees into typed seismic sources,
// ruptures and groups.
//
// The package has three entry points. RuptureConverter builds individual
// ruptures and event-based rupture collections. SourceConverter, which
// embeds a RuptureConverter, builds sources, source groups and whole models,
// applying the conversion parameters (mesh spacings, investigation time,
// magnitude floors, filters). RowConverter flattens sources into tabular
// rows with WKT geometry for CSV export.
//
// Converters are immutable after construction and safe for concurrent use;
// one converter typically serves every file of a run.
package convert

// Package codec writes converted source groups to a compact binary form
// and reads them back.
//
// A file holds one group. A short header carries the group's scalar
// attributes, followed by one record per source and an xxh3 checksum of
// the record section. Each record wraps a msgpack payload with a fixed,
// versioned schema per source kind, so a file either decodes to the group
// it was written from or fails with a precise error.
package codec

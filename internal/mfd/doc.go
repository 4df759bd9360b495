// Package mfd implements the magnitude-frequency distributions a seismic
// source can declare: evenly discretized, truncated Gutenberg-Richter,
// arbitrary, Youngs & Coppersmith (1985) characteristic, and the multi
// distribution used by multi-point sources.
package mfd

// Package pointio streams the point records of one octree node.
//
// A hierarchy data entry locates a chunk of point data: a byte range and the
// number of points it holds. [NewRangeReader] opens a fresh cursor over that
// range and hands the bytes to a [Decoder] chosen by the compression flag in
// the LAS point format byte:
//
//   - Uncompressed chunks are fixed-length records and are decoded here.
//   - LAZ chunks need an arithmetic decoder, which callers provide by
//     registering a [DecoderFactory] for [las.CompressionLAZ]. Without one,
//     opening a LAZ chunk fails with [ErrUnsupported].
//
// Points are produced one decode call at a time and in file order. The
// first decode failure ends the sequence and is reported as a
// [*DecodeError] naming the node and the point index.
package pointio

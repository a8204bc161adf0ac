// Package las handles the LAS container that hosts a COPC file.
//
// A COPC file is a LAS 1.4 file whose point data is organised by octree
// node. This package reads only what is needed to find the COPC records and
// to hand point bytes to a decoder:
//
//   - [ReadHeader] parses the public header block and checks the "LASF"
//     signature, the version and the point record length.
//   - [ReadVLRs] and [ReadEVLRs] build the catalog of variable length
//     records. Each [VLR] remembers where its payload lives; [VLR.Data]
//     reads it on demand.
//   - [PointFormat] decodes the format byte, including the compression
//     bits LAZ writers set.
//   - [Point] is an opaque record; [Point.XYZ] applies the header
//     [Transform] to the stored coordinates.
//
// [WriteHeader], [WriteVLR] and [WriteEVLR] produce the same structures and
// are used to build files in tests.
//
// # Errors
//
//   - [ErrNotLAS]: the file does not start with "LASF"
//   - [ErrUnsupportedVersion]: the version is not 1.0 through 1.4
//   - [ErrInvalidHeader]: the header is truncated or inconsistent
//   - [ErrInvalidVLR]: a VLR or EVLR header is truncated or out of place
package las

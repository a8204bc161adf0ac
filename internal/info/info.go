// Package info handles the COPC metadata record stored in the "copc" info VLR.
package info

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/robert-malhotra/go-copc/internal/binary"
)

// Size is the encoded size of the metadata record in bytes.
const Size = 160

// ReservedWords is the number of trailing reserved 64-bit words.
const ReservedWords = 11

// Identification of the VLR carrying the record.
const (
	UserID   = "copc"
	RecordID = 1
)

// LegacyUserID is the user id that files written before COPC 1.0 carry on
// the info VLR and the hierarchy EVLR.
const LegacyUserID = "entwine"

// IsUserID reports whether id names the COPC records, in either its
// current or its legacy spelling.
func IsUserID(id string) bool {
	return id == UserID || id == LegacyUserID
}

// ErrMalformedMetadata is returned when the metadata record cannot be decoded
// or carries a non-zero reserved word.
var ErrMalformedMetadata = errors.New("copc: malformed metadata record")

// Info describes the octree span and the file locations of the root
// hierarchy page and the auxiliary VLR payloads.
type Info struct {
	// Span is the number of voxels in each spatial dimension at the finest level.
	Span int64

	// RootHierOffset and RootHierSize locate the root hierarchy page.
	RootHierOffset uint64
	RootHierSize   uint64

	// LazVLROffset and LazVLRSize locate the payload of the LAZ VLR.
	LazVLROffset uint64
	LazVLRSize   uint64

	// WktVLROffset and WktVLRSize locate the WKT VLR payload, 0 if absent.
	WktVLROffset uint64
	WktVLRSize   uint64

	// EbVLROffset and EbVLRSize locate the extra bytes VLR payload, 0 if absent.
	EbVLROffset uint64
	EbVLRSize   uint64

	// Reserved must be all zero.
	Reserved [ReservedWords]uint64
}

// Parse decodes a metadata record from the first Size bytes of b.
func Parse(b []byte) (*Info, error) {
	if len(b) < Size {
		return nil, malformedf("record is %d bytes, want %d", len(b), Size)
	}
	return Read(binary.NewBytesReader(b))
}

// Read decodes a metadata record at the reader's position, consuming
// exactly Size bytes on success.
func Read(r *binary.Reader) (*Info, error) {
	info := &Info{}

	span, err := r.ReadInt64()
	if err != nil {
		return nil, wrapMalformed(err, "span")
	}
	info.Span = span

	fields := []struct {
		name string
		dst  *uint64
	}{
		{"root_hier_offset", &info.RootHierOffset},
		{"root_hier_size", &info.RootHierSize},
		{"laz_vlr_offset", &info.LazVLROffset},
		{"laz_vlr_size", &info.LazVLRSize},
		{"wkt_vlr_offset", &info.WktVLROffset},
		{"wkt_vlr_size", &info.WktVLRSize},
		{"eb_vlr_offset", &info.EbVLROffset},
		{"eb_vlr_size", &info.EbVLRSize},
	}
	for _, f := range fields {
		if *f.dst, err = r.ReadUint64(); err != nil {
			return nil, wrapMalformed(err, f.name)
		}
	}

	for i := range info.Reserved {
		if info.Reserved[i], err = r.ReadUint64(); err != nil {
			return nil, wrapMalformed(err, "reserved")
		}
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return info, nil
}

// ReadAt decodes a metadata record stored at offset off of r.
func ReadAt(r io.ReaderAt, off int64) (*Info, error) {
	return Read(binary.NewReader(r).At(off))
}

// Validate checks that every reserved word is zero. A non-zero word means
// the file is corrupt or written by a newer, incompatible revision.
func (i *Info) Validate() error {
	for n, w := range i.Reserved {
		if w != 0 {
			return malformedf("reserved word %d is %#x, want 0", n, w)
		}
	}
	return nil
}

// Encode returns the Size-byte encoding of the record.
func (i *Info) Encode() []byte {
	b := make([]byte, 0, Size)
	b = binary.ByteOrder.AppendUint64(b, uint64(i.Span))
	for _, v := range []uint64{
		i.RootHierOffset, i.RootHierSize,
		i.LazVLROffset, i.LazVLRSize,
		i.WktVLROffset, i.WktVLRSize,
		i.EbVLROffset, i.EbVLRSize,
	} {
		b = binary.ByteOrder.AppendUint64(b, v)
	}
	for _, v := range i.Reserved {
		b = binary.ByteOrder.AppendUint64(b, v)
	}
	return b
}

// HasWKT reports whether the file carries a WKT spatial reference VLR.
func (i *Info) HasWKT() bool {
	return i.WktVLROffset != 0 && i.WktVLRSize != 0
}

// HasExtraBytes reports whether the file carries an extra bytes VLR.
func (i *Info) HasExtraBytes() bool {
	return i.EbVLROffset != 0 && i.EbVLRSize != 0
}

func malformedf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf("copc: malformed metadata record: "+format, args...), ErrMalformedMetadata)
}

func wrapMalformed(err error, field string) error {
	return errors.Mark(errors.Wrapf(err, "copc: malformed metadata record: reading %s", field), ErrMalformedMetadata)
}

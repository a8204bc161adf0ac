package hierarchy

import (
	"fmt"

	"github.com/robert-malhotra/go-copc/internal/binary"
	"github.com/robert-malhotra/go-copc/internal/octree"
)

// EntrySize is the encoded size of an Entry in bytes.
const EntrySize = 32

// PointerCount is the point count that marks a pointer entry.
const PointerCount = -1

// Entry is one row of a hierarchy page.
//
// A data entry (PointCount >= 0) locates the point data chunk of node Key.
// A pointer entry (PointCount == -1) locates another hierarchy page holding
// the entries of Key and its descendants.
type Entry struct {
	Key octree.Key

	// Offset is the absolute file offset of the data chunk or child page.
	Offset uint64

	// ByteSize is the size in bytes of the data chunk or child page.
	ByteSize int32

	// PointCount is the number of points in the chunk, or -1.
	PointCount int32
}

// IsPointer reports whether e refers to another hierarchy page.
func (e Entry) IsPointer() bool {
	return e.PointCount == PointerCount
}

// IsData reports whether e locates a point data chunk.
func (e Entry) IsData() bool {
	return e.PointCount >= 0
}

// Range returns the byte range addressed by e.
func (e Entry) Range() Range {
	return Range{Offset: e.Offset, Size: uint64(e.ByteSize)}
}

// Validate checks the entry fields against their domains.
func (e Entry) Validate() error {
	if !e.Key.Valid() {
		return corruptf("entry has invalid key %s", e.Key)
	}
	if e.PointCount < PointerCount {
		return corruptf("entry %s has point count %d", e.Key, e.PointCount)
	}
	if e.ByteSize < 0 {
		return corruptf("entry %s has byte size %d", e.Key, e.ByteSize)
	}
	return nil
}

func (e Entry) String() string {
	if e.IsPointer() {
		return fmt.Sprintf("pointer %s offset=%d size=%d", e.Key, e.Offset, e.ByteSize)
	}
	return fmt.Sprintf("data %s offset=%d size=%d count=%d", e.Key, e.Offset, e.ByteSize, e.PointCount)
}

// ParseEntry decodes one entry at the reader's position.
func ParseEntry(r *binary.Reader) (Entry, error) {
	buf, err := r.ReadBytes(EntrySize)
	if err != nil {
		if binary.IsShortRead(err) {
			return Entry{}, truncatedf("entry at offset %d needs %d bytes", r.Pos(), EntrySize)
		}
		return Entry{}, err
	}
	return DecodeEntry(buf), nil
}

// DecodeEntry decodes an entry from the first EntrySize bytes of b.
func DecodeEntry(b []byte) Entry {
	_ = b[EntrySize-1]
	return Entry{
		Key:        octree.DecodeKey(b),
		Offset:     binary.ByteOrder.Uint64(b[16:]),
		ByteSize:   int32(binary.ByteOrder.Uint32(b[24:])),
		PointCount: int32(binary.ByteOrder.Uint32(b[28:])),
	}
}

// AppendEntry appends the encoding of e to b.
func AppendEntry(b []byte, e Entry) []byte {
	b = octree.AppendKey(b, e.Key)
	b = binary.ByteOrder.AppendUint64(b, e.Offset)
	b = binary.ByteOrder.AppendUint32(b, uint32(e.ByteSize))
	return binary.ByteOrder.AppendUint32(b, uint32(e.PointCount))
}

// Range is a byte range in the file.
type Range struct {
	Offset uint64
	Size   uint64
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,+%d)", r.Offset, r.Size)
}

package las

import (
	"github.com/cockroachdb/errors"
	"github.com/robert-malhotra/go-copc/internal/binary"
)

// PointFormat is the raw point data record format byte from the header.
// The low six bits hold the format id; LAZ writers set bit 7 (and older
// ones bit 6) to flag compressed point data.
type PointFormat uint8

// Compression identifies how point records are stored.
type Compression uint8

// Compression kinds.
const (
	CompressionNone Compression = iota
	CompressionLAZ
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLAZ:
		return "laz"
	default:
		return "unknown"
	}
}

const compressionBits = 0xC0

// baseLengths is the minimum record length of formats 0 through 10.
var baseLengths = [...]uint16{20, 28, 26, 34, 57, 63, 30, 36, 38, 59, 67}

// ID returns the point data record format id with compression bits cleared.
func (f PointFormat) ID() uint8 {
	return uint8(f) &^ compressionBits
}

// Compression returns the compression kind flagged by the format byte.
func (f PointFormat) Compression() Compression {
	if uint8(f)&compressionBits != 0 {
		return CompressionLAZ
	}
	return CompressionNone
}

// BaseLength returns the minimum record length of the format.
func (f PointFormat) BaseLength() (uint16, error) {
	id := f.ID()
	if int(id) >= len(baseLengths) {
		return 0, errors.Mark(errors.Newf("las: unknown point data record format %d", id), ErrInvalidHeader)
	}
	return baseLengths[id], nil
}

// Point is one decoded point data record. Attribute semantics are left to
// the caller; Raw holds the full record including any extra bytes.
type Point struct {
	Format PointFormat
	Raw    []byte
}

// RawXYZ returns the stored integer coordinates.
func (p Point) RawXYZ() (x, y, z int32) {
	if len(p.Raw) < 12 {
		return 0, 0, 0
	}
	return int32(binary.ByteOrder.Uint32(p.Raw[0:])),
		int32(binary.ByteOrder.Uint32(p.Raw[4:])),
		int32(binary.ByteOrder.Uint32(p.Raw[8:]))
}

// XYZ returns the coordinates after applying t.
func (p Point) XYZ(t Transform) [3]float64 {
	x, y, z := p.RawXYZ()
	return t.Apply(x, y, z)
}

// Transform maps stored integer coordinates to real coordinates.
type Transform struct {
	Scale  [3]float64
	Offset [3]float64
}

// Apply returns raw*scale + offset per axis.
func (t Transform) Apply(x, y, z int32) [3]float64 {
	return [3]float64{
		float64(x)*t.Scale[0] + t.Offset[0],
		float64(y)*t.Scale[1] + t.Offset[1],
		float64(z)*t.Scale[2] + t.Offset[2],
	}
}

// EncodeXYZ returns a zeroed record of the given length carrying the
// stored coordinates x, y, z.
func EncodeXYZ(length uint16, x, y, z int32) []byte {
	b := make([]byte, length)
	binary.ByteOrder.PutUint32(b[0:], uint32(x))
	binary.ByteOrder.PutUint32(b[4:], uint32(y))
	binary.ByteOrder.PutUint32(b[8:], uint32(z))
	return b
}

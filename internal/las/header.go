package las

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robert-malhotra/go-copc/internal/binary"
)

// Signature is the LAS file signature.
const Signature = "LASF"

// Header sizes by minor version.
const (
	HeaderSize12 = 227
	HeaderSize13 = 235
	HeaderSize14 = 375
)

// Errors
var (
	ErrNotLAS             = errors.New("las: not a LAS file: signature not found")
	ErrUnsupportedVersion = errors.New("las: unsupported version")
	ErrInvalidHeader      = errors.New("las: invalid header")
)

// Header is the LAS public header block.
type Header struct {
	FileSourceID   uint16
	GlobalEncoding uint16

	// ProjectID is the 16-byte project GUID, kept in on-disk byte order.
	ProjectID uuid.UUID

	VersionMajor uint8
	VersionMinor uint8

	SystemID           string
	GeneratingSoftware string
	CreationDay        uint16
	CreationYear       uint16

	// HeaderSize is the size of the header block; VLRs start right after it.
	HeaderSize        uint16
	OffsetToPointData uint32
	NumberOfVLRs      uint32

	PointFormat       PointFormat
	PointRecordLength uint16

	LegacyPointCount     uint32
	LegacyPointsByReturn [5]uint32

	Scale  [3]float64
	Offset [3]float64
	Min    [3]float64
	Max    [3]float64

	// LAS 1.3+
	WaveformOffset uint64

	// LAS 1.4+
	EVLROffset     uint64
	NumberOfEVLRs  uint32
	PointCount     uint64
	PointsByReturn [15]uint64
}

// ReadHeader parses the public header block at the start of r.
func ReadHeader(r io.ReaderAt) (*Header, error) {
	br := binary.NewReader(r)

	sig, err := br.ReadBytes(4)
	if err != nil {
		if binary.IsShortRead(err) {
			return nil, ErrNotLAS
		}
		return nil, err
	}
	if string(sig) != Signature {
		return nil, ErrNotLAS
	}

	h := &Header{}
	if err := h.read(br); err != nil {
		if binary.IsShortRead(err) {
			return nil, errors.Mark(errors.Wrap(err, "las: truncated header"), ErrInvalidHeader)
		}
		return nil, err
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// read decodes everything after the signature.
func (h *Header) read(r *binary.Reader) error {
	var err error
	if h.FileSourceID, err = r.ReadUint16(); err != nil {
		return err
	}
	if h.GlobalEncoding, err = r.ReadUint16(); err != nil {
		return err
	}
	guid, err := r.ReadBytes(16)
	if err != nil {
		return err
	}
	copy(h.ProjectID[:], guid)

	if h.VersionMajor, err = r.ReadUint8(); err != nil {
		return err
	}
	if h.VersionMinor, err = r.ReadUint8(); err != nil {
		return err
	}
	if h.VersionMajor != 1 || h.VersionMinor > 4 {
		return errors.Mark(errors.Newf("las: version %d.%d", h.VersionMajor, h.VersionMinor), ErrUnsupportedVersion)
	}

	if h.SystemID, err = r.ReadString(32); err != nil {
		return err
	}
	if h.GeneratingSoftware, err = r.ReadString(32); err != nil {
		return err
	}
	if h.CreationDay, err = r.ReadUint16(); err != nil {
		return err
	}
	if h.CreationYear, err = r.ReadUint16(); err != nil {
		return err
	}
	if h.HeaderSize, err = r.ReadUint16(); err != nil {
		return err
	}
	if h.OffsetToPointData, err = r.ReadUint32(); err != nil {
		return err
	}
	if h.NumberOfVLRs, err = r.ReadUint32(); err != nil {
		return err
	}
	format, err := r.ReadUint8()
	if err != nil {
		return err
	}
	h.PointFormat = PointFormat(format)
	if h.PointRecordLength, err = r.ReadUint16(); err != nil {
		return err
	}
	if h.LegacyPointCount, err = r.ReadUint32(); err != nil {
		return err
	}
	for i := range h.LegacyPointsByReturn {
		if h.LegacyPointsByReturn[i], err = r.ReadUint32(); err != nil {
			return err
		}
	}
	for _, dst := range []*[3]float64{&h.Scale, &h.Offset} {
		for i := 0; i < 3; i++ {
			if dst[i], err = r.ReadFloat64(); err != nil {
				return err
			}
		}
	}
	// Bounds are stored as max x, min x, max y, min y, max z, min z.
	for i := 0; i < 3; i++ {
		if h.Max[i], err = r.ReadFloat64(); err != nil {
			return err
		}
		if h.Min[i], err = r.ReadFloat64(); err != nil {
			return err
		}
	}

	if h.VersionMinor < 3 {
		h.PointCount = uint64(h.LegacyPointCount)
		return nil
	}
	if h.WaveformOffset, err = r.ReadUint64(); err != nil {
		return err
	}

	if h.VersionMinor < 4 {
		h.PointCount = uint64(h.LegacyPointCount)
		return nil
	}
	if h.EVLROffset, err = r.ReadUint64(); err != nil {
		return err
	}
	if h.NumberOfEVLRs, err = r.ReadUint32(); err != nil {
		return err
	}
	if h.PointCount, err = r.ReadUint64(); err != nil {
		return err
	}
	for i := range h.PointsByReturn {
		if h.PointsByReturn[i], err = r.ReadUint64(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the header for internal consistency.
func (h *Header) Validate() error {
	minSize := uint16(HeaderSize12)
	switch {
	case h.VersionMinor == 3:
		minSize = HeaderSize13
	case h.VersionMinor >= 4:
		minSize = HeaderSize14
	}
	if h.HeaderSize < minSize {
		return errors.Mark(
			errors.Newf("las: header size %d too small for version 1.%d", h.HeaderSize, h.VersionMinor),
			ErrInvalidHeader)
	}
	if uint32(h.HeaderSize) > h.OffsetToPointData {
		return errors.Mark(
			errors.Newf("las: offset to point data %d is inside the header", h.OffsetToPointData),
			ErrInvalidHeader)
	}
	base, err := h.PointFormat.BaseLength()
	if err != nil {
		return err
	}
	if h.PointRecordLength < base {
		return errors.Mark(
			errors.Newf("las: point record length %d shorter than format %d minimum %d",
				h.PointRecordLength, h.PointFormat.ID(), base),
			ErrInvalidHeader)
	}
	return nil
}

// Version returns the version as "major.minor".
func (h *Header) Version() string {
	return string([]byte{'0' + h.VersionMajor, '.', '0' + h.VersionMinor})
}

// Transform returns the scale/offset transform for point coordinates.
func (h *Header) Transform() Transform {
	return Transform{Scale: h.Scale, Offset: h.Offset}
}

// WriteHeader writes h as a LAS 1.4 header at the writer's position.
// HeaderSize is forced to HeaderSize14.
func WriteHeader(w *binary.Writer, h *Header) error {
	w.WriteString(Signature, 4)
	w.WriteUint16(h.FileSourceID)
	w.WriteUint16(h.GlobalEncoding)
	w.WriteBytes(h.ProjectID[:])
	w.WriteUint8(1)
	w.WriteUint8(4)
	w.WriteString(h.SystemID, 32)
	w.WriteString(h.GeneratingSoftware, 32)
	w.WriteUint16(h.CreationDay)
	w.WriteUint16(h.CreationYear)
	w.WriteUint16(HeaderSize14)
	w.WriteUint32(h.OffsetToPointData)
	w.WriteUint32(h.NumberOfVLRs)
	w.WriteUint8(uint8(h.PointFormat))
	w.WriteUint16(h.PointRecordLength)
	w.WriteUint32(h.LegacyPointCount)
	for _, v := range h.LegacyPointsByReturn {
		w.WriteUint32(v)
	}
	for _, v := range h.Scale {
		w.WriteFloat64(v)
	}
	for _, v := range h.Offset {
		w.WriteFloat64(v)
	}
	for i := 0; i < 3; i++ {
		w.WriteFloat64(h.Max[i])
		w.WriteFloat64(h.Min[i])
	}
	w.WriteUint64(h.WaveformOffset)
	w.WriteUint64(h.EVLROffset)
	w.WriteUint32(h.NumberOfEVLRs)
	w.WriteUint64(h.PointCount)
	for _, v := range h.PointsByReturn {
		w.WriteUint64(v)
	}
	return w.Err()
}

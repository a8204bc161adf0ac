package las

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/robert-malhotra/go-copc/internal/binary"
)

// Record header sizes.
const (
	VLRHeaderSize  = 54
	EVLRHeaderSize = 60
)

// ErrInvalidVLR is returned when a VLR or EVLR header cannot be decoded.
var ErrInvalidVLR = errors.New("las: invalid variable length record")

// VLR describes one variable length record (or extended VLR) and where
// its payload lives. The payload itself is read on demand with Data.
type VLR struct {
	UserID      string
	RecordID    uint16
	Description string

	// Extended is true for records from the EVLR area.
	Extended bool

	// HeaderOffset is the file offset of the record header.
	HeaderOffset int64

	// DataOffset and DataLength locate the payload.
	DataOffset int64
	DataLength uint64
}

// Is reports whether v has the given user id and record id.
func (v VLR) Is(userID string, recordID uint16) bool {
	return v.UserID == userID && v.RecordID == recordID
}

// Data reads the payload of v from r.
func (v VLR) Data(r io.ReaderAt) ([]byte, error) {
	data, err := binary.NewReader(r).At(v.DataOffset).ReadBytes(int(v.DataLength))
	if err != nil {
		return nil, errors.Wrapf(err, "reading payload of %s/%d", v.UserID, v.RecordID)
	}
	return data, nil
}

// ReadVLRs reads the VLR catalog that follows the header.
func ReadVLRs(r io.ReaderAt, h *Header) ([]VLR, error) {
	br := binary.NewReader(r).At(int64(h.HeaderSize))
	vlrs := make([]VLR, 0, h.NumberOfVLRs)
	for i := uint32(0); i < h.NumberOfVLRs; i++ {
		v, err := readRecord(br, false)
		if err != nil {
			return nil, errors.Wrapf(err, "reading VLR %d", i)
		}
		if v.DataOffset+int64(v.DataLength) > int64(h.OffsetToPointData) {
			return nil, errors.Mark(
				errors.Newf("las: VLR %d (%s/%d) overlaps point data", i, v.UserID, v.RecordID),
				ErrInvalidVLR)
		}
		vlrs = append(vlrs, v)
		br.Skip(int64(v.DataLength))
	}
	return vlrs, nil
}

// ReadEVLRs reads the extended VLR catalog. Files before LAS 1.4 have none.
func ReadEVLRs(r io.ReaderAt, h *Header) ([]VLR, error) {
	if h.NumberOfEVLRs == 0 {
		return nil, nil
	}
	br := binary.NewReader(r).At(int64(h.EVLROffset))
	evlrs := make([]VLR, 0, h.NumberOfEVLRs)
	for i := uint32(0); i < h.NumberOfEVLRs; i++ {
		v, err := readRecord(br, true)
		if err != nil {
			return nil, errors.Wrapf(err, "reading EVLR %d", i)
		}
		evlrs = append(evlrs, v)
		br.Skip(int64(v.DataLength))
	}
	return evlrs, nil
}

func readRecord(r *binary.Reader, extended bool) (VLR, error) {
	v := VLR{Extended: extended, HeaderOffset: r.Pos()}

	// Reserved (2 bytes)
	r.Skip(2)

	var err error
	if v.UserID, err = r.ReadString(16); err != nil {
		return VLR{}, markShort(err)
	}
	if v.RecordID, err = r.ReadUint16(); err != nil {
		return VLR{}, markShort(err)
	}
	if extended {
		if v.DataLength, err = r.ReadUint64(); err != nil {
			return VLR{}, markShort(err)
		}
	} else {
		n, err := r.ReadUint16()
		if err != nil {
			return VLR{}, markShort(err)
		}
		v.DataLength = uint64(n)
	}
	if v.Description, err = r.ReadString(32); err != nil {
		return VLR{}, markShort(err)
	}
	v.DataOffset = r.Pos()
	return v, nil
}

func markShort(err error) error {
	if binary.IsShortRead(err) {
		return errors.Mark(err, ErrInvalidVLR)
	}
	return err
}

// Find returns the first record with the given user id and record id.
func Find(vlrs []VLR, userID string, recordID uint16) (VLR, bool) {
	for _, v := range vlrs {
		if v.Is(userID, recordID) {
			return v, true
		}
	}
	return VLR{}, false
}

// WriteVLR writes a VLR header followed by data at the writer's position.
func WriteVLR(w *binary.Writer, userID string, recordID uint16, description string, data []byte) error {
	if len(data) > 0xFFFF {
		return errors.Newf("las: VLR payload of %d bytes exceeds 65535", len(data))
	}
	w.WriteZeros(2)
	w.WriteString(userID, 16)
	w.WriteUint16(recordID)
	w.WriteUint16(uint16(len(data)))
	w.WriteString(description, 32)
	w.WriteBytes(data)
	return w.Err()
}

// WriteEVLR writes an EVLR header followed by data at the writer's position.
func WriteEVLR(w *binary.Writer, userID string, recordID uint16, description string, data []byte) error {
	w.WriteZeros(2)
	w.WriteString(userID, 16)
	w.WriteUint16(recordID)
	w.WriteUint64(uint64(len(data)))
	w.WriteString(description, 32)
	w.WriteBytes(data)
	return w.Err()
}

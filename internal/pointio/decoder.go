package pointio

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/robert-malhotra/go-copc/internal/hierarchy"
	"github.com/robert-malhotra/go-copc/internal/las"
)

// ErrUnsupported is returned when no decoder is registered for the
// compression used by the point data.
var ErrUnsupported = errors.New("pointio: unsupported point compression")

// Chunk describes the point data chunk being decoded.
type Chunk struct {
	// Entry is the hierarchy data entry locating the chunk.
	Entry hierarchy.Entry

	// Format and RecordLength come from the LAS header.
	Format       las.PointFormat
	RecordLength uint16
}

// Decoder decodes consecutive point records from a chunk.
type Decoder interface {
	// Decode returns the next point. It is called at most
	// Entry.PointCount times per chunk.
	Decode() (las.Point, error)
}

// DecoderFactory creates a Decoder reading the chunk bytes from src.
// src is positioned at the start of the chunk and ends with it.
type DecoderFactory func(src io.Reader, c Chunk) (Decoder, error)

// Registry maps compression kinds to decoder factories.
type Registry struct {
	factories map[las.Compression]DecoderFactory
}

// NewRegistry returns a registry with the uncompressed decoder installed.
func NewRegistry() *Registry {
	return &Registry{
		factories: map[las.Compression]DecoderFactory{
			las.CompressionNone: NewRawDecoder,
		},
	}
}

// Register installs f for compression c, replacing any previous factory.
// A nil f removes the registration.
func (r *Registry) Register(c las.Compression, f DecoderFactory) {
	if f == nil {
		delete(r.factories, c)
		return
	}
	r.factories[c] = f
}

// Lookup returns the factory registered for c.
func (r *Registry) Lookup(c las.Compression) (DecoderFactory, bool) {
	f, ok := r.factories[c]
	return f, ok
}

// New creates a decoder for chunk c reading from src.
func (r *Registry) New(src io.Reader, c Chunk) (Decoder, error) {
	comp := c.Format.Compression()
	f, ok := r.factories[comp]
	if !ok {
		return nil, errors.Mark(
			errors.Newf("pointio: no decoder for %s point data (format byte %#x)", comp, uint8(c.Format)),
			ErrUnsupported)
	}
	return f(src, c)
}

// rawDecoder reads uncompressed fixed-length point records.
type rawDecoder struct {
	src    io.Reader
	format las.PointFormat
	length int
}

// NewRawDecoder returns a Decoder for uncompressed point records of
// c.RecordLength bytes each.
func NewRawDecoder(src io.Reader, c Chunk) (Decoder, error) {
	base, err := c.Format.BaseLength()
	if err != nil {
		return nil, err
	}
	if c.RecordLength < base {
		return nil, errors.Newf("pointio: record length %d is shorter than the %d bytes of format %d",
			c.RecordLength, base, c.Format.ID())
	}
	return &rawDecoder{src: src, format: c.Format, length: int(c.RecordLength)}, nil
}

func (d *rawDecoder) Decode() (las.Point, error) {
	buf := make([]byte, d.length)
	if _, err := io.ReadFull(d.src, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return las.Point{}, err
	}
	return las.Point{Format: d.format, Raw: buf}, nil
}

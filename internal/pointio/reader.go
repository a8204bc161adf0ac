package pointio

import (
	"fmt"
	"io"
	"iter"

	"github.com/cockroachdb/errors"
	"github.com/robert-malhotra/go-copc/internal/hierarchy"
	"github.com/robert-malhotra/go-copc/internal/las"
	"github.com/robert-malhotra/go-copc/internal/octree"
)

// DecodeError reports a failure decoding a point of a chunk.
type DecodeError struct {
	Key   octree.Key
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("pointio: decoding point %d of node %s: %v", e.Index, e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// RangeReader yields the points of one data chunk. It owns its cursor into
// the source; concurrent RangeReaders over one io.ReaderAt are safe when the
// source supports concurrent positioned reads.
type RangeReader struct {
	chunk Chunk
	dec   Decoder
	next  int
	err   error
}

// NewRangeReader opens the chunk located by entry. The decoder is chosen by
// the compression flag of h.PointFormat.
func NewRangeReader(src io.ReaderAt, entry hierarchy.Entry, h *las.Header, reg *Registry) (*RangeReader, error) {
	if !entry.IsData() {
		return nil, errors.Newf("pointio: %s is not a data entry", entry)
	}
	if reg == nil {
		reg = NewRegistry()
	}
	c := Chunk{
		Entry:        entry,
		Format:       h.PointFormat,
		RecordLength: h.PointRecordLength,
	}
	sr := io.NewSectionReader(src, int64(entry.Offset), int64(entry.ByteSize))
	dec, err := reg.New(sr, c)
	if err != nil {
		return nil, errors.Wrapf(err, "pointio: node %s", entry.Key)
	}
	return &RangeReader{chunk: c, dec: dec}, nil
}

// Key returns the node whose points are read.
func (r *RangeReader) Key() octree.Key {
	return r.chunk.Entry.Key
}

// Len returns the number of points in the chunk.
func (r *RangeReader) Len() int {
	return int(r.chunk.Entry.PointCount)
}

// Remaining returns the number of points not yet returned, or 0 once the
// reader has failed.
func (r *RangeReader) Remaining() int {
	if r.err != nil {
		return 0
	}
	return r.Len() - r.next
}

// Next returns the next point, io.EOF after the last one, or a
// *DecodeError. Once Next has returned an error every later call returns
// the same error.
func (r *RangeReader) Next() (las.Point, error) {
	if r.err != nil {
		return las.Point{}, r.err
	}
	if r.next >= r.Len() {
		r.err = io.EOF
		return las.Point{}, r.err
	}
	p, err := r.dec.Decode()
	if err != nil {
		r.err = &DecodeError{Key: r.Key(), Index: r.next, Err: err}
		return las.Point{}, r.err
	}
	r.next++
	return p, nil
}

// All returns an iterator over the remaining points. The sequence ends
// after the last point or after the first error, which is yielded with a
// zero Point. The reader advances as the sequence is consumed, so the
// sequence can be ranged over only once.
func (r *RangeReader) All() iter.Seq2[las.Point, error] {
	return func(yield func(las.Point, error) bool) {
		for {
			p, err := r.Next()
			if err == io.EOF {
				return
			}
			if !yield(p, err) || err != nil {
				return
			}
		}
	}
}

package copc

import (
	"github.com/robert-malhotra/go-copc/internal/hierarchy"
	"github.com/robert-malhotra/go-copc/internal/info"
	"github.com/robert-malhotra/go-copc/internal/las"
	"github.com/robert-malhotra/go-copc/internal/octree"
	"github.com/robert-malhotra/go-copc/internal/pointio"
)

type (
	// Key addresses an octree node.
	Key = octree.Key
	// Bounds is an axis-aligned box.
	Bounds = octree.Bounds
	// Entry is a hierarchy entry.
	Entry = hierarchy.Entry
	// Stats counts hierarchy lookups and page loads.
	Stats = hierarchy.Stats
	// WalkFunc is called for each data entry by File.Walk.
	WalkFunc = hierarchy.WalkFunc

	// Header is the LAS public header block.
	Header = las.Header
	// VLR describes a variable length record.
	VLR = las.VLR
	// Info is the COPC info record.
	Info = info.Info

	// Point is one point data record.
	Point = las.Point
	// PointFormat is the LAS point data record format byte.
	PointFormat = las.PointFormat
	// Compression identifies how point records are stored.
	Compression = las.Compression
	// PointReader yields the points of one node.
	PointReader = pointio.RangeReader
	// DecodeError reports a failure decoding a point.
	DecodeError = pointio.DecodeError
	// Decoder decodes the point records of a chunk.
	Decoder = pointio.Decoder
	// DecoderFactory creates a Decoder for a chunk.
	DecoderFactory = pointio.DecoderFactory
	// Chunk describes the point data chunk handed to a DecoderFactory.
	Chunk = pointio.Chunk
)

// Compression kinds.
const (
	CompressionNone = las.CompressionNone
	CompressionLAZ  = las.CompressionLAZ
)

// RootKey is the key of the octree root.
var RootKey = octree.RootKey

// SkipSubtree can be returned from a WalkFunc to skip a node's descendants.
var SkipSubtree = hierarchy.SkipSubtree

// NewKey returns the key (level, x, y, z).
func NewKey(level, x, y, z int32) Key {
	return octree.NewKey(level, x, y, z)
}

// ParseKey parses a key in "level-x-y-z" form.
func ParseKey(s string) (Key, error) {
	return octree.ParseKey(s)
}

// CompareKeys orders keys by level, then x, y and z.
func CompareKeys(a, b Key) int {
	return octree.Compare(a, b)
}

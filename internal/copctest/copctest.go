// Package copctest builds small COPC files in memory for tests.
//
// The files are LAS 1.4 with uncompressed point records: a public header,
// the COPC info VLR, an optional WKT VLR, one point chunk per node and a
// hierarchy EVLR holding the root page followed by any child pages.
package copctest

import (
	"math"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/robert-malhotra/go-copc/internal/binary"
	"github.com/robert-malhotra/go-copc/internal/hierarchy"
	"github.com/robert-malhotra/go-copc/internal/info"
	"github.com/robert-malhotra/go-copc/internal/las"
	"github.com/robert-malhotra/go-copc/internal/octree"
)

// HierarchyRecordID is the record id of the hierarchy EVLR.
const HierarchyRecordID = 1000

// WKT VLR identification.
const (
	WKTUserID   = "LASF_Projection"
	WKTRecordID = 2112
)

// Builder accumulates nodes and page splits.
type Builder struct {
	// Format and RecordLength describe the point records. Setting a
	// compression bit in Format marks the file as LAZ without changing how
	// the records are written.
	Format       las.PointFormat
	RecordLength uint16

	// UserID is written on the info VLR and the hierarchy EVLR.
	UserID string

	Scale  [3]float64
	Offset [3]float64
	Span   int64
	WKT    string

	nodes  map[octree.Key][][3]int32
	splits map[octree.Key]struct{}
}

// New returns a builder for point format 3 with centimetre scale.
func New() *Builder {
	return &Builder{
		Format:       3,
		RecordLength: 34,
		UserID:       info.UserID,
		Scale:        [3]float64{0.01, 0.01, 0.01},
		Span:         128,
		nodes:        make(map[octree.Key][][3]int32),
		splits:       make(map[octree.Key]struct{}),
	}
}

// Add appends points, given as stored integer coordinates, to node k.
// A node added without points gets a data entry with a point count of 0.
func (b *Builder) Add(k octree.Key, points ...[3]int32) *Builder {
	b.nodes[k] = append(b.nodes[k], points...)
	return b
}

// Split moves the entries of k and its descendants to a page of their own,
// referenced by a pointer entry in the enclosing page.
func (b *Builder) Split(k octree.Key) *Builder {
	b.splits[k] = struct{}{}
	return b
}

// File is a built COPC file.
type File struct {
	Bytes  []byte
	Header las.Header
	Info   info.Info

	// Entries holds the data entry of every node.
	Entries map[octree.Key]hierarchy.Entry

	// Pages locates the page of each split key; the root page is under
	// octree.RootKey.
	Pages map[octree.Key]hierarchy.Range
}

// ReadAt implements io.ReaderAt.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return binary.Bytes(f.Bytes).ReadAt(p, off)
}

// owner returns the split key whose page holds the entry of k.
func (b *Builder) owner(k octree.Key) octree.Key {
	for p := k; p.Valid(); p = p.Parent() {
		if _, ok := b.splits[p]; ok && p != octree.RootKey {
			return p
		}
	}
	return octree.RootKey
}

// Build lays out the file.
func (b *Builder) Build() (*File, error) {
	if _, err := b.Format.BaseLength(); err != nil {
		return nil, err
	}
	keys := make([]octree.Key, 0, len(b.nodes))
	for k := range b.nodes {
		if !k.Valid() {
			return nil, errors.Newf("copctest: invalid key %s", k)
		}
		keys = append(keys, k)
	}
	slices.SortFunc(keys, octree.Compare)

	splits := []octree.Key{octree.RootKey}
	for k := range b.splits {
		if k != octree.RootKey {
			splits = append(splits, k)
		}
	}
	slices.SortFunc(splits[1:], octree.Compare)

	f := &File{
		Entries: make(map[octree.Key]hierarchy.Entry, len(keys)),
		Pages:   make(map[octree.Key]hierarchy.Range, len(splits)),
	}
	h := &f.Header
	h.VersionMajor, h.VersionMinor = 1, 4
	h.HeaderSize = las.HeaderSize14
	h.SystemID = "copctest"
	h.GeneratingSoftware = "go-copc"
	h.PointFormat = b.Format
	h.PointRecordLength = b.RecordLength
	h.Scale = b.Scale
	h.Offset = b.Offset

	var buf binary.Buffer
	w := binary.NewWriter(&buf).At(las.HeaderSize14)

	// VLRs: info first, WKT if any.
	infoAt := w.Pos()
	if err := las.WriteVLR(w, b.UserID, info.RecordID, "copc info", make([]byte, info.Size)); err != nil {
		return nil, err
	}
	h.NumberOfVLRs = 1
	if b.WKT != "" {
		f.Info.WktVLROffset = uint64(w.Pos() + las.VLRHeaderSize)
		f.Info.WktVLRSize = uint64(len(b.WKT))
		if err := las.WriteVLR(w, WKTUserID, WKTRecordID, "", []byte(b.WKT)); err != nil {
			return nil, err
		}
		h.NumberOfVLRs++
	}
	h.OffsetToPointData = uint32(w.Pos())

	// Point chunks.
	for i := range h.Min {
		h.Min[i], h.Max[i] = math.Inf(1), math.Inf(-1)
	}
	t := h.Transform()
	for _, k := range keys {
		pts := b.nodes[k]
		e := hierarchy.Entry{
			Key:        k,
			Offset:     uint64(w.Pos()),
			ByteSize:   int32(len(pts) * int(b.RecordLength)),
			PointCount: int32(len(pts)),
		}
		for _, p := range pts {
			w.WriteBytes(las.EncodeXYZ(b.RecordLength, p[0], p[1], p[2]))
			xyz := t.Apply(p[0], p[1], p[2])
			for i := range xyz {
				h.Min[i] = min(h.Min[i], xyz[i])
				h.Max[i] = max(h.Max[i], xyz[i])
			}
		}
		f.Entries[k] = e
		h.PointCount += uint64(len(pts))
	}
	if h.PointCount == 0 {
		h.Min, h.Max = [3]float64{}, [3]float64{}
	}
	if h.PointCount <= math.MaxUint32 {
		h.LegacyPointCount = uint32(h.PointCount)
	}

	// Page contents, then offsets, then encoding.
	pages := make(map[octree.Key][]hierarchy.Entry, len(splits))
	for _, k := range keys {
		o := b.owner(k)
		pages[o] = append(pages[o], f.Entries[k])
	}
	pointers := make(map[octree.Key][]octree.Key)
	for _, s := range splits[1:] {
		parent := octree.RootKey
		if s.Level > 0 {
			parent = b.owner(s.Parent())
		}
		pointers[parent] = append(pointers[parent], s)
	}

	h.EVLROffset = uint64(w.Pos())
	h.NumberOfEVLRs = 1
	pageAt := h.EVLROffset + las.EVLRHeaderSize
	var total uint64
	for _, s := range splits {
		size := uint64(len(pages[s])+len(pointers[s])) * hierarchy.EntrySize
		f.Pages[s] = hierarchy.Range{Offset: pageAt + total, Size: size}
		total += size
	}

	var payload []byte
	for _, s := range splits {
		page := &hierarchy.Page{Entries: pages[s]}
		for _, c := range pointers[s] {
			rng := f.Pages[c]
			page.Entries = append(page.Entries, hierarchy.Entry{
				Key:        c,
				Offset:     rng.Offset,
				ByteSize:   int32(rng.Size),
				PointCount: hierarchy.PointerCount,
			})
		}
		payload = append(payload, page.Encode()...)
	}
	if err := las.WriteEVLR(w, b.UserID, HierarchyRecordID, "EPT hierarchy", payload); err != nil {
		return nil, err
	}

	root := f.Pages[octree.RootKey]
	f.Info.Span = b.Span
	f.Info.RootHierOffset = root.Offset
	f.Info.RootHierSize = root.Size
	if _, err := buf.WriteAt(f.Info.Encode(), infoAt+las.VLRHeaderSize); err != nil {
		return nil, err
	}
	if err := las.WriteHeader(binary.NewWriter(&buf), h); err != nil {
		return nil, err
	}
	f.Bytes = buf.Bytes()
	return f, nil
}

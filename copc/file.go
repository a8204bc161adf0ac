package copc

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/robert-malhotra/go-copc/internal/binary"
	"github.com/robert-malhotra/go-copc/internal/hierarchy"
	"github.com/robert-malhotra/go-copc/internal/info"
	"github.com/robert-malhotra/go-copc/internal/las"
	"github.com/robert-malhotra/go-copc/internal/octree"
	"github.com/robert-malhotra/go-copc/internal/pointio"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Hierarchy EVLR identification. Files written before COPC 1.0 use
// LegacyUserID for both the info VLR and the hierarchy EVLR.
const (
	HierarchyUserID   = info.UserID
	HierarchyRecordID = 1000
	LegacyUserID      = info.LegacyUserID
)

// File is an open COPC file.
//
// Resolve, Points, Walk and Entries may be called concurrently; hierarchy
// lookups are serialized internally. Each PointReader has its own cursor
// and must not be shared between goroutines. Once a File opened with Open
// is closed, PointReaders obtained from it fail with an error matching
// ErrClosed. A File from NewReader reads through r, which must stay usable
// until its PointReaders are drained.
type File struct {
	path   string
	src    io.ReaderAt
	closer io.Closer

	header *las.Header
	info   *info.Info
	vlrs   []las.VLR
	evlrs  []las.VLR

	decoders *pointio.Registry
	logger   *slog.Logger
	tracer   trace.Tracer

	mu       sync.Mutex
	resolver *hierarchy.Resolver
	closed   bool
}

// Open opens the COPC file at path.
func Open(path string, opts ...Option) (*File, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	osf, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "copc: opening file")
	}

	src := &source{r: osf, c: osf}
	if o.mmap {
		m, err := openMapped(osf)
		if err != nil {
			osf.Close()
			return nil, errors.Wrapf(err, "copc: mapping %s", path)
		}
		src.r, src.c = m, m
	}

	f, err := newFile(src, o)
	if err != nil {
		src.Close()
		return nil, err
	}
	f.path = path
	f.closer = src
	return f, nil
}

// NewReader reads a COPC file from r. Closing the returned File does not
// close r.
func NewReader(r io.ReaderAt, opts ...Option) (*File, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return newFile(r, o)
}

func newFile(src io.ReaderAt, o *options) (*File, error) {
	logger := o.logger.With("component", "copc")

	h, err := las.ReadHeader(src)
	if err != nil {
		return nil, errors.Wrap(err, "copc: reading header")
	}
	if h.VersionMinor < 4 {
		return nil, errors.Mark(errors.Newf("copc: LAS version %s, want 1.4", h.Version()), ErrNotCOPC)
	}

	vlrs, err := las.ReadVLRs(src, h)
	if err != nil {
		return nil, errors.Wrap(err, "copc: reading VLRs")
	}
	if len(vlrs) == 0 || !info.IsUserID(vlrs[0].UserID) || vlrs[0].RecordID != info.RecordID {
		return nil, errors.Mark(errors.New("copc: first VLR is not the COPC info record"), ErrNotCOPC)
	}
	payload, err := vlrs[0].Data(src)
	if err != nil {
		return nil, errors.Wrap(err, "copc: reading info VLR")
	}
	if len(payload) != info.Size {
		return nil, errors.Mark(
			errors.Newf("copc: info VLR holds %d bytes, want %d", len(payload), info.Size),
			info.ErrMalformedMetadata)
	}
	meta, err := info.Parse(payload)
	if err != nil {
		return nil, err
	}

	evlrs, err := las.ReadEVLRs(src, h)
	if err != nil {
		return nil, errors.Wrap(err, "copc: reading EVLRs")
	}
	if hv, ok := findHierarchy(evlrs); ok {
		end := uint64(hv.DataOffset) + hv.DataLength
		if meta.RootHierOffset < uint64(hv.DataOffset) || meta.RootHierOffset+meta.RootHierSize > end {
			logger.Warn("root hierarchy page lies outside the hierarchy EVLR",
				slog.Uint64("offset", meta.RootHierOffset), slog.Uint64("size", meta.RootHierSize))
		}
	}

	fetcher := &tracedFetcher{next: hierarchy.NewReaderAtFetcher(src), tracer: o.tracer}
	root, err := fetcher.FetchPage(context.Background(), meta.RootHierOffset, meta.RootHierSize)
	if err != nil {
		return nil, errors.Wrapf(err, "copc: reading root hierarchy page offset=%d size=%d",
			meta.RootHierOffset, meta.RootHierSize)
	}
	res, err := hierarchy.NewResolver(root, meta.RootHierSize, meta, fetcher,
		hierarchy.WithLogger(o.logger.With("component", "hierarchy")))
	if err != nil {
		return nil, err
	}

	decoders := pointio.NewRegistry()
	for c, factory := range o.decoders {
		decoders.Register(c, factory)
	}

	logger.Debug("opened COPC file",
		slog.String("version", h.Version()),
		slog.String("user_id", vlrs[0].UserID),
		slog.Int("point_format", int(h.PointFormat.ID())),
		slog.String("compression", h.PointFormat.Compression().String()),
		slog.Uint64("points", h.PointCount),
		slog.Int("root_entries", res.Len()))

	return &File{
		src:      src,
		header:   h,
		info:     meta,
		vlrs:     vlrs,
		evlrs:    evlrs,
		decoders: decoders,
		logger:   logger,
		tracer:   o.tracer,
		resolver: res,
	}, nil
}

// findHierarchy returns the hierarchy EVLR under either user id.
func findHierarchy(evlrs []las.VLR) (las.VLR, bool) {
	for _, id := range []string{info.UserID, info.LegacyUserID} {
		if v, ok := las.Find(evlrs, id, HierarchyRecordID); ok {
			return v, true
		}
	}
	return las.VLR{}, false
}

// Close releases the file. It is safe to call more than once.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

// Path returns the path the file was opened from, or "" for NewReader.
func (f *File) Path() string {
	return f.path
}

// Header returns the LAS header. The caller must not modify it.
func (f *File) Header() *Header {
	return f.header
}

// Info returns the COPC info record.
func (f *File) Info() Info {
	return *f.info
}

// VLRs returns the variable length records.
func (f *File) VLRs() []VLR {
	return slices.Clone(f.vlrs)
}

// EVLRs returns the extended variable length records.
func (f *File) EVLRs() []VLR {
	return slices.Clone(f.evlrs)
}

// Cube returns the root cube of the octree, derived from the header bounds.
func (f *File) Cube() Bounds {
	return octree.Cube(octree.Bounds{Min: f.header.Min, Max: f.header.Max})
}

// WKT returns the WKT coordinate system located by the info record, or ""
// if the file has none.
func (f *File) WKT() (string, error) {
	if !f.info.HasWKT() {
		return "", nil
	}
	b, err := binary.NewReader(f.src).At(int64(f.info.WktVLROffset)).ReadBytes(int(f.info.WktVLRSize))
	if err != nil {
		return "", errors.Wrap(err, "copc: reading WKT")
	}
	return binary.TrimNUL(b), nil
}

// Resolve returns the data entry of key, reading hierarchy pages as needed.
// A key absent from the hierarchy yields an error matching ErrKeyNotFound.
func (f *File) Resolve(ctx context.Context, key Key) (Entry, error) {
	ctx, span := f.tracer.Start(ctx, "copc.Resolve", trace.WithAttributes(
		attribute.String("copc.key", key.String()),
	))
	defer span.End()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return Entry{}, ErrClosed
	}

	e, err := f.resolver.Resolve(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "resolve_failed")
		}
		return Entry{}, err
	}
	span.SetAttributes(attribute.Int("copc.point_count", int(e.PointCount)))
	return e, nil
}

// Points resolves key and returns a reader over its points. Every call
// returns a new reader positioned at the first point.
func (f *File) Points(ctx context.Context, key Key) (*PointReader, error) {
	e, err := f.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	return f.Read(e)
}

// Read returns a reader over the points located by data entry e, such as
// an entry passed to a WalkFunc.
func (f *File) Read(e Entry) (*PointReader, error) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	return pointio.NewRangeReader(f.src, e, f.header, f.decoders)
}

// Entries loads the whole hierarchy and returns every data entry ordered
// by level, then x, y and z.
func (f *File) Entries(ctx context.Context) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	if err := f.loadAll(ctx); err != nil {
		return nil, err
	}
	return f.resolver.Entries(), nil
}

// Walk loads the whole hierarchy and calls fn for every data entry, depth
// first with parents before children. fn may call other File methods.
func (f *File) Walk(ctx context.Context, fn WalkFunc) error {
	entries, err := f.Entries(ctx)
	if err != nil {
		return err
	}
	return hierarchy.WalkEntries(ctx, entries, fn)
}

func (f *File) loadAll(ctx context.Context) error {
	ctx, span := f.tracer.Start(ctx, "copc.LoadHierarchy")
	defer span.End()
	if err := f.resolver.LoadAll(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load_hierarchy_failed")
		return err
	}
	span.SetAttributes(attribute.Int("copc.entries", f.resolver.Len()))
	return nil
}

// Stats returns hierarchy lookup counters.
func (f *File) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolver.Stats()
}

package copc_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/robert-malhotra/go-copc/copc"
	"github.com/robert-malhotra/go-copc/internal/binary"
	"github.com/robert-malhotra/go-copc/internal/copctest"
	"github.com/robert-malhotra/go-copc/internal/las"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func buildFixture(t *testing.T) *copctest.File {
	t.Helper()
	b := copctest.New()
	b.WKT = `GEOGCS["WGS 84"]`
	b.Add(copc.RootKey, [3]int32{0, 0, 0}, [3]int32{100, 100, 100}, [3]int32{50, 60, 70})
	b.Add(copc.NewKey(1, 0, 0, 0), [3]int32{10, 10, 10}, [3]int32{20, 20, 20})
	b.Add(copc.NewKey(1, 1, 1, 1), [3]int32{90, 90, 90})
	b.Add(copc.NewKey(2, 1, 1, 0), [3]int32{30, 30, 5})
	b.Split(copc.NewKey(1, 0, 0, 0))
	f, err := b.Build()
	require.NoError(t, err)
	return f
}

func TestNewReader(t *testing.T) {
	fx := buildFixture(t)
	f, err := copc.NewReader(fx)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, "1.4", f.Header().Version())
	require.Equal(t, uint64(7), f.Header().PointCount)
	require.Equal(t, fx.Info, f.Info())
	require.Len(t, f.VLRs(), 2)
	require.Len(t, f.EVLRs(), 1)
	require.True(t, f.EVLRs()[0].Is(copc.HierarchyUserID, copc.HierarchyRecordID))
	require.Empty(t, f.Path())

	wkt, err := f.WKT()
	require.NoError(t, err)
	require.Equal(t, `GEOGCS["WGS 84"]`, wkt)

	cube := f.Cube()
	require.InDelta(t, 1.0, cube.Max[0]-cube.Min[0], 1e-9)
}

func TestResolveAndPoints(t *testing.T) {
	ctx := context.Background()
	fx := buildFixture(t)
	f, err := copc.NewReader(fx)
	require.NoError(t, err)

	// The root page is read at open; the split page on first use.
	require.Equal(t, 0, f.Stats().Fetches)

	e, err := f.Resolve(ctx, copc.RootKey)
	require.NoError(t, err)
	require.Equal(t, fx.Entries[copc.RootKey], e)
	require.Equal(t, 0, f.Stats().Fetches)

	e, err = f.Resolve(ctx, copc.NewKey(2, 1, 1, 0))
	require.NoError(t, err)
	require.Equal(t, int32(1), e.PointCount)
	require.Equal(t, 1, f.Stats().Fetches)

	_, err = f.Resolve(ctx, copc.NewKey(3, 0, 0, 0))
	require.True(t, errors.Is(err, copc.ErrKeyNotFound), "got %v", err)

	pts, err := f.Points(ctx, copc.NewKey(1, 0, 0, 0))
	require.NoError(t, err)
	var got [][3]float64
	for p, err := range pts.All() {
		require.NoError(t, err)
		got = append(got, p.XYZ(f.Header().Transform()))
	}
	require.Len(t, got, 2)
	assert.InDelta(t, 0.1, got[0][0], 1e-9)
	assert.InDelta(t, 0.2, got[1][2], 1e-9)

	// A second request starts over.
	pts, err = f.Points(ctx, copc.NewKey(1, 0, 0, 0))
	require.NoError(t, err)
	require.Equal(t, 2, pts.Remaining())
	require.Equal(t, 1, f.Stats().Fetches)
}

func TestWalk(t *testing.T) {
	ctx := context.Background()
	f, err := copc.NewReader(buildFixture(t))
	require.NoError(t, err)

	var keys []string
	total := 0
	err = f.Walk(ctx, func(e copc.Entry) error {
		keys = append(keys, e.Key.String())
		// Reading points from inside the walk is allowed.
		pts, err := f.Read(e)
		if err != nil {
			return err
		}
		for _, err := range pts.All() {
			if err != nil {
				return err
			}
			total++
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"0-0-0-0", "1-0-0-0", "2-1-1-0", "1-1-1-1"}, keys)
	require.Equal(t, 7, total)

	entries, err := f.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 4)
}

func TestOpenFile(t *testing.T) {
	fx := buildFixture(t)
	path := filepath.Join(t.TempDir(), "tile.copc.las")
	require.NoError(t, os.WriteFile(path, fx.Bytes, 0o644))

	for _, mmap := range []bool{false, true} {
		f, err := copc.Open(path, copc.WithMmap(mmap))
		require.NoError(t, err)
		require.Equal(t, path, f.Path())

		pts, err := f.Points(context.Background(), copc.NewKey(1, 1, 1, 1))
		require.NoError(t, err)
		p, err := pts.Next()
		require.NoError(t, err)
		x, _, _ := p.RawXYZ()
		require.Equal(t, int32(90), x)

		// A reader still open when the file closes fails cleanly.
		inflight, err := f.Points(context.Background(), copc.NewKey(1, 0, 0, 0))
		require.NoError(t, err)
		_, err = inflight.Next()
		require.NoError(t, err)

		require.NoError(t, f.Close())
		require.NoError(t, f.Close())

		_, err = inflight.Next()
		require.True(t, errors.Is(err, copc.ErrClosed), "mmap=%t: got %v", mmap, err)
		var de *copc.DecodeError
		require.True(t, errors.As(err, &de))
		require.Equal(t, 1, de.Index)

		_, err = f.Resolve(context.Background(), copc.RootKey)
		require.True(t, errors.Is(err, copc.ErrClosed))
		_, err = f.Read(fx.Entries[copc.RootKey])
		require.True(t, errors.Is(err, copc.ErrClosed))
	}

	_, err := copc.Open(filepath.Join(t.TempDir(), "missing.copc.laz"))
	require.Error(t, err)
}

func TestLegacyUserID(t *testing.T) {
	ctx := context.Background()
	b := copctest.New()
	b.UserID = copc.LegacyUserID
	b.Add(copc.RootKey, [3]int32{0, 0, 0}, [3]int32{8, 8, 8})
	b.Add(copc.NewKey(1, 1, 1, 1), [3]int32{6, 6, 6})
	b.Split(copc.NewKey(1, 1, 1, 1))
	fx, err := b.Build()
	require.NoError(t, err)

	f, err := copc.NewReader(fx)
	require.NoError(t, err)
	require.Equal(t, copc.LegacyUserID, f.VLRs()[0].UserID)
	require.True(t, f.EVLRs()[0].Is(copc.LegacyUserID, copc.HierarchyRecordID))

	e, err := f.Resolve(ctx, copc.NewKey(1, 1, 1, 1))
	require.NoError(t, err)
	require.Equal(t, fx.Entries[copc.NewKey(1, 1, 1, 1)], e)
	require.Equal(t, 1, f.Stats().Fetches)

	pts, err := f.Points(ctx, copc.NewKey(1, 1, 1, 1))
	require.NoError(t, err)
	p, err := pts.Next()
	require.NoError(t, err)
	x, _, _ := p.RawXYZ()
	require.Equal(t, int32(6), x)

	b.UserID = "laszip encoded"
	fx, err = b.Build()
	require.NoError(t, err)
	_, err = copc.NewReader(fx)
	require.True(t, errors.Is(err, copc.ErrNotCOPC), "got %v", err)
}

func TestNotCOPC(t *testing.T) {
	_, err := copc.NewReader(binary.Bytes("not a las file at all"))
	require.True(t, errors.Is(err, copc.ErrNotLAS), "got %v", err)

	// A LAS 1.4 file without VLRs.
	var buf binary.Buffer
	h := &las.Header{
		OffsetToPointData: las.HeaderSize14,
		PointFormat:       3,
		PointRecordLength: 34,
	}
	require.NoError(t, las.WriteHeader(binary.NewWriter(&buf), h))
	_, err = copc.NewReader(&buf)
	require.True(t, errors.Is(err, copc.ErrNotCOPC), "got %v", err)
}

func TestMalformedInfo(t *testing.T) {
	fx := buildFixture(t)
	b := bytes.Clone(fx.Bytes)
	// The last reserved word of the info record.
	at := las.HeaderSize14 + las.VLRHeaderSize + 152
	b[at] = 1

	_, err := copc.NewReader(binary.Bytes(b))
	require.True(t, errors.Is(err, copc.ErrMalformedMetadata), "got %v", err)
}

func TestCorruptChildPage(t *testing.T) {
	fx := buildFixture(t)
	b := bytes.Clone(fx.Bytes)
	// Point count of the first entry in the split page.
	rng := fx.Pages[copc.NewKey(1, 0, 0, 0)]
	binary.ByteOrder.PutUint32(b[rng.Offset+28:], uint32(0xFFFFFFF0))

	f, err := copc.NewReader(binary.Bytes(b))
	require.NoError(t, err)

	_, err = f.Resolve(context.Background(), copc.NewKey(1, 0, 0, 0))
	require.True(t, errors.Is(err, copc.ErrCorruptHierarchy), "got %v", err)

	// Other keys still resolve.
	_, err = f.Resolve(context.Background(), copc.NewKey(1, 1, 1, 1))
	require.NoError(t, err)
}

func TestTruncatedChildPage(t *testing.T) {
	fx := buildFixture(t)
	rng := fx.Pages[copc.NewKey(1, 0, 0, 0)]
	b := fx.Bytes[:rng.Offset+rng.Size-1]

	f, err := copc.NewReader(binary.Bytes(b))
	require.NoError(t, err)
	_, err = f.Resolve(context.Background(), copc.NewKey(1, 0, 0, 0))
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF), "got %v", err)
	require.Contains(t, err.Error(), "offset=")
}

func TestLAZNeedsDecoder(t *testing.T) {
	ctx := context.Background()
	b := copctest.New()
	b.Format = 3 | 0x80
	b.Add(copc.RootKey, [3]int32{1, 2, 3})
	fx, err := b.Build()
	require.NoError(t, err)

	f, err := copc.NewReader(fx)
	require.NoError(t, err)
	_, err = f.Points(ctx, copc.RootKey)
	require.True(t, errors.Is(err, copc.ErrUnsupported), "got %v", err)

	called := false
	f, err = copc.NewReader(fx, copc.WithDecoder(copc.CompressionLAZ,
		func(src io.Reader, c copc.Chunk) (copc.Decoder, error) {
			called = true
			return &stubDecoder{format: c.Format}, nil
		}))
	require.NoError(t, err)
	pts, err := f.Points(ctx, copc.RootKey)
	require.NoError(t, err)
	require.True(t, called)
	_, err = pts.Next()
	require.NoError(t, err)
	_, err = pts.Next()
	require.Equal(t, io.EOF, err)
}

type stubDecoder struct {
	format copc.PointFormat
}

func (d *stubDecoder) Decode() (copc.Point, error) {
	return copc.Point{Format: d.format}, nil
}

func TestTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())

	f, err := copc.NewReader(buildFixture(t),
		copc.WithTracer(tp.Tracer("copc-test")),
		copc.WithLogger(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	require.NoError(t, err)

	_, err = f.Resolve(context.Background(), copc.NewKey(2, 1, 1, 0))
	require.NoError(t, err)

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	// Root page at open, then the split page inside Resolve.
	require.Equal(t, []string{"copc.FetchPage", "copc.FetchPage", "copc.Resolve"}, names)

	spans := sr.Ended()
	require.Equal(t, spans[2].SpanContext().SpanID(), spans[1].Parent().SpanID())
}

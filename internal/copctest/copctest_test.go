package copctest

import (
	"context"
	"testing"

	"github.com/robert-malhotra/go-copc/internal/hierarchy"
	"github.com/robert-malhotra/go-copc/internal/info"
	"github.com/robert-malhotra/go-copc/internal/las"
	"github.com/robert-malhotra/go-copc/internal/octree"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	b := New()
	b.WKT = "PROJCS[test]"
	b.Add(octree.RootKey, [3]int32{0, 0, 0}, [3]int32{100, 200, 300})
	b.Add(octree.NewKey(1, 0, 0, 0), [3]int32{10, 10, 10})
	b.Add(octree.NewKey(2, 1, 1, 1), [3]int32{-50, 20, 30})
	b.Split(octree.NewKey(1, 0, 0, 0))
	f, err := b.Build()
	require.NoError(t, err)

	h, err := las.ReadHeader(f)
	require.NoError(t, err)
	require.NoError(t, h.Validate())
	require.Equal(t, "1.4", h.Version())
	require.Equal(t, uint64(4), h.PointCount)
	require.Equal(t, [3]float64{-0.5, 0, 0}, h.Min)
	require.Equal(t, [3]float64{1, 2, 3}, h.Max)

	vlrs, err := las.ReadVLRs(f, h)
	require.NoError(t, err)
	require.Len(t, vlrs, 2)
	require.True(t, vlrs[0].Is(info.UserID, info.RecordID))
	require.True(t, vlrs[1].Is(WKTUserID, WKTRecordID))

	payload, err := vlrs[0].Data(f)
	require.NoError(t, err)
	meta, err := info.Parse(payload)
	require.NoError(t, err)
	require.Equal(t, f.Info, *meta)
	require.Equal(t, f.Pages[octree.RootKey], hierarchy.Range{Offset: meta.RootHierOffset, Size: meta.RootHierSize})

	evlrs, err := las.ReadEVLRs(f, h)
	require.NoError(t, err)
	require.Len(t, evlrs, 1)
	require.True(t, evlrs[0].Is(info.UserID, HierarchyRecordID))
	require.Equal(t, int64(meta.RootHierOffset), evlrs[0].DataOffset)

	// Root page: root data entry plus a pointer to the split page.
	rootPage, err := hierarchy.ParsePage(f.Bytes[meta.RootHierOffset:], meta.RootHierSize)
	require.NoError(t, err)
	require.Len(t, rootPage.Entries, 2)
	require.True(t, rootPage.Entries[1].IsPointer())

	res, err := hierarchy.NewResolver(f.Bytes[meta.RootHierOffset:], meta.RootHierSize, meta,
		hierarchy.NewReaderAtFetcher(f))
	require.NoError(t, err)
	for k, want := range f.Entries {
		got, err := res.Resolve(context.Background(), k)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	require.Equal(t, 1, res.Stats().Fetches)
}

func TestBuildNestedSplits(t *testing.T) {
	b := New()
	b.Add(octree.RootKey, [3]int32{1, 1, 1})
	b.Add(octree.NewKey(2, 0, 0, 0))
	b.Add(octree.NewKey(3, 1, 1, 1), [3]int32{2, 2, 2})
	b.Split(octree.NewKey(1, 0, 0, 0)).Split(octree.NewKey(2, 0, 0, 0))
	f, err := b.Build()
	require.NoError(t, err)
	require.Len(t, f.Pages, 3)

	// The level-1 page holds only the pointer to the level-2 page.
	rng := f.Pages[octree.NewKey(1, 0, 0, 0)]
	page, err := hierarchy.ParsePage(f.Bytes[rng.Offset:], rng.Size)
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	require.Equal(t, octree.NewKey(2, 0, 0, 0), page.Entries[0].Key)
	require.True(t, page.Entries[0].IsPointer())

	rng = f.Pages[octree.NewKey(2, 0, 0, 0)]
	page, err = hierarchy.ParsePage(f.Bytes[rng.Offset:], rng.Size)
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	require.Equal(t, int32(0), page.Entries[0].PointCount)
}

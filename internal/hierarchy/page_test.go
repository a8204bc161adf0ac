package hierarchy

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/robert-malhotra/go-copc/internal/binary"
	"github.com/robert-malhotra/go-copc/internal/octree"
	"github.com/stretchr/testify/require"
)

func dataEntry(k octree.Key, offset uint64, size, count int32) Entry {
	return Entry{Key: k, Offset: offset, ByteSize: size, PointCount: count}
}

func pointerEntry(k octree.Key, offset uint64, size int32) Entry {
	return Entry{Key: k, Offset: offset, ByteSize: size, PointCount: PointerCount}
}

func encodePage(entries ...Entry) []byte {
	return (&Page{Entries: entries}).Encode()
}

func TestEntryLayout(t *testing.T) {
	e := dataEntry(octree.NewKey(2, 1, 3, 0), 0x0102030405060708, 200, 5)
	b := AppendEntry(nil, e)
	require.Len(t, b, EntrySize)
	require.Equal(t, []byte{2, 0, 0, 0, 1, 0, 0, 0, 3, 0, 0, 0, 0, 0, 0, 0}, b[:16])
	require.Equal(t, []byte{8, 7, 6, 5, 4, 3, 2, 1}, b[16:24])
	require.Equal(t, []byte{200, 0, 0, 0}, b[24:28])
	require.Equal(t, []byte{5, 0, 0, 0}, b[28:32])

	got, err := ParseEntry(binary.NewBytesReader(b))
	require.NoError(t, err)
	require.Equal(t, e, got)
	require.True(t, got.IsData())
	require.False(t, got.IsPointer())
}

func TestEntryPointer(t *testing.T) {
	e := pointerEntry(octree.NewKey(1, 0, 0, 0), 2000, 32)
	got := DecodeEntry(AppendEntry(nil, e))
	require.True(t, got.IsPointer())
	require.False(t, got.IsData())
	require.Equal(t, Range{Offset: 2000, Size: 32}, got.Range())
	require.Equal(t, "pointer 1-0-0-0 offset=2000 size=32", got.String())
}

func TestParseEntryTruncated(t *testing.T) {
	b := AppendEntry(nil, dataEntry(octree.RootKey, 1, 2, 3))
	_, err := ParseEntry(binary.NewBytesReader(b[:31]))
	require.True(t, errors.Is(err, ErrTruncatedRecord), "got %v", err)
}

func TestEntryValidate(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		ok    bool
	}{
		{"data", dataEntry(octree.RootKey, 10, 10, 0), true},
		{"pointer", pointerEntry(octree.RootKey, 10, 32), true},
		{"point count -2", dataEntry(octree.RootKey, 10, 10, -2), false},
		{"negative size", dataEntry(octree.RootKey, 10, -1, 3), false},
		{"invalid key", dataEntry(octree.InvalidKey, 10, 10, 3), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.True(t, errors.Is(err, ErrCorruptHierarchy), "got %v", err)
		})
	}
}

func TestParsePage(t *testing.T) {
	entries := []Entry{
		dataEntry(octree.NewKey(0, 0, 0, 0), 1000, 200, 5),
		pointerEntry(octree.NewKey(1, 0, 0, 0), 2000, 32),
		dataEntry(octree.NewKey(4, 9, 3, 1), 5000, 17, 1),
	}
	b := encodePage(entries...)

	page, err := ParsePage(b, uint64(len(b)))
	require.NoError(t, err)
	require.Equal(t, entries, page.Entries)
	require.Equal(t, uint64(len(b)), page.Size())
	require.Equal(t, EntrySize*uint64(len(page.Entries)), page.Size())
	require.NoError(t, page.Validate())

	// Extra trailing bytes beyond the page size are ignored.
	page, err = ParsePage(append(b, 0xFF), uint64(len(b)))
	require.NoError(t, err)
	require.Len(t, page.Entries, 3)

	// An empty page is valid.
	page, err = ParsePage(nil, 0)
	require.NoError(t, err)
	require.Empty(t, page.Entries)
}

func TestParsePageInvalidSize(t *testing.T) {
	b := encodePage(dataEntry(octree.RootKey, 1, 1, 1), dataEntry(octree.NewKey(1, 0, 0, 0), 1, 1, 1))
	for _, size := range []uint64{1, 31, 33, 63} {
		_, err := ParsePage(b, size)
		require.True(t, errors.Is(err, ErrInvalidPageSize), "size %d: %v", size, err)
	}
}

func TestParsePageTruncated(t *testing.T) {
	b := encodePage(dataEntry(octree.RootKey, 1, 1, 1), dataEntry(octree.NewKey(1, 0, 0, 0), 1, 1, 1))
	_, err := ParsePage(b[:40], 64)
	require.True(t, errors.Is(err, ErrTruncatedRecord), "got %v", err)
}

func TestPageValidateDuplicateKey(t *testing.T) {
	k := octree.NewKey(2, 1, 1, 1)
	p := &Page{Entries: []Entry{
		dataEntry(k, 1, 1, 1),
		dataEntry(octree.RootKey, 2, 2, 2),
		pointerEntry(k, 3, 32),
	}}
	err := p.Validate()
	require.True(t, errors.Is(err, ErrCorruptHierarchy), "got %v", err)
	require.Contains(t, err.Error(), "entries 0 and 2")
}

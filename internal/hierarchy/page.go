package hierarchy

import (
	"github.com/cockroachdb/errors"
	"github.com/robert-malhotra/go-copc/internal/binary"
	"github.com/robert-malhotra/go-copc/internal/octree"
)

// Page is the ordered list of entries read from one hierarchy page.
type Page struct {
	Entries []Entry
}

// ParsePage decodes a page of pageSize bytes from b. pageSize must be a
// multiple of EntrySize and b must hold at least pageSize bytes.
func ParsePage(b []byte, pageSize uint64) (*Page, error) {
	if pageSize%EntrySize != 0 {
		return nil, errors.Mark(
			errors.Newf("hierarchy: invalid page size: %d is not a multiple of %d", pageSize, EntrySize),
			ErrInvalidPageSize)
	}
	if uint64(len(b)) < pageSize {
		return nil, truncatedf("page of %d bytes has only %d available", pageSize, len(b))
	}

	n := pageSize / EntrySize
	page := &Page{Entries: make([]Entry, 0, n)}
	r := binary.NewBytesReader(b[:pageSize])
	for i := uint64(0); i < n; i++ {
		e, err := ParseEntry(r)
		if err != nil {
			return nil, errors.Wrapf(err, "entry %d", i)
		}
		page.Entries = append(page.Entries, e)
	}
	return page, nil
}

// Size returns the encoded size of the page in bytes.
func (p *Page) Size() uint64 {
	return uint64(len(p.Entries)) * EntrySize
}

// Encode returns the on-disk encoding of the page.
func (p *Page) Encode() []byte {
	b := make([]byte, 0, p.Size())
	for _, e := range p.Entries {
		b = AppendEntry(b, e)
	}
	return b
}

// Validate checks each entry and rejects keys repeated within the page.
func (p *Page) Validate() error {
	seen := make(map[octree.Key]int, len(p.Entries))
	for i, e := range p.Entries {
		if err := e.Validate(); err != nil {
			return errors.Wrapf(err, "entry %d", i)
		}
		if j, ok := seen[e.Key]; ok {
			return corruptf("key %s appears at entries %d and %d of one page", e.Key, j, i)
		}
		seen[e.Key] = i
	}
	return nil
}

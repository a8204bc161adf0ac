package hierarchy

import (
	"context"
	"io"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/robert-malhotra/go-copc/internal/binary"
)

// PageFetcher reads the bytes of a hierarchy page. Implementations return
// exactly size bytes or an error.
type PageFetcher interface {
	FetchPage(ctx context.Context, offset, size uint64) ([]byte, error)
}

// FetcherFunc adapts a function to the PageFetcher interface.
type FetcherFunc func(ctx context.Context, offset, size uint64) ([]byte, error)

// FetchPage implements PageFetcher.
func (f FetcherFunc) FetchPage(ctx context.Context, offset, size uint64) ([]byte, error) {
	return f(ctx, offset, size)
}

// ReaderAtFetcher fetches pages with positioned reads on an io.ReaderAt.
type ReaderAtFetcher struct {
	r io.ReaderAt
}

// NewReaderAtFetcher returns a PageFetcher reading from r.
func NewReaderAtFetcher(r io.ReaderAt) *ReaderAtFetcher {
	return &ReaderAtFetcher{r: r}
}

// FetchPage implements PageFetcher. A source that ends before offset+size
// yields an error matching io.ErrUnexpectedEOF.
func (f *ReaderAtFetcher) FetchPage(ctx context.Context, offset, size uint64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset > math.MaxInt64 || size > math.MaxInt32 {
		return nil, errors.Newf("hierarchy: page range %s out of bounds", Range{offset, size})
	}
	return binary.NewReader(f.r).At(int64(offset)).ReadBytes(int(size))
}

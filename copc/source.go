package copc

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/edsrzf/mmap-go"
	"github.com/robert-malhotra/go-copc/internal/binary"
	"github.com/robert-malhotra/go-copc/internal/hierarchy"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// source guards a file against reads racing Close. Reads that start after
// Close fail with ErrClosed; Close waits for reads in progress.
type source struct {
	mu     sync.RWMutex
	r      io.ReaderAt
	c      io.Closer
	closed bool
}

func (s *source) ReadAt(p []byte, off int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.r.ReadAt(p, off)
}

func (s *source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.c.Close()
}

// mappedFile is a read-only memory mapping of a file.
type mappedFile struct {
	f    *os.File
	data mmap.MMap
}

func openMapped(f *os.File) (*mappedFile, error) {
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return &mappedFile{f: f, data: m}, nil
}

func (m *mappedFile) ReadAt(p []byte, off int64) (int, error) {
	return binary.Bytes(m.data).ReadAt(p, off)
}

// Close unmaps the file and closes it.
func (m *mappedFile) Close() error {
	var err error
	if m.data != nil {
		err = m.data.Unmap()
		m.data = nil
	}
	if m.f != nil {
		err = errors.CombineErrors(err, m.f.Close())
		m.f = nil
	}
	return err
}

// tracedFetcher records a span per hierarchy page read.
type tracedFetcher struct {
	next   hierarchy.PageFetcher
	tracer trace.Tracer
}

func (t *tracedFetcher) FetchPage(ctx context.Context, offset, size uint64) ([]byte, error) {
	ctx, span := t.tracer.Start(ctx, "copc.FetchPage", trace.WithAttributes(
		attribute.Int64("copc.page.offset", int64(offset)),
		attribute.Int64("copc.page.size", int64(size)),
	))
	defer span.End()

	b, err := t.next.FetchPage(ctx, offset, size)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch_page_failed")
	}
	return b, err
}

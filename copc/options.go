package copc

import (
	"log/slog"

	"github.com/robert-malhotra/go-copc/internal/las"
	"github.com/robert-malhotra/go-copc/internal/pointio"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Option configures how a file is opened.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	tracer   trace.Tracer
	mmap     bool
	decoders map[las.Compression]pointio.DecoderFactory
}

func defaultOptions() *options {
	return &options{
		logger: slog.New(slog.DiscardHandler),
		tracer: noop.NewTracerProvider().Tracer("copc"),
	}
}

// WithLogger sets the logger. Hierarchy page loads are logged at debug
// level and rejected pages at warn level.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets the tracer used for spans around node resolution and
// hierarchy page reads.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithMmap makes Open map the file into memory instead of issuing a read
// per hierarchy page and point chunk. It has no effect on NewReader.
func WithMmap(enabled bool) Option {
	return func(o *options) {
		o.mmap = enabled
	}
}

// WithDecoder registers a point decoder for a compression kind. Files with
// LAZ point data need one registered for CompressionLAZ before their points
// can be read.
func WithDecoder(c Compression, f DecoderFactory) Option {
	return func(o *options) {
		if o.decoders == nil {
			o.decoders = make(map[las.Compression]pointio.DecoderFactory)
		}
		o.decoders[c] = f
	}
}

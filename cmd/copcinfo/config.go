package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gopkg.in/yaml.v3"
)

// LoggingConfig controls the diagnostic log written to stderr.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "text" or "json"
}

// ReaderConfig controls how files are opened.
type ReaderConfig struct {
	Mmap bool `yaml:"mmap"`
	// Jobs is the number of concurrent readers used by verify.
	Jobs int `yaml:"jobs"`
}

// TracingConfig enables export of resolve and page read spans.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // e.g. "localhost:4317"
	Protocol string `yaml:"protocol"` // "grpc" or "http"
}

// Config is the copcinfo configuration file.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Reader  ReaderConfig  `yaml:"reader"`
	Tracing TracingConfig `yaml:"tracing"`
}

func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
		Reader: ReaderConfig{
			Jobs: 4,
		},
		Tracing: TracingConfig{
			Endpoint: "localhost:4317",
			Protocol: "grpc",
		},
	}
}

// Load reads a configuration from r, starting from the defaults. A nil r
// yields the defaults.
func Load(r io.Reader) (*Config, error) {
	cfg := defaultConfig()
	if r == nil {
		return cfg, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config yaml")
	}
	return cfg, cfg.validate()
}

// LoadConfig reads the configuration file at path. An empty path or a
// missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return Load(nil)
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Load(nil)
		}
		return nil, errors.Wrapf(err, "opening config file %s", path)
	}
	defer file.Close()
	return Load(file)
}

func (c *Config) validate() error {
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return errors.Newf("invalid log format: %q", c.Logging.Format)
	}
	if c.Reader.Jobs < 1 {
		return errors.Newf("reader.jobs must be at least 1, got %d", c.Reader.Jobs)
	}
	if c.Tracing.Enabled {
		switch strings.ToLower(c.Tracing.Protocol) {
		case "grpc", "http":
		default:
			return errors.Newf("unsupported tracing protocol: %q", c.Tracing.Protocol)
		}
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, errors.Newf("invalid log level: %q", s)
	}
}

// newLogger builds the logger described by cfg, writing to w.
func newLogger(cfg LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// newTracer returns the tracer for cfg and a function flushing pending
// spans. Disabled tracing yields a no-op tracer.
func newTracer(cfg TracingConfig, logger *slog.Logger) (trace.Tracer, func(), error) {
	if !cfg.Enabled {
		return noop.NewTracerProvider().Tracer("copcinfo"), func() {}, nil
	}

	ctx := context.Background()
	var exporter sdktrace.SpanExporter
	var err error
	switch strings.ToLower(cfg.Protocol) {
	case "http":
		exporter, err = otlptrace.New(ctx, otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure()))
	case "grpc":
		exporter, err = otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure()))
	default:
		return nil, nil, errors.Newf("unsupported tracing protocol: %q", cfg.Protocol)
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating trace exporter")
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String("copcinfo")))
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating trace resource")
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	logger.Debug("tracing enabled", "protocol", cfg.Protocol, "endpoint", cfg.Endpoint)

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("shutting down tracer provider", "error", err)
		}
	}
	return tp.Tracer("copcinfo"), shutdown, nil
}

// Command copcinfo inspects COPC files: header and VLR summary, the octree
// hierarchy, the points of a node, and a full consistency check.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/robert-malhotra/go-copc/copc"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "copcinfo: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	a := newApp(stderr)
	defer func() { a.shutdown() }()
	a.root.SetArgs(args)
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a.root.Execute()
}

// app holds the command tree and the state shared by its commands.
type app struct {
	root   *cobra.Command
	stderr io.Writer

	// Flags.
	configPath string
	logLevel   string
	mmap       bool
	jobs       int

	cfg      *Config
	logger   *slog.Logger
	tracer   trace.Tracer
	shutdown func()
}

func newApp(stderr io.Writer) *app {
	a := &app{stderr: stderr, shutdown: func() {}}
	a.root = &cobra.Command{
		Use:               "copcinfo",
		Short:             "inspect Cloud Optimized Point Cloud files",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	pf := a.root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML configuration file")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.BoolVar(&a.mmap, "mmap", false, "memory-map the file")

	a.root.AddCommand(
		a.infoCmd(),
		a.hierarchyCmd(),
		a.pointsCmd(),
		a.verifyCmd(),
	)
	return a
}

// setup loads the configuration, applies flag overrides and builds the
// logger and tracer.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("mmap") {
		cfg.Reader.Mmap = a.mmap
	}
	if flags.Lookup("jobs") != nil && flags.Changed("jobs") {
		cfg.Reader.Jobs = a.jobs
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging, a.stderr)
	if err != nil {
		return err
	}
	tracer, shutdown, err := newTracer(cfg.Tracing, logger)
	if err != nil {
		return err
	}
	a.cfg, a.logger, a.tracer, a.shutdown = cfg, logger, tracer, shutdown
	return nil
}

func (a *app) open(path string) (*copc.File, error) {
	return copc.Open(path,
		copc.WithLogger(a.logger),
		copc.WithTracer(a.tracer),
		copc.WithMmap(a.cfg.Reader.Mmap))
}

package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/robert-malhotra/go-copc/copc"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "print the LAS header, COPC info record and VLR catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return printInfo(cmd.OutOrStdout(), f)
		},
	}
}

func printInfo(w io.Writer, f *copc.File) error {
	h := f.Header()
	meta := f.Info()

	fmt.Fprintf(w, "version:        %s\n", h.Version())
	fmt.Fprintf(w, "software:       %s\n", h.GeneratingSoftware)
	fmt.Fprintf(w, "point format:   %d (%s)\n", h.PointFormat.ID(), h.PointFormat.Compression())
	fmt.Fprintf(w, "record length:  %d\n", h.PointRecordLength)
	fmt.Fprintf(w, "points:         %d\n", h.PointCount)
	fmt.Fprintf(w, "scale:          %g %g %g\n", h.Scale[0], h.Scale[1], h.Scale[2])
	fmt.Fprintf(w, "offset:         %g %g %g\n", h.Offset[0], h.Offset[1], h.Offset[2])
	fmt.Fprintf(w, "min:            %g %g %g\n", h.Min[0], h.Min[1], h.Min[2])
	fmt.Fprintf(w, "max:            %g %g %g\n", h.Max[0], h.Max[1], h.Max[2])
	fmt.Fprintf(w, "span:           %d\n", meta.Span)
	fmt.Fprintf(w, "root hierarchy: offset=%d size=%d\n", meta.RootHierOffset, meta.RootHierSize)
	fmt.Fprintf(w, "extra bytes:    %t\n", meta.HasExtraBytes())

	fmt.Fprintf(w, "VLRs:\n")
	for _, v := range f.VLRs() {
		fmt.Fprintf(w, "  %s/%d %q %d bytes\n", v.UserID, v.RecordID, v.Description, v.DataLength)
	}
	if evlrs := f.EVLRs(); len(evlrs) > 0 {
		fmt.Fprintf(w, "EVLRs:\n")
		for _, v := range evlrs {
			fmt.Fprintf(w, "  %s/%d %q %d bytes\n", v.UserID, v.RecordID, v.Description, v.DataLength)
		}
	}

	wkt, err := f.WKT()
	if err != nil {
		return err
	}
	if wkt != "" {
		fmt.Fprintf(w, "WKT:            %s\n", wkt)
	}
	return nil
}

func (a *app) hierarchyCmd() *cobra.Command {
	var maxLevel int
	var bounds bool
	cmd := &cobra.Command{
		Use:   "hierarchy <file>",
		Short: "print every node of the octree hierarchy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			w := cmd.OutOrStdout()
			cube := f.Cube()
			var nodes, points int
			err = f.Walk(context.Background(), func(e copc.Entry) error {
				if maxLevel >= 0 && int(e.Key.Level) > maxLevel {
					return copc.SkipSubtree
				}
				nodes++
				points += int(e.PointCount)
				indent := strings.Repeat("  ", int(e.Key.Level))
				fmt.Fprintf(w, "%s%s count=%d offset=%d size=%d", indent, e.Key, e.PointCount, e.Offset, e.ByteSize)
				if bounds {
					b := e.Key.Bounds(cube)
					fmt.Fprintf(w, " min=[%g %g %g] max=[%g %g %g]",
						b.Min[0], b.Min[1], b.Min[2], b.Max[0], b.Max[1], b.Max[2])
				}
				fmt.Fprintln(w)
				return nil
			})
			if err != nil {
				return err
			}
			s := f.Stats()
			fmt.Fprintf(w, "%d nodes, %d points, %d pages\n", nodes, points, s.Pages)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxLevel, "max-level", -1, "deepest level to print, -1 for all")
	cmd.Flags().BoolVar(&bounds, "bounds", false, "print the extent of each node")
	return cmd
}

func (a *app) pointsCmd() *cobra.Command {
	var limit int
	var raw bool
	cmd := &cobra.Command{
		Use:   "points <file> <level-x-y-z>",
		Short: "print the points of one node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := copc.ParseKey(args[1])
			if err != nil {
				return err
			}
			f, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			pts, err := f.Points(context.Background(), key)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			t := f.Header().Transform()
			n := 0
			for p, err := range pts.All() {
				if err != nil {
					return err
				}
				if raw {
					x, y, z := p.RawXYZ()
					fmt.Fprintf(w, "%d %d %d\n", x, y, z)
				} else {
					xyz := p.XYZ(t)
					fmt.Fprintf(w, "%g %g %g\n", xyz[0], xyz[1], xyz[2])
				}
				n++
				if limit > 0 && n >= limit {
					break
				}
			}
			if rest := pts.Remaining(); rest > 0 {
				fmt.Fprintf(w, "... %d more\n", rest)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "print at most this many points, 0 for all")
	cmd.Flags().BoolVar(&raw, "raw", false, "print stored integer coordinates")
	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "load the whole hierarchy and decode every point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.verify(cmd.OutOrStdout(), args[0])
		},
	}
	cmd.Flags().IntVar(&a.jobs, "jobs", 4, "number of concurrent readers")
	return cmd
}

type verifyFailure struct {
	key copc.Key
	err error
}

// verify decodes every node. Each worker opens its own handle on the file
// so that point reads do not share a cursor.
func (a *app) verify(w io.Writer, path string) error {
	ctx := context.Background()
	f, err := a.open(path)
	if err != nil {
		return err
	}
	entries, err := f.Entries(ctx)
	header := *f.Header()
	f.Close()
	if err != nil {
		return err
	}

	var (
		mu       sync.Mutex
		failures []verifyFailure
		total    atomic.Uint64
		outside  atomic.Uint64
	)
	work := make(chan copc.Entry)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(work)
		for _, e := range entries {
			select {
			case work <- e:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for i := 0; i < a.cfg.Reader.Jobs; i++ {
		g.Go(func() error {
			wf, err := a.open(path)
			if err != nil {
				return err
			}
			defer wf.Close()
			for e := range work {
				n, stray, err := decodeAll(wf, e)
				if stray > 0 {
					a.logger.Warn("points outside node bounds", "key", e.Key.String(), "count", stray)
					outside.Add(uint64(stray))
				}
				if err != nil {
					a.logger.Warn("node failed verification", "key", e.Key.String(), "error", err)
					mu.Lock()
					failures = append(failures, verifyFailure{key: e.Key, err: err})
					mu.Unlock()
					continue
				}
				total.Add(uint64(n))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slices.SortFunc(failures, func(x, y verifyFailure) int {
		return copc.CompareKeys(x.key, y.key)
	})
	for _, fl := range failures {
		fmt.Fprintf(w, "FAIL %s: %v\n", fl.key, fl.err)
	}
	fmt.Fprintf(w, "%d nodes, %d points decoded\n", len(entries), total.Load())
	if n := outside.Load(); n > 0 {
		fmt.Fprintf(w, "points outside their node bounds: %d\n", n)
	}
	if len(failures) > 0 {
		return errors.Newf("%d of %d nodes failed verification", len(failures), len(entries))
	}
	if total.Load() != header.PointCount {
		return errors.Newf("header declares %d points, hierarchy holds %d", header.PointCount, total.Load())
	}
	return nil
}

// decodeAll reads every point of e and counts those falling outside the
// node's extent.
func decodeAll(f *copc.File, e copc.Entry) (n, outside int, err error) {
	pts, err := f.Read(e)
	if err != nil {
		return 0, 0, err
	}
	bounds := e.Key.Bounds(f.Cube())
	t := f.Header().Transform()
	for p, err := range pts.All() {
		if err != nil {
			return n, outside, err
		}
		if !bounds.Contains(p.XYZ(t)) {
			outside++
		}
		n++
	}
	return n, outside, nil
}

// Package copc reads Cloud Optimized Point Cloud files.
//
// A COPC file is a LAS 1.4 file whose point data is clustered by octree
// node. The COPC info VLR locates the root page of a paged hierarchy that
// maps each node to its chunk of points. File resolves nodes lazily,
// reading hierarchy pages only when a lookup needs them, and streams the
// points of one node at a time.
//
//	f, err := copc.Open("tile.copc.laz", copc.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	pts, err := f.Points(ctx, copc.NewKey(2, 1, 0, 3))
//	if err != nil {
//	    return err
//	}
//	for p, err := range pts.All() {
//	    ...
//	}
package copc

import (
	"github.com/cockroachdb/errors"
	"github.com/robert-malhotra/go-copc/internal/hierarchy"
	"github.com/robert-malhotra/go-copc/internal/info"
	"github.com/robert-malhotra/go-copc/internal/las"
	"github.com/robert-malhotra/go-copc/internal/pointio"
)

// Common errors
var (
	ErrNotLAS      = las.ErrNotLAS
	ErrNotCOPC     = errors.New("copc: not a COPC file")
	ErrUnsupported = pointio.ErrUnsupported
	ErrClosed      = errors.New("copc: file is closed")
)

// Hierarchy and metadata errors, matched with errors.Is.
var (
	ErrMalformedMetadata = info.ErrMalformedMetadata
	ErrInvalidPageSize   = hierarchy.ErrInvalidPageSize
	ErrTruncatedRecord   = hierarchy.ErrTruncatedRecord
	ErrCorruptHierarchy  = hierarchy.ErrCorruptHierarchy
	ErrKeyNotFound       = hierarchy.ErrKeyNotFound
)

package hierarchy

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/robert-malhotra/go-copc/internal/octree"
)

// SkipSubtree can be returned by a WalkFunc to skip the descendants of the
// node just visited.
var SkipSubtree = errors.New("hierarchy: skip subtree")

// WalkFunc is called for each data entry during Walk.
// Return nil to continue, SkipSubtree to skip the entry's descendants, or
// any other error to stop.
type WalkFunc func(e Entry) error

// Walk loads the whole hierarchy and visits every data entry depth first,
// parents before children and siblings in octant order.
func (r *Resolver) Walk(ctx context.Context, fn WalkFunc) error {
	if err := r.LoadAll(ctx); err != nil {
		return err
	}
	return WalkEntries(ctx, r.Entries(), fn)
}

// WalkEntries visits entries in the order of Walk. Entries that are not
// reachable from the root through their ancestors, such as pointer entries
// or keys with negative coordinates, are skipped.
func WalkEntries(ctx context.Context, entries []Entry, fn WalkFunc) error {
	data := make(map[octree.Key]Entry, len(entries))
	// Nodes without data of their own still need visiting when one of their
	// descendants has data.
	interior := make(map[octree.Key]struct{})
	for _, e := range entries {
		if !e.IsData() {
			continue
		}
		data[e.Key] = e
		for k := e.Key.Parent(); k.Valid(); k = k.Parent() {
			if _, ok := interior[k]; ok {
				break
			}
			interior[k] = struct{}{}
		}
	}

	var visit func(k octree.Key) error
	visit = func(k octree.Key) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e, ok := data[k]; ok {
			if err := fn(e); err != nil {
				if errors.Is(err, SkipSubtree) {
					return nil
				}
				return err
			}
		}
		if _, ok := interior[k]; !ok {
			return nil
		}
		for _, c := range k.Children() {
			if err := visit(c); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(octree.RootKey)
}

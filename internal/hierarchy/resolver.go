package hierarchy

import (
	"context"
	"log/slog"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/swiss"
	"github.com/robert-malhotra/go-copc/internal/info"
	"github.com/robert-malhotra/go-copc/internal/octree"
)

// Stats counts resolver activity.
type Stats struct {
	// Lookups is the number of Resolve calls.
	Lookups int
	// Misses is the number of Resolve calls that ended in ErrKeyNotFound.
	Misses int
	// Fetches is the number of pages read through the PageFetcher.
	Fetches int
	// Revisits is the number of pointer entries dropped because their page
	// had already been loaded.
	Revisits int
	// Pages is the number of pages loaded, root included.
	Pages int
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger used for page loads and rejected pages.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// indexed is a data entry together with the page that defined it.
type indexed struct {
	entry Entry
	page  int
}

// Resolver maps voxel keys to data entries, loading hierarchy pages on
// demand. Pages are loaded at most once, keyed by their byte range, and are
// kept for the lifetime of the Resolver.
//
// A Resolver is not safe for concurrent use; callers serialize Resolve,
// LoadAll and Walk.
type Resolver struct {
	fetcher PageFetcher
	logger  *slog.Logger

	// pages is the arena of loaded pages; ranges[i] is where pages[i] came from.
	pages  []*Page
	ranges []Range
	loaded swiss.Map[Range, int]

	// data holds every data entry seen so far. pointers holds the pointer
	// entries not yet followed.
	data     swiss.Map[octree.Key, indexed]
	pointers swiss.Map[octree.Key, Entry]

	stats Stats
}

// NewResolver builds a resolver from the root page bytes. The root page
// location is taken from meta; NewResolver performs no I/O of its own.
func NewResolver(
	rootPage []byte,
	rootSize uint64,
	meta *info.Info,
	fetcher PageFetcher,
	opts ...ResolverOption,
) (*Resolver, error) {
	r := &Resolver{
		fetcher: fetcher,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}

	page, err := ParsePage(rootPage, rootSize)
	if err != nil {
		return nil, errors.Wrap(err, "hierarchy: root page")
	}
	if err := page.Validate(); err != nil {
		return nil, errors.Wrap(err, "hierarchy: root page")
	}

	n := len(page.Entries)
	r.data.Init(n)
	r.pointers.Init(8)
	r.loaded.Init(8)

	var root Range
	if meta != nil {
		root.Offset = meta.RootHierOffset
	}
	root.Size = rootSize
	r.addPage(root, page)
	r.logger.Debug("loaded root hierarchy page",
		slog.Uint64("offset", root.Offset), slog.Uint64("size", root.Size), slog.Int("entries", n))
	return r, nil
}

// Resolve returns the data entry for exactly key. When key is not known
// yet, pointer entries for key or one of its ancestors are followed,
// deepest first, until key is found or no pointer can lead to it.
//
// Errors from the PageFetcher are returned wrapped with the page range.
// A failed call leaves the resolver usable for other keys.
func (r *Resolver) Resolve(ctx context.Context, key octree.Key) (Entry, error) {
	r.stats.Lookups++
	if !key.Valid() {
		r.stats.Misses++
		return Entry{}, errors.Mark(errors.Newf("hierarchy: invalid key %s", key), ErrKeyNotFound)
	}
	for {
		if ix, ok := r.data.Get(key); ok {
			return ix.entry, nil
		}
		ptr, ok := r.nextPointer(key)
		if !ok {
			r.stats.Misses++
			return Entry{}, errors.Mark(errors.Newf("hierarchy: key %s not found", key), ErrKeyNotFound)
		}
		if err := r.follow(ctx, ptr); err != nil {
			return Entry{}, err
		}
	}
}

// nextPointer returns the unfollowed pointer entry for key or its deepest
// ancestor that has one.
func (r *Resolver) nextPointer(key octree.Key) (Entry, bool) {
	for k := key; k.Valid(); k = k.Parent() {
		if e, ok := r.pointers.Get(k); ok {
			return e, true
		}
	}
	return Entry{}, false
}

// follow loads the page ptr refers to and merges it into the index. On
// success ptr is removed from the pending pointers; on failure the
// resolver is unchanged.
func (r *Resolver) follow(ctx context.Context, ptr Entry) error {
	rng := ptr.Range()
	if r.Loaded(rng) {
		r.stats.Revisits++
		r.pointers.Delete(ptr.Key)
		return nil
	}

	b, err := r.fetcher.FetchPage(ctx, rng.Offset, rng.Size)
	if err != nil {
		return errors.Wrapf(err, "hierarchy: fetching page offset=%d size=%d", rng.Offset, rng.Size)
	}
	r.stats.Fetches++

	page, err := ParsePage(b, rng.Size)
	if err == nil {
		err = page.Validate()
	}
	if err == nil {
		err = r.checkMerge(page, rng, ptr)
	}
	if err != nil {
		r.logger.Warn("rejected hierarchy page",
			slog.Uint64("offset", rng.Offset), slog.Uint64("size", rng.Size),
			slog.String("key", ptr.Key.String()), slog.Any("error", err))
		return errors.Wrapf(err, "hierarchy: page %s", rng)
	}

	r.pointers.Delete(ptr.Key)
	r.addPage(rng, page)
	r.logger.Debug("loaded hierarchy page",
		slog.Uint64("offset", rng.Offset), slog.Uint64("size", rng.Size),
		slog.Int("entries", len(page.Entries)), slog.String("key", ptr.Key.String()))
	return nil
}

// checkMerge reports whether page can be merged without contradicting the
// entries already indexed. followed is the pointer being resolved and does
// not count as a conflict.
func (r *Resolver) checkMerge(page *Page, rng Range, followed Entry) error {
	for _, e := range page.Entries {
		if e.IsData() {
			if prev, ok := r.data.Get(e.Key); ok {
				return corruptf("key %s has data entries in pages %s and %s",
					e.Key, r.ranges[prev.page], rng)
			}
			continue
		}
		if prev, ok := r.pointers.Get(e.Key); ok && prev != followed && prev.Range() != e.Range() {
			return corruptf("key %s points to both %s and %s", e.Key, prev.Range(), e.Range())
		}
	}
	return nil
}

// addPage records page as loaded from rng and indexes its entries.
func (r *Resolver) addPage(rng Range, page *Page) {
	id := len(r.pages)
	r.pages = append(r.pages, page)
	r.ranges = append(r.ranges, rng)
	r.loaded.Put(rng, id)
	r.stats.Pages++

	for _, e := range page.Entries {
		if e.IsData() {
			r.data.Put(e.Key, indexed{entry: e, page: id})
			continue
		}
		if r.Loaded(e.Range()) {
			// Already loaded; following it again would make no progress.
			r.stats.Revisits++
			continue
		}
		r.pointers.Put(e.Key, e)
	}
}

// LoadAll follows every pending pointer until the whole hierarchy is loaded.
func (r *Resolver) LoadAll(ctx context.Context) error {
	for r.pointers.Len() > 0 {
		pending := r.Pending()
		for _, ptr := range pending {
			// Following an earlier pointer may have dropped or replaced this one.
			if cur, ok := r.pointers.Get(ptr.Key); !ok || cur != ptr {
				continue
			}
			if err := r.follow(ctx, ptr); err != nil {
				return err
			}
		}
	}
	return nil
}

// Entries returns the data entries loaded so far ordered by key.
func (r *Resolver) Entries() []Entry {
	out := make([]Entry, 0, r.data.Len())
	r.data.All(func(_ octree.Key, ix indexed) bool {
		out = append(out, ix.entry)
		return true
	})
	sortEntries(out)
	return out
}

// Pending returns the pointer entries not yet followed ordered by key.
func (r *Resolver) Pending() []Entry {
	out := make([]Entry, 0, r.pointers.Len())
	r.pointers.All(func(_ octree.Key, e Entry) bool {
		out = append(out, e)
		return true
	})
	sortEntries(out)
	return out
}

// Loaded reports whether the page at rng has been loaded.
func (r *Resolver) Loaded(rng Range) bool {
	_, ok := r.loaded.Get(rng)
	return ok
}

// Len returns the number of data entries indexed.
func (r *Resolver) Len() int {
	return r.data.Len()
}

// Stats returns a snapshot of the resolver counters.
func (r *Resolver) Stats() Stats {
	return r.stats
}

func sortEntries(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		return octree.Compare(a.Key, b.Key)
	})
}

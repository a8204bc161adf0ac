// Package hierarchy implements the COPC hierarchy: the paged index that
// maps octree nodes to the file location of their point data.
//
// # Pages and Entries
//
// A hierarchy page is a flat array of 32-byte [Entry] records. Each entry
// names an octree node ([octree.Key]) and either
//
//   - locates that node's point data chunk (offset, byte size, point
//     count), a data entry, or
//   - locates another hierarchy page holding the entries for the node and
//     its descendants (point count -1), a pointer entry.
//
// [ParsePage] decodes a page and [Page.Validate] checks it for values out
// of range and for keys repeated within the page.
//
// # Resolution
//
// A [Resolver] starts from the root page, whose bytes the caller supplies,
// and loads further pages lazily through a [PageFetcher]:
//
//	res, err := hierarchy.NewResolver(rootBytes, meta.RootHierSize, meta,
//	    hierarchy.NewReaderAtFetcher(file))
//	entry, err := res.Resolve(ctx, octree.NewKey(3, 1, 0, 2))
//
// Lookups match keys exactly. When a key is unknown, the resolver follows
// the pending pointer entry of the key or of its deepest ancestor, merges
// the fetched page and retries. Each page is fetched at most once, keyed by
// its byte range, so a file whose pages point at each other still resolves
// in a bounded number of steps.
//
// Pages are plain data: a pointer entry carries only the byte range to
// fetch, never a reference to another page object.
//
// # Errors
//
//   - [ErrInvalidPageSize]: a page size is not a multiple of 32
//   - [ErrTruncatedRecord]: fewer bytes than a page or entry needs
//   - [ErrCorruptHierarchy]: two pages define data for one key, a point
//     count below -1, or similar contradictions
//   - [ErrKeyNotFound]: the key is absent from every reachable page
//
// Fetch errors are returned wrapped with the page offset and size. A failed
// Resolve leaves previously loaded pages in place.
package hierarchy

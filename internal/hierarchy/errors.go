package hierarchy

import "github.com/cockroachdb/errors"

// Errors
var (
	// ErrInvalidPageSize means a page size is not a multiple of EntrySize.
	ErrInvalidPageSize = errors.New("hierarchy: invalid page size")

	// ErrTruncatedRecord means fewer bytes were available than a record needs.
	ErrTruncatedRecord = errors.New("hierarchy: truncated record")

	// ErrCorruptHierarchy means entries contradict each other or carry
	// values outside their domain.
	ErrCorruptHierarchy = errors.New("hierarchy: corrupt hierarchy")

	// ErrKeyNotFound means no loaded or reachable page describes the key.
	ErrKeyNotFound = errors.New("hierarchy: key not found")
)

func corruptf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf("hierarchy: corrupt hierarchy: "+format, args...), ErrCorruptHierarchy)
}

func truncatedf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf("hierarchy: truncated record: "+format, args...), ErrTruncatedRecord)
}

package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a record with the same identity already exists.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrForeignKeyViolation is returned when a referenced record is missing.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrConstraintViolation is returned when a row violates a table constraint.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrOverlap is returned when an occupying event would overlap another
	// occupying event of the same schedule at commit time.
	ErrOverlap = errors.New("persistence: overlapping event")
	// ErrStale is returned when a compare-and-set update lost to a concurrent writer.
	ErrStale = errors.New("persistence: stale record")
)

package core

import "errors"

var (
	// ErrInvalidIdentifier marks a malformed id supplied by the caller. It is
	// returned before any store access.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrNotFound marks a referenced lesson, level, badge or status row that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStoreFailure wraps persistence errors. The whole operation failed and
	// nothing was partially recorded.
	ErrStoreFailure = errors.New("store failure")
	// ErrBenignDuplicate is a unique-key collision on a write that is
	// semantically a no-op, e.g. a badge a concurrent request already awarded.
	ErrBenignDuplicate = errors.New("duplicate write")
	// ErrInvalidCriteria marks a badge criteria blob that cannot be decoded.
	ErrInvalidCriteria = errors.New("invalid badge criteria")
)

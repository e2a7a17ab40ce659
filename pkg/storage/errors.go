package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when an identity or document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a unique key (identity email, document
	// ID) is already taken.
	ErrConflict = errors.New("already exists")

	// ErrNoOwner is returned by document operations on a context without
	// an owner.
	ErrNoOwner = errors.New("no owner in context")
)

package storage

import "errors"

var (
	// ErrNotFound is wrapped by backends when an entity does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrDuplicate is wrapped by backends when a unique id is already taken.
	ErrDuplicate = errors.New("storage: duplicate")
)

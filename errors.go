package coffer

import "errors"

var (
	// ErrStoreNotFound is returned when a store cannot be found.
	ErrStoreNotFound = errors.New("coffer: store not found")

	// ErrObjectNotFound is returned when an object cannot be found.
	ErrObjectNotFound = errors.New("coffer: object not found")

	// ErrStoreExists is returned when a store id collides with a live store.
	ErrStoreExists = errors.New("coffer: store already exists")

	// ErrACLExists is returned when a default grant targets a store that
	// already carries ACL entries.
	ErrACLExists = errors.New("coffer: acl already exists")

	// ErrPermissionDenied is returned when the caller's grant lacks a
	// required right, or the caller has no grant at all.
	ErrPermissionDenied = errors.New("coffer: permission denied")

	// ErrInvalidStoreName is returned when a caller-chosen store id does
	// not match the allowed identifier syntax.
	ErrInvalidStoreName = errors.New("coffer: invalid store name")

	// ErrInvalidPerm is returned when a permission flag is malformed.
	ErrInvalidPerm = errors.New("coffer: invalid permission")

	// ErrAborted is returned when a persistence call was cancelled or
	// timed out without completing.
	ErrAborted = errors.New("coffer: operation aborted")
)

package object

import (
	"context"

	"github.com/cofferhq/coffer/id"
)

// Store defines persistence operations for objects.
type Store interface {
	// PutObject persists a new object.
	PutObject(ctx context.Context, o *Object) error

	// GetObject retrieves one object by store and object id.
	GetObject(ctx context.Context, storeID string, objectID id.ObjectID) (*Object, error)

	// UpdateObject persists changes to an existing object. Fails if the
	// object does not exist; it never creates one.
	UpdateObject(ctx context.Context, o *Object) error

	// DeleteObject removes one object by store and object id.
	DeleteObject(ctx context.Context, storeID string, objectID id.ObjectID) error

	// ListObjects returns a store's objects matching the filter, ordered
	// by object id (insertion order, since ids are K-sortable).
	ListObjects(ctx context.Context, storeID string, filter *ListFilter) ([]*Object, error)

	// CountObjects returns the number of objects in a store.
	CountObjects(ctx context.Context, storeID string) (int64, error)

	// DeleteStoreObjects removes every object belonging to a store and
	// returns how many were removed.
	DeleteStoreObjects(ctx context.Context, storeID string) (int64, error)
}

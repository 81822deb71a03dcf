package store

import "context"

// Registry defines persistence operations for the store id space.
type Registry interface {
	// PutStore persists a new store record. Fails if the id is taken.
	PutStore(ctx context.Context, s *Store) error

	// GetStore retrieves a store record by id.
	GetStore(ctx context.Context, storeID string) (*Store, error)

	// DeleteStore removes a store record by id.
	DeleteStore(ctx context.Context, storeID string) error

	// ListStores returns store records matching the filter, ordered by id.
	ListStores(ctx context.Context, filter *ListFilter) ([]*Store, error)

	// CountStores returns the number of stores matching the filter.
	CountStores(ctx context.Context, filter *ListFilter) (int64, error)
}

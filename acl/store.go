package acl

import "context"

// Store defines persistence operations for access control lists.
type Store interface {
	// PutACLEntry creates or replaces the grant for one identity on a store.
	// A None permission set removes the entry.
	PutACLEntry(ctx context.Context, e *Entry) error

	// GetACL retrieves every grant for a store. A store with no entries
	// yields an empty map, not an error.
	GetACL(ctx context.Context, storeID string) (map[string]Perms, error)

	// ReplaceACL atomically overwrites every grant for a store. Identities
	// absent from grants lose their entry entirely.
	ReplaceACL(ctx context.Context, storeID string, grants map[string]Perms) error

	// DeleteACL removes every grant for a store.
	DeleteACL(ctx context.Context, storeID string) error
}

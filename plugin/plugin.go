// Package plugin defines the plugin system for Coffer.
// Plugins are notified of lifecycle events (access checked, store created,
// object inserted, etc.) and can react — logging, metrics, tracing, etc.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about.
package plugin

import (
	"context"

	"github.com/cofferhq/coffer/acl"
	"github.com/cofferhq/coffer/id"
	"github.com/cofferhq/coffer/object"
	"github.com/cofferhq/coffer/store"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Access lifecycle hooks
// ──────────────────────────────────────────────────

// BeforeAccess is called before an access decision is evaluated.
// The req parameter is *coffer.AccessRequest (passed as any to avoid import cycle).
type BeforeAccess interface {
	OnBeforeAccess(ctx context.Context, req any) error
}

// AfterAccess is called after an access decision completes.
// The req parameter is *coffer.AccessRequest; result is *coffer.AccessResult.
type AfterAccess interface {
	OnAfterAccess(ctx context.Context, req, result any) error
}

// ──────────────────────────────────────────────────
// Store lifecycle hooks
// ──────────────────────────────────────────────────

// StoreCreated is called after a store is created.
type StoreCreated interface {
	OnStoreCreated(ctx context.Context, s *store.Store) error
}

// StoreDeleted is called after a store and its contents are deleted.
type StoreDeleted interface {
	OnStoreDeleted(ctx context.Context, storeID string) error
}

// ──────────────────────────────────────────────────
// Object lifecycle hooks
// ──────────────────────────────────────────────────

// ObjectInserted is called after an object is inserted into a store.
type ObjectInserted interface {
	OnObjectInserted(ctx context.Context, o *object.Object) error
}

// ObjectUpdated is called after an object is updated in place.
type ObjectUpdated interface {
	OnObjectUpdated(ctx context.Context, o *object.Object) error
}

// ObjectDeleted is called after an object is deleted from a store.
type ObjectDeleted interface {
	OnObjectDeleted(ctx context.Context, storeID string, objectID id.ObjectID) error
}

// ──────────────────────────────────────────────────
// ACL lifecycle hooks
// ──────────────────────────────────────────────────

// ACLReplaced is called after a store's access list is replaced.
type ACLReplaced interface {
	OnACLReplaced(ctx context.Context, storeID string, grants map[string]acl.Perms) error
}

// ──────────────────────────────────────────────────
// Shutdown hook
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}

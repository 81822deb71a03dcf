// Package storage defines the aggregate persistence interface. Each
// subsystem (store registry, objects, ACLs, audit trail) defines its own
// store interface; the composite Store composes them all. Backends:
// Memory, SQLite, Postgres, Mongo, and Redis.
package storage

import (
	"context"

	"github.com/cofferhq/coffer/acl"
	"github.com/cofferhq/coffer/audit"
	"github.com/cofferhq/coffer/object"
	"github.com/cofferhq/coffer/store"
)

// Store is the aggregate persistence interface. A single backend
// implements all of the subsystem stores.
type Store interface {
	store.Registry
	object.Store
	acl.Store
	audit.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the backend connection.
	Close() error
}

// Package coffer implements a permissioned object store engine. Each
// store is a named container of opaque JSON objects guarded by a
// per-identity access control list; every operation is authorized
// against that list before it touches the store's contents.
package coffer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cofferhq/coffer/audit"
	"github.com/cofferhq/coffer/id"
	"github.com/cofferhq/coffer/plugin"
	"github.com/cofferhq/coffer/storage"
)

// Operation names recorded in the audit trail.
const (
	opStoreCreate   = "store.create"
	opStoreDelete   = "store.delete"
	opStoreContents = "store.contents"
	opObjectInsert  = "object.insert"
	opObjectGet     = "object.get"
	opObjectUpdate  = "object.update"
	opObjectDelete  = "object.delete"
	opACLRead       = "acl.read"
	opACLReplace    = "acl.replace"
)

// Engine is the permissioned store engine. It coordinates store and
// object lifecycle, evaluates the per-store ACL before every gated
// operation, serializes structural changes per store, and records an
// audit trail.
type Engine struct {
	storage storage.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	config  Config
	now     func() time.Time
	locks   *storeLocks
}

// NewEngine creates a new Coffer engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
		now:    time.Now,
		locks:  newStoreLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.storage == nil {
		return nil, errors.New("coffer: storage is required")
	}
	return e, nil
}

// Storage returns the underlying composite store.
func (e *Engine) Storage() storage.Store { return e.storage }

// Plugins returns the plugin registry (may be nil).
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Start performs any startup initialization.
func (e *Engine) Start(_ context.Context) error { return nil }

// Stop performs graceful shutdown, notifying shutdown hooks.
func (e *Engine) Stop(ctx context.Context) error {
	if e.plugins != nil {
		e.plugins.EmitShutdown(ctx)
	}
	return nil
}

// Audits queries the audit trail. This surface is not gated by
// per-store grants; deployments restrict it at the transport layer.
func (e *Engine) Audits(ctx context.Context, filter *audit.QueryFilter) ([]*audit.Entry, error) {
	// Clamp on a copy so the caller's filter is never mutated.
	var f audit.QueryFilter
	if filter != nil {
		f = *filter
	}
	if f.Limit <= 0 || f.Limit > e.config.maxListLimit() {
		f.Limit = e.config.maxListLimit()
	}
	entries, err := e.storage.ListAudits(ctx, &f)
	if err != nil {
		return nil, mapErr(err, ErrStoreNotFound)
	}
	return entries, nil
}

// PurgeAudits removes audit entries older than the given time.
func (e *Engine) PurgeAudits(ctx context.Context, before time.Time) (int64, error) {
	n, err := e.storage.PurgeAudits(ctx, before)
	if err != nil {
		return 0, mapErr(err, ErrStoreNotFound)
	}
	return n, nil
}

// audit appends an entry to the trail. Appends are best-effort: a
// failure is logged and never surfaced to the caller. The append
// survives caller cancellation so aborted attempts are recorded too.
func (e *Engine) audit(ctx context.Context, storeID, identity, op string, outcome audit.Outcome, detail string) {
	if !e.config.auditEnabled() {
		return
	}
	entry := &audit.Entry{
		ID:        id.NewAuditID(),
		StoreID:   storeID,
		Identity:  identity,
		Op:        op,
		Outcome:   outcome,
		Detail:    detail,
		CreatedAt: e.now().UTC(),
	}
	if err := e.storage.AppendAudit(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.Warn("audit append failed",
			slog.String("op", op),
			slog.String("store_id", storeID),
			slog.String("error", err.Error()),
		)
	}
}

// mapErr translates a persistence failure into the engine taxonomy.
// Cancellation surfaces as ErrAborted, never as partial state; a
// missing record surfaces as the given notFound sentinel.
func mapErr(err, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrAborted, err)
	case errors.Is(err, storage.ErrNotFound):
		return notFound
	case errors.Is(err, storage.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrStoreExists, err)
	}
	return err
}

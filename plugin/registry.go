package plugin

import (
	"context"
	"log/slog"

	"github.com/cofferhq/coffer/acl"
	"github.com/cofferhq/coffer/id"
	"github.com/cofferhq/coffer/object"
	"github.com/cofferhq/coffer/store"
)

// Named entry types pair a hook with the plugin name for logging.

type beforeAccessEntry struct {
	name string
	hook BeforeAccess
}
type afterAccessEntry struct {
	name string
	hook AfterAccess
}
type storeCreatedEntry struct {
	name string
	hook StoreCreated
}
type storeDeletedEntry struct {
	name string
	hook StoreDeleted
}
type objectInsertedEntry struct {
	name string
	hook ObjectInserted
}
type objectUpdatedEntry struct {
	name string
	hook ObjectUpdated
}
type objectDeletedEntry struct {
	name string
	hook ObjectDeleted
}
type aclReplacedEntry struct {
	name string
	hook ACLReplaced
}
type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	beforeAccess   []beforeAccessEntry
	afterAccess    []afterAccessEntry
	storeCreated   []storeCreatedEntry
	storeDeleted   []storeDeletedEntry
	objectInserted []objectInsertedEntry
	objectUpdated  []objectUpdatedEntry
	objectDeleted  []objectDeletedEntry
	aclReplaced    []aclReplacedEntry
	shutdown       []shutdownEntry
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	if h, ok := p.(BeforeAccess); ok {
		r.beforeAccess = append(r.beforeAccess, beforeAccessEntry{name, h})
	}
	if h, ok := p.(AfterAccess); ok {
		r.afterAccess = append(r.afterAccess, afterAccessEntry{name, h})
	}
	if h, ok := p.(StoreCreated); ok {
		r.storeCreated = append(r.storeCreated, storeCreatedEntry{name, h})
	}
	if h, ok := p.(StoreDeleted); ok {
		r.storeDeleted = append(r.storeDeleted, storeDeletedEntry{name, h})
	}
	if h, ok := p.(ObjectInserted); ok {
		r.objectInserted = append(r.objectInserted, objectInsertedEntry{name, h})
	}
	if h, ok := p.(ObjectUpdated); ok {
		r.objectUpdated = append(r.objectUpdated, objectUpdatedEntry{name, h})
	}
	if h, ok := p.(ObjectDeleted); ok {
		r.objectDeleted = append(r.objectDeleted, objectDeletedEntry{name, h})
	}
	if h, ok := p.(ACLReplaced); ok {
		r.aclReplaced = append(r.aclReplaced, aclReplacedEntry{name, h})
	}
	if h, ok := p.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin { return r.plugins }

// ──────────────────────────────────────────────────
// Access event emitters
// ──────────────────────────────────────────────────

// EmitBeforeAccess notifies all plugins that implement BeforeAccess.
func (r *Registry) EmitBeforeAccess(ctx context.Context, req any) {
	for _, e := range r.beforeAccess {
		if err := e.hook.OnBeforeAccess(ctx, req); err != nil {
			r.logHookError("OnBeforeAccess", e.name, err)
		}
	}
}

// EmitAfterAccess notifies all plugins that implement AfterAccess.
func (r *Registry) EmitAfterAccess(ctx context.Context, req, result any) {
	for _, e := range r.afterAccess {
		if err := e.hook.OnAfterAccess(ctx, req, result); err != nil {
			r.logHookError("OnAfterAccess", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Store event emitters
// ──────────────────────────────────────────────────

// EmitStoreCreated notifies all plugins that implement StoreCreated.
func (r *Registry) EmitStoreCreated(ctx context.Context, s *store.Store) {
	for _, e := range r.storeCreated {
		if err := e.hook.OnStoreCreated(ctx, s); err != nil {
			r.logHookError("OnStoreCreated", e.name, err)
		}
	}
}

// EmitStoreDeleted notifies all plugins that implement StoreDeleted.
func (r *Registry) EmitStoreDeleted(ctx context.Context, storeID string) {
	for _, e := range r.storeDeleted {
		if err := e.hook.OnStoreDeleted(ctx, storeID); err != nil {
			r.logHookError("OnStoreDeleted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Object event emitters
// ──────────────────────────────────────────────────

// EmitObjectInserted notifies all plugins that implement ObjectInserted.
func (r *Registry) EmitObjectInserted(ctx context.Context, o *object.Object) {
	for _, e := range r.objectInserted {
		if err := e.hook.OnObjectInserted(ctx, o); err != nil {
			r.logHookError("OnObjectInserted", e.name, err)
		}
	}
}

// EmitObjectUpdated notifies all plugins that implement ObjectUpdated.
func (r *Registry) EmitObjectUpdated(ctx context.Context, o *object.Object) {
	for _, e := range r.objectUpdated {
		if err := e.hook.OnObjectUpdated(ctx, o); err != nil {
			r.logHookError("OnObjectUpdated", e.name, err)
		}
	}
}

// EmitObjectDeleted notifies all plugins that implement ObjectDeleted.
func (r *Registry) EmitObjectDeleted(ctx context.Context, storeID string, objectID id.ObjectID) {
	for _, e := range r.objectDeleted {
		if err := e.hook.OnObjectDeleted(ctx, storeID, objectID); err != nil {
			r.logHookError("OnObjectDeleted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// ACL event emitters
// ──────────────────────────────────────────────────

// EmitACLReplaced notifies all plugins that implement ACLReplaced.
func (r *Registry) EmitACLReplaced(ctx context.Context, storeID string, grants map[string]acl.Perms) {
	for _, e := range r.aclReplaced {
		if err := e.hook.OnACLReplaced(ctx, storeID, grants); err != nil {
			r.logHookError("OnACLReplaced", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Shutdown emitter
// ──────────────────────────────────────────────────

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the pipeline.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}

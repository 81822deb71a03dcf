package coffer

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/cofferhq/coffer/acl"
	"github.com/cofferhq/coffer/audit"
	"github.com/cofferhq/coffer/id"
	"github.com/cofferhq/coffer/object"
	"github.com/cofferhq/coffer/store"
)

// Caller-chosen store ids: alphanumeric, underscore, hyphen.
var storeNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// CreateStore creates a store owned by identity. When requestedID is
// empty a fresh opaque id is generated; otherwise the name must match
// the identifier syntax and must not collide with a live store. The
// creator receives the only automatic grant: full rights. Creation and
// the default grant are atomic from the caller's point of view; if the
// grant cannot be persisted the store record is rolled back.
func (e *Engine) CreateStore(ctx context.Context, identity, requestedID string) (*store.Store, error) {
	storeID := requestedID
	if storeID == "" {
		storeID = id.NewStoreID().String()
	} else if !storeNamePattern.MatchString(storeID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStoreName, storeID)
	}

	e.locks.lock(storeID)
	defer e.locks.unlock(storeID)

	rec := &store.Store{ID: storeID, CreatedBy: identity, CreatedAt: e.now().UTC()}
	if err := e.storage.PutStore(ctx, rec); err != nil {
		err = mapErr(err, ErrStoreNotFound)
		e.audit(ctx, storeID, identity, opStoreCreate, audit.OutcomeError, err.Error())
		return nil, err
	}

	if err := e.grantDefault(ctx, storeID, identity); err != nil {
		// No orphan store without a creator grant.
		if derr := e.storage.DeleteStore(context.WithoutCancel(ctx), storeID); derr != nil {
			err = fmt.Errorf("%w: default grant failed (%v) and rollback failed (%v)", ErrAborted, err, derr)
		}
		e.audit(ctx, storeID, identity, opStoreCreate, audit.OutcomeError, err.Error())
		return nil, err
	}

	e.audit(ctx, storeID, identity, opStoreCreate, audit.OutcomeOK, "")
	if e.plugins != nil {
		e.plugins.EmitStoreCreated(ctx, rec)
	}
	return rec, nil
}

// CreateStoreWithInitial creates a store and, when initialData is
// non-empty, seeds it with a single object. Returns the store id and
// the ids of the inserted objects (at most one). A failed seed rolls
// the whole creation back so callers never observe a half-initialized
// store.
func (e *Engine) CreateStoreWithInitial(ctx context.Context, identity, requestedID string, initialData json.RawMessage) (string, []id.ObjectID, error) {
	rec, err := e.CreateStore(ctx, identity, requestedID)
	if err != nil {
		return "", nil, err
	}

	oids := []id.ObjectID{}
	if len(initialData) > 0 {
		o, err := e.InsertObject(ctx, identity, rec.ID, initialData)
		if err != nil {
			if derr := e.DeleteStore(context.WithoutCancel(ctx), identity, rec.ID); derr != nil {
				err = fmt.Errorf("%w: seed insert failed (%v) and rollback failed (%v)", ErrAborted, err, derr)
			}
			return "", nil, err
		}
		oids = append(oids, o.ID)
	}

	return rec.ID, oids, nil
}

// ListStores returns all store ids. Listing existence is not gated by
// per-store grants; only contents and administration are. Ordering is
// stable (ascending id).
func (e *Engine) ListStores(ctx context.Context, identity string) ([]string, error) {
	_ = identity // listing is ungated, but the facade always supplies a caller

	recs, err := e.storage.ListStores(ctx, &store.ListFilter{})
	if err != nil {
		return nil, mapErr(err, ErrStoreNotFound)
	}

	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ID)
	}
	return ids, nil
}

// DeleteStore removes a store, its objects, and its access list.
// Requires the write right. The purge is serialized against other
// structural changes on the same store; a failure after the purge has
// begun escalates to Aborted rather than leaving partial state silent.
func (e *Engine) DeleteStore(ctx context.Context, identity, storeID string) error {
	e.locks.lock(storeID)
	defer e.locks.unlock(storeID)

	if err := e.gate(ctx, storeID, identity, opStoreDelete, acl.PermWrite); err != nil {
		return err
	}

	if _, err := e.storage.DeleteStoreObjects(ctx, storeID); err != nil {
		err = mapErr(err, ErrStoreNotFound)
		e.audit(ctx, storeID, identity, opStoreDelete, audit.OutcomeError, err.Error())
		return err
	}
	if err := e.storage.DeleteACL(ctx, storeID); err != nil {
		err = fmt.Errorf("%w: acl drop after object purge: %v", ErrAborted, err)
		e.audit(ctx, storeID, identity, opStoreDelete, audit.OutcomeError, err.Error())
		return err
	}
	if err := e.storage.DeleteStore(ctx, storeID); err != nil {
		err = fmt.Errorf("%w: store record after purge: %v", ErrAborted, err)
		e.audit(ctx, storeID, identity, opStoreDelete, audit.OutcomeError, err.Error())
		return err
	}

	e.audit(ctx, storeID, identity, opStoreDelete, audit.OutcomeOK, "")
	if e.plugins != nil {
		e.plugins.EmitStoreDeleted(ctx, storeID)
	}
	return nil
}

// StoreContents returns a store's objects in insertion order. Requires
// the read right. An empty store yields an empty slice, not an error.
func (e *Engine) StoreContents(ctx context.Context, identity, storeID string, filter *object.ListFilter) ([]*object.Object, error) {
	if err := e.gate(ctx, storeID, identity, opStoreContents, acl.PermRead); err != nil {
		return nil, err
	}

	// Clamp on a copy so the caller's filter is never mutated.
	var f object.ListFilter
	if filter != nil {
		f = *filter
	}
	if f.Limit <= 0 || f.Limit > e.config.maxListLimit() {
		f.Limit = e.config.maxListLimit()
	}

	objs, err := e.storage.ListObjects(ctx, storeID, &f)
	if err != nil {
		return nil, mapErr(err, ErrStoreNotFound)
	}
	return objs, nil
}

package coffer

import (
	"context"
	"encoding/json"

	"github.com/cofferhq/coffer/acl"
	"github.com/cofferhq/coffer/audit"
	"github.com/cofferhq/coffer/id"
	"github.com/cofferhq/coffer/object"
)

// InsertObject adds an object to a store. Requires the write right.
// The object id is always generated, never caller-supplied. The insert
// is serialized against structural changes on the same store, so it can
// never land in a store that a concurrent delete is purging.
func (e *Engine) InsertObject(ctx context.Context, identity, storeID string, data json.RawMessage) (*object.Object, error) {
	e.locks.lock(storeID)
	defer e.locks.unlock(storeID)

	if err := e.gate(ctx, storeID, identity, opObjectInsert, acl.PermWrite); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	o := &object.Object{
		StoreID:   storeID,
		ID:        id.NewObjectID(),
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.storage.PutObject(ctx, o); err != nil {
		err = mapErr(err, ErrStoreNotFound)
		e.audit(ctx, storeID, identity, opObjectInsert, audit.OutcomeError, err.Error())
		return nil, err
	}

	e.audit(ctx, storeID, identity, opObjectInsert, audit.OutcomeOK, o.ID.String())
	if e.plugins != nil {
		e.plugins.EmitObjectInserted(ctx, o)
	}
	return o, nil
}

// GetObject retrieves one object. Requires the read right.
func (e *Engine) GetObject(ctx context.Context, identity, storeID string, objectID id.ObjectID) (*object.Object, error) {
	if err := e.gate(ctx, storeID, identity, opObjectGet, acl.PermRead); err != nil {
		return nil, err
	}

	o, err := e.storage.GetObject(ctx, storeID, objectID)
	if err != nil {
		return nil, mapErr(err, ErrObjectNotFound)
	}
	return o, nil
}

// UpdateObject replaces an object's data in place, refreshing
// updated_at. Requires the write right. The object id never changes
// and a missing object is never created (no upsert).
func (e *Engine) UpdateObject(ctx context.Context, identity, storeID string, objectID id.ObjectID, data json.RawMessage) (*object.Object, error) {
	e.locks.lock(storeID)
	defer e.locks.unlock(storeID)

	if err := e.gate(ctx, storeID, identity, opObjectUpdate, acl.PermWrite); err != nil {
		return nil, err
	}

	o, err := e.storage.GetObject(ctx, storeID, objectID)
	if err != nil {
		return nil, mapErr(err, ErrObjectNotFound)
	}

	o.Data = data
	o.UpdatedAt = e.now().UTC()
	if err := e.storage.UpdateObject(ctx, o); err != nil {
		err = mapErr(err, ErrObjectNotFound)
		e.audit(ctx, storeID, identity, opObjectUpdate, audit.OutcomeError, err.Error())
		return nil, err
	}

	e.audit(ctx, storeID, identity, opObjectUpdate, audit.OutcomeOK, o.ID.String())
	if e.plugins != nil {
		e.plugins.EmitObjectUpdated(ctx, o)
	}
	return o, nil
}

// DeleteObject removes one object from a store. Requires the write
// right. Fails with NotFound if the object does not exist. Serialized
// against structural changes so it cannot report success for an object
// a concurrent store purge is already removing.
func (e *Engine) DeleteObject(ctx context.Context, identity, storeID string, objectID id.ObjectID) error {
	e.locks.lock(storeID)
	defer e.locks.unlock(storeID)

	if err := e.gate(ctx, storeID, identity, opObjectDelete, acl.PermWrite); err != nil {
		return err
	}

	if _, err := e.storage.GetObject(ctx, storeID, objectID); err != nil {
		return mapErr(err, ErrObjectNotFound)
	}
	if err := e.storage.DeleteObject(ctx, storeID, objectID); err != nil {
		err = mapErr(err, ErrObjectNotFound)
		e.audit(ctx, storeID, identity, opObjectDelete, audit.OutcomeError, err.Error())
		return err
	}

	e.audit(ctx, storeID, identity, opObjectDelete, audit.OutcomeOK, objectID.String())
	if e.plugins != nil {
		e.plugins.EmitObjectDeleted(ctx, storeID, objectID)
	}
	return nil
}

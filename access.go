package coffer

import (
	"context"
	"fmt"

	"github.com/cofferhq/coffer/acl"
	"github.com/cofferhq/coffer/audit"
)

// AccessRequest asks whether an identity holds a set of rights on a store.
type AccessRequest struct {
	StoreID  string    `json:"store_id"`
	Identity string    `json:"identity"`
	Required acl.Perms `json:"required"`
}

// AccessResult is the outcome of an access evaluation.
type AccessResult struct {
	Allowed bool      `json:"allowed"`
	Held    acl.Perms `json:"held"`
	Reason  string    `json:"reason,omitempty"`
}

// Check evaluates an access request. The store must exist; a missing
// store is reported as NotFound before any rights are consulted.
// Rights are read fresh on every call and results are never cached, so
// a concurrent ACL replacement is visible to the very next check.
func (e *Engine) Check(ctx context.Context, req *AccessRequest) (*AccessResult, error) {
	if e.plugins != nil {
		e.plugins.EmitBeforeAccess(ctx, req)
	}

	if _, err := e.storage.GetStore(ctx, req.StoreID); err != nil {
		return nil, mapErr(err, ErrStoreNotFound)
	}
	grants, err := e.storage.GetACL(ctx, req.StoreID)
	if err != nil {
		return nil, mapErr(err, ErrStoreNotFound)
	}

	held := grants[req.Identity]
	result := &AccessResult{Allowed: held.Has(req.Required), Held: held}
	if !result.Allowed {
		result.Reason = fmt.Sprintf("%s lacks %q on %s", req.Identity, (req.Required &^ held).String(), req.StoreID)
	}

	if e.plugins != nil {
		e.plugins.EmitAfterAccess(ctx, req, result)
	}
	return result, nil
}

// gate authorizes a store-scoped operation and records denials in the
// audit trail. Returns ErrStoreNotFound for a missing store and
// ErrPermissionDenied when a required right is missing.
func (e *Engine) gate(ctx context.Context, storeID, identity, op string, required acl.Perms) error {
	result, err := e.Check(ctx, &AccessRequest{StoreID: storeID, Identity: identity, Required: required})
	if err != nil {
		return err
	}
	if !result.Allowed {
		err = fmt.Errorf("%w: %s", ErrPermissionDenied, result.Reason)
		e.audit(ctx, storeID, identity, op, audit.OutcomeDenied, result.Reason)
		return err
	}
	return nil
}

// grantDefault installs the creator's full-rights entry at store
// creation. Defensive: fails if the store already carries any grant.
func (e *Engine) grantDefault(ctx context.Context, storeID, identity string) error {
	grants, err := e.storage.GetACL(ctx, storeID)
	if err != nil {
		return mapErr(err, ErrStoreNotFound)
	}
	if len(grants) > 0 {
		return fmt.Errorf("%w: store %s", ErrACLExists, storeID)
	}

	now := e.now().UTC()
	entry := &acl.Entry{
		StoreID:   storeID,
		Identity:  identity,
		Perms:     acl.PermRead | acl.PermWrite | acl.PermExec,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return mapErr(e.storage.PutACLEntry(ctx, entry), ErrStoreNotFound)
}

// ReadACL returns the full grant snapshot for a store. Requires the
// read right or ownership (the store's creator may always inspect the
// list, even after revoking their own grant).
func (e *Engine) ReadACL(ctx context.Context, identity, storeID string) (*acl.ACL, error) {
	rec, err := e.storage.GetStore(ctx, storeID)
	if err != nil {
		return nil, mapErr(err, ErrStoreNotFound)
	}
	grants, err := e.storage.GetACL(ctx, storeID)
	if err != nil {
		return nil, mapErr(err, ErrStoreNotFound)
	}

	if identity != rec.CreatedBy && !grants[identity].Has(acl.PermRead) {
		reason := fmt.Sprintf("%s lacks %q on %s", identity, "r", storeID)
		e.audit(ctx, storeID, identity, opACLRead, audit.OutcomeDenied, reason)
		return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, reason)
	}

	return &acl.ACL{StoreID: storeID, Grants: grants}, nil
}

// ReplaceACL overwrites a store's entire access list with the supplied
// grant sequence. Requires the execute right. Later grants win for a
// duplicated identity, empty grants are dropped, and nothing from the
// previous list survives: the creator's original grant is gone unless
// the sequence restates it.
func (e *Engine) ReplaceACL(ctx context.Context, identity, storeID string, grants []acl.Grant) error {
	e.locks.lock(storeID)
	defer e.locks.unlock(storeID)

	if err := e.gate(ctx, storeID, identity, opACLReplace, acl.PermExec); err != nil {
		return err
	}

	next := acl.Fold(grants)
	if err := e.storage.ReplaceACL(ctx, storeID, next); err != nil {
		err = mapErr(err, ErrStoreNotFound)
		e.audit(ctx, storeID, identity, opACLReplace, audit.OutcomeError, err.Error())
		return err
	}

	e.audit(ctx, storeID, identity, opACLReplace, audit.OutcomeOK, fmt.Sprintf("%d grants", len(next)))
	if e.plugins != nil {
		e.plugins.EmitACLReplaced(ctx, storeID, next)
	}
	return nil
}

package mongo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/cofferhq/coffer/acl"
	"github.com/cofferhq/coffer/audit"
	"github.com/cofferhq/coffer/id"
	"github.com/cofferhq/coffer/object"
	"github.com/cofferhq/coffer/store"
)

// ──────────────────────────────────────────────────
// Store model
// ──────────────────────────────────────────────────

type storeModel struct {
	grove.BaseModel `grove:"table:coffer_stores"`
	ID              string    `grove:"id,pk"        bson:"_id"`
	CreatedBy       string    `grove:"created_by"   bson:"created_by"`
	CreatedAt       time.Time `grove:"created_at"   bson:"created_at"`
}

func storeToModel(rec *store.Store) *storeModel {
	return &storeModel{
		ID:        rec.ID,
		CreatedBy: rec.CreatedBy,
		CreatedAt: rec.CreatedAt,
	}
}

func storeFromModel(m *storeModel) *store.Store {
	return &store.Store{
		ID:        m.ID,
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt,
	}
}

// ──────────────────────────────────────────────────
// Object model
// ──────────────────────────────────────────────────

type objectModel struct {
	grove.BaseModel `grove:"table:coffer_objects"`
	ID              string    `grove:"id,pk"        bson:"_id"`
	StoreID         string    `grove:"store_id"     bson:"store_id"`
	Data            string    `grove:"data"         bson:"data"`
	CreatedAt       time.Time `grove:"created_at"   bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"   bson:"updated_at"`
}

func objectToModel(o *object.Object) *objectModel {
	return &objectModel{
		ID:        o.ID.String(),
		StoreID:   o.StoreID,
		Data:      string(o.Data),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func objectFromModel(m *objectModel) *object.Object {
	oid, _ := id.ParseObjectID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &object.Object{
		ID:        oid,
		StoreID:   m.StoreID,
		Data:      json.RawMessage(m.Data),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// ACL entry model
// ──────────────────────────────────────────────────

type aclModel struct {
	grove.BaseModel `grove:"table:coffer_acl_entries"`
	StoreID         string    `grove:"store_id,pk"  bson:"store_id"`
	Identity        string    `grove:"identity,pk"  bson:"identity"`
	Perms           string    `grove:"perms"        bson:"perms"`
	CreatedAt       time.Time `grove:"created_at"   bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"   bson:"updated_at"`
}

func aclToModel(e *acl.Entry) *aclModel {
	return &aclModel{
		StoreID:   e.StoreID,
		Identity:  e.Identity,
		Perms:     e.Perms.String(),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func aclPermsFromModel(m *aclModel) (acl.Perms, error) {
	p, err := acl.ParseCompact(m.Perms)
	if err != nil {
		return acl.None, fmt.Errorf("acl entry %s/%s: %w", m.StoreID, m.Identity, err)
	}
	return p, nil
}

// ──────────────────────────────────────────────────
// Audit model
// ──────────────────────────────────────────────────

type auditModel struct {
	grove.BaseModel `grove:"table:coffer_audit"`
	ID              string    `grove:"id,pk"        bson:"_id"`
	StoreID         string    `grove:"store_id"     bson:"store_id"`
	Identity        string    `grove:"identity"     bson:"identity"`
	Op              string    `grove:"op"           bson:"op"`
	Outcome         string    `grove:"outcome"      bson:"outcome"`
	Detail          string    `grove:"detail"       bson:"detail"`
	CreatedAt       time.Time `grove:"created_at"   bson:"created_at"`
}

func auditToModel(e *audit.Entry) *auditModel {
	return &auditModel{
		ID:        e.ID.String(),
		StoreID:   e.StoreID,
		Identity:  e.Identity,
		Op:        e.Op,
		Outcome:   string(e.Outcome),
		Detail:    e.Detail,
		CreatedAt: e.CreatedAt,
	}
}

func auditFromModel(m *auditModel) *audit.Entry {
	aid, _ := id.ParseAuditID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &audit.Entry{
		ID:        aid,
		StoreID:   m.StoreID,
		Identity:  m.Identity,
		Op:        m.Op,
		Outcome:   audit.Outcome(m.Outcome),
		Detail:    m.Detail,
		CreatedAt: m.CreatedAt,
	}
}

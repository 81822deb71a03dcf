package api

import "encoding/json"

// ──────────────────────────────────────────────────
// Store requests
// ──────────────────────────────────────────────────

// CreateStoreRequest is the body for creating a store.
type CreateStoreRequest struct {
	Name string          `json:"name,omitempty" description:"Caller-chosen store id (generated when empty)"`
	Data json.RawMessage `json:"data,omitempty" description:"Optional seed object payload"`
}

// CreateNamedStoreRequest is the body for creating a store under a
// caller-chosen id taken from the path.
type CreateNamedStoreRequest struct {
	Data json.RawMessage `json:"data,omitempty" description:"Optional seed object payload"`
}

// GetStoreRequest is the path parameter for store-scoped routes.
type GetStoreRequest struct {
	StoreID string `path:"storeId" description:"Store id"`
}

// StoreContentsRequest holds parameters for listing a store's objects.
type StoreContentsRequest struct {
	StoreID string `path:"storeId" description:"Store id"`
	Limit   int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset  int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Object requests
// ──────────────────────────────────────────────────

// InsertObjectRequest is the body for inserting an object.
type InsertObjectRequest struct {
	Data json.RawMessage `json:"data" description:"Object payload"`
}

// UpdateObjectRequest is the body for updating an object in place.
type UpdateObjectRequest struct {
	Data json.RawMessage `json:"data" description:"Replacement payload"`
}

// GetObjectRequest holds path parameters for object-scoped routes.
type GetObjectRequest struct {
	StoreID  string `path:"storeId" description:"Store id"`
	ObjectID string `path:"oid" description:"Object id"`
}

// ──────────────────────────────────────────────────
// Permission requests
// ──────────────────────────────────────────────────

// GrantInput pairs an identity with short permission names. Later
// entries win for a duplicated identity.
type GrantInput struct {
	Name  string   `json:"name" description:"Identity"`
	Perms []string `json:"perms" description:"Short permission names (r, w, x)"`
}

// ReplacePermsRequest is the body for replacing a store's access list.
type ReplacePermsRequest struct {
	Perms []GrantInput `json:"perms" description:"Complete replacement grant sequence"`
}

// ──────────────────────────────────────────────────
// Audit requests
// ──────────────────────────────────────────────────

// ListAuditRequest holds query parameters for querying the audit trail.
type ListAuditRequest struct {
	StoreID  string `query:"store_id" description:"Filter by store id"`
	Identity string `query:"identity" description:"Filter by identity"`
	Op       string `query:"op" description:"Filter by operation"`
	Outcome  string `query:"outcome" description:"Filter by outcome (ok, denied, error)"`
	After    string `query:"after" description:"After timestamp (RFC3339)"`
	Before   string `query:"before" description:"Before timestamp (RFC3339)"`
	Limit    int    `query:"limit" description:"Maximum results"`
	Offset   int    `query:"offset" description:"Results to skip"`
}

package api

import "encoding/json"

// CreateStoreResponse returns the new store id and any seeded objects.
type CreateStoreResponse struct {
	ID   string   `json:"id" description:"Store id"`
	OIDs []string `json:"oids" description:"Ids of seeded objects"`
}

// DeleteStoreResponse echoes the deleted store id.
type DeleteStoreResponse struct {
	ID string `json:"id" description:"Deleted store id"`
}

// ObjectIDResponse returns an object id.
type ObjectIDResponse struct {
	OID string `json:"oid" description:"Object id"`
}

// ObjectResponse pairs an object id with its payload.
type ObjectResponse struct {
	OID  string          `json:"oid" description:"Object id"`
	Data json.RawMessage `json:"data" description:"Object payload"`
}

// GrantOutput pairs an identity with its short permission names.
type GrantOutput struct {
	Name  string   `json:"name" description:"Identity"`
	Perms []string `json:"perms" description:"Short permission names (r, w, x)"`
}

// PermsResponse is a store's full access list snapshot.
type PermsResponse struct {
	Name  string        `json:"name" description:"Store id"`
	Perms []GrantOutput `json:"perms" description:"Grants per identity"`
}

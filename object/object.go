// Package object defines the Object entity and its store interface.
package object

import (
	"encoding/json"
	"time"

	"github.com/cofferhq/coffer/id"
)

// Object is one opaque payload held inside a store. The engine never
// inspects Data beyond requiring it to be valid JSON.
type Object struct {
	StoreID   string          `json:"store_id" db:"store_id"`
	ID        id.ObjectID     `json:"id" db:"id"`
	Data      json.RawMessage `json:"data" db:"data"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// ListFilter contains filters for listing objects within a store.
type ListFilter struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

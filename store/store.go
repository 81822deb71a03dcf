// Package store defines the Store entity and its registry interface.
//
// A store is a named container of objects. Its id is either a caller-chosen
// name or a generated "store_" TypeID; either way it is carried as a plain
// string because the two forms share every code path.
package store

import "time"

// Store is the registry record for one object container.
type Store struct {
	ID        string    `json:"id" db:"id"`
	CreatedBy string    `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ListFilter contains filters for listing stores.
type ListFilter struct {
	CreatedBy string `json:"created_by,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

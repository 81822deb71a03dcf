// Package audit defines the engine's audit trail Entry entity.
package audit

import (
	"time"

	"github.com/cofferhq/coffer/id"
)

// Outcome classifies how an audited operation ended.
type Outcome string

// Outcome values.
const (
	OutcomeOK     Outcome = "ok"
	OutcomeDenied Outcome = "denied"
	OutcomeError  Outcome = "error"
)

// Entry is a single audit record. One is appended for every engine
// mutation and every denied access.
type Entry struct {
	ID        id.AuditID `json:"id" db:"id"`
	StoreID   string     `json:"store_id" db:"store_id"`
	Identity  string     `json:"identity" db:"identity"`
	Op        string     `json:"op" db:"op"`
	Outcome   Outcome    `json:"outcome" db:"outcome"`
	Detail    string     `json:"detail,omitempty" db:"detail"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// QueryFilter contains filters for querying the audit trail.
type QueryFilter struct {
	StoreID  string     `json:"store_id,omitempty"`
	Identity string     `json:"identity,omitempty"`
	Op       string     `json:"op,omitempty"`
	Outcome  Outcome    `json:"outcome,omitempty"`
	After    *time.Time `json:"after,omitempty"`
	Before   *time.Time `json:"before,omitempty"`
	Limit    int        `json:"limit,omitempty"`
	Offset   int        `json:"offset,omitempty"`
}

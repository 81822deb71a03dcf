package audit

import (
	"context"
	"time"
)

// Store defines persistence operations for the audit trail.
type Store interface {
	// AppendAudit persists a new audit entry.
	AppendAudit(ctx context.Context, e *Entry) error

	// ListAudits returns audit entries matching the filter, newest first.
	ListAudits(ctx context.Context, filter *QueryFilter) ([]*Entry, error)

	// CountAudits returns the number of entries matching the filter.
	CountAudits(ctx context.Context, filter *QueryFilter) (int64, error)

	// PurgeAudits removes entries older than the given time and returns
	// how many were removed.
	PurgeAudits(ctx context.Context, before time.Time) (int64, error)
}

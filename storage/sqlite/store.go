// Package sqlite provides a SQLite implementation of the Coffer composite
// store via the grove ORM.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/cofferhq/coffer/acl"
	"github.com/cofferhq/coffer/audit"
	"github.com/cofferhq/coffer/id"
	"github.com/cofferhq/coffer/object"
	"github.com/cofferhq/coffer/storage"
	"github.com/cofferhq/coffer/store"
)

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// Store is a SQLite implementation of the composite Coffer store.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("coffer/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("coffer/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// ──────────────────────────────────────────────────
// Store Registry
// ──────────────────────────────────────────────────

func (s *Store) PutStore(ctx context.Context, rec *store.Store) error {
	// Callers serialize creates per store id, so check-then-insert is safe.
	existing := new(storeModel)
	err := s.sdb.NewSelect(existing).Where("id = ?", rec.ID).Scan(ctx)
	if err == nil {
		return fmt.Errorf("store %q: %w", rec.ID, storage.ErrDuplicate)
	}
	if !isNoRows(err) {
		return fmt.Errorf("coffer: put store: %w", err)
	}
	if _, err := s.sdb.NewInsert(storeToModel(rec)).Exec(ctx); err != nil {
		return fmt.Errorf("coffer: put store: %w", err)
	}
	return nil
}

func (s *Store) GetStore(ctx context.Context, storeID string) (*store.Store, error) {
	m := new(storeModel)
	err := s.sdb.NewSelect(m).Where("id = ?", storeID).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("store %q: %w", storeID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("coffer: get store: %w", err)
	}
	return storeFromModel(m), nil
}

func (s *Store) DeleteStore(ctx context.Context, storeID string) error {
	_, err := s.sdb.NewDelete((*storeModel)(nil)).
		Where("id = ?", storeID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("coffer: delete store: %w", err)
	}
	return nil
}

func (s *Store) ListStores(ctx context.Context, filter *store.ListFilter) ([]*store.Store, error) {
	var models []storeModel
	q := s.sdb.NewSelect(&models).OrderExpr("id ASC")
	if filter != nil {
		if filter.CreatedBy != "" {
			q = q.Where("created_by = ?", filter.CreatedBy)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("coffer: list stores: %w", err)
	}
	result := make([]*store.Store, len(models))
	for i := range models {
		result[i] = storeFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountStores(ctx context.Context, filter *store.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*storeModel)(nil))
	if filter != nil && filter.CreatedBy != "" {
		q = q.Where("created_by = ?", filter.CreatedBy)
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("coffer: count stores: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Object Store
// ──────────────────────────────────────────────────

func (s *Store) PutObject(ctx context.Context, o *object.Object) error {
	if _, err := s.sdb.NewInsert(objectToModel(o)).Exec(ctx); err != nil {
		return fmt.Errorf("coffer: put object: %w", err)
	}
	return nil
}

func (s *Store) GetObject(ctx context.Context, storeID string, objectID id.ObjectID) (*object.Object, error) {
	m := new(objectModel)
	err := s.sdb.NewSelect(m).
		Where("store_id = ?", storeID).
		Where("id = ?", objectID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("object %s: %w", objectID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("coffer: get object: %w", err)
	}
	return objectFromModel(m), nil
}

func (s *Store) UpdateObject(ctx context.Context, o *object.Object) error {
	existing := new(objectModel)
	err := s.sdb.NewSelect(existing).
		Where("store_id = ?", o.StoreID).
		Where("id = ?", o.ID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return fmt.Errorf("object %s: %w", o.ID, storage.ErrNotFound)
		}
		return fmt.Errorf("coffer: update object: %w", err)
	}
	if _, err := s.sdb.NewUpdate(objectToModel(o)).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("coffer: update object: %w", err)
	}
	return nil
}

func (s *Store) DeleteObject(ctx context.Context, storeID string, objectID id.ObjectID) error {
	_, err := s.sdb.NewDelete((*objectModel)(nil)).
		Where("store_id = ?", storeID).
		Where("id = ?", objectID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("coffer: delete object: %w", err)
	}
	return nil
}

func (s *Store) ListObjects(ctx context.Context, storeID string, filter *object.ListFilter) ([]*object.Object, error) {
	var models []objectModel
	q := s.sdb.NewSelect(&models).
		Where("store_id = ?", storeID).
		OrderExpr("id ASC")
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("coffer: list objects: %w", err)
	}
	result := make([]*object.Object, len(models))
	for i := range models {
		result[i] = objectFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountObjects(ctx context.Context, storeID string) (int64, error) {
	count, err := s.sdb.NewSelect((*objectModel)(nil)).
		Where("store_id = ?", storeID).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("coffer: count objects: %w", err)
	}
	return count, nil
}

func (s *Store) DeleteStoreObjects(ctx context.Context, storeID string) (int64, error) {
	count, err := s.CountObjects(ctx, storeID)
	if err != nil {
		return 0, err
	}
	_, err = s.sdb.NewDelete((*objectModel)(nil)).
		Where("store_id = ?", storeID).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("coffer: delete store objects: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// ACL Store
// ──────────────────────────────────────────────────

func (s *Store) PutACLEntry(ctx context.Context, e *acl.Entry) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("coffer: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	_, err = tx.NewDelete((*aclModel)(nil)).
		Where("store_id = ?", e.StoreID).
		Where("identity = ?", e.Identity).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("coffer: put acl entry: %w", err)
	}

	if !e.Perms.IsEmpty() {
		now := time.Now().UTC()
		m := aclToModel(e)
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		m.UpdatedAt = now
		if _, err := tx.NewInsert(m).Exec(ctx); err != nil {
			return fmt.Errorf("coffer: put acl entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("coffer: commit tx: %w", err)
	}
	return nil
}

func (s *Store) GetACL(ctx context.Context, storeID string) (map[string]acl.Perms, error) {
	var models []aclModel
	err := s.sdb.NewSelect(&models).
		Where("store_id = ?", storeID).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("coffer: get acl: %w", err)
	}
	result := make(map[string]acl.Perms, len(models))
	for i := range models {
		p, err := aclPermsFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("coffer: get acl: %w", err)
		}
		result[models[i].Identity] = p
	}
	return result, nil
}

func (s *Store) ReplaceACL(ctx context.Context, storeID string, grants map[string]acl.Perms) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("coffer: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	_, err = tx.NewDelete((*aclModel)(nil)).
		Where("store_id = ?", storeID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("coffer: replace acl: %w", err)
	}

	now := time.Now().UTC()
	models := make([]aclModel, 0, len(grants))
	for identity, perms := range grants {
		if perms.IsEmpty() {
			continue
		}
		models = append(models, aclModel{
			StoreID:   storeID,
			Identity:  identity,
			Perms:     perms.String(),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if len(models) > 0 {
		if _, err := tx.NewInsert(&models).Exec(ctx); err != nil {
			return fmt.Errorf("coffer: replace acl: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("coffer: commit tx: %w", err)
	}
	return nil
}

func (s *Store) DeleteACL(ctx context.Context, storeID string) error {
	_, err := s.sdb.NewDelete((*aclModel)(nil)).
		Where("store_id = ?", storeID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("coffer: delete acl: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Audit Store
// ──────────────────────────────────────────────────

func (s *Store) AppendAudit(ctx context.Context, e *audit.Entry) error {
	if _, err := s.sdb.NewInsert(auditToModel(e)).Exec(ctx); err != nil {
		return fmt.Errorf("coffer: append audit: %w", err)
	}
	return nil
}

func (s *Store) ListAudits(ctx context.Context, filter *audit.QueryFilter) ([]*audit.Entry, error) {
	var models []auditModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at DESC, id DESC")
	if filter != nil {
		if filter.StoreID != "" {
			q = q.Where("store_id = ?", filter.StoreID)
		}
		if filter.Identity != "" {
			q = q.Where("identity = ?", filter.Identity)
		}
		if filter.Op != "" {
			q = q.Where("op = ?", filter.Op)
		}
		if filter.Outcome != "" {
			q = q.Where("outcome = ?", string(filter.Outcome))
		}
		if filter.After != nil {
			q = q.Where("created_at >= ?", *filter.After)
		}
		if filter.Before != nil {
			q = q.Where("created_at <= ?", *filter.Before)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("coffer: list audits: %w", err)
	}
	result := make([]*audit.Entry, len(models))
	for i := range models {
		result[i] = auditFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountAudits(ctx context.Context, filter *audit.QueryFilter) (int64, error) {
	q := s.sdb.NewSelect((*auditModel)(nil))
	if filter != nil {
		if filter.StoreID != "" {
			q = q.Where("store_id = ?", filter.StoreID)
		}
		if filter.Identity != "" {
			q = q.Where("identity = ?", filter.Identity)
		}
		if filter.Op != "" {
			q = q.Where("op = ?", filter.Op)
		}
		if filter.Outcome != "" {
			q = q.Where("outcome = ?", string(filter.Outcome))
		}
		if filter.After != nil {
			q = q.Where("created_at >= ?", *filter.After)
		}
		if filter.Before != nil {
			q = q.Where("created_at <= ?", *filter.Before)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("coffer: count audits: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeAudits(ctx context.Context, before time.Time) (int64, error) {
	count, err := s.sdb.NewSelect((*auditModel)(nil)).
		Where("created_at < ?", before).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("coffer: purge audits: %w", err)
	}
	_, err = s.sdb.NewDelete((*auditModel)(nil)).
		Where("created_at < ?", before).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("coffer: purge audits: %w", err)
	}
	return count, nil
}

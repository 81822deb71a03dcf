// Package mongo provides a MongoDB implementation of the Coffer composite
// store via the grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/cofferhq/coffer/acl"
	"github.com/cofferhq/coffer/audit"
	"github.com/cofferhq/coffer/id"
	"github.com/cofferhq/coffer/object"
	"github.com/cofferhq/coffer/storage"
	"github.com/cofferhq/coffer/store"
)

// Collection name constants.
const (
	colStores     = "coffer_stores"
	colObjects    = "coffer_objects"
	colACLEntries = "coffer_acl_entries"
	colAudit      = "coffer_audit"
)

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// Store is a MongoDB implementation of the composite Coffer store.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Migrate creates indexes for all coffer collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()
	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("coffer/mongo: migrate %s indexes: %w", col, err)
		}
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

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all coffer collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colStores: {
			{Keys: bson.D{{Key: "created_by", Value: 1}}},
		},
		colObjects: {
			{Keys: bson.D{{Key: "store_id", Value: 1}, {Key: "_id", Value: 1}}},
		},
		colACLEntries: {
			{
				Keys:    bson.D{{Key: "store_id", Value: 1}, {Key: "identity", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "identity", Value: 1}}},
		},
		colAudit: {
			{Keys: bson.D{{Key: "store_id", Value: 1}}},
			{Keys: bson.D{{Key: "identity", Value: 1}}},
			{Keys: bson.D{{Key: "outcome", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
	}
}

// ──────────────────────────────────────────────────
// Store Registry
// ──────────────────────────────────────────────────

func (s *Store) PutStore(ctx context.Context, rec *store.Store) error {
	m := storeToModel(rec)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("store %q: %w", rec.ID, storage.ErrDuplicate)
		}
		return fmt.Errorf("coffer: put store: %w", err)
	}
	return nil
}

func (s *Store) GetStore(ctx context.Context, storeID string) (*store.Store, error) {
	var m storeModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": storeID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("store %q: %w", storeID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("coffer: get store: %w", err)
	}
	return storeFromModel(&m), nil
}

func (s *Store) DeleteStore(ctx context.Context, storeID string) error {
	_, err := s.mdb.NewDelete((*storeModel)(nil)).
		Filter(bson.M{"_id": storeID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("coffer: delete store: %w", err)
	}
	return nil
}

func (s *Store) ListStores(ctx context.Context, filter *store.ListFilter) ([]*store.Store, error) {
	var models []storeModel
	f := bson.M{}
	if filter != nil && filter.CreatedBy != "" {
		f["created_by"] = filter.CreatedBy
	}
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "_id", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	f := bson.M{}
	if filter != nil && filter.CreatedBy != "" {
		f["created_by"] = filter.CreatedBy
	}
	count, err := s.mdb.NewFind((*storeModel)(nil)).
		Filter(f).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("coffer: count stores: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Object Store
// ──────────────────────────────────────────────────

func (s *Store) PutObject(ctx context.Context, o *object.Object) error {
	m := objectToModel(o)
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("object %s: %w", o.ID, storage.ErrDuplicate)
		}
		return fmt.Errorf("coffer: put object: %w", err)
	}
	return nil
}

func (s *Store) GetObject(ctx context.Context, storeID string, objectID id.ObjectID) (*object.Object, error) {
	var m objectModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": objectID.String(), "store_id": storeID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("object %s: %w", objectID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("coffer: get object: %w", err)
	}
	return objectFromModel(&m), nil
}

func (s *Store) UpdateObject(ctx context.Context, o *object.Object) error {
	m := objectToModel(o)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID, "store_id": m.StoreID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("coffer: update object: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("object %s: %w", o.ID, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteObject(ctx context.Context, storeID string, objectID id.ObjectID) error {
	_, err := s.mdb.NewDelete((*objectModel)(nil)).
		Filter(bson.M{"_id": objectID.String(), "store_id": storeID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("coffer: delete object: %w", err)
	}
	return nil
}

func (s *Store) ListObjects(ctx context.Context, storeID string, filter *object.ListFilter) ([]*object.Object, error) {
	var models []objectModel
	q := s.mdb.NewFind(&models).
		Filter(bson.M{"store_id": storeID}).
		Sort(bson.D{{Key: "_id", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	count, err := s.mdb.NewFind((*objectModel)(nil)).
		Filter(bson.M{"store_id": storeID}).
		Count(ctx)
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
	_, err = s.mdb.NewDelete((*objectModel)(nil)).
		Many().
		Filter(bson.M{"store_id": storeID}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("coffer: delete store objects: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// ACL Store
// ──────────────────────────────────────────────────

func (s *Store) PutACLEntry(ctx context.Context, e *acl.Entry) error {
	_, err := s.mdb.NewDelete((*aclModel)(nil)).
		Filter(bson.M{"store_id": e.StoreID, "identity": e.Identity}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("coffer: put acl entry: %w", err)
	}
	if e.Perms.IsEmpty() {
		return nil
	}
	t := now()
	m := aclToModel(e)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = t
	}
	m.UpdatedAt = t
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("coffer: put acl entry: %w", err)
	}
	return nil
}

func (s *Store) GetACL(ctx context.Context, storeID string) (map[string]acl.Perms, error) {
	var models []aclModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"store_id": storeID}).
		Scan(ctx)
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
	_, err := s.mdb.NewDelete((*aclModel)(nil)).
		Many().
		Filter(bson.M{"store_id": storeID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("coffer: replace acl: %w", err)
	}

	t := now()
	models := make([]aclModel, 0, len(grants))
	for identity, perms := range grants {
		if perms.IsEmpty() {
			continue
		}
		models = append(models, aclModel{
			StoreID:   storeID,
			Identity:  identity,
			Perms:     perms.String(),
			CreatedAt: t,
			UpdatedAt: t,
		})
	}
	if len(models) > 0 {
		if _, err := s.mdb.NewInsert(&models).Exec(ctx); err != nil {
			return fmt.Errorf("coffer: replace acl: %w", err)
		}
	}
	return nil
}

func (s *Store) DeleteACL(ctx context.Context, storeID string) error {
	_, err := s.mdb.NewDelete((*aclModel)(nil)).
		Many().
		Filter(bson.M{"store_id": storeID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("coffer: delete acl: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Audit Store
// ──────────────────────────────────────────────────

func (s *Store) AppendAudit(ctx context.Context, e *audit.Entry) error {
	if _, err := s.mdb.NewInsert(auditToModel(e)).Exec(ctx); err != nil {
		return fmt.Errorf("coffer: append audit: %w", err)
	}
	return nil
}

func (s *Store) ListAudits(ctx context.Context, filter *audit.QueryFilter) ([]*audit.Entry, error) {
	var models []auditModel
	q := s.mdb.NewFind(&models).
		Filter(auditFilterDoc(filter)).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
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
	count, err := s.mdb.NewFind((*auditModel)(nil)).
		Filter(auditFilterDoc(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("coffer: count audits: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeAudits(ctx context.Context, before time.Time) (int64, error) {
	f := bson.M{"created_at": bson.M{"$lt": before}}
	count, err := s.mdb.NewFind((*auditModel)(nil)).
		Filter(f).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("coffer: purge audits: %w", err)
	}
	_, err = s.mdb.NewDelete((*auditModel)(nil)).
		Many().
		Filter(f).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("coffer: purge audits: %w", err)
	}
	return count, nil
}

func auditFilterDoc(filter *audit.QueryFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.StoreID != "" {
		f["store_id"] = filter.StoreID
	}
	if filter.Identity != "" {
		f["identity"] = filter.Identity
	}
	if filter.Op != "" {
		f["op"] = filter.Op
	}
	if filter.Outcome != "" {
		f["outcome"] = string(filter.Outcome)
	}
	created := bson.M{}
	if filter.After != nil {
		created["$gte"] = *filter.After
	}
	if filter.Before != nil {
		created["$lte"] = *filter.Before
	}
	if len(created) > 0 {
		f["created_at"] = created
	}
	return f
}

// Package redis provides a Redis implementation of the Coffer composite
// store on go-redis. Entities are stored as JSON values in hashes keyed
// per store; the audit trail is a list with newest entries first.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cofferhq/coffer/acl"
	"github.com/cofferhq/coffer/audit"
	"github.com/cofferhq/coffer/id"
	"github.com/cofferhq/coffer/object"
	"github.com/cofferhq/coffer/storage"
	"github.com/cofferhq/coffer/store"
)

// Key layout.
const (
	keyStores = "coffer:stores"     // set of store ids
	keyAudit  = "coffer:audit"      // list of JSON audit entries, newest first
	pfxStore  = "coffer:store:"     // + storeID -> JSON store record
	pfxObject = "coffer:objects:"   // + storeID -> hash objectID -> JSON object
	pfxACL    = "coffer:acl:"       // + storeID -> hash identity -> compact perms
)

// Compile-time interface check.
var _ storage.Store = (*Store)(nil)

// Store is a Redis implementation of the composite Coffer store.
type Store struct {
	rdb redis.UniversalClient
}

// New creates a new Redis store.
func New(rdb redis.UniversalClient) *Store {
	return &Store{rdb: rdb}
}

// Migrate is a no-op for the Redis store; there is no schema to create.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// ──────────────────────────────────────────────────
// Store Registry
// ──────────────────────────────────────────────────

func (s *Store) PutStore(ctx context.Context, rec *store.Store) error {
	added, err := s.rdb.SAdd(ctx, keyStores, rec.ID).Result()
	if err != nil {
		return fmt.Errorf("coffer: put store: %w", err)
	}
	if added == 0 {
		return fmt.Errorf("store %q: %w", rec.ID, storage.ErrDuplicate)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("coffer: put store: %w", err)
	}
	if err := s.rdb.Set(ctx, pfxStore+rec.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("coffer: put store: %w", err)
	}
	return nil
}

func (s *Store) GetStore(ctx context.Context, storeID string) (*store.Store, error) {
	data, err := s.rdb.Get(ctx, pfxStore+storeID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("store %q: %w", storeID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("coffer: get store: %w", err)
	}
	rec := new(store.Store)
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("coffer: get store: %w", err)
	}
	return rec, nil
}

func (s *Store) DeleteStore(ctx context.Context, storeID string) error {
	pipe := s.rdb.TxPipeline()
	pipe.SRem(ctx, keyStores, storeID)
	pipe.Del(ctx, pfxStore+storeID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("coffer: delete store: %w", err)
	}
	return nil
}

func (s *Store) ListStores(ctx context.Context, filter *store.ListFilter) ([]*store.Store, error) {
	ids, err := s.rdb.SMembers(ctx, keyStores).Result()
	if err != nil {
		return nil, fmt.Errorf("coffer: list stores: %w", err)
	}
	sort.Strings(ids)

	result := make([]*store.Store, 0, len(ids))
	for _, storeID := range ids {
		rec, err := s.GetStore(ctx, storeID)
		if err != nil {
			// Record deleted between SMEMBERS and GET.
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if filter != nil && filter.CreatedBy != "" && rec.CreatedBy != filter.CreatedBy {
			continue
		}
		result = append(result, rec)
	}
	return applyPagination(result, paginationOpts(filter)), nil
}

func (s *Store) CountStores(ctx context.Context, filter *store.ListFilter) (int64, error) {
	if filter == nil || filter.CreatedBy == "" {
		count, err := s.rdb.SCard(ctx, keyStores).Result()
		if err != nil {
			return 0, fmt.Errorf("coffer: count stores: %w", err)
		}
		return count, nil
	}
	list, err := s.ListStores(ctx, &store.ListFilter{CreatedBy: filter.CreatedBy})
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

// ──────────────────────────────────────────────────
// Object Store
// ──────────────────────────────────────────────────

func (s *Store) PutObject(ctx context.Context, o *object.Object) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("coffer: put object: %w", err)
	}
	set, err := s.rdb.HSetNX(ctx, pfxObject+o.StoreID, o.ID.String(), data).Result()
	if err != nil {
		return fmt.Errorf("coffer: put object: %w", err)
	}
	if !set {
		return fmt.Errorf("object %s: %w", o.ID, storage.ErrDuplicate)
	}
	return nil
}

func (s *Store) GetObject(ctx context.Context, storeID string, objectID id.ObjectID) (*object.Object, error) {
	data, err := s.rdb.HGet(ctx, pfxObject+storeID, objectID.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("object %s: %w", objectID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("coffer: get object: %w", err)
	}
	o := new(object.Object)
	if err := json.Unmarshal(data, o); err != nil {
		return nil, fmt.Errorf("coffer: get object: %w", err)
	}
	return o, nil
}

func (s *Store) UpdateObject(ctx context.Context, o *object.Object) error {
	exists, err := s.rdb.HExists(ctx, pfxObject+o.StoreID, o.ID.String()).Result()
	if err != nil {
		return fmt.Errorf("coffer: update object: %w", err)
	}
	if !exists {
		return fmt.Errorf("object %s: %w", o.ID, storage.ErrNotFound)
	}
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("coffer: update object: %w", err)
	}
	if err := s.rdb.HSet(ctx, pfxObject+o.StoreID, o.ID.String(), data).Err(); err != nil {
		return fmt.Errorf("coffer: update object: %w", err)
	}
	return nil
}

func (s *Store) DeleteObject(ctx context.Context, storeID string, objectID id.ObjectID) error {
	if err := s.rdb.HDel(ctx, pfxObject+storeID, objectID.String()).Err(); err != nil {
		return fmt.Errorf("coffer: delete object: %w", err)
	}
	return nil
}

func (s *Store) ListObjects(ctx context.Context, storeID string, filter *object.ListFilter) ([]*object.Object, error) {
	fields, err := s.rdb.HGetAll(ctx, pfxObject+storeID).Result()
	if err != nil {
		return nil, fmt.Errorf("coffer: list objects: %w", err)
	}
	result := make([]*object.Object, 0, len(fields))
	for _, raw := range fields {
		o := new(object.Object)
		if err := json.Unmarshal([]byte(raw), o); err != nil {
			return nil, fmt.Errorf("coffer: list objects: %w", err)
		}
		result = append(result, o)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	return applyPagination(result, paginationOptsObj(filter)), nil
}

func (s *Store) CountObjects(ctx context.Context, storeID string) (int64, error) {
	count, err := s.rdb.HLen(ctx, pfxObject+storeID).Result()
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
	if err := s.rdb.Del(ctx, pfxObject+storeID).Err(); err != nil {
		return 0, fmt.Errorf("coffer: delete store objects: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// ACL Store
// ──────────────────────────────────────────────────

func (s *Store) PutACLEntry(ctx context.Context, e *acl.Entry) error {
	if e.Perms.IsEmpty() {
		if err := s.rdb.HDel(ctx, pfxACL+e.StoreID, e.Identity).Err(); err != nil {
			return fmt.Errorf("coffer: put acl entry: %w", err)
		}
		return nil
	}
	if err := s.rdb.HSet(ctx, pfxACL+e.StoreID, e.Identity, e.Perms.String()).Err(); err != nil {
		return fmt.Errorf("coffer: put acl entry: %w", err)
	}
	return nil
}

func (s *Store) GetACL(ctx context.Context, storeID string) (map[string]acl.Perms, error) {
	fields, err := s.rdb.HGetAll(ctx, pfxACL+storeID).Result()
	if err != nil {
		return nil, fmt.Errorf("coffer: get acl: %w", err)
	}
	result := make(map[string]acl.Perms, len(fields))
	for identity, compact := range fields {
		p, err := acl.ParseCompact(compact)
		if err != nil {
			return nil, fmt.Errorf("coffer: get acl: %w", err)
		}
		result[identity] = p
	}
	return result, nil
}

func (s *Store) ReplaceACL(ctx context.Context, storeID string, grants map[string]acl.Perms) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, pfxACL+storeID)
	for identity, perms := range grants {
		if perms.IsEmpty() {
			continue
		}
		pipe.HSet(ctx, pfxACL+storeID, identity, perms.String())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("coffer: replace acl: %w", err)
	}
	return nil
}

func (s *Store) DeleteACL(ctx context.Context, storeID string) error {
	if err := s.rdb.Del(ctx, pfxACL+storeID).Err(); err != nil {
		return fmt.Errorf("coffer: delete acl: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Audit Store
// ──────────────────────────────────────────────────

func (s *Store) AppendAudit(ctx context.Context, e *audit.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("coffer: append audit: %w", err)
	}
	if err := s.rdb.LPush(ctx, keyAudit, data).Err(); err != nil {
		return fmt.Errorf("coffer: append audit: %w", err)
	}
	return nil
}

func (s *Store) ListAudits(ctx context.Context, filter *audit.QueryFilter) ([]*audit.Entry, error) {
	entries, err := s.readAudits(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]*audit.Entry, 0, len(entries))
	for _, e := range entries {
		if !auditMatches(e, filter) {
			continue
		}
		result = append(result, e)
	}
	return applyPagination(result, paginationOptsAudit(filter)), nil
}

func (s *Store) CountAudits(ctx context.Context, filter *audit.QueryFilter) (int64, error) {
	entries, err := s.readAudits(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	for _, e := range entries {
		if auditMatches(e, filter) {
			count++
		}
	}
	return count, nil
}

func (s *Store) PurgeAudits(ctx context.Context, before time.Time) (int64, error) {
	entries, err := s.readAudits(ctx)
	if err != nil {
		return 0, err
	}
	kept := make([]any, 0, len(entries))
	var purged int64
	// Entries are newest first; re-push oldest first to preserve order.
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].CreatedAt.Before(before) {
			purged++
			continue
		}
		data, err := json.Marshal(entries[i])
		if err != nil {
			return 0, fmt.Errorf("coffer: purge audits: %w", err)
		}
		kept = append(kept, data)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, keyAudit)
	if len(kept) > 0 {
		pipe.LPush(ctx, keyAudit, kept...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("coffer: purge audits: %w", err)
	}
	return purged, nil
}

func (s *Store) readAudits(ctx context.Context) ([]*audit.Entry, error) {
	raw, err := s.rdb.LRange(ctx, keyAudit, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("coffer: read audits: %w", err)
	}
	entries := make([]*audit.Entry, 0, len(raw))
	for _, item := range raw {
		e := new(audit.Entry)
		if err := json.Unmarshal([]byte(item), e); err != nil {
			return nil, fmt.Errorf("coffer: read audits: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func auditMatches(e *audit.Entry, filter *audit.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.StoreID != "" && e.StoreID != filter.StoreID {
		return false
	}
	if filter.Identity != "" && e.Identity != filter.Identity {
		return false
	}
	if filter.Op != "" && e.Op != filter.Op {
		return false
	}
	if filter.Outcome != "" && e.Outcome != filter.Outcome {
		return false
	}
	if filter.After != nil && e.CreatedAt.Before(*filter.After) {
		return false
	}
	if filter.Before != nil && e.CreatedAt.After(*filter.Before) {
		return false
	}
	return true
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

type pagOpts struct{ limit, offset int }

func paginationOpts(f *store.ListFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func paginationOptsObj(f *object.ListFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func paginationOptsAudit(f *audit.QueryFilter) pagOpts {
	if f == nil {
		return pagOpts{}
	}
	return pagOpts{limit: f.Limit, offset: f.Offset}
}

func applyPagination[T any](items []*T, p pagOpts) []*T {
	if p.offset > 0 && p.offset < len(items) {
		items = items[p.offset:]
	} else if p.offset >= len(items) && p.offset > 0 {
		return nil
	}
	if p.limit > 0 && p.limit < len(items) {
		items = items[:p.limit]
	}
	return items
}

// Package memory provides an in-memory implementation of the Coffer
// composite store. It is intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cofferhq/coffer/acl"
	"github.com/cofferhq/coffer/audit"
	"github.com/cofferhq/coffer/id"
	"github.com/cofferhq/coffer/object"
	"github.com/cofferhq/coffer/storage"
	"github.com/cofferhq/coffer/store"
)

// Compile-time interface checks.
var (
	_ store.Registry = (*Store)(nil)
	_ object.Store   = (*Store)(nil)
	_ acl.Store      = (*Store)(nil)
	_ audit.Store    = (*Store)(nil)
	_ storage.Store  = (*Store)(nil)
)

// Store is a thread-safe in-memory store for all Coffer entities.
type Store struct {
	mu sync.RWMutex

	stores  map[string]*store.Store
	objects map[string]map[string]*object.Object // storeID -> objectID -> object
	grants  map[string]map[string]acl.Perms      // storeID -> identity -> perms
	audits  []*audit.Entry
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		stores:  make(map[string]*store.Store),
		objects: make(map[string]map[string]*object.Object),
		grants:  make(map[string]map[string]acl.Perms),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Store Registry
// ──────────────────────────────────────────────────

func (s *Store) PutStore(_ context.Context, rec *store.Store) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stores[rec.ID]; ok {
		return fmt.Errorf("store %q: %w", rec.ID, storage.ErrDuplicate)
	}
	s.stores[rec.ID] = copyStore(rec)
	return nil
}

func (s *Store) GetStore(_ context.Context, storeID string) (*store.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.stores[storeID]
	if !ok {
		return nil, fmt.Errorf("store %q: %w", storeID, storage.ErrNotFound)
	}
	return copyStore(rec), nil
}

func (s *Store) DeleteStore(_ context.Context, storeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stores, storeID)
	return nil
}

func (s *Store) ListStores(_ context.Context, filter *store.ListFilter) ([]*store.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*store.Store, 0, len(s.stores))
	for _, rec := range s.stores {
		if filter != nil && filter.CreatedBy != "" && rec.CreatedBy != filter.CreatedBy {
			continue
		}
		result = append(result, copyStore(rec))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return applyPagination(result, paginationOpts(filter)), nil
}

func (s *Store) CountStores(ctx context.Context, filter *store.ListFilter) (int64, error) {
	list, err := s.ListStores(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

// ──────────────────────────────────────────────────
// Object Store
// ──────────────────────────────────────────────────

func (s *Store) PutObject(_ context.Context, o *object.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects[o.StoreID] == nil {
		s.objects[o.StoreID] = make(map[string]*object.Object)
	}
	if _, ok := s.objects[o.StoreID][o.ID.String()]; ok {
		return fmt.Errorf("object %s: %w", o.ID, storage.ErrDuplicate)
	}
	s.objects[o.StoreID][o.ID.String()] = copyObject(o)
	return nil
}

func (s *Store) GetObject(_ context.Context, storeID string, objectID id.ObjectID) (*object.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[storeID][objectID.String()]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", objectID, storage.ErrNotFound)
	}
	return copyObject(o), nil
}

func (s *Store) UpdateObject(_ context.Context, o *object.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[o.StoreID][o.ID.String()]; !ok {
		return fmt.Errorf("object %s: %w", o.ID, storage.ErrNotFound)
	}
	s.objects[o.StoreID][o.ID.String()] = copyObject(o)
	return nil
}

func (s *Store) DeleteObject(_ context.Context, storeID string, objectID id.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if objs, ok := s.objects[storeID]; ok {
		delete(objs, objectID.String())
	}
	return nil
}

func (s *Store) ListObjects(_ context.Context, storeID string, filter *object.ListFilter) ([]*object.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objs := s.objects[storeID]
	result := make([]*object.Object, 0, len(objs))
	for _, o := range objs {
		result = append(result, copyObject(o))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	return applyPagination(result, paginationOptsObj(filter)), nil
}

func (s *Store) CountObjects(_ context.Context, storeID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.objects[storeID])), nil
}

func (s *Store) DeleteStoreObjects(_ context.Context, storeID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := int64(len(s.objects[storeID]))
	delete(s.objects, storeID)
	return count, nil
}

// ──────────────────────────────────────────────────
// ACL Store
// ──────────────────────────────────────────────────

func (s *Store) PutACLEntry(_ context.Context, e *acl.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Perms.IsEmpty() {
		if g, ok := s.grants[e.StoreID]; ok {
			delete(g, e.Identity)
		}
		return nil
	}
	if s.grants[e.StoreID] == nil {
		s.grants[e.StoreID] = make(map[string]acl.Perms)
	}
	s.grants[e.StoreID][e.Identity] = e.Perms
	return nil
}

func (s *Store) GetACL(_ context.Context, storeID string) (map[string]acl.Perms, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]acl.Perms, len(s.grants[storeID]))
	for identity, perms := range s.grants[storeID] {
		result[identity] = perms
	}
	return result, nil
}

func (s *Store) ReplaceACL(_ context.Context, storeID string, grants map[string]acl.Perms) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]acl.Perms, len(grants))
	for identity, perms := range grants {
		if perms.IsEmpty() {
			continue
		}
		next[identity] = perms
	}
	s.grants[storeID] = next
	return nil
}

func (s *Store) DeleteACL(_ context.Context, storeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, storeID)
	return nil
}

// ──────────────────────────────────────────────────
// Audit Store
// ──────────────────────────────────────────────────

func (s *Store) AppendAudit(_ context.Context, e *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, copyAudit(e))
	return nil
}

func (s *Store) ListAudits(_ context.Context, filter *audit.QueryFilter) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*audit.Entry, 0, len(s.audits))
	for _, e := range s.audits {
		if filter != nil {
			if filter.StoreID != "" && e.StoreID != filter.StoreID {
				continue
			}
			if filter.Identity != "" && e.Identity != filter.Identity {
				continue
			}
			if filter.Op != "" && e.Op != filter.Op {
				continue
			}
			if filter.Outcome != "" && e.Outcome != filter.Outcome {
				continue
			}
			if filter.After != nil && e.CreatedAt.Before(*filter.After) {
				continue
			}
			if filter.Before != nil && e.CreatedAt.After(*filter.Before) {
				continue
			}
		}
		result = append(result, copyAudit(e))
	}
	// Newest first; audit ids are K-sortable so they break created_at ties.
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID.String() > result[j].ID.String()
	})
	return applyPagination(result, paginationOptsAudit(filter)), nil
}

func (s *Store) CountAudits(ctx context.Context, filter *audit.QueryFilter) (int64, error) {
	list, err := s.ListAudits(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(list)), nil
}

func (s *Store) PurgeAudits(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.audits[:0]
	var count int64
	for _, e := range s.audits {
		if e.CreatedAt.Before(before) {
			count++
			continue
		}
		kept = append(kept, e)
	}
	s.audits = kept
	return count, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func copyStore(rec *store.Store) *store.Store {
	c := *rec
	return &c
}

func copyObject(o *object.Object) *object.Object {
	c := *o
	if o.Data != nil {
		c.Data = make([]byte, len(o.Data))
		copy(c.Data, o.Data)
	}
	return &c
}

func copyAudit(e *audit.Entry) *audit.Entry {
	c := *e
	return &c
}

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

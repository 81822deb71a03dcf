package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cofferhq/coffer/acl"
	"github.com/cofferhq/coffer/audit"
	"github.com/cofferhq/coffer/id"
	"github.com/cofferhq/coffer/object"
	"github.com/cofferhq/coffer/storage"
	"github.com/cofferhq/coffer/store"
)

// Compile-time check that *Store implements storage.Store.
var _ storage.Store = (*Store)(nil)

func TestStoreRegistryCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	rec := &store.Store{
		ID:        "notes",
		CreatedBy: "alice",
		CreatedAt: time.Now().UTC(),
	}

	// Put
	if err := s.PutStore(ctx, rec); err != nil {
		t.Fatal(err)
	}

	// Duplicate id is rejected
	err := s.PutStore(ctx, rec)
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Get
	got, err := s.GetStore(ctx, "notes")
	if err != nil {
		t.Fatal(err)
	}
	if got.CreatedBy != "alice" {
		t.Fatalf("expected alice, got %s", got.CreatedBy)
	}

	// List
	list, _ := s.ListStores(ctx, nil)
	if len(list) != 1 {
		t.Fatalf("expected 1 store, got %d", len(list))
	}

	// Count
	count, _ := s.CountStores(ctx, &store.ListFilter{CreatedBy: "alice"})
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}

	// Delete
	if err := s.DeleteStore(ctx, "notes"); err != nil {
		t.Fatal(err)
	}
	_, err = s.GetStore(ctx, "notes")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListStoresSorted(t *testing.T) {
	ctx := context.Background()
	s := New()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := s.PutStore(ctx, &store.Store{ID: name, CreatedBy: "alice"}); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.ListStores(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, rec := range list {
		if rec.ID != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], rec.ID)
		}
	}
}

func TestObjectCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	o := &object.Object{
		StoreID:   "notes",
		ID:        id.NewObjectID(),
		Data:      json.RawMessage(`{"title":"first"}`),
		CreatedAt: time.Now().UTC(),
	}

	if err := s.PutObject(ctx, o); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetObject(ctx, "notes", o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Data) != `{"title":"first"}` {
		t.Fatalf("data mismatch: %s", got.Data)
	}

	// Update
	o.Data = json.RawMessage(`{"title":"second"}`)
	if err := s.UpdateObject(ctx, o); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetObject(ctx, "notes", o.ID)
	if string(got.Data) != `{"title":"second"}` {
		t.Fatal("update failed")
	}

	// Update of a missing object never creates it
	phantom := &object.Object{StoreID: "notes", ID: id.NewObjectID(), Data: json.RawMessage(`{}`)}
	err = s.UpdateObject(ctx, phantom)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetObject(ctx, "notes", phantom.ID); err == nil {
		t.Fatal("failed update must not create the object")
	}

	// Delete
	if err := s.DeleteObject(ctx, "notes", o.ID); err != nil {
		t.Fatal(err)
	}
	_, err = s.GetObject(ctx, "notes", o.ID)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestObjectIsolationBetweenStores(t *testing.T) {
	ctx := context.Background()
	s := New()

	o := &object.Object{StoreID: "a", ID: id.NewObjectID(), Data: json.RawMessage(`1`)}
	if err := s.PutObject(ctx, o); err != nil {
		t.Fatal(err)
	}

	// Same object id under a different store does not resolve.
	if _, err := s.GetObject(ctx, "b", o.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteStoreObjects(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i := 0; i < 3; i++ {
		o := &object.Object{StoreID: "notes", ID: id.NewObjectID(), Data: json.RawMessage(`{}`)}
		if err := s.PutObject(ctx, o); err != nil {
			t.Fatal(err)
		}
	}
	other := &object.Object{StoreID: "other", ID: id.NewObjectID(), Data: json.RawMessage(`{}`)}
	if err := s.PutObject(ctx, other); err != nil {
		t.Fatal(err)
	}

	count, err := s.DeleteStoreObjects(ctx, "notes")
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("expected 3 deleted, got %d", count)
	}

	left, _ := s.CountObjects(ctx, "notes")
	if left != 0 {
		t.Fatalf("expected empty store, got %d", left)
	}
	if _, err := s.GetObject(ctx, "other", other.ID); err != nil {
		t.Fatal("purge must not touch other stores")
	}
}

func TestListObjectsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := New()

	var ids []string
	for i := 0; i < 5; i++ {
		o := &object.Object{StoreID: "notes", ID: id.NewObjectID(), Data: json.RawMessage(`{}`)}
		if err := s.PutObject(ctx, o); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, o.ID.String())
	}

	list, err := s.ListObjects(ctx, "notes", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 5 {
		t.Fatalf("expected 5 objects, got %d", len(list))
	}
	for i, o := range list {
		if o.ID.String() != ids[i] {
			t.Fatalf("position %d: expected %s, got %s", i, ids[i], o.ID)
		}
	}

	// Pagination
	page, _ := s.ListObjects(ctx, "notes", &object.ListFilter{Limit: 2, Offset: 2})
	if len(page) != 2 || page[0].ID.String() != ids[2] {
		t.Fatalf("unexpected page: %v", page)
	}
}

func TestACLGrants(t *testing.T) {
	ctx := context.Background()
	s := New()

	put := func(identity string, perms acl.Perms) {
		t.Helper()
		err := s.PutACLEntry(ctx, &acl.Entry{StoreID: "notes", Identity: identity, Perms: perms})
		if err != nil {
			t.Fatal(err)
		}
	}

	put("alice", acl.PermRead|acl.PermWrite|acl.PermExec)
	put("bob", acl.PermRead)

	grants, err := s.GetACL(ctx, "notes")
	if err != nil {
		t.Fatal(err)
	}
	if len(grants) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(grants))
	}
	if !grants["alice"].Has(acl.PermExec) {
		t.Fatal("alice should have exec")
	}

	// Empty perms removes the entry.
	put("bob", acl.None)
	grants, _ = s.GetACL(ctx, "notes")
	if _, ok := grants["bob"]; ok {
		t.Fatal("empty grant should remove the entry")
	}

	// A store with no entries yields an empty map, not an error.
	grants, err = s.GetACL(ctx, "ghost")
	if err != nil {
		t.Fatal(err)
	}
	if len(grants) != 0 {
		t.Fatalf("expected empty map, got %v", grants)
	}
}

func TestReplaceACLOverwrites(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.PutACLEntry(ctx, &acl.Entry{StoreID: "notes", Identity: "alice", Perms: acl.PermRead | acl.PermWrite}); err != nil {
		t.Fatal(err)
	}

	err := s.ReplaceACL(ctx, "notes", map[string]acl.Perms{
		"bob":   acl.PermRead,
		"ghost": acl.None,
	})
	if err != nil {
		t.Fatal(err)
	}

	grants, _ := s.GetACL(ctx, "notes")
	if _, ok := grants["alice"]; ok {
		t.Fatal("replace must drop identities absent from the new set")
	}
	if _, ok := grants["ghost"]; ok {
		t.Fatal("replace must drop empty grants")
	}
	if grants["bob"] != acl.PermRead {
		t.Fatalf("bob: got %v", grants["bob"])
	}
}

func TestDeleteACL(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.PutACLEntry(ctx, &acl.Entry{StoreID: "notes", Identity: "alice", Perms: acl.PermRead}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteACL(ctx, "notes"); err != nil {
		t.Fatal(err)
	}
	grants, _ := s.GetACL(ctx, "notes")
	if len(grants) != 0 {
		t.Fatalf("expected no grants, got %v", grants)
	}
}

func TestAuditAppendAndQuery(t *testing.T) {
	ctx := context.Background()
	s := New()

	base := time.Now().UTC()
	entries := []*audit.Entry{
		{ID: id.NewAuditID(), StoreID: "a", Identity: "alice", Op: "object.insert", Outcome: audit.OutcomeOK, CreatedAt: base},
		{ID: id.NewAuditID(), StoreID: "a", Identity: "bob", Op: "object.get", Outcome: audit.OutcomeDenied, CreatedAt: base.Add(time.Second)},
		{ID: id.NewAuditID(), StoreID: "b", Identity: "alice", Op: "store.delete", Outcome: audit.OutcomeOK, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if err := s.AppendAudit(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	// Newest first.
	all, err := s.ListAudits(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Op != "store.delete" {
		t.Fatalf("unexpected order: %v", all)
	}

	// Filter by store.
	aOnly, _ := s.ListAudits(ctx, &audit.QueryFilter{StoreID: "a"})
	if len(aOnly) != 2 {
		t.Fatalf("expected 2 entries for store a, got %d", len(aOnly))
	}

	// Filter by outcome.
	denied, _ := s.ListAudits(ctx, &audit.QueryFilter{Outcome: audit.OutcomeDenied})
	if len(denied) != 1 || denied[0].Identity != "bob" {
		t.Fatalf("unexpected denied entries: %v", denied)
	}

	// Purge.
	count, err := s.PurgeAudits(ctx, base.Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 purged, got %d", count)
	}
	left, _ := s.CountAudits(ctx, nil)
	if left != 2 {
		t.Fatalf("expected 2 left, got %d", left)
	}
}

func TestCopyOnRead(t *testing.T) {
	ctx := context.Background()
	s := New()

	o := &object.Object{StoreID: "notes", ID: id.NewObjectID(), Data: json.RawMessage(`{"n":1}`)}
	if err := s.PutObject(ctx, o); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetObject(ctx, "notes", o.ID)
	got.Data[0] = 'X' // mutate the returned copy

	again, _ := s.GetObject(ctx, "notes", o.ID)
	if string(again.Data) != `{"n":1}` {
		t.Fatal("stored data must not alias returned slices")
	}
}

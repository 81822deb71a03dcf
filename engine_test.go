package coffer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cofferhq/coffer/acl"
	"github.com/cofferhq/coffer/audit"
	"github.com/cofferhq/coffer/id"
	"github.com/cofferhq/coffer/object"
	"github.com/cofferhq/coffer/storage/memory"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	eng, err := NewEngine(append([]Option{WithStorage(memory.New())}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return eng
}

func TestNewEngine_RequiresStorage(t *testing.T) {
	_, err := NewEngine()
	if err == nil {
		t.Fatal("expected error when storage is nil")
	}
}

func TestCreateStoreGrantsCreatorFullRights(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	rec, err := eng.CreateStore(ctx, "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	if rec.CreatedBy != "alice" {
		t.Fatalf("expected creator alice, got %q", rec.CreatedBy)
	}

	result, err := eng.Check(ctx, &AccessRequest{
		StoreID:  rec.ID,
		Identity: "alice",
		Required: acl.PermRead | acl.PermWrite | acl.PermExec,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Allowed {
		t.Fatalf("expected creator to hold full rights, got %q", result.Held)
	}

	// Any other identity holds nothing.
	result, err = eng.Check(ctx, &AccessRequest{StoreID: rec.ID, Identity: "bob", Required: acl.PermRead})
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed {
		t.Fatal("expected read denied for identity with no grant")
	}
}

func TestCreateStoreNamed(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	rec, err := eng.CreateStore(ctx, "alice", "reports-2026")
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID != "reports-2026" {
		t.Fatalf("expected caller-chosen id, got %q", rec.ID)
	}

	// Recreating a live id fails.
	if _, err := eng.CreateStore(ctx, "bob", "reports-2026"); !errors.Is(err, ErrStoreExists) {
		t.Fatalf("expected ErrStoreExists, got %v", err)
	}

	// Malformed names are rejected before touching storage.
	if _, err := eng.CreateStore(ctx, "alice", "no spaces!"); !errors.Is(err, ErrInvalidStoreName) {
		t.Fatalf("expected ErrInvalidStoreName, got %v", err)
	}
}

func TestObjectRoundTrip(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	rec, err := eng.CreateStore(ctx, "alice", "")
	if err != nil {
		t.Fatal(err)
	}

	in := json.RawMessage(`{"foo":"bar"}`)
	o, err := eng.InsertObject(ctx, "alice", rec.ID, in)
	if err != nil {
		t.Fatal(err)
	}

	got, err := eng.GetObject(ctx, "alice", rec.ID, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Data) != string(in) {
		t.Fatalf("round trip mismatch: %s", got.Data)
	}

	// Update replaces data in place; the id never changes.
	updated, err := eng.UpdateObject(ctx, "alice", rec.ID, o.ID, json.RawMessage(`{"foo":"baz"}`))
	if err != nil {
		t.Fatal(err)
	}
	if updated.ID != o.ID {
		t.Fatalf("update changed object id: %s -> %s", o.ID, updated.ID)
	}

	got, err = eng.GetObject(ctx, "alice", rec.ID, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Data) != `{"foo":"baz"}` {
		t.Fatalf("expected updated data, got %s", got.Data)
	}
}

func TestUpdateNeverCreates(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	rec, err := eng.CreateStore(ctx, "alice", "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := eng.UpdateObject(ctx, "alice", rec.ID, id.NewObjectID(), json.RawMessage(`{}`)); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}

	objs, err := eng.StoreContents(ctx, "alice", rec.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(objs) != 0 {
		t.Fatalf("failed update must not create an object, found %d", len(objs))
	}
}

func TestDeleteStorePurgesEverything(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	rec, err := eng.CreateStore(ctx, "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	o, err := eng.InsertObject(ctx, "alice", rec.ID, json.RawMessage(`{"k":1}`))
	if err != nil {
		t.Fatal(err)
	}

	if err := eng.DeleteStore(ctx, "alice", rec.ID); err != nil {
		t.Fatal(err)
	}

	// The store, its objects, and its grants are all gone.
	if _, err := eng.GetObject(ctx, "alice", rec.ID, o.ID); !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("expected ErrStoreNotFound after purge, got %v", err)
	}
	if _, err := eng.StoreContents(ctx, "alice", rec.ID, nil); !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("expected ErrStoreNotFound for contents, got %v", err)
	}

	// Deleting twice never succeeds.
	if err := eng.DeleteStore(ctx, "alice", rec.ID); !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("expected ErrStoreNotFound on second delete, got %v", err)
	}
}

func TestDeleteStoreRequiresWrite(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	rec, err := eng.CreateStore(ctx, "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	err = eng.ReplaceACL(ctx, "alice", rec.ID, []acl.Grant{
		{Identity: "alice", Perms: acl.PermRead | acl.PermWrite | acl.PermExec},
		{Identity: "bob", Perms: acl.PermRead},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := eng.DeleteStore(ctx, "bob", rec.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied for read-only holder, got %v", err)
	}

	// A write holder may delete.
	err = eng.ReplaceACL(ctx, "alice", rec.ID, []acl.Grant{
		{Identity: "bob", Perms: acl.PermWrite},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.DeleteStore(ctx, "bob", rec.ID); err != nil {
		t.Fatal(err)
	}
}

func TestReplaceACLIsOverwriteNotMerge(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	rec, err := eng.CreateStore(ctx, "alice", "")
	if err != nil {
		t.Fatal(err)
	}

	// Replacement omitting the creator drops the original full grant.
	err = eng.ReplaceACL(ctx, "alice", rec.ID, []acl.Grant{
		{Identity: "bob", Perms: acl.PermRead | acl.PermWrite | acl.PermExec},
	})
	if err != nil {
		t.Fatal(err)
	}

	result, err := eng.Check(ctx, &AccessRequest{StoreID: rec.ID, Identity: "alice", Required: acl.PermRead})
	if err != nil {
		t.Fatal(err)
	}
	if result.Allowed {
		t.Fatal("creator's grant must not survive a replacement that omits it")
	}

	result, err = eng.Check(ctx, &AccessRequest{StoreID: rec.ID, Identity: "bob", Required: acl.PermRead | acl.PermWrite | acl.PermExec})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Allowed {
		t.Fatal("expected bob to hold full rights after replacement")
	}
}

func TestReplaceACLLastGrantWins(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	rec, err := eng.CreateStore(ctx, "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	err = eng.ReplaceACL(ctx, "alice", rec.ID, []acl.Grant{
		{Identity: "alice", Perms: acl.PermRead | acl.PermWrite | acl.PermExec},
		{Identity: "bob", Perms: acl.PermRead},
		{Identity: "bob", Perms: acl.PermWrite},
	})
	if err != nil {
		t.Fatal(err)
	}

	snap, err := eng.ReadACL(ctx, "alice", rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got := snap.Effective("bob"); got != acl.PermWrite {
		t.Fatalf("expected later grant to win, bob holds %q", got)
	}
}

func TestReplaceACLRequiresExec(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	rec, err := eng.CreateStore(ctx, "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	err = eng.ReplaceACL(ctx, "alice", rec.ID, []acl.Grant{
		{Identity: "bob", Perms: acl.PermRead | acl.PermWrite},
	})
	if err != nil {
		t.Fatal(err)
	}

	err = eng.ReplaceACL(ctx, "bob", rec.ID, []acl.Grant{
		{Identity: "bob", Perms: acl.PermRead | acl.PermWrite | acl.PermExec},
	})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied without x, got %v", err)
	}
}

func TestReadACLOwnership(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	rec, err := eng.CreateStore(ctx, "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	// Alice locks herself out but keeps ownership.
	err = eng.ReplaceACL(ctx, "alice", rec.ID, []acl.Grant{
		{Identity: "bob", Perms: acl.PermRead},
	})
	if err != nil {
		t.Fatal(err)
	}

	snap, err := eng.ReadACL(ctx, "alice", rec.ID)
	if err != nil {
		t.Fatalf("creator must always be able to inspect the list: %v", err)
	}
	if got := snap.Effective("alice"); got != acl.None {
		t.Fatalf("expected alice to hold nothing, got %q", got)
	}

	// A stranger with no grant cannot.
	if _, err := eng.ReadACL(ctx, "carol", rec.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestGatedOpsDenyStrangers(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	rec, err := eng.CreateStore(ctx, "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	o, err := eng.InsertObject(ctx, "alice", rec.ID, json.RawMessage(`{}`))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := eng.GetObject(ctx, "mallory", rec.ID, o.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected get denied, got %v", err)
	}
	if _, err := eng.InsertObject(ctx, "mallory", rec.ID, json.RawMessage(`{}`)); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected insert denied, got %v", err)
	}
	if _, err := eng.StoreContents(ctx, "mallory", rec.ID, nil); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected contents denied, got %v", err)
	}
	if err := eng.DeleteObject(ctx, "mallory", rec.ID, o.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected delete denied, got %v", err)
	}
}

func TestListStoresIsUngated(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if _, err := eng.CreateStore(ctx, "alice", "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.CreateStore(ctx, "bob", "b"); err != nil {
		t.Fatal(err)
	}

	ids, err := eng.ListStores(ctx, "carol")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("expected [a b], got %v", ids)
	}
}

func TestStoresAreIsolated(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if _, err := eng.CreateStore(ctx, "alice", "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.CreateStore(ctx, "bob", "b"); err != nil {
		t.Fatal(err)
	}

	oa, err := eng.InsertObject(ctx, "alice", "a", json.RawMessage(`{"owner":"alice"}`))
	if err != nil {
		t.Fatal(err)
	}

	// Bob cannot reach alice's store, and alice's object does not exist
	// under bob's store even for bob.
	if _, err := eng.GetObject(ctx, "bob", "a", oa.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected cross-store access denied, got %v", err)
	}
	if _, err := eng.GetObject(ctx, "bob", "b", oa.ID); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound in foreign store, got %v", err)
	}
}

func TestCreateStoreWithInitial(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	storeID, oids, err := eng.CreateStoreWithInitial(ctx, "alice", "", json.RawMessage(`{"seed":true}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(oids) != 1 {
		t.Fatalf("expected one seeded object, got %d", len(oids))
	}
	got, err := eng.GetObject(ctx, "alice", storeID, oids[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Data) != `{"seed":true}` {
		t.Fatalf("unexpected seed data: %s", got.Data)
	}

	// No seed data means an empty store.
	_, oids, err = eng.CreateStoreWithInitial(ctx, "alice", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(oids) != 0 {
		t.Fatalf("expected no seeded objects, got %d", len(oids))
	}
}

func TestMissingStoreIsNotFound(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	if _, err := eng.Check(ctx, &AccessRequest{StoreID: "ghost", Identity: "alice", Required: acl.PermRead}); !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("expected ErrStoreNotFound, got %v", err)
	}
	if _, err := eng.StoreContents(ctx, "alice", "ghost", nil); !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("expected ErrStoreNotFound, got %v", err)
	}
	if err := eng.DeleteStore(ctx, "alice", "ghost"); !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("expected ErrStoreNotFound, got %v", err)
	}
}

func TestAuditTrail(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	rec, err := eng.CreateStore(ctx, "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.InsertObject(ctx, "mallory", rec.ID, json.RawMessage(`{}`)); !errors.Is(err, ErrPermissionDenied) {
		t.Fatal("expected denial")
	}

	entries, err := eng.Audits(ctx, &audit.QueryFilter{StoreID: rec.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected create + denial, got %d entries", len(entries))
	}

	// Newest first: the denial precedes the creation.
	if entries[0].Outcome != audit.OutcomeDenied || entries[0].Identity != "mallory" {
		t.Fatalf("expected denied entry first, got %+v", entries[0])
	}
	if entries[1].Op != opStoreCreate || entries[1].Outcome != audit.OutcomeOK {
		t.Fatalf("expected create entry, got %+v", entries[1])
	}
}

func TestAuditDisabled(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, WithConfig(Config{DisableAudit: true}))

	if _, err := eng.CreateStore(ctx, "alice", ""); err != nil {
		t.Fatal(err)
	}

	entries, err := eng.Audits(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty trail with audit disabled, got %d", len(entries))
	}
}

// pausingStore blocks inside PutObject until released, exposing the
// window between authorization and persistence.
type pausingStore struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
}

func (s *pausingStore) PutObject(ctx context.Context, o *object.Object) error {
	close(s.entered)
	<-s.release
	return s.Store.PutObject(ctx, o)
}

func TestInsertNeverOrphansOnConcurrentDelete(t *testing.T) {
	ctx := context.Background()
	ps := &pausingStore{
		Store:   memory.New(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	eng, err := NewEngine(WithStorage(ps))
	if err != nil {
		t.Fatal(err)
	}

	rec, err := eng.CreateStore(ctx, "alice", "")
	if err != nil {
		t.Fatal(err)
	}

	insertErr := make(chan error, 1)
	go func() {
		_, err := eng.InsertObject(ctx, "alice", rec.ID, json.RawMessage(`{"k":1}`))
		insertErr <- err
	}()
	<-ps.entered

	deleteErr := make(chan error, 1)
	go func() { deleteErr <- eng.DeleteStore(ctx, "alice", rec.ID) }()

	// The purge must wait for the in-flight insert, not run through it.
	select {
	case err := <-deleteErr:
		t.Fatalf("delete finished during an in-flight insert: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(ps.release)

	if err := <-insertErr; err != nil {
		t.Fatal(err)
	}
	if err := <-deleteErr; err != nil {
		t.Fatal(err)
	}

	// Both succeeded, so the purge ran second and nothing survives.
	objs, err := ps.Store.ListObjects(ctx, rec.ID, &object.ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(objs) != 0 {
		t.Fatalf("delete and insert both succeeded leaving %d orphaned object(s)", len(objs))
	}
	if _, err := eng.Check(ctx, &AccessRequest{StoreID: rec.ID, Identity: "alice", Required: acl.PermRead}); !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("expected ErrStoreNotFound after purge, got %v", err)
	}
}

func TestConcurrentStoreCreatesNeverCollide(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	const n = 16
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := eng.CreateStore(ctx, "alice", "")
			if err != nil {
				t.Error(err)
				return
			}
			ids <- rec.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool, n)
	for sid := range ids {
		if seen[sid] {
			t.Fatalf("duplicate generated store id %s", sid)
		}
		seen[sid] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct stores, got %d", n, len(seen))
	}

	// Racing for the same caller-chosen name: exactly one create wins.
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		identity := fmt.Sprintf("u%d", i)
		go func() {
			_, err := eng.CreateStore(ctx, identity, "shared")
			errs <- err
		}()
	}
	var created, conflicted int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			created++
		case errors.Is(err, ErrStoreExists):
			conflicted++
		default:
			t.Fatal(err)
		}
	}
	if created != 1 || conflicted != 1 {
		t.Fatalf("expected exactly one winner for a contested name, got %d created / %d conflicted", created, conflicted)
	}
}

func TestListFiltersNotMutated(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	rec, err := eng.CreateStore(ctx, "alice", "")
	if err != nil {
		t.Fatal(err)
	}

	lf := &object.ListFilter{Offset: 3}
	if _, err := eng.StoreContents(ctx, "alice", rec.ID, lf); err != nil {
		t.Fatal(err)
	}
	if lf.Limit != 0 || lf.Offset != 3 {
		t.Fatalf("contents listing mutated the caller's filter: %+v", lf)
	}

	qf := &audit.QueryFilter{StoreID: rec.ID}
	if _, err := eng.Audits(ctx, qf); err != nil {
		t.Fatal(err)
	}
	if qf.Limit != 0 {
		t.Fatalf("audit query mutated the caller's filter: %+v", qf)
	}
}

func TestScenarioLifecycle(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t)

	storeID, oids, err := eng.CreateStoreWithInitial(ctx, "u1", "", json.RawMessage(`{"foo":"bar"}`))
	if err != nil {
		t.Fatal(err)
	}
	oid := oids[0]

	got, err := eng.GetObject(ctx, "u1", storeID, oid)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Data) != `{"foo":"bar"}` {
		t.Fatalf("unexpected data: %s", got.Data)
	}

	if _, err := eng.UpdateObject(ctx, "u1", storeID, oid, json.RawMessage(`{"foo":"baz"}`)); err != nil {
		t.Fatal(err)
	}
	got, err = eng.GetObject(ctx, "u1", storeID, oid)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Data) != `{"foo":"baz"}` {
		t.Fatalf("expected updated data, got %s", got.Data)
	}

	if err := eng.DeleteStore(ctx, "u1", storeID); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.GetObject(ctx, "u1", storeID, oid); !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("expected ErrStoreNotFound after delete, got %v", err)
	}
	if _, err := eng.StoreContents(ctx, "u1", storeID, nil); !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("expected ErrStoreNotFound for listing, got %v", err)
	}
}

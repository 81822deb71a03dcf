package plugin

import (
	"context"
	"log/slog"
	"testing"

	"github.com/cofferhq/coffer/id"
	"github.com/cofferhq/coffer/store"
)

// testPlugin implements Plugin + StoreCreated + AfterAccess.
type testPlugin struct {
	storeCreatedCalled bool
	afterAccessCalled  bool
}

func (t *testPlugin) Name() string { return "test-plugin" }

func (t *testPlugin) OnStoreCreated(_ context.Context, _ *store.Store) error {
	t.storeCreatedCalled = true
	return nil
}

func (t *testPlugin) OnAfterAccess(_ context.Context, _, _ any) error {
	t.afterAccessCalled = true
	return nil
}

// minimalPlugin only implements Plugin (no hooks).
type minimalPlugin struct{}

func (m *minimalPlugin) Name() string { return "minimal" }

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(slog.Default())

	tp := &testPlugin{}
	reg.Register(tp)
	reg.Register(&minimalPlugin{})

	if len(reg.Plugins()) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(reg.Plugins()))
	}

	// Should dispatch StoreCreated to testPlugin only.
	reg.EmitStoreCreated(ctx, &store.Store{ID: "docs", CreatedBy: "alice"})
	if !tp.storeCreatedCalled {
		t.Fatal("OnStoreCreated was not called")
	}

	// Should dispatch AfterAccess.
	reg.EmitAfterAccess(ctx, nil, nil)
	if !tp.afterAccessCalled {
		t.Fatal("OnAfterAccess was not called")
	}

	// Should not panic on hooks with no listeners.
	reg.EmitBeforeAccess(ctx, nil)
	reg.EmitObjectDeleted(ctx, "docs", id.NewObjectID())
	reg.EmitShutdown(ctx)
}

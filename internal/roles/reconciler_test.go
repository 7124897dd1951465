package roles

import (
	"context"
	"testing"

	"rolewarden/internal/storage"
)

func newTestReconciler(t *testing.T, platform *fakePlatform, store *fakeRoleStore, sink *recordingSink, defaultRole string) *Reconciler {
	t.Helper()
	c := newTestCoordinator(t, platform, store, sink, nil)
	r, err := NewReconciler(platform, store, c, sink, defaultRole)
	if err != nil {
		t.Fatalf("NewReconciler: %v", err)
	}
	return r
}

func TestHandleRoleSetChangedPersistsSnapshotAndDeltas(t *testing.T) {
	platform := newFakePlatform()
	store := newFakeRoleStore()
	r := newTestReconciler(t, platform, store, &recordingSink{}, "")

	err := r.HandleRoleSetChanged(context.Background(), "u1",
		[]string{"r1", "r2", "r3"}, []string{"r2", "r3", "r4"}, Unknown())
	if err != nil {
		t.Fatalf("HandleRoleSetChanged: %v", err)
	}

	if got := store.snapshots["u1"]; len(got) != 3 {
		t.Fatalf("snapshot = %v, want the full new set", got)
	}
	// One delta in, one delta out.
	if len(store.history) != 2 {
		t.Fatalf("history entries = %d, want 2", len(store.history))
	}
	var added, removed int
	for _, entry := range store.history {
		switch {
		case entry.Action == storage.HistoryAdded && entry.RoleID == "r4":
			added++
		case entry.Action == storage.HistoryRemoved && entry.RoleID == "r1":
			removed++
		default:
			t.Fatalf("unexpected history entry %+v", entry)
		}
	}
	if added != 1 || removed != 1 {
		t.Fatalf("deltas: added=%d removed=%d, want 1/1", added, removed)
	}
}

func TestHandleRoleSetChangedWithNoDeltasWritesNoHistory(t *testing.T) {
	store := newFakeRoleStore()
	r := newTestReconciler(t, newFakePlatform(), store, &recordingSink{}, "")

	err := r.HandleRoleSetChanged(context.Background(), "u1",
		[]string{"r1"}, []string{"r1"}, Unknown())
	if err != nil {
		t.Fatalf("HandleRoleSetChanged: %v", err)
	}
	if len(store.history) != 0 {
		t.Fatalf("history entries = %d, want 0", len(store.history))
	}
}

func TestHandleMemberJoinedRestoresSavedRoles(t *testing.T) {
	platform := newFakePlatform()
	store := newFakeRoleStore()
	store.snapshots["u1"] = []string{"r1", "r2"}
	sink := &recordingSink{}
	r := newTestReconciler(t, platform, store, sink, "")

	restored, err := r.HandleMemberJoined(context.Background(), "u1")
	if err != nil {
		t.Fatalf("HandleMemberJoined: %v", err)
	}
	if len(restored) != 2 {
		t.Fatalf("restored = %v, want both roles", restored)
	}
	// One batched apply, one consolidated audit entry.
	if len(platform.applied) != 2 {
		t.Fatalf("applied = %v, want both roles", platform.applied)
	}
	if len(sink.entries) != 1 || sink.entries[0].Title != "Roles Restored" {
		t.Fatalf("audit entries = %+v, want one Roles Restored", sink.entries)
	}
}

func TestHandleMemberJoinedFiltersUnrestorableRoles(t *testing.T) {
	platform := newFakePlatform()
	platform.missing["gone"] = true
	platform.managed["booster"] = true
	platform.unassignable["admin"] = true
	store := newFakeRoleStore()
	store.snapshots["u1"] = []string{"gone", "booster", "admin", "ok"}
	r := newTestReconciler(t, platform, store, &recordingSink{}, "")

	restored, err := r.HandleMemberJoined(context.Background(), "u1")
	if err != nil {
		t.Fatalf("HandleMemberJoined: %v", err)
	}
	if len(restored) != 1 || restored[0] != "ok" {
		t.Fatalf("restored = %v, want [ok]", restored)
	}
}

func TestHandleMemberJoinedColdStartGrantsDefaultRole(t *testing.T) {
	platform := newFakePlatform()
	store := newFakeRoleStore()
	sink := &recordingSink{}
	r := newTestReconciler(t, platform, store, sink, "newcomer")

	restored, err := r.HandleMemberJoined(context.Background(), "u1")
	if err != nil {
		t.Fatalf("HandleMemberJoined: %v", err)
	}
	if len(restored) != 1 || restored[0] != "newcomer" {
		t.Fatalf("restored = %v, want [newcomer]", restored)
	}
	// The default goes through the coordinator, so it audits like a grant.
	if len(sink.entries) != 1 || sink.entries[0].Title != "Default Role Assigned" {
		t.Fatalf("audit entries = %+v", sink.entries)
	}
}

func TestHandleMemberJoinedColdStartWithoutDefaultIsNoOp(t *testing.T) {
	platform := newFakePlatform()
	r := newTestReconciler(t, platform, newFakeRoleStore(), &recordingSink{}, "")

	restored, err := r.HandleMemberJoined(context.Background(), "u1")
	if err != nil {
		t.Fatalf("HandleMemberJoined: %v", err)
	}
	if restored != nil {
		t.Fatalf("restored = %v, want nil", restored)
	}
}

func TestRebuildSnapshotsSkipsBotsAndEmptyMembers(t *testing.T) {
	store := newFakeRoleStore()
	r := newTestReconciler(t, newFakePlatform(), store, &recordingSink{}, "")

	members := []Member{
		{UserID: "u1", RoleIDs: []string{"r1"}},
		{UserID: "bot", RoleIDs: []string{"r1"}, Bot: true},
		{UserID: "u2"},
		{UserID: "u3", RoleIDs: []string{"r2", "r3"}},
	}
	count, err := r.RebuildSnapshots(context.Background(), members)
	if err != nil {
		t.Fatalf("RebuildSnapshots: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if _, ok := store.snapshots["bot"]; ok {
		t.Fatal("bot snapshot was saved")
	}
	if _, ok := store.snapshots["u2"]; ok {
		t.Fatal("empty member snapshot was saved")
	}
}

func TestDiffRoles(t *testing.T) {
	added, removed := diffRoles([]string{"a", "b"}, []string{"b", "c"})
	if len(added) != 1 || added[0] != "c" {
		t.Fatalf("added = %v, want [c]", added)
	}
	if len(removed) != 1 || removed[0] != "a" {
		t.Fatalf("removed = %v, want [a]", removed)
	}
}

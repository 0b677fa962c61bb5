package session

import (
	"context"
	"testing"

	"bizgrid.org/internal/kv"
)

func demoIdentity() Identity {
	return Identity{
		ID:          "u-1",
		Username:    "asha",
		Email:       "asha@example.com",
		DisplayName: "Asha N.",
		Role:        "admin",
		Tier:        "tier2",
	}
}

func TestSetAuthAndReads(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, kv.NewMemory())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if s.IsAuthenticated() {
		t.Fatal("fresh store should be anonymous")
	}
	if headers := s.AuthHeaders(); len(headers) != 0 {
		t.Fatalf("expected empty headers, got %v", headers)
	}

	if err := s.SetAuth(ctx, demoIdentity(), "cred-123"); err != nil {
		t.Fatalf("SetAuth: %v", err)
	}

	if !s.IsAuthenticated() {
		t.Fatal("expected authenticated")
	}
	if !s.IsAdmin() {
		t.Fatal("expected admin role")
	}
	if tier := s.Tier(); tier != "tier2" {
		t.Fatalf("unexpected tier: %s", tier)
	}
	ident, ok := s.Identity()
	if !ok || ident.Username != "asha" {
		t.Fatalf("unexpected identity: %+v ok=%v", ident, ok)
	}
	if headers := s.AuthHeaders(); headers["Authorization"] != "Bearer cred-123" {
		t.Fatalf("unexpected headers: %v", headers)
	}
}

func TestClearAuthIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	s, err := New(ctx, store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.SetAuth(ctx, demoIdentity(), "cred"); err != nil {
		t.Fatalf("SetAuth: %v", err)
	}

	if err := s.ClearAuth(ctx); err != nil {
		t.Fatalf("ClearAuth: %v", err)
	}
	if s.IsAuthenticated() {
		t.Fatal("expected anonymous after clear")
	}
	if store.Len() != 0 {
		t.Fatalf("expected durable keys removed, %d left", store.Len())
	}

	// Second clear on an empty store succeeds quietly.
	if err := s.ClearAuth(ctx); err != nil {
		t.Fatalf("second ClearAuth: %v", err)
	}
}

func TestHydrationRestoresSession(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()

	first, err := New(ctx, store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := first.SetAuth(ctx, demoIdentity(), "cred-xyz"); err != nil {
		t.Fatalf("SetAuth: %v", err)
	}

	// Simulated reload: a fresh store over the same durable backend.
	second, err := New(ctx, store)
	if err != nil {
		t.Fatalf("New after reload: %v", err)
	}
	if !second.IsAuthenticated() {
		t.Fatal("expected session to survive reload")
	}
	cred, ok := second.Credential()
	if !ok || cred != "cred-xyz" {
		t.Fatalf("unexpected credential: %q ok=%v", cred, ok)
	}
}

func TestCorruptIdentityDegradesToAnonymous(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	if err := store.Set(ctx, identityKey, "{broken"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, credentialKey, "stale-cred"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s, err := New(ctx, store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.IsAuthenticated() {
		t.Fatal("expected anonymous after corrupt hydration")
	}
	if store.Len() != 0 {
		t.Fatalf("expected both keys cleared, %d left", store.Len())
	}
}

func TestSubscribeFiresImmediatelyAndOnMutation(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, kv.NewMemory())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var snapshots []Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		snapshots = append(snapshots, snap)
	})

	if len(snapshots) != 1 || snapshots[0].Authenticated {
		t.Fatalf("expected immediate anonymous snapshot, got %+v", snapshots)
	}

	if err := s.SetAuth(ctx, demoIdentity(), "cred"); err != nil {
		t.Fatalf("SetAuth: %v", err)
	}
	if len(snapshots) != 2 || !snapshots[1].Authenticated {
		t.Fatalf("expected authenticated snapshot, got %+v", snapshots)
	}
	if snapshots[1].Identity == nil || snapshots[1].Identity.ID != "u-1" {
		t.Fatalf("expected identity copy in snapshot: %+v", snapshots[1])
	}

	unsubscribe()
	if err := s.ClearAuth(ctx); err != nil {
		t.Fatalf("ClearAuth: %v", err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("expected no snapshot after unsubscribe, got %d", len(snapshots))
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, kv.NewMemory())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.SetAuth(ctx, demoIdentity(), "cred"); err != nil {
		t.Fatalf("SetAuth: %v", err)
	}

	var seen *Identity
	s.Subscribe(func(snap Snapshot) { seen = snap.Identity })
	seen.Role = "intruder"

	if s.IsAdmin() != true {
		t.Fatal("external mutation of a snapshot must not corrupt store state")
	}
}

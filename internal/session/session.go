package session

import (
	"context"
	"strings"
	"sync"

	"bizgrid.org/internal/kv"
	"bizgrid.org/internal/obs"
)

const (
	identityKey   = "session.identity"
	credentialKey = "session.credential"

	// RoleAdmin is distinguished for authorization display logic; roles are
	// otherwise an open set.
	RoleAdmin = "admin"
)

// Identity is the authenticated user record held after login. Absence of an
// identity means anonymous.
type Identity struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Tier        string `json:"tier,omitempty"`
}

// Snapshot is what subscribers observe on every auth change.
type Snapshot struct {
	Identity      *Identity
	Authenticated bool
}

// Listener receives the current snapshot synchronously on subscription and on
// every subsequent mutation.
type Listener func(Snapshot)

// Store holds at most one authenticated identity plus its opaque bearer
// credential, mirrored to durable storage so the session survives restarts.
type Store struct {
	mu         sync.RWMutex
	kv         kv.Store
	identity   *Identity
	credential string
	subs       map[int]Listener
	nextSub    int
}

// New constructs a store and hydrates it from durable storage. A malformed
// stored identity degrades to anonymous; it is never an error.
func New(ctx context.Context, store kv.Store) (*Store, error) {
	s := &Store{
		kv:   store,
		subs: make(map[int]Listener),
	}
	if err := s.hydrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) hydrate(ctx context.Context) error {
	var ident Identity
	status, err := kv.LoadJSON(ctx, s.kv, identityKey, &ident)
	if err != nil {
		return err
	}
	obs.ObserveHydration("session", string(status))
	if status != kv.HydrationValid {
		// Stale credentials without an identity are useless; drop both.
		if status == kv.HydrationRecovered {
			_ = s.kv.Remove(ctx, credentialKey)
		}
		return nil
	}

	credential, ok, err := s.kv.Get(ctx, credentialKey)
	if err != nil {
		return err
	}
	s.identity = &ident
	if ok {
		s.credential = credential
	}
	return nil
}

// SetAuth replaces the current identity and credential unconditionally and
// persists both. The caller is trusted; no shape validation happens here.
// Write failures propagate.
func (s *Store) SetAuth(ctx context.Context, identity Identity, credential string) error {
	s.mu.Lock()
	s.identity = &identity
	s.credential = credential
	if err := kv.SaveJSON(ctx, s.kv, identityKey, identity); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.kv.Set(ctx, credentialKey, credential); err != nil {
		s.mu.Unlock()
		return err
	}
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
	return nil
}

// ClearAuth drops the identity and credential and removes the durable keys.
// Clearing an already-anonymous store is a harmless no-op.
func (s *Store) ClearAuth(ctx context.Context) error {
	s.mu.Lock()
	s.identity = nil
	s.credential = ""
	if err := s.kv.Remove(ctx, identityKey); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.kv.Remove(ctx, credentialKey); err != nil {
		s.mu.Unlock()
		return err
	}
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
	return nil
}

// Identity returns a copy of the current identity, if any.
func (s *Store) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

// Credential returns the opaque bearer credential, if any.
func (s *Store) Credential() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.credential == "" {
		return "", false
	}
	return s.credential, true
}

// IsAuthenticated reports whether both identity and credential are present.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil && s.credential != ""
}

// IsAdmin reports whether the current identity carries the admin role.
func (s *Store) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil && strings.EqualFold(s.identity.Role, RoleAdmin)
}

// Tier returns the current identity's subscription tier, or empty when
// anonymous.
func (s *Store) Tier() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return ""
	}
	return s.identity.Tier
}

// AuthHeaders builds the header mapping for outbound requests; empty when no
// credential is held.
func (s *Store) AuthHeaders() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.credential == "" {
		return map[string]string{}
	}
	return map[string]string{"Authorization": "Bearer " + s.credential}
}

// Subscribe registers a listener, fires it immediately with the current
// snapshot, and returns an unsubscribe func that removes exactly that
// listener. Fan-out is synchronous; a listener that mutates the store during
// notification recurses.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	snapshot, _ := s.snapshotLocked()
	s.mu.Unlock()

	fn(snapshot)

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// snapshotLocked copies current state and listener set; callers invoke the
// listeners after releasing the lock.
func (s *Store) snapshotLocked() (Snapshot, []Listener) {
	snap := Snapshot{Authenticated: s.identity != nil && s.credential != ""}
	if s.identity != nil {
		ident := *s.identity
		snap.Identity = &ident
	}
	listeners := make([]Listener, 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	return snap, listeners
}

func notify(listeners []Listener, snap Snapshot) {
	for _, fn := range listeners {
		fn(snap)
	}
}

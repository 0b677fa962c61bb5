package entitlement

import (
	"context"
	"strings"
	"sync"
	"time"

	"bizgrid.org/internal/kv"
	"bizgrid.org/internal/obs"
)

const storageKey = "entitlements"

// Listener observes a copy of the grant collection after every mutation.
type Listener func([]Entitlement)

// Cache answers module-access queries locally after a one-time remote
// validation, so a grant costs a single network round-trip for its lifetime.
type Cache struct {
	mu        sync.RWMutex
	kv        kv.Store
	validator Validator
	tiers     TierSource
	now       func() time.Time
	grants    []Entitlement
	subs      map[int]Listener
	nextSub   int
}

// Option configures Cache behavior.
type Option func(*Cache)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(c *Cache) {
		if fn != nil {
			c.now = fn
		}
	}
}

// WithTierSource wires the session store so privileged subscription tiers
// bypass entitlement checks.
func WithTierSource(src TierSource) Option {
	return func(c *Cache) {
		c.tiers = src
	}
}

// NewCache constructs the cache and hydrates it from durable storage,
// dropping grants that expired while the process was down. If the filter
// removed anything the surviving collection is rewritten immediately, so
// storage heals itself.
func NewCache(ctx context.Context, store kv.Store, validator Validator, opts ...Option) (*Cache, error) {
	c := &Cache{
		kv:        store,
		validator: validator,
		now:       time.Now,
		subs:      make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.hydrate(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) hydrate(ctx context.Context) error {
	var stored []Entitlement
	status, err := kv.LoadJSON(ctx, c.kv, storageKey, &stored)
	if err != nil {
		return err
	}
	obs.ObserveHydration("entitlement", string(status))
	if status != kv.HydrationValid {
		return nil
	}

	now := c.now()
	live := stored[:0]
	for _, grant := range stored {
		if !grant.Expired(now) {
			live = append(live, grant)
		}
	}
	c.grants = live
	if len(live) < len(stored) {
		return kv.SaveJSON(ctx, c.kv, storageKey, live)
	}
	return nil
}

// HasAccess decides module access purely from local state: a privileged tier
// wins outright, otherwise any held, unexpired grant listing the module
// suffices. Expiry is recomputed on every call.
func (c *Cache) HasAccess(module string) bool {
	if c.tiers != nil && PrivilegedTier(c.tiers.Tier()) {
		return true
	}
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, grant := range c.grants {
		if grant.Allows(module, now) {
			return true
		}
	}
	return false
}

// ValidateToken submits the trimmed token and requested module to the
// validation service and, on success, appends the returned grant to the
// collection and persists it. The result is strictly boolean: every failure
// (network, rejection, even a persistence error) is logged and counted, never
// raised, and leaves the existing collection untouched.
func (c *Cache) ValidateToken(ctx context.Context, rawToken, module string) bool {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		obs.ObserveValidation("rejected")
		return false
	}

	grant, err := c.validator.Validate(ctx, token, module)
	if err != nil {
		obs.ObserveValidation("rejected")
		obs.Log("info", "access token validation failed", map[string]any{
			"module": module,
			"error":  err.Error(),
		})
		return false
	}

	c.mu.Lock()
	// The stored copy detaches from whatever the validator still holds.
	c.grants = append(c.grants, grant.clone())
	if err := kv.SaveJSON(ctx, c.kv, storageKey, c.grants); err != nil {
		// Roll back the append; the caller was promised untouched state on
		// failure.
		c.grants = c.grants[:len(c.grants)-1]
		c.mu.Unlock()
		obs.ObserveValidation("persist_error")
		obs.Log("error", "entitlement persistence failed", map[string]any{
			"module": module,
			"error":  err.Error(),
		})
		return false
	}
	snapshot, listeners := c.snapshotLocked()
	c.mu.Unlock()

	obs.ObserveValidation("granted")
	for _, fn := range listeners {
		fn(snapshot)
	}
	return true
}

// ClearAccess empties the collection and removes its durable key, e.g. on
// logout.
func (c *Cache) ClearAccess(ctx context.Context) error {
	c.mu.Lock()
	c.grants = nil
	if err := c.kv.Remove(ctx, storageKey); err != nil {
		c.mu.Unlock()
		return err
	}
	snapshot, listeners := c.snapshotLocked()
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
	return nil
}

// Grants returns a copy of the held collection, expired entries included;
// callers that care about liveness use HasAccess or Allows.
func (c *Cache) Grants() []Entitlement {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entitlement, len(c.grants))
	for i, grant := range c.grants {
		out[i] = grant.clone()
	}
	return out
}

// Subscribe registers a listener, fires it immediately with the current
// collection, and returns an unsubscribe func.
func (c *Cache) Subscribe(fn Listener) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	snapshot, _ := c.snapshotLocked()
	c.mu.Unlock()

	fn(snapshot)

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// snapshotLocked deep-copies the collection so listeners cannot mutate cache
// state through a snapshot's slices or maps.
func (c *Cache) snapshotLocked() ([]Entitlement, []Listener) {
	snapshot := make([]Entitlement, len(c.grants))
	for i, grant := range c.grants {
		snapshot[i] = grant.clone()
	}
	listeners := make([]Listener, 0, len(c.subs))
	for _, fn := range c.subs {
		listeners = append(listeners, fn)
	}
	return snapshot, listeners
}

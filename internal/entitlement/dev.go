package entitlement

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultDevTTL = 24 * time.Hour

// DevValidator issues short-lived single-module grants locally. It stands in
// for the platform validation service during development and in tests.
type DevValidator struct {
	// TTL bounds issued grants; defaults to 24h when zero.
	TTL time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

var _ Validator = (*DevValidator)(nil)

func (v *DevValidator) Validate(ctx context.Context, token, module string) (Entitlement, error) {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(module) == "" {
		return Entitlement{}, ErrTokenRejected
	}
	ttl := v.TTL
	if ttl <= 0 {
		ttl = defaultDevTTL
	}
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	return Entitlement{
		ID:        uuid.NewString(),
		Modules:   []string{module},
		ExpiresAt: now().UTC().Add(ttl),
		MaxUsage:  0,
	}, nil
}

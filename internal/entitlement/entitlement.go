package entitlement

import (
	"context"
	"errors"
	"time"
)

// Entitlement is a time-boxed grant authorizing access to one or more feature
// modules. UsageCount and MaxUsage are carried for display; usage accounting
// is enforced by the validation service, not locally.
type Entitlement struct {
	ID          string         `json:"id"`
	Modules     []string       `json:"modules"`
	Permissions map[string]any `json:"permissions,omitempty"`
	ExpiresAt   time.Time      `json:"expires_at"`
	UsageCount  int            `json:"usage_count"`
	MaxUsage    int            `json:"max_usage"` // 0 means unbounded
}

// Allows reports whether the grant covers module and is still live at now.
// Expiry is always evaluated against the supplied instant, never cached.
func (e Entitlement) Allows(module string, now time.Time) bool {
	if !now.Before(e.ExpiresAt) {
		return false
	}
	for _, m := range e.Modules {
		if m == module {
			return true
		}
	}
	return false
}

// Expired reports whether the grant's lifetime has passed at now.
func (e Entitlement) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// clone detaches the modules slice and permissions map so holders of the copy
// cannot reach the original's state.
func (e Entitlement) clone() Entitlement {
	if e.Modules != nil {
		e.Modules = append([]string(nil), e.Modules...)
	}
	if e.Permissions != nil {
		perms := make(map[string]any, len(e.Permissions))
		for k, v := range e.Permissions {
			perms[k] = v
		}
		e.Permissions = perms
	}
	return e
}

// ErrTokenRejected indicates the validation service refused the token.
var ErrTokenRejected = errors.New("entitlement: token rejected")

// Validator is the remote entitlement-validation collaborator. Any error is
// treated by the cache identically to a rejection.
type Validator interface {
	Validate(ctx context.Context, token, module string) (Entitlement, error)
}

// TierSource exposes the subscription tier of the active identity; privileged
// tiers bypass entitlement checks entirely.
type TierSource interface {
	Tier() string
}

// PrivilegedTier reports whether tier bypasses entitlement gating.
func PrivilegedTier(tier string) bool {
	return tier == "tier1" || tier == "tier2"
}

// Package identity verifies user credentials and issues bearer tokens for the
// session layer.
package identity

import (
	"context"
	"errors"

	"bizgrid.org/internal/session"
)

var (
	ErrUnauthorized = errors.New("identity: unauthorized")
	ErrInvalidToken = errors.New("identity: invalid token")
	ErrExists       = errors.New("identity: user already exists")
)

// Authenticator exchanges credentials for an identity and a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (session.Identity, string, error)
}

type identityContextKey struct{}

// ContextWithIdentity attaches the authenticated identity to the context.
func ContextWithIdentity(ctx context.Context, id session.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, &id)
}

// IdentityFromContext extracts the authenticated identity from the context.
func IdentityFromContext(ctx context.Context) (session.Identity, bool) {
	if ctx == nil {
		return session.Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(*session.Identity)
	if !ok || v == nil {
		return session.Identity{}, false
	}
	return *v, true
}

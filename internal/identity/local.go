package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"bizgrid.org/internal/session"
)

const defaultTokenTTL = 24 * time.Hour

// Local authenticates against an in-process user table and signs HS256 bearer
// tokens. It backs single-node deployments and tests; production installs
// swap in a directory-backed Authenticator.
type Local struct {
	mu     sync.RWMutex
	users  map[string]localUser
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

type localUser struct {
	identity     session.Identity
	passwordHash string
}

type tokenClaims struct {
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role"`
	Tier        string `json:"tier"`
	jwt.RegisteredClaims
}

// LocalOption configures Local behavior.
type LocalOption func(*Local)

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) LocalOption {
	return func(l *Local) {
		l.issuer = strings.TrimSpace(issuer)
	}
}

// WithTokenTTL configures bearer token lifetime.
func WithTokenTTL(ttl time.Duration) LocalOption {
	return func(l *Local) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) LocalOption {
	return func(l *Local) {
		if fn != nil {
			l.now = fn
		}
	}
}

// NewLocal constructs the authenticator. The signing secret must be non-empty.
func NewLocal(secret string, opts ...LocalOption) (*Local, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("identity: signing secret is required")
	}
	l := &Local{
		users:  make(map[string]localUser),
		secret: []byte(secret),
		issuer: "bizgrid",
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Register adds a user with a bcrypt-hashed password. Usernames are
// case-insensitive.
func (l *Local) Register(id session.Identity, password string) error {
	username := normalizeUsername(id.Username)
	if username == "" || password == "" {
		return errors.New("identity: username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if id.ID == "" {
		id.ID = uuid.NewString()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.users[username]; ok {
		return ErrExists
	}
	l.users[username] = localUser{identity: id, passwordHash: string(hash)}
	return nil
}

// Authenticate verifies the credentials and returns the identity together with
// a signed bearer token. Any failure surfaces as ErrUnauthorized so callers
// cannot distinguish unknown users from wrong passwords.
func (l *Local) Authenticate(ctx context.Context, username, password string) (session.Identity, string, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return session.Identity{}, "", ErrUnauthorized
	}

	l.mu.RLock()
	user, ok := l.users[username]
	l.mu.RUnlock()
	if !ok {
		return session.Identity{}, "", ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.passwordHash), []byte(password)); err != nil {
		return session.Identity{}, "", ErrUnauthorized
	}

	token, err := l.signToken(user.identity)
	if err != nil {
		return session.Identity{}, "", err
	}
	return user.identity, token, nil
}

// Verify parses and validates a bearer token previously issued by this
// authenticator and reconstructs the identity embedded in its claims.
func (l *Local) Verify(token string) (session.Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return l.secret, nil
	}, jwt.WithIssuer(l.issuer), jwt.WithTimeFunc(func() time.Time { return l.now() }))
	if err != nil {
		return session.Identity{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || claims.Subject == "" {
		return session.Identity{}, ErrInvalidToken
	}
	return session.Identity{
		ID:          claims.Subject,
		Username:    claims.Username,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		Role:        claims.Role,
		Tier:        claims.Tier,
	}, nil
}

func (l *Local) signToken(id session.Identity) (string, error) {
	now := l.now()
	claims := tokenClaims{
		Username:    id.Username,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		Role:        id.Role,
		Tier:        id.Tier,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			Issuer:    l.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(l.ttl)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.secret)
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

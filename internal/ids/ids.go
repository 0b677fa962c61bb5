package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier combining the current
// time with monotonic entropy. Not cryptographically secure; intended for
// record identifiers, not secrets.
func New() string {
	return NewAt(time.Now())
}

// NewAt builds an identifier for an explicit timestamp. Useful in tests that
// need deterministic ordering.
func NewAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Package lease provides short-lived claims on artifact checks so that
// several ledger processes never check the same artifact at once.
package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Lease grants exclusive, expiring ownership of a key.
type Lease interface {
	// Acquire claims key for ttl. It returns false if another owner holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release gives up a claim held by this owner. Releasing a key held by
	// someone else, or not held at all, is a no-op.
	Release(ctx context.Context, key string) error
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type localClaim struct {
	owner   string
	expires time.Time
}

// LocalLease is a Lease for a single process.
type LocalLease struct {
	mu     sync.Mutex
	owner  string
	claims map[string]localClaim
	clock  Clock
}

var (
	_ Lease = (*LocalLease)(nil)
	_ Lease = (*RedisLease)(nil)
)

// NewLocalLease creates an in-process lease. A nil clock uses the system time.
func NewLocalLease(clock Clock) *LocalLease {
	if clock == nil {
		clock = systemClock{}
	}
	return &LocalLease{
		owner:  uuid.NewString(),
		claims: make(map[string]localClaim),
		clock:  clock,
	}
}

// Acquire claims key until ttl elapses.
func (l *LocalLease) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.claims[key]; ok && now.Before(c.expires) {
		return false, nil
	}
	l.claims[key] = localClaim{owner: l.owner, expires: now.Add(ttl)}
	return true, nil
}

// Release drops the claim on key.
func (l *LocalLease) Release(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.claims[key]; ok && c.owner == l.owner {
		delete(l.claims, key)
	}
	return nil
}

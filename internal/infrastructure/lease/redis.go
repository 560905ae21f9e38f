package lease

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	rperrors "github.com/spinnaker/spinnaker-sub014/internal/errors"
)

// DefaultKeyPrefix namespaces lease keys in Redis.
const DefaultKeyPrefix = "ledger:check-lease:"

// releaseScript deletes the key only while it still holds our owner token,
// so an expired claim taken over by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease is a Lease shared by every process using the same Redis.
type RedisLease struct {
	client redis.UniversalClient
	prefix string
	owner  string
	logger *log.Logger
}

// RedisOption configures a RedisLease.
type RedisOption func(*RedisLease)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(l *RedisLease) {
		l.prefix = prefix
	}
}

// WithOwner sets the owner token written into claimed keys.
func WithOwner(owner string) RedisOption {
	return func(l *RedisLease) {
		l.owner = owner
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) RedisOption {
	return func(l *RedisLease) {
		l.logger = logger
	}
}

// NewRedisLease creates a lease backed by client.
func NewRedisLease(client redis.UniversalClient, opts ...RedisOption) *RedisLease {
	l := &RedisLease{
		client: client,
		prefix: DefaultKeyPrefix,
		owner:  uuid.NewString(),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Owner returns the token identifying this process's claims.
func (l *RedisLease) Owner() string {
	return l.owner
}

// Acquire claims key with SET NX PX.
func (l *RedisLease) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+key, l.owner, ttl).Result()
	if err != nil {
		l.logger.Error("redis lease acquire failed", "key", key, "error", err)
		return false, rperrors.NetworkWrap(err, "lease.RedisLease.Acquire", "failed to acquire check lease")
	}
	l.logger.Debug("redis lease acquire", "key", key, "acquired", ok, "ttl", ttl)
	return ok, nil
}

// Release deletes key if this owner still holds it.
func (l *RedisLease) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + key}, l.owner).Err(); err != nil && err != redis.Nil {
		l.logger.Error("redis lease release failed", "key", key, "error", err)
		return rperrors.NetworkWrap(err, "lease.RedisLease.Release", "failed to release check lease")
	}
	return nil
}

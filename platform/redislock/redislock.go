// Package redislock provides short-lived named leases in Redis so that
// several API and worker processes can serialize work on one entity.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lease could not be taken before the
// caller's context expired.
var ErrNotAcquired = errors.New("redislock: lease not acquired")

const defaultRetryInterval = 25 * time.Millisecond

// releaseScript deletes the key only if it still holds our token, so an
// expired lease never removes a lease taken over by another holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out leases under a key prefix.
type Locker struct {
	client        redis.UniversalClient
	prefix        string
	ttl           time.Duration
	retryInterval time.Duration
}

// Lease is a held lock. Release is idempotent.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

// New creates a Locker. ttl bounds how long a crashed holder blocks others.
func New(client redis.UniversalClient, prefix string, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &Locker{
		client:        client,
		prefix:        prefix,
		ttl:           ttl,
		retryInterval: defaultRetryInterval,
	}
}

// Acquire blocks until the lease for name is held or ctx is done.
func (l *Locker) Acquire(ctx context.Context, name string) (*Lease, error) {
	key := l.prefix + name
	token := uuid.NewString()

	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("redislock: acquire %s: %w", key, err)
		}
		if ok {
			return &Lease{locker: l, key: key, token: token}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		case <-ticker.C:
		}
	}
}

// Release gives the lease back. Releasing a lease that already expired is
// not an error.
func (lease *Lease) Release(ctx context.Context) error {
	if lease == nil || lease.token == "" {
		return nil
	}
	token := lease.token
	lease.token = ""

	if err := releaseScript.Run(ctx, lease.locker.client, []string{lease.key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redislock: release %s: %w", lease.key, err)
	}
	return nil
}

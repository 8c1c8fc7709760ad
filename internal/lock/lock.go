package redlock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker is a TTL-bounded advisory lock over a single redis key. It prevents
// duplicate concurrent order intents for the same (buyer, kind, entity), but
// it is not a consistency guarantee on the ledger itself; the database's
// uniqueness constraints are the final backstop.
type Locker struct {
	client redis.UniversalClient
	key    string
	value  string // Used for ensuring that only the lock holder can unlock the lock
}

func NewLocker(client redis.UniversalClient, key, value string) *Locker {
	return &Locker{
		client: client,
		key:    key,
		value:  value,
	}
}

// Acquire tries to take the lock for ttl without blocking or queueing.
// It returns false when another holder already owns the key.
func (l *Locker) Acquire(ctx context.Context, ttl time.Duration) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, ttl).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Release drops the lock if this locker still holds it. Releasing an expired
// or already-released lock is a no-op, so Release is always safe to defer.
func (l *Locker) Release(ctx context.Context) error {
	script := "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

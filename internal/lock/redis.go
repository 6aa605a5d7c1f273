package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix = "turnlock:"
	// Lease must outlive the slowest turn: two model calls plus one
	// tool dispatch, each with its own timeout.
	defaultLease = 2 * time.Minute
	pollInterval = 50 * time.Millisecond
)

// Compare-and-delete so a lock holder never releases a lease that has
// expired and been re-acquired by another replica.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is the cross-process ConversationLocker. Each lock is a
// leased key acquired with SET NX PX, held by a unique token.
type RedisLocker struct {
	client *redis.Client
	lease  time.Duration
}

// NewRedisLocker creates a locker on the given client.
func NewRedisLocker(client *redis.Client, lease time.Duration) *RedisLocker {
	if lease <= 0 {
		lease = defaultLease
	}
	return &RedisLocker{client: client, lease: lease}
}

// Lock implements ConversationLocker.
func (l *RedisLocker) Lock(ctx context.Context, conversationID string) (func(), error) {
	key := lockKeyPrefix + conversationID
	token := uuid.New().String()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.lease).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				// Release outside the turn's context: the lock must be
				// freed even when the caller disconnected mid-turn.
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

package expiry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const lockKey = "regbook:expiry:leader"

// releaseScript deletes the lock only if this instance still holds it.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker elects a sweep leader with SET NX EX. The TTL bounds how long
// a crashed leader blocks other instances.
type RedisLocker struct {
	client *goredis.Client
	token  string
	ttl    time.Duration
}

func NewRedisLocker(client *goredis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: client,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

func (l *RedisLocker) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire sweep lock: %w", err)
	}
	return ok, nil
}

func (l *RedisLocker) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{lockKey}, l.token).Err(); err != nil {
		return fmt.Errorf("release sweep lock: %w", err)
	}
	return nil
}

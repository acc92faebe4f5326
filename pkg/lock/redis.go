package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// unlockScript deletes the key only if it still holds our token, so a lock
// that expired and was taken by another instance is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every API instance pointing at the same
// Redis. Locks expire after TTL if the holder dies.
type RedisLocker struct {
	client        redis.UniversalClient
	prefix        string
	ttl           time.Duration
	retryInterval time.Duration
}

type RedisOption func(*RedisLocker)

func WithPrefix(prefix string) RedisOption {
	return func(l *RedisLocker) { l.prefix = prefix }
}

func WithRetryInterval(d time.Duration) RedisOption {
	return func(l *RedisLocker) { l.retryInterval = d }
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client:        client,
		prefix:        "ward:lock:",
		ttl:           ttl,
		retryInterval: 25 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		// The request context may already be cancelled; releasing must still
		// reach Redis.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := unlockScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
			log.Warn().Err(err).Str("key", redisKey).Msg("Failed to release lock")
		}
	}, nil
}

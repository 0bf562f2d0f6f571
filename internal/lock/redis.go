package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOptions configures a Redis locker.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// TTL bounds how long a crashed holder keeps the lock.
	TTL time.Duration
	// RetryInterval is the polling interval while waiting.
	RetryInterval time.Duration
	// Prefix namespaces lock keys.
	Prefix string
}

// Redis is a Locker shared between processes. Each lock is a key set with
// SET NX PX holding a random token; release deletes it only if the token
// still matches.
type Redis struct {
	rdb  redis.UniversalClient
	opts RedisOptions
}

// NewRedis connects to Redis and verifies the connection with a PING.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisWithClient(rdb, opts), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(rdb redis.UniversalClient, opts RedisOptions) *Redis {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 20 * time.Millisecond
	}
	if opts.Prefix == "" {
		opts.Prefix = "listorder:lock:"
	}
	return &Redis{rdb: rdb, opts: opts}
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

// Lock polls SET NX until it succeeds or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (Release, error) {
	redisKey := r.opts.Prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.opts.RetryInterval)
	defer ticker.Stop()
	for {
		ok, err := r.rdb.SetNX(ctx, redisKey, token, r.opts.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}

	return func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, r.rdb, []string{redisKey}, token).Int()
		if err != nil {
			return fmt.Errorf("release %s: %w", key, err)
		}
		if n == 0 {
			return fmt.Errorf("release %s: %w", key, ErrNotHeld)
		}
		return nil
	}, nil
}

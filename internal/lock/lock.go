// Package lock guards pipeline runs with a Redis lease so two full-refresh
// runs never wipe the raw store underneath each other.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/vacancy"
)

// DefaultTTL bounds how long a crashed run can hold the lease.
const DefaultTTL = 30 * time.Minute

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements vacancy.Locker with SET NX PX.
type Locker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	ids    vacancy.IDGenerator
}

// New parses redisURL and verifies connectivity.
func New(ctx context.Context, redisURL, key string, ttl time.Duration, ids vacancy.IDGenerator) (*Locker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(client, key, ttl, ids), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, key string, ttl time.Duration, ids vacancy.IDGenerator) *Locker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Locker{client: client, key: key, ttl: ttl, ids: ids}
}

// Acquire takes the lease or returns vacancy.ErrRunLocked when another run
// holds it. The returned release func is safe to call after the lease expired.
func (l *Locker) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token, err := l.token()
	if err != nil {
		return nil, err
	}
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, vacancy.ErrRunLocked
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("release run lock: %w", err)
		}
		return nil
	}, nil
}

// Close releases the Redis client.
func (l *Locker) Close() error {
	return l.client.Close()
}

func (l *Locker) token() (string, error) {
	if l.ids == nil {
		return fmt.Sprintf("%d", time.Now().UnixNano()), nil
	}
	id, err := l.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	return id, nil
}

// Noop is used when no Redis URL is configured.
type Noop struct{}

// Acquire always succeeds.
func (Noop) Acquire(context.Context) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

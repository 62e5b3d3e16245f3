package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis defaults. A held lock is refreshed every TTL/3, so the TTL only
// bounds how long a crashed holder blocks its key.
const (
	DefaultTTL    = time.Minute
	DefaultPrefix = "guidematrix:run:"

	releaseTimeout = 5 * time.Second
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by another holder is never freed by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// refreshScript extends the expiry only while the key still holds our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// Redis is a Locker shared by every process using the same Redis server.
// The holder keeps extending the expiry until it releases; locks expire
// after the TTL only if the holder dies.
type Redis struct {
	client  redis.UniversalClient
	ttl     time.Duration
	refresh time.Duration
	prefix  string
}

// RedisOption configures a Redis locker.
type RedisOption func(*Redis)

// WithTTL sets the lock expiry.
func WithTTL(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.ttl = d
		}
	}
}

// WithRefresh sets how often a held lock's expiry is extended.
// Values outside (0, TTL) fall back to TTL/3.
func WithRefresh(d time.Duration) RedisOption {
	return func(r *Redis) {
		r.refresh = d
	}
}

// WithPrefix sets the key namespace.
func WithPrefix(p string) RedisOption {
	return func(r *Redis) {
		r.prefix = p
	}
}

// NewRedis wraps a connected client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{client: client, ttl: DefaultTTL, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(r)
	}
	if r.refresh <= 0 || r.refresh >= r.ttl {
		r.refresh = max(r.ttl/3, time.Millisecond)
	}
	return r
}

// TryAcquire implements Locker with SET NX PX and a random owner token.
func (r *Redis) TryAcquire(ctx context.Context, key string) (Release, error) {
	token := uuid.NewString()
	k := r.prefix + key

	ok, err := r.client.SetNX(ctx, k, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lock %s: %w", k, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.keepAlive(k, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			// Expiry frees the key if this fails.
			_ = releaseScript.Run(ctx, r.client, []string{k}, token).Err()
		})
	}, nil
}

// keepAlive extends the expiry of k every refresh interval until stop is
// closed or the key no longer holds token. Failed calls are retried on the
// next tick.
func (r *Redis) keepAlive(k, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			n, err := refreshScript.Run(ctx, r.client, []string{k}, token, r.ttl.Milliseconds()).Int64()
			cancel()
			if err == nil && n == 0 {
				return
			}
		}
	}
}

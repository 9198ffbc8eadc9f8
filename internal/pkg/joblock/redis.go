package joblock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "eventify:job:"

// releaseScript deletes the key only while it still carries our token
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// Redis is a Locker shared by every instance pointed at the same Redis.
// Each lease carries an owner token so one instance never deletes a lease
// another instance took over after expiry. The token is the ctx owner when
// set, otherwise a fresh one remembered per name.
type Redis struct {
	client redis.Cmdable
	token  func() string

	mu     sync.Mutex
	owners map[string]string
}

// NewRedis creates a Redis-backed locker
func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{
		client: client,
		token:  uuid.NewString,
		owners: make(map[string]string),
	}
}

func (r *Redis) TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	key := keyPrefix + name
	token := ownerFrom(ctx)
	if token == "" {
		token = r.token()
	}

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}

	r.mu.Lock()
	r.owners[name] = token
	r.mu.Unlock()
	return true, nil
}

func (r *Redis) Release(ctx context.Context, name string) error {
	key := keyPrefix + name

	r.mu.Lock()
	token := ownerFrom(ctx)
	if token == "" {
		token = r.owners[name]
	}
	held := token != "" && r.owners[name] == token
	if held {
		delete(r.owners, name)
	}
	r.mu.Unlock()
	if !held {
		return ErrNotHeld
	}

	n, err := r.client.Eval(ctx, releaseScript, []string{key}, token).Int64()
	if err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

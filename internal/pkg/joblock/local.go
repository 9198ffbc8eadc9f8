package joblock

import (
	"context"
	"sync"
	"time"
)

type lease struct {
	owner     string
	expiresAt time.Time
}

// Local is a Locker for a single process
type Local struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

// NewLocal creates an in-process locker
func NewLocal() *Local {
	return &Local{leases: make(map[string]lease), now: time.Now}
}

func (l *Local) TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, held := l.leases[name]; held && now.Before(cur.expiresAt) {
		return false, nil
	}
	l.leases[name] = lease{owner: ownerFrom(ctx), expiresAt: now.Add(ttl)}
	return true, nil
}

func (l *Local) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, held := l.leases[name]
	if !held || cur.owner != ownerFrom(ctx) {
		return ErrNotHeld
	}
	delete(l.leases, name)
	return nil
}

// Package joblock keeps a periodic job from running on two schedulers at once.
package joblock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrNotHeld is returned when releasing a lock that expired or was taken over
var ErrNotHeld = errors.New("lock not held")

// Locker hands out named leases. TryAcquire reports false when someone else
// holds name; an unreleased lease lapses after ttl. A lease belongs to the
// owner carried by ctx (see WithOwner), and Release frees it only for that
// owner, so a run that outlived its lease cannot drop its successor's.
type Locker interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

type ownerKey struct{}

// newOwner mints the identity WithLock acquires and releases under
var newOwner = uuid.NewString

// WithOwner tags ctx with the identity leases are taken and released under
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}

// WithLock runs fn while holding name. It reports false without running fn
// when the lock is taken, so an overlapping tick is skipped rather than queued.
func WithLock(ctx context.Context, l Locker, name string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	owner := newOwner()
	ctx = WithOwner(ctx, owner)

	ok, err := l.TryAcquire(ctx, name, ttl)
	if err != nil {
		return false, err
	}
	if !ok {
		log.Warn().Str("job", name).Msg("Job already running, skipping")
		return false, nil
	}

	defer func() {
		// the job ctx may be done by now; release on a fresh one
		relCtx, cancel := context.WithTimeout(WithOwner(context.Background(), owner), 5*time.Second)
		defer cancel()
		if err := l.Release(relCtx, name); err != nil && !errors.Is(err, ErrNotHeld) {
			log.Error().Err(err).Str("job", name).Msg("Failed to release job lock")
		}
	}()

	return true, fn(ctx)
}

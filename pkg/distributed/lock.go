package distributed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Unlock when the key had already expired or
// was taken over by another holder.
var ErrNotHeld = errors.New("lock not held")

// Both scripts compare the stored token before touching the key, so a
// holder can only release or renew its own lock.
var (
	releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

	renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)
)

const acquirePollInterval = 100 * time.Millisecond

// Lock is a single Redis key held by one process at a time. The random
// token ties the key to its holder, so a stale key left by a crashed
// process expires on its own instead of being deleted by a live one.
type Lock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration

	stopOnce  sync.Once
	stopRenew chan struct{}
}

// NewLock builds an unacquired lock on key with the given TTL.
func NewLock(client *redis.Client, key string, ttl time.Duration) *Lock {
	return &Lock{
		client:    client,
		key:       key,
		token:     newToken(),
		ttl:       ttl,
		stopRenew: make(chan struct{}),
	}
}

func newToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// TryLock attempts a single SET NX. On success the lock renews itself
// in the background until Unlock.
func (l *Lock) TryLock(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("try lock %q: %w", l.key, err)
	}
	if ok {
		go l.keepAlive(ctx)
	}
	return ok, nil
}

// Lock blocks until the lock is acquired or the default 30s budget
// runs out.
func (l *Lock) Lock(ctx context.Context) error {
	return l.LockWithTimeout(ctx, 0)
}

// LockWithTimeout polls for the lock until timeout elapses. A zero
// timeout means the default of 30 seconds.
func (l *Lock) LockWithTimeout(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	deadline := time.Now().Add(timeout)

	for {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("lock %q: acquisition timed out after %v", l.key, timeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(acquirePollInterval):
		}
	}
}

// Unlock stops renewal and deletes the key if this instance still
// holds it. Safe to call more than once.
func (l *Lock) Unlock(ctx context.Context) error {
	l.stopOnce.Do(func() { close(l.stopRenew) })

	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("release lock %q: %w", l.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// IsLocked reports whether any holder currently owns the key.
func (l *Lock) IsLocked(ctx context.Context) (bool, error) {
	n, err := l.client.Exists(ctx, l.key).Result()
	if err != nil {
		return false, fmt.Errorf("check lock %q: %w", l.key, err)
	}
	return n > 0, nil
}

// keepAlive re-arms the TTL at half-life until the lock is released,
// lost or the context ends.
func (l *Lock) keepAlive(ctx context.Context) {
	heartbeat := l.ttl / 2
	if heartbeat <= 0 {
		heartbeat = time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	ttlMillis := l.ttl.Milliseconds()
	for {
		select {
		case <-ticker.C:
			n, err := renewScript.Run(ctx, l.client, []string{l.key}, l.token, ttlMillis).Int64()
			if err != nil || n == 0 {
				// Expired or taken over; nothing left to renew.
				return
			}
		case <-l.stopRenew:
			return
		case <-ctx.Done():
			return
		}
	}
}

// LockManager mints locks under a shared key prefix, one namespace per
// deployment.
type LockManager struct {
	client *redis.Client
	prefix string
}

// NewLockManager creates a lock manager scoped to prefix.
func NewLockManager(client *redis.Client, prefix string) *LockManager {
	return &LockManager{client: client, prefix: prefix}
}

// AcquireLock returns an unacquired lock handle for prefix+key.
func (m *LockManager) AcquireLock(key string, ttl time.Duration) *Lock {
	return NewLock(m.client, m.prefix+key, ttl)
}

package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/quotaledger/internal/config"
	quotadomain "github.com/smallbiznis/quotaledger/internal/quota/domain"
	"go.uber.org/zap"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const lockRetryInterval = 25 * time.Millisecond

var ErrLockTimeout = errors.New("lock_timeout")

type Locker struct {
	client *redis.Client
	script *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

// KeyLocker holds a set of redis locks for the duration of one quota operation.
type KeyLocker struct {
	locker *Locker
	log    *zap.Logger
	ttl    time.Duration
	wait   time.Duration
}

func NewKeyLocker(locker *Locker, log *zap.Logger, ttl, wait time.Duration) *KeyLocker {
	return &KeyLocker{locker: locker, log: log.Named("ratelimit.lock"), ttl: ttl, wait: wait}
}

// ProvideKeyLocker yields a nil locker when redis is not configured.
func ProvideKeyLocker(client *redis.Client, cfg config.Config, log *zap.Logger) quotadomain.KeyLocker {
	if client == nil {
		return nil
	}
	return NewKeyLocker(NewLocker(client), log, cfg.Redis.LockTTL, cfg.Redis.LockWait)
}

// Acquire takes keys in the given order, retrying each until the wait budget runs out. Locks
// already taken are released when a later key cannot be acquired.
func (k *KeyLocker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	deadline := time.Now().Add(k.wait)
	held := make(map[string]string, len(keys))
	order := make([]string, 0, len(keys))

	release := func() {
		for i := len(order) - 1; i >= 0; i-- {
			key := order[i]
			if err := k.locker.Release(context.Background(), key, held[key]); err != nil {
				k.log.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
			}
		}
	}

	for _, key := range keys {
		if _, ok := held[key]; ok {
			continue
		}
		token, err := k.acquireOne(ctx, key, deadline)
		if err != nil {
			release()
			return nil, err
		}
		held[key] = token
		order = append(order, key)
	}
	return release, nil
}

func (k *KeyLocker) acquireOne(ctx context.Context, key string, deadline time.Time) (string, error) {
	for {
		token, ok, err := k.locker.TryLock(ctx, key, k.ttl)
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		if !time.Now().Before(deadline) {
			return "", ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

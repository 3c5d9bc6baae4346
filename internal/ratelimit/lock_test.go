package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestTryLockAndRelease(t *testing.T) {
	client, mr := newTestClient(t)
	locker := NewLocker(client)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "quota:lock:CX-1:holder-a", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "quota:lock:CX-1:holder-a", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// a stale token must not release someone else's lock
	require.NoError(t, locker.Release(ctx, "quota:lock:CX-1:holder-a", "stale"))
	assert.True(t, mr.Exists("quota:lock:CX-1:holder-a"))

	require.NoError(t, locker.Release(ctx, "quota:lock:CX-1:holder-a", token))
	assert.False(t, mr.Exists("quota:lock:CX-1:holder-a"))
}

func TestNilLockerIsInert(t *testing.T) {
	var locker *Locker
	assert.Nil(t, NewLocker(nil))
	_, _, err := locker.TryLock(context.Background(), "k", time.Second)
	assert.Error(t, err)
	assert.NoError(t, locker.Release(context.Background(), "k", "t"))
}

func TestKeyLockerAcquiresAllKeys(t *testing.T) {
	client, mr := newTestClient(t)
	keys := NewKeyLocker(NewLocker(client), zap.NewNop(), time.Second, 100*time.Millisecond)

	release, err := keys.Acquire(context.Background(), "quota:lock:A:h", "quota:lock:B:h", "quota:lock:A:h")
	require.NoError(t, err)
	assert.True(t, mr.Exists("quota:lock:A:h"))
	assert.True(t, mr.Exists("quota:lock:B:h"))

	release()
	assert.False(t, mr.Exists("quota:lock:A:h"))
	assert.False(t, mr.Exists("quota:lock:B:h"))
}

func TestKeyLockerTimesOutAndReleasesPartialSet(t *testing.T) {
	client, mr := newTestClient(t)
	require.NoError(t, mr.Set("quota:lock:B:h", "someone-else"))
	keys := NewKeyLocker(NewLocker(client), zap.NewNop(), time.Second, 60*time.Millisecond)

	_, err := keys.Acquire(context.Background(), "quota:lock:A:h", "quota:lock:B:h")
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.False(t, mr.Exists("quota:lock:A:h"))
}

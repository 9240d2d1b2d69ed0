package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reconcilerStub struct {
	calls atomic.Int32
	fixed int64
	err   error
}

func (r *reconcilerStub) ReconcileCounters(context.Context) (int64, error) {
	r.calls.Add(1)
	return r.fixed, r.err
}

func TestReconcileJob_RunOnceWithoutRedis(t *testing.T) {
	stub := &reconcilerStub{fixed: 3}
	ran, err := NewReconcileJob(stub, nil).RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestReconcileJob_LockSkipsConcurrentRun(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	stub := &reconcilerStub{}
	job := NewReconcileJob(stub, rdb)

	require.NoError(t, mr.Set(reconcileLockKey, "1"))
	ran, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Zero(t, stub.calls.Load())

	mr.Del(reconcileLockKey)
	ran, err = job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists(reconcileLockKey), "lock is released after the run")
}

func TestReconcileJob_PropagatesError(t *testing.T) {
	stub := &reconcilerStub{err: errors.New("db down")}
	ran, err := NewReconcileJob(stub, nil).RunOnce(context.Background())
	assert.True(t, ran)
	assert.EqualError(t, err, "db down")
}

func TestManager_RegisterAndRun(t *testing.T) {
	m := NewManager()
	stub := &reconcilerStub{}

	require.NoError(t, m.Register("reconcile", "* * * * * *", NewReconcileJob(stub, nil)))
	require.NoError(t, m.Register("disabled", "", NewReconcileJob(stub, nil)))
	assert.Error(t, m.Register("broken", "not a schedule", NewReconcileJob(stub, nil)))
	assert.Equal(t, 1, m.Len())

	m.Start()
	assert.Eventually(t, func() bool { return stub.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, m.Stop(ctx))
}

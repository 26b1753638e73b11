package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPools(t *testing.T, fanout int) *Pools {
	t.Helper()
	pools, err := NewPools(context.Background(), PoolConfig{
		FanoutPoolSize:  fanout,
		GeneralPoolSize: 2,
		Nonblocking:     true,
	})
	require.NoError(t, err)
	return pools
}

func TestPools_SubmitDetached_SurvivesRequestContext(t *testing.T) {
	pools := newTestPools(t, 4)
	defer pools.Shutdown()

	reqCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	err := pools.SubmitDetached(SinkPool("queue"), func(ctx context.Context) {
		<-reqCtx.Done()
		assert.NoError(t, ctx.Err(), "detached tasks run on the service context")
		close(done)
	})
	require.NoError(t, err)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("detached task did not finish")
	}
}

func TestPools_ParentCancelDoesNotSkipTasks(t *testing.T) {
	signalCtx, stop := context.WithCancel(context.Background())
	pools, err := NewPools(signalCtx, PoolConfig{FanoutPoolSize: 2, GeneralPoolSize: 2, Nonblocking: true})
	require.NoError(t, err)
	defer pools.Shutdown()

	stop()

	ran := make(chan error, 1)
	require.NoError(t, pools.SubmitDetached(SinkPool("dashboard"), func(ctx context.Context) {
		ran <- ctx.Err()
	}))

	select {
	case err := <-ran:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("task submitted after the signal did not run")
	}
}

func TestPools_ShutdownDrainsRunningTasks(t *testing.T) {
	pools := newTestPools(t, 2)

	started := make(chan struct{})
	var finished atomic.Bool
	var ctxErr atomic.Value
	require.NoError(t, pools.SubmitDetached(PoolGeneral, func(ctx context.Context) {
		close(started)
		time.Sleep(100 * time.Millisecond)
		if ctx.Err() != nil {
			ctxErr.Store(ctx.Err())
		}
		finished.Store(true)
	}))
	<-started

	pools.Shutdown()

	assert.True(t, finished.Load(), "Shutdown waits for running tasks")
	assert.Nil(t, ctxErr.Load(), "the service context stays live while draining")
}

func TestPools_SinkPoolsAreIsolated(t *testing.T) {
	pools := newTestPools(t, 1)
	defer pools.Shutdown()

	block := make(chan struct{})
	defer close(block)
	require.NoError(t, pools.SubmitDetached(SinkPool("queue"), func(context.Context) { <-block }))

	err := pools.SubmitDetached(SinkPool("queue"), func(context.Context) {})
	assert.ErrorIs(t, err, ants.ErrPoolOverload)

	done := make(chan struct{})
	require.NoError(t, pools.SubmitDetached(SinkPool("dashboard"), func(context.Context) { close(done) }))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dashboard pool was starved by the queue pool")
	}
}

func TestPools_SubmitAfterShutdown(t *testing.T) {
	pools := newTestPools(t, 2)
	require.NoError(t, pools.SubmitDetached(SinkPool("queue"), func(context.Context) {}))
	pools.Shutdown()

	assert.ErrorIs(t, pools.SubmitDetached(PoolGeneral, func(context.Context) {}), ErrPoolClosed)
	assert.ErrorIs(t, pools.SubmitDetached(SinkPool("queue"), func(context.Context) {}), ErrPoolClosed)
	assert.ErrorIs(t, pools.SubmitDetached(SinkPool("new"), func(context.Context) {}), ErrPoolClosed)
}

func TestPools_Metrics(t *testing.T) {
	pools := newTestPools(t, 4)
	defer pools.Shutdown()
	require.NoError(t, pools.SubmitDetached(SinkPool("queue"), func(context.Context) {}))

	m := pools.Metrics()
	general, ok := m[PoolGeneral].(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 2, general["cap"])
	queue, ok := m[SinkPool("queue")].(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 4, queue["cap"])
}

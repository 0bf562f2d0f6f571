package lock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoop(t *testing.T) {
	ctx := context.Background()
	release, err := Noop{}.Lock(ctx, "k")
	require.NoError(t, err)
	_, err = Noop{}.Lock(ctx, "k")
	require.NoError(t, err, "noop never blocks")
	assert.NoError(t, release(ctx))
}

func TestMutex_Exclusive(t *testing.T) {
	ctx := context.Background()
	m := NewMutex()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Lock(ctx, "scope")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				cur := maxInside.Load()
				if n <= cur || maxInside.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			assert.NoError(t, release(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Zero(t, m.size(), "entries are dropped once released")
}

func TestMutex_IndependentKeys(t *testing.T) {
	ctx := context.Background()
	m := NewMutex()

	a, err := m.Lock(ctx, "a")
	require.NoError(t, err)
	b, err := m.Lock(ctx, "b")
	require.NoError(t, err, "different keys do not contend")

	require.NoError(t, a(ctx))
	require.NoError(t, b(ctx))
}

func TestMutex_ContextCancelled(t *testing.T) {
	m := NewMutex()
	held, err := m.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, held(context.Background()))
	assert.Zero(t, m.size())
}

func TestMutex_DoubleRelease(t *testing.T) {
	m := NewMutex()
	release, err := m.Lock(context.Background(), "k")
	require.NoError(t, err)

	require.NoError(t, release(context.Background()))
	assert.ErrorIs(t, release(context.Background()), ErrNotHeld)
}

func TestRedis_Integration(t *testing.T) {
	addr := os.Getenv("LISTORDER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LISTORDER_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	r, err := NewRedis(ctx, RedisOptions{Addr: addr, TTL: time.Second, Prefix: "listorder:test:"})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	release, err := r.Lock(ctx, "scope")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = r.Lock(waitCtx, "scope")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, release(ctx))
	assert.ErrorIs(t, release(ctx), ErrNotHeld)

	again, err := r.Lock(ctx, "scope")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestNewRedisWithClientDefaults(t *testing.T) {
	r := NewRedisWithClient(nil, RedisOptions{})
	assert.Equal(t, 10*time.Second, r.opts.TTL)
	assert.Equal(t, 20*time.Millisecond, r.opts.RetryInterval)
	assert.Equal(t, "listorder:lock:", r.opts.Prefix)
}

package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T, limit int, window time.Duration) (*Redis, *miniredis.Miniredis, *fakeClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	clock := &fakeClock{t: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)}
	r := NewRedis(client, limit, window, "rl:", nil)
	r.now = clock.now
	return r, mr, clock
}

func TestRedis_AllowsUpToLimit(t *testing.T) {
	r, mr, _ := newTestRedis(t, 2, time.Minute)
	ctx := context.Background()

	assert.True(t, r.Allow(ctx, "u1"))
	assert.True(t, r.Allow(ctx, "u1"))
	assert.False(t, r.Allow(ctx, "u1"))
	assert.True(t, r.Allow(ctx, "u2"))

	members, err := mr.ZMembers("rl:u1")
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestRedis_Slides(t *testing.T) {
	r, _, clock := newTestRedis(t, 1, time.Minute)
	ctx := context.Background()

	assert.True(t, r.Allow(ctx, "u1"))
	clock.advance(59 * time.Second)
	assert.False(t, r.Allow(ctx, "u1"))
	clock.advance(2 * time.Second)
	assert.True(t, r.Allow(ctx, "u1"))
}

func TestRedis_ConcurrentAdmission(t *testing.T) {
	r, mr, _ := newTestRedis(t, 10, time.Minute)
	ctx := context.Background()

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Allow(ctx, "u1") {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), admitted.Load())
	members, err := mr.ZMembers("rl:u1")
	require.NoError(t, err)
	assert.Len(t, members, 10)
}

func TestRedis_SetsExpiry(t *testing.T) {
	r, mr, _ := newTestRedis(t, 5, time.Minute)

	require.True(t, r.Allow(context.Background(), "u1"))
	assert.Equal(t, time.Minute, mr.TTL("rl:u1"))
}

func TestRedis_FailsOpen(t *testing.T) {
	r, mr, _ := newTestRedis(t, 1, time.Minute)
	mr.SetError("LOADING redis is loading the dataset")

	assert.True(t, r.Allow(context.Background(), "u1"))
	assert.True(t, r.Allow(context.Background(), "u1"))
}

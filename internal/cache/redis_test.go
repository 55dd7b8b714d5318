package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/crmcore/internal/config"
)

// Runs against a real Redis when CRM_TEST_REDIS_ADDR is set.
func testRedisThrottle(t *testing.T) *Throttle {
	t.Helper()
	addr := os.Getenv("CRM_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CRM_TEST_REDIS_ADDR not set")
	}
	client := NewClient(config.RedisConfig{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, NewCache(client).Ping(context.Background()))
	th, err := NewRedisThrottle(client)
	require.NoError(t, err)
	return th
}

func requireFixedWindow(t *testing.T, th *Throttle) {
	t.Helper()
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	for i := 0; i < 3; i++ {
		ok, err := th.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		require.True(t, ok, "hit %d", i+1)
	}
	ok, err := th.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = th.Allow(ctx, "test:"+uuid.NewString(), 3, time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "keys are independent")
}

func TestMemoryThrottleFixedWindow(t *testing.T) {
	requireFixedWindow(t, NewMemoryThrottle())
}

func TestRedisThrottleFixedWindow(t *testing.T) {
	requireFixedWindow(t, testRedisThrottle(t))
}

func TestRedisThrottleWindowExpires(t *testing.T) {
	th := testRedisThrottle(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	ok, err := th.Allow(ctx, key, 1, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = th.Allow(ctx, key, 1, time.Second)
	require.NoError(t, err)
	require.False(t, ok)

	require.Eventually(t, func() bool {
		ok, err := th.Allow(ctx, key, 1, time.Second)
		return err == nil && ok
	}, 5*time.Second, 200*time.Millisecond)
}

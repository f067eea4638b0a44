package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestLimiter(t *testing.T, limit int64, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	t.Cleanup(func() { rdb.Close() })

	limiter, err := New(Options{
		Redis:  rdb,
		Logger: zaptest.NewLogger(t),
		Limit:  limit,
		Window: window,
	})
	require.NoError(t, err)
	return limiter, mr
}

func TestAllowUnderLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3, time.Second*10)

	for i := 0; i < 3; i++ {
		decision, err := limiter.Allow("user-a")
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, int64(3), decision.Limit)
		assert.Equal(t, int64(2-i), decision.Remaining)
	}
}

func TestDenyOverLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3, time.Second*10)

	for i := 0; i < 3; i++ {
		_, err := limiter.Allow("user-a")
		require.NoError(t, err)
	}

	decision, err := limiter.Allow("user-a")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, int64(0), decision.Remaining)
}

func TestIdentifiersAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Second*10)

	decision, err := limiter.Allow("user-a")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	decision, err = limiter.Allow("user-a")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	decision, err = limiter.Allow("user-b")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestSubSecondWindowStillLimits(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Millisecond*500)

	decision, err := limiter.Allow("user-a")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	// the window key must survive the pipeline: a second hit inside the
	// window is denied, not admitted against a freshly expired key
	decision, err = limiter.Allow("user-a")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestWindowSlides(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2, time.Millisecond*100)

	_, err := limiter.Allow("user-a")
	require.NoError(t, err)
	_, err = limiter.Allow("user-a")
	require.NoError(t, err)

	decision, err := limiter.Allow("user-a")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	// entries older than the window are pruned on the next check
	time.Sleep(time.Millisecond * 150)

	decision, err = limiter.Allow("user-a")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

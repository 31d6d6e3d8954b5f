package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewLimiter(rdb, cfg, nil), mr
}

func TestAllowUnderLimit(t *testing.T) {
	l, _ := newTestLimiter(t, Config{PerMinute: 3})

	for i := 0; i < 3; i++ {
		ok, reason := l.Allow(context.Background(), "+15551234567")
		assert.True(t, ok)
		assert.Empty(t, reason)
	}
}

func TestPerMinuteLimit(t *testing.T) {
	l, _ := newTestLimiter(t, Config{PerMinute: 2, BlockThreshold: 100})

	ctx := context.Background()
	l.Allow(ctx, "+15551234567")
	l.Allow(ctx, "+15551234567")

	ok, reason := l.Allow(ctx, "+15551234567")
	assert.False(t, ok)
	assert.Equal(t, ReasonPerMinute, reason)

	// Other phones are unaffected.
	ok, _ = l.Allow(ctx, "+15559999999")
	assert.True(t, ok)
}

func TestAutoBlockOnFlood(t *testing.T) {
	l, _ := newTestLimiter(t, Config{PerMinute: 2, BlockThreshold: 5, BlockDuration: time.Hour})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		l.Allow(ctx, "+15551234567")
	}

	ok, reason := l.Allow(ctx, "+15551234567")
	assert.False(t, ok)
	assert.Equal(t, ReasonBlocked, reason)

	// Block persists even in a fresh minute window.
	ok, reason = l.Allow(ctx, "+15551234567")
	assert.False(t, ok)
	assert.Equal(t, ReasonBlocked, reason)
}

func TestUnblockRestoresService(t *testing.T) {
	l, mr := newTestLimiter(t, Config{PerMinute: 10, BlockThreshold: 2})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		l.Allow(ctx, "+15551234567")
	}
	ok, _ := l.Allow(ctx, "+15551234567")
	require.False(t, ok)

	removed, err := l.Unblock(ctx, "+15551234567")
	require.NoError(t, err)
	assert.True(t, removed)
	mr.FastForward(2 * time.Minute)

	ok, _ = l.Allow(ctx, "+15551234567")
	assert.True(t, ok)
}

func TestUnblockUnknownPhone(t *testing.T) {
	l, _ := newTestLimiter(t, Config{})

	removed, err := l.Unblock(context.Background(), "+15559999999")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestManualBlockAndList(t *testing.T) {
	l, _ := newTestLimiter(t, Config{})

	ctx := context.Background()
	require.NoError(t, l.Block(ctx, "+15551234567", "spam"))

	ok, reason := l.Allow(ctx, "+15551234567")
	assert.False(t, ok)
	assert.Equal(t, ReasonBlocked, reason)

	entries, err := l.Blocked(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "+15551234567", entries[0].Phone)
	assert.Equal(t, "spam", entries[0].Reason)
	assert.False(t, entries[0].Auto)
}

func TestAutoBlockListedWithReason(t *testing.T) {
	l, _ := newTestLimiter(t, Config{PerMinute: 10, BlockThreshold: 2})

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		l.Allow(ctx, "+15551234567")
	}

	entries, err := l.Blocked(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Auto)
	assert.Equal(t, "flooding", entries[0].Reason)
}

func TestDailyCap(t *testing.T) {
	l, _ := newTestLimiter(t, Config{PerMinute: 100, BlockThreshold: 200, DailyCap: 3})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ok, _ := l.Allow(ctx, "+15551234567")
		assert.True(t, ok)
	}

	ok, reason := l.Allow(ctx, "+15550000001")
	assert.False(t, ok)
	assert.Equal(t, ReasonDailyCap, reason)
}

func TestFailsOpenWhenRedisDown(t *testing.T) {
	l, mr := newTestLimiter(t, Config{})
	mr.Close()

	ok, reason := l.Allow(context.Background(), "+15551234567")
	assert.True(t, ok)
	assert.Empty(t, reason)
}

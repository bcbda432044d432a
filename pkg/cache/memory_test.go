package cache

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(0)

	_, ok := c.Get("predict:missing")
	assert.False(t, ok)

	require.NoError(t, c.Set("predict:abc", []byte(`{"eta":1}`), time.Minute))

	value, ok := c.Get("predict:abc")
	require.True(t, ok)
	assert.Equal(t, `{"eta":1}`, string(value))

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.EntryCount)
	assert.Equal(t, int64(1), stats.HitCount)
	assert.Equal(t, int64(1), stats.MissCount)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestMemoryCache_DeleteAndClear(t *testing.T) {
	c := NewMemoryCache(MinMemoryCacheSize)
	require.NoError(t, c.Set("a", []byte("1"), 0))
	require.NoError(t, c.Set("b", []byte("2"), 0))

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	_, ok := c.Get("b")
	assert.True(t, ok)

	c.Clear()
	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, int64(0), c.Stats().EntryCount)
}

type manualTimer struct {
	now uint32
}

func (t *manualTimer) Now() uint32 { return atomic.LoadUint32(&t.now) }

func (t *manualTimer) advance(seconds uint32) { atomic.AddUint32(&t.now, seconds) }

// Verifies that a sub-second ttl still expires instead of living forever.
func TestMemoryCache_SubSecondTTLExpires(t *testing.T) {
	timer := &manualTimer{now: 1000}
	c := newMemoryCache(MinMemoryCacheSize, timer)

	require.NoError(t, c.Set("short", []byte("1"), 200*time.Millisecond))
	require.NoError(t, c.Set("forever", []byte("2"), 0))

	_, ok := c.Get("short")
	assert.True(t, ok)

	timer.advance(2)
	_, ok = c.Get("short")
	assert.False(t, ok)
	_, ok = c.Get("forever")
	assert.True(t, ok)
}

func TestExpireSeconds(t *testing.T) {
	assert.Equal(t, 0, expireSeconds(0))
	assert.Equal(t, 0, expireSeconds(-time.Second))
	assert.Equal(t, 1, expireSeconds(time.Millisecond))
	assert.Equal(t, 1, expireSeconds(time.Second))
	assert.Equal(t, 2, expireSeconds(1500*time.Millisecond))
	assert.Equal(t, 300, expireSeconds(5*time.Minute))
}

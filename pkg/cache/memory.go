package cache

import (
	"math"
	"time"

	"github.com/coocood/freecache"
)

// MinMemoryCacheSize is the smallest arena freecache accepts.
const MinMemoryCacheSize = 512 * 1024

// MemoryCache is an in-process byte cache with bounded memory and no GC
// overhead per entry.
type MemoryCache struct {
	cache *freecache.Cache
}

type MemoryStats struct {
	HitRate       float64 `json:"hit_rate"`
	EntryCount    int64   `json:"entry_count"`
	HitCount      int64   `json:"hit_count"`
	MissCount     int64   `json:"miss_count"`
	EvacuateCount int64   `json:"evacuate_count"`
	ExpiredCount  int64   `json:"expired_count"`
}

func NewMemoryCache(sizeInBytes int) *MemoryCache {
	return newMemoryCache(sizeInBytes, nil)
}

func newMemoryCache(sizeInBytes int, timer freecache.Timer) *MemoryCache {
	if sizeInBytes < MinMemoryCacheSize {
		sizeInBytes = MinMemoryCacheSize
	}
	if timer == nil {
		return &MemoryCache{cache: freecache.NewCache(sizeInBytes)}
	}
	return &MemoryCache{cache: freecache.NewCacheCustomTimer(sizeInBytes, timer)}
}

func (m *MemoryCache) Get(key string) ([]byte, bool) {
	value, err := m.cache.Get([]byte(key))
	if err != nil {
		return nil, false
	}
	return value, true
}

// Set stores value for ttl, rounded up to whole seconds since freecache
// reads zero as no expiry. A non-positive ttl stores the entry without expiry.
func (m *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	return m.cache.Set([]byte(key), value, expireSeconds(ttl))
}

func expireSeconds(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	seconds := int64(ttl / time.Second)
	if ttl%time.Second != 0 {
		seconds++
	}
	if seconds > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(seconds)
}

func (m *MemoryCache) Delete(key string) bool {
	return m.cache.Del([]byte(key))
}

func (m *MemoryCache) Clear() {
	m.cache.Clear()
}

func (m *MemoryCache) Stats() MemoryStats {
	return MemoryStats{
		HitRate:       m.cache.HitRate(),
		EntryCount:    m.cache.EntryCount(),
		HitCount:      m.cache.HitCount(),
		MissCount:     m.cache.MissCount(),
		EvacuateCount: m.cache.EvacuateCount(),
		ExpiredCount:  m.cache.ExpiredCount(),
	}
}

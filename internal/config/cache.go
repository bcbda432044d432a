package config

import (
	"time"

	"etaservice/pkg/cache"
)

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	// LocalSizeBytes sizes the in-process tier; zero disables it.
	LocalSizeBytes int `yaml:"local_size_bytes"`
}

func loadCacheConfig() *CacheConfig {
	cfg := &CacheConfig{
		Enabled:        getEnvAsBool("CACHE_ENABLED", true),
		TTL:            getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		LocalSizeBytes: getEnvAsInt("CACHE_LOCAL_SIZE_BYTES", 32*1024*1024),
	}
	if cfg.LocalSizeBytes > 0 && cfg.LocalSizeBytes < cache.MinMemoryCacheSize {
		cfg.LocalSizeBytes = cache.MinMemoryCacheSize
	}
	return cfg
}

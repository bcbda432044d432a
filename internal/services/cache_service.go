package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"etaservice/internal/utils"
	"etaservice/pkg/cache"
	"etaservice/pkg/logger"
	"etaservice/pkg/metrics"
	"etaservice/pkg/ml"
)

// PredictionCache stores prediction results in an in-process tier backed
// by a shared store. Failures are logged and reported as misses.
type PredictionCache interface {
	Get(ctx context.Context, key string) (*ml.PredictionResult, bool)
	Set(ctx context.Context, key string, result *ml.PredictionResult)
	// Clear drops every cached prediction and returns how many shared
	// entries were removed.
	Clear(ctx context.Context) (int64, error)
	Connected(ctx context.Context) bool
	Stats(ctx context.Context) *CacheStats
}

type CacheStats struct {
	Enabled         bool               `json:"enabled"`
	TTLSeconds      float64            `json:"ttl_seconds"`
	Local           *cache.MemoryStats `json:"local,omitempty"`
	RemoteEnabled   bool               `json:"remote_enabled"`
	RemoteConnected bool               `json:"remote_connected"`
}

type predictionCache struct {
	local   *cache.MemoryCache
	remote  cache.Store
	ttl     time.Duration
	logger  *logger.Logger
	metrics *metrics.Client
}

// NewPredictionCache combines the tiers; either may be nil.
func NewPredictionCache(local *cache.MemoryCache, remote cache.Store, ttl time.Duration, log *logger.Logger, m *metrics.Client) PredictionCache {
	if log == nil {
		log = logger.Discard()
	}
	if m == nil {
		m = metrics.NoOp()
	}
	return &predictionCache{
		local:   local,
		remote:  remote,
		ttl:     ttl,
		logger:  log.WithField("component", "prediction_cache"),
		metrics: m,
	}
}

type cacheKeyFields struct {
	Distance      float64 `json:"distance"`
	BaseSpeed     float64 `json:"base_speed"`
	TrafficFactor float64 `json:"traffic_factor"`
	Vehicle       string  `json:"vehicle"`
	Weather       string  `json:"weather"`
	Route         string  `json:"route"`
	Hour          int     `json:"hour"`
	Day           int     `json:"day"`
	Model         string  `json:"model"`
}

// PredictionKey derives the cache key of req. Omitted time fields are
// resolved against now so cached entries never outlive the hour they were
// computed for.
func PredictionKey(req *ml.ETARequest, now time.Time, modelName string) string {
	fields := cacheKeyFields{
		Distance:      req.Distance,
		BaseSpeed:     req.BaseSpeed,
		TrafficFactor: req.TrafficFactor,
		Vehicle:       req.Vehicle,
		Weather:       req.Weather,
		Route:         req.Route,
		Hour:          req.EffectiveHour(now),
		Day:           req.EffectiveDay(now),
		Model:         modelName,
	}
	data, _ := json.Marshal(fields)
	sum := sha256.Sum256(data)
	return utils.CachePredictionPrefix + hex.EncodeToString(sum[:])
}

func (c *predictionCache) Get(ctx context.Context, key string) (*ml.PredictionResult, bool) {
	if c.local != nil {
		if data, ok := c.local.Get(key); ok {
			var result ml.PredictionResult
			if err := json.Unmarshal(data, &result); err == nil {
				c.metrics.Incr(metrics.CacheHit, metrics.Tags("tier", "local"))
				return &result, true
			}
			c.local.Delete(key)
		}
	}

	if c.remote != nil {
		var result ml.PredictionResult
		err := c.remote.Get(ctx, key, &result)
		switch {
		case err == nil:
			c.metrics.Incr(metrics.CacheHit, metrics.Tags("tier", "remote"))
			c.setLocal(key, &result)
			return &result, true
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.WithError(err).Warn("Prediction cache read failed")
		}
	}

	c.metrics.Incr(metrics.CacheMiss, nil)
	return nil, false
}

func (c *predictionCache) Set(ctx context.Context, key string, result *ml.PredictionResult) {
	c.setLocal(key, result)

	if c.remote != nil {
		if err := c.remote.Set(ctx, key, result, c.ttl); err != nil {
			c.logger.WithError(err).Warn("Prediction cache write failed")
		}
	}
}

func (c *predictionCache) setLocal(key string, result *ml.PredictionResult) {
	if c.local == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.local.Set(key, data, c.ttl); err != nil {
		c.logger.WithError(err).Debug("Prediction too large for local cache")
	}
}

func (c *predictionCache) Clear(ctx context.Context) (int64, error) {
	if c.local != nil {
		c.local.Clear()
	}
	if c.remote == nil {
		return 0, nil
	}

	deleted, err := c.remote.DeletePattern(ctx, utils.CachePredictionPrefix+"*")
	if err != nil {
		return deleted, err
	}
	c.logger.WithField("deleted", deleted).Info("Prediction cache cleared")
	return deleted, nil
}

func (c *predictionCache) Connected(ctx context.Context) bool {
	if c.remote == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.remote.Ping(ctx) == nil
}

func (c *predictionCache) Stats(ctx context.Context) *CacheStats {
	stats := &CacheStats{
		Enabled:       c.local != nil || c.remote != nil,
		TTLSeconds:    c.ttl.Seconds(),
		RemoteEnabled: c.remote != nil,
	}
	if c.local != nil {
		local := c.local.Stats()
		stats.Local = &local
		c.metrics.Gauge(metrics.CacheHitRate, local.HitRate, nil)
		c.metrics.Gauge(metrics.CacheEntries, float64(local.EntryCount), nil)
	}
	stats.RemoteConnected = c.Connected(ctx)
	return stats
}

type noopCache struct{}

// NoCache is used when caching is disabled.
func NoCache() PredictionCache { return noopCache{} }

func (noopCache) Get(context.Context, string) (*ml.PredictionResult, bool) { return nil, false }
func (noopCache) Set(context.Context, string, *ml.PredictionResult)        {}
func (noopCache) Clear(context.Context) (int64, error)                    { return 0, nil }
func (noopCache) Connected(context.Context) bool                          { return false }
func (noopCache) Stats(context.Context) *CacheStats                       { return &CacheStats{} }

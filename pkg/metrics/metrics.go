package metrics

import (
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"

	"etaservice/pkg/logger"
)

// Metric names
const (
	PredictionLatency = "eta_service.prediction.latency"
	PredictionCount   = "eta_service.prediction.count"
	PredictionError   = "eta_service.prediction.error"
	BatchSize         = "eta_service.prediction.batch_size"
	CacheHit          = "eta_service.cache.hit"
	CacheMiss         = "eta_service.cache.miss"
	CacheHitRate      = "eta_service.cache.l1_hit_rate"
	CacheEntries      = "eta_service.cache.l1_entries"
	ModelReload       = "eta_service.model.reload"
	ModelsLoaded      = "eta_service.model.loaded"
	APIRequestLatency = "eta_service.api.latency"
)

type Config struct {
	Enabled      bool
	Address      string
	Namespace    string
	SamplingRate float64
	Tags         []string
}

// Client is safe for use from multiple goroutines.
type Client struct {
	statsd       statsd.ClientInterface
	samplingRate float64
	logger       *logger.Logger
}

// New returns a statsd backed client, or a no-op client when metrics are
// disabled.
func New(config *Config, log *logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.Discard()
	}
	if !config.Enabled {
		return NoOp(), nil
	}

	rate := config.SamplingRate
	if rate <= 0 || rate > 1 {
		rate = 1
	}

	options := []statsd.Option{statsd.WithTags(config.Tags)}
	if config.Namespace != "" {
		options = append(options, statsd.WithNamespace(config.Namespace))
	}

	client, err := statsd.New(config.Address, options...)
	if err != nil {
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"address":       config.Address,
		"tags":          config.Tags,
		"sampling_rate": rate,
	}).Info("Metrics client initialized")

	return &Client{statsd: client, samplingRate: rate, logger: log}, nil
}

func NoOp() *Client {
	return &Client{statsd: &statsd.NoOpClient{}, samplingRate: 1, logger: logger.Discard()}
}

func (c *Client) Timing(name string, value time.Duration, tags []string) {
	if err := c.statsd.Timing(name, value, tags, c.samplingRate); err != nil {
		c.logger.WithError(err).Warn("Error occurred while doing statsd timing")
	}
}

func (c *Client) Count(name string, value int64, tags []string) {
	if err := c.statsd.Count(name, value, tags, c.samplingRate); err != nil {
		c.logger.WithError(err).Warn("Error occurred while doing statsd count")
	}
}

func (c *Client) Incr(name string, tags []string) {
	c.Count(name, 1, tags)
}

func (c *Client) Gauge(name string, value float64, tags []string) {
	if err := c.statsd.Gauge(name, value, tags, c.samplingRate); err != nil {
		c.logger.WithError(err).Warn("Error occurred while doing statsd gauge")
	}
}

func (c *Client) Close() error {
	return c.statsd.Close()
}

// Tag formats a statsd tag.
func Tag(key, value string) string {
	return key + ":" + value
}

func Tags(pairs ...string) []string {
	tags := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		tags = append(tags, Tag(pairs[i], pairs[i+1]))
	}
	return tags
}

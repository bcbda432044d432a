package config

import (
	"etaservice/pkg/metrics"
)

type MetricsConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Address      string   `yaml:"address"`
	Namespace    string   `yaml:"namespace"`
	SamplingRate float64  `yaml:"sampling_rate"`
	Tags         []string `yaml:"tags"`
}

func loadMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled:      getEnvAsBool("METRICS_ENABLED", false),
		Address:      getEnv("STATSD_ADDRESS", "localhost:8125"),
		Namespace:    getEnv("METRICS_NAMESPACE", ""),
		SamplingRate: getEnvAsFloat64("METRICS_SAMPLING_RATE", 1.0),
		Tags:         getEnvAsSlice("METRICS_TAGS", nil),
	}
}

func (m *MetricsConfig) ClientConfig() *metrics.Config {
	return &metrics.Config{
		Enabled:      m.Enabled,
		Address:      m.Address,
		Namespace:    m.Namespace,
		SamplingRate: m.SamplingRate,
		Tags:         m.Tags,
	}
}

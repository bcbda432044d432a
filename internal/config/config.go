package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App       *AppConfig       `yaml:"app"`
	Database  *DatabaseConfig  `yaml:"database"`
	Redis     *RedisConfig     `yaml:"redis"`
	Cache     *CacheConfig     `yaml:"cache"`
	Maps      *MapsConfig      `yaml:"maps"`
	ML        *MLConfig        `yaml:"ml"`
	Storage   *StorageConfig   `yaml:"storage"`
	WebSocket *WebSocketConfig `yaml:"websocket"`
	Security  *SecurityConfig  `yaml:"security"`
	Metrics   *MetricsConfig   `yaml:"metrics"`
	Notify    *NotifyConfig    `yaml:"notify"`
}

type AppConfig struct {
	Name        string        `yaml:"name"`
	Version     string        `yaml:"version"`
	Environment string        `yaml:"environment"`
	Port        int           `yaml:"port"`
	Host        string        `yaml:"host"`
	Debug       bool          `yaml:"debug"`
	LogLevel    string        `yaml:"log_level"`
	LogFormat   string        `yaml:"log_format"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout also bounds graceful shutdown.
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type SecurityConfig struct {
	JWTSecret          string   `yaml:"jwt_secret"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	TrustedProxies     []string `yaml:"trusted_proxies"`
}

func Load() (*Config, error) {
	config := &Config{
		App:       loadAppConfig(),
		Database:  loadDatabaseConfig(),
		Redis:     loadRedisConfig(),
		Cache:     loadCacheConfig(),
		Maps:      loadMapsConfig(),
		ML:        loadMLConfig(),
		Storage:   loadStorageConfig(),
		WebSocket: loadWebSocketConfig(),
		Security:  loadSecurityConfig(),
		Metrics:   loadMetricsConfig(),
		Notify:    loadNotifyConfig(),
	}

	if err := config.ML.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ml config: %w", err)
	}
	if err := config.Storage.Validate(); err != nil {
		return nil, fmt.Errorf("invalid storage config: %w", err)
	}

	return config, nil
}

// Address is the listen address of the HTTP server.
func (a *AppConfig) Address() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

func loadAppConfig() *AppConfig {
	return &AppConfig{
		Name:         getEnv("APP_NAME", "eta-prediction-service"),
		Version:      getEnv("APP_VERSION", "1.0.0"),
		Environment:  getEnv("APP_ENV", "development"),
		Port:         getEnvAsInt("APP_PORT", 8000),
		Host:         getEnv("APP_HOST", "0.0.0.0"),
		Debug:        getEnvAsBool("APP_DEBUG", false),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "json"),
		ReadTimeout:  getEnvAsDuration("APP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvAsDuration("APP_WRITE_TIMEOUT", 15*time.Second),
	}
}

func loadSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		JWTSecret:          getEnv("JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		TrustedProxies:     getEnvAsSlice("TRUSTED_PROXIES", []string{}),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func IsProduction() bool {
	return getEnv("APP_ENV", "development") == "production"
}

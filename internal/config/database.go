package config

import (
	"time"

	"etaservice/pkg/database"
)

type DatabaseConfig struct {
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	MaxPoolSize    int           `yaml:"max_pool_size"`
	MinPoolSize    int           `yaml:"min_pool_size"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	SocketTimeout  time.Duration `yaml:"socket_timeout"`
	// Retention expires stored predictions; zero keeps them.
	Retention time.Duration `yaml:"retention"`
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		Database:       getEnv("MONGODB_DATABASE", "eta_service"),
		MaxPoolSize:    getEnvAsInt("MONGODB_MAX_POOL_SIZE", 50),
		MinPoolSize:    getEnvAsInt("MONGODB_MIN_POOL_SIZE", 2),
		ConnectTimeout: getEnvAsDuration("MONGODB_CONNECT_TIMEOUT", 10*time.Second),
		SocketTimeout:  getEnvAsDuration("MONGODB_SOCKET_TIMEOUT", 30*time.Second),
		Retention:      getEnvAsDuration("MONGODB_PREDICTION_RETENTION", 30*24*time.Hour),
	}
}

func (d *DatabaseConfig) MongoConfig() *database.DatabaseConfig {
	return &database.DatabaseConfig{
		URI:            d.URI,
		Database:       d.Database,
		MaxPoolSize:    d.MaxPoolSize,
		MinPoolSize:    d.MinPoolSize,
		ConnectTimeout: d.ConnectTimeout,
		SocketTimeout:  d.SocketTimeout,
	}
}

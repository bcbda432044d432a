package config

import (
	"fmt"
)

// StorageConfig selects where model artifacts are read from.
type StorageConfig struct {
	Provider string            `yaml:"provider"`
	AWS      *AWSStorageConfig `yaml:"aws"`
	GCP      *GCPStorageConfig `yaml:"gcp"`
}

type AWSStorageConfig struct {
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Endpoint        string `yaml:"endpoint"`
}

type GCPStorageConfig struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

func loadStorageConfig() *StorageConfig {
	return &StorageConfig{
		Provider: getEnv("STORAGE_PROVIDER", "local"),
		AWS: &AWSStorageConfig{
			Region:          getEnv("AWS_S3_REGION", "us-east-1"),
			Bucket:          getEnv("AWS_S3_BUCKET", ""),
			Prefix:          getEnv("AWS_S3_PREFIX", "model"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
		},
		GCP: &GCPStorageConfig{
			Bucket:          getEnv("GCP_STORAGE_BUCKET", ""),
			Prefix:          getEnv("GCP_STORAGE_PREFIX", "model"),
			CredentialsFile: getEnv("GCP_CREDENTIALS_FILE", ""),
		},
	}
}

func (s *StorageConfig) Validate() error {
	switch s.Provider {
	case "local":
		return nil
	case "s3":
		if s.AWS.Bucket == "" {
			return fmt.Errorf("AWS_S3_BUCKET is required for the s3 provider")
		}
		return nil
	case "gcs":
		if s.GCP.Bucket == "" {
			return fmt.Errorf("GCP_STORAGE_BUCKET is required for the gcs provider")
		}
		return nil
	}
	return fmt.Errorf("unknown storage provider %q", s.Provider)
}

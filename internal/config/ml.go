package config

import (
	"fmt"
	"strings"

	"etaservice/pkg/ml"
)

type MLConfig struct {
	// ModelPath is the artifact directory used with local storage.
	ModelPath      string   `yaml:"model_path"`
	DefaultModel   string   `yaml:"default_model"`
	EnableEnsemble bool     `yaml:"enable_ensemble"`
	EnableNeural   bool     `yaml:"enable_neural"`
	RequiredModels []string `yaml:"required_models"`
	MaxBatchSize   int      `yaml:"max_batch_size"`
	// PredictionLogEnabled stores successful predictions in MongoDB.
	PredictionLogEnabled bool `yaml:"prediction_log_enabled"`
}

func loadMLConfig() *MLConfig {
	cfg := &MLConfig{
		ModelPath:            getEnv("ML_MODEL_PATH", "model"),
		DefaultModel:         strings.ToLower(getEnv("ML_DEFAULT_MODEL", ml.ModelXGBoost)),
		EnableEnsemble:       getEnvAsBool("ML_ENABLE_ENSEMBLE", true),
		EnableNeural:         getEnvAsBool("ML_ENABLE_NEURAL", true),
		RequiredModels:       getEnvAsSlice("ML_REQUIRED_MODELS", nil),
		MaxBatchSize:         getEnvAsInt("ML_MAX_BATCH_SIZE", 100),
		PredictionLogEnabled: getEnvAsBool("PREDICTION_LOG_ENABLED", false),
	}
	if cfg.RequiredModels == nil && cfg.DefaultModel != ml.ModelEnsemble {
		cfg.RequiredModels = []string{cfg.DefaultModel}
	}
	return cfg
}

func (c *MLConfig) Validate() error {
	if !ml.IsKnownModel(c.DefaultModel) {
		return fmt.Errorf("unknown default model %q", c.DefaultModel)
	}
	if c.DefaultModel == ml.ModelNeural && !c.EnableNeural {
		return fmt.Errorf("default model %q is disabled", c.DefaultModel)
	}
	for _, name := range c.RequiredModels {
		if !ml.IsKnownModel(name) || name == ml.ModelEnsemble {
			return fmt.Errorf("unknown required model %q", name)
		}
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("max batch size must be positive, got %d", c.MaxBatchSize)
	}
	return nil
}

// LoadOptions converts the section into registry load options.
func (c *MLConfig) LoadOptions() ml.LoadOptions {
	return ml.LoadOptions{
		EnableEnsemble: c.EnableEnsemble,
		EnableNeural:   c.EnableNeural,
		RequiredModels: c.RequiredModels,
	}
}

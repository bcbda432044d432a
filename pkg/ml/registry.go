package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"etaservice/pkg/logger"
	"etaservice/pkg/storage"
)

// Artifact names relative to the registry prefix.
const (
	EncodersArtifact = "encoders.json"
	ScalerArtifact   = "scaler.json"
	MetadataArtifact = "metadata.json"
	modelFile        = "model.json"
)

// EnsembleWeights maps a base model name to its non-negative blend weight.
// Weights need not sum to 1.
type EnsembleWeights map[string]float64

func DefaultEnsembleWeights() EnsembleWeights {
	return EnsembleWeights{
		ModelXGBoost:  0.4,
		ModelLightGBM: 0.4,
		ModelNeural:   0.2,
	}
}

// ResidualStats maps a model name to its validation residual standard
// deviation in hours.
type ResidualStats map[string]float64

type ModelMetrics struct {
	MAE         *float64 `json:"mae,omitempty"`
	RMSE        *float64 `json:"rmse,omitempty"`
	R2          *float64 `json:"r2,omitempty"`
	ResidualStd *float64 `json:"residual_std,omitempty"`
	MAEMinutes  *float64 `json:"mae_minutes,omitempty"`
	RMSEMinutes *float64 `json:"rmse_minutes,omitempty"`
}

// Metadata is the training summary written next to the model artifacts.
type Metadata struct {
	TrainedAt       string                   `json:"trained_at,omitempty"`
	DataSize        int                      `json:"data_size,omitempty"`
	Features        []string                 `json:"features,omitempty"`
	Models          map[string]*ModelMetrics `json:"models,omitempty"`
	EnsembleWeights EnsembleWeights          `json:"ensemble_weights,omitempty"`
}

func (m *Metadata) residuals() ResidualStats {
	stats := make(ResidualStats)
	for name, metrics := range m.Models {
		if metrics == nil || metrics.ResidualStd == nil {
			continue
		}
		std := *metrics.ResidualStd
		if math.IsNaN(std) || math.IsInf(std, 0) || std < 0 {
			continue
		}
		stats[name] = std
	}
	return stats
}

// checkFeatures verifies a recorded training column list against the
// encoder layout.
func (m *Metadata) checkFeatures() error {
	if len(m.Features) == 0 {
		return nil
	}
	if len(m.Features) != FeatureCount {
		return fmt.Errorf("models were trained on %d features, encoder produces %d", len(m.Features), FeatureCount)
	}
	for i, name := range m.Features {
		idx, err := featureIndex(name)
		if err != nil {
			return err
		}
		if idx != i {
			return fmt.Errorf("feature %q at position %d, encoder places it at %d", name, i, idx)
		}
	}
	return nil
}

func (w EnsembleWeights) validate() error {
	for name, weight := range w {
		if math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
			return fmt.Errorf("ensemble weight for %s must be a non-negative number, got %v", name, weight)
		}
	}
	return nil
}

// Registry holds the loaded models and the artifacts they share. It is
// read-only once constructed.
type Registry struct {
	encoder   *Encoder
	models    map[string]Model
	weights   EnsembleWeights
	residuals ResidualStats
	metadata  Metadata
}

// NewRegistry assembles a registry from already loaded models. The ensemble
// is synthesized when enabled and at least two base models are present.
func NewRegistry(encoder *Encoder, metadata Metadata, enableEnsemble bool, models ...Model) (*Registry, error) {
	if encoder == nil {
		encoder = NewEncoder(nil, nil)
	}
	if err := metadata.EnsembleWeights.validate(); err != nil {
		return nil, newLoadError(MetadataArtifact, err)
	}

	r := &Registry{
		encoder:   encoder,
		models:    make(map[string]Model, len(models)),
		residuals: metadata.residuals(),
		metadata:  metadata,
	}
	for _, m := range models {
		if !isBaseModel(m.Name()) {
			return nil, fmt.Errorf("cannot register model %q", m.Name())
		}
		r.models[m.Name()] = m
	}

	if enableEnsemble && len(r.models) >= 2 {
		r.weights = metadata.EnsembleWeights
		if len(r.weights) == 0 {
			r.weights = DefaultEnsembleWeights()
		}
	}
	return r, nil
}

// Has reports whether name is loaded; "ensemble" is present only when it was
// synthesized.
func (r *Registry) Has(name string) bool {
	if name == ModelEnsemble {
		return r.weights != nil
	}
	_, ok := r.models[name]
	return ok
}

// Get returns a base model. The ensemble has no standalone Model; it is
// evaluated by the Predictor from Weights.
func (r *Registry) Get(name string) (Model, bool) {
	m, ok := r.models[name]
	return m, ok
}

// Names returns every available model name, the ensemble included, sorted.
func (r *Registry) Names() []string {
	names := r.BaseNames()
	if r.weights != nil {
		names = append(names, ModelEnsemble)
		sort.Strings(names)
	}
	return names
}

// BaseNames returns the loaded base models sorted.
func (r *Registry) BaseNames() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Weights() (EnsembleWeights, bool) {
	if r.weights == nil {
		return nil, false
	}
	out := make(EnsembleWeights, len(r.weights))
	for k, v := range r.weights {
		out[k] = v
	}
	return out, true
}

func (r *Registry) ResidualStd(name string) (float64, bool) {
	std, ok := r.residuals[name]
	return std, ok
}

func (r *Registry) Residuals() ResidualStats {
	return r.residuals
}

func (r *Registry) Metadata() Metadata {
	return r.metadata
}

func (r *Registry) Encoder() *Encoder {
	return r.encoder
}

type LoadOptions struct {
	// Prefix is prepended to every artifact key.
	Prefix         string
	EnableEnsemble bool
	EnableNeural   bool
	// RequiredModels abort the load when missing or malformed. Other models
	// are skipped with a warning.
	RequiredModels []string
	Logger         *logger.Logger
}

type modelLoader func(data []byte) (Model, error)

var modelLoaders = map[string]modelLoader{
	ModelXGBoost:  func(data []byte) (Model, error) { return LoadXGBoost(data) },
	ModelLightGBM: func(data []byte) (Model, error) { return LoadLightGBM(data) },
	ModelNeural:   func(data []byte) (Model, error) { return LoadNeural(data) },
}

// ModelKey returns the storage key of a base model artifact.
func ModelKey(prefix, name string) string {
	return storage.JoinKey(prefix, name, modelFile)
}

// LoadRegistry reads every artifact under opts.Prefix from store.
func LoadRegistry(ctx context.Context, store storage.StorageProvider, opts LoadOptions) (*Registry, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	log = log.WithFields(map[string]interface{}{
		"storage": store.Name(),
		"prefix":  opts.Prefix,
	})

	required := make(map[string]bool, len(opts.RequiredModels))
	for _, name := range opts.RequiredModels {
		if !isBaseModel(name) {
			return nil, newLoadError(name, errors.New("unknown required model"))
		}
		if name == ModelNeural && !opts.EnableNeural {
			return nil, newLoadError(name, errors.New("required but neural loading is disabled"))
		}
		required[name] = true
	}

	metadata, err := loadMetadata(ctx, store, opts.Prefix)
	if err != nil {
		return nil, err
	}
	encoder, err := loadEncoder(ctx, store, opts.Prefix, log)
	if err != nil {
		return nil, err
	}

	var models []Model
	for _, name := range BaseModels {
		if name == ModelNeural && !opts.EnableNeural {
			log.LogModelEvent(name, "skipped", map[string]interface{}{"reason": "neural disabled"})
			continue
		}

		model, err := loadModel(ctx, store, opts.Prefix, name)
		if err == nil && model.Scaled() && !encoder.HasScaler() {
			err = newLoadError(ScalerArtifact, fmt.Errorf("%s consumes scaled input but no scaler is loaded", name))
		}
		if err != nil {
			if required[name] {
				return nil, err
			}
			log.WithModel(name).WithError(err).Warn("Optional model unavailable, continuing without it")
			continue
		}

		models = append(models, model)
		log.LogModelEvent(name, "loaded", nil)
	}

	if len(models) == 0 {
		return nil, newLoadError("models", errors.New("no model artifacts could be loaded"))
	}

	registry, err := NewRegistry(encoder, metadata, opts.EnableEnsemble, models...)
	if err != nil {
		return nil, err
	}
	if weights, ok := registry.Weights(); ok {
		log.LogModelEvent(ModelEnsemble, "synthesized", map[string]interface{}{"weights": weights})
	}
	return registry, nil
}

func loadModel(ctx context.Context, store storage.StorageProvider, prefix, name string) (Model, error) {
	key := ModelKey(prefix, name)
	data, err := storage.ReadFile(ctx, store, key)
	if err != nil {
		return nil, newLoadError(key, err)
	}
	model, err := modelLoaders[name](data)
	if err != nil {
		return nil, newLoadError(key, err)
	}
	return model, nil
}

// readOptional returns nil data when the artifact does not exist.
func readOptional(ctx context.Context, store storage.StorageProvider, key string) ([]byte, error) {
	data, err := storage.ReadFile(ctx, store, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, newLoadError(key, err)
	}
	return data, nil
}

func loadMetadata(ctx context.Context, store storage.StorageProvider, prefix string) (Metadata, error) {
	var metadata Metadata
	key := storage.JoinKey(prefix, MetadataArtifact)
	data, err := readOptional(ctx, store, key)
	if err != nil || data == nil {
		return metadata, err
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, newLoadError(key, err)
	}
	if err := metadata.checkFeatures(); err != nil {
		return metadata, newLoadError(key, err)
	}
	if err := metadata.EnsembleWeights.validate(); err != nil {
		return metadata, newLoadError(key, err)
	}
	return metadata, nil
}

func loadEncoder(ctx context.Context, store storage.StorageProvider, prefix string, log *logger.Logger) (*Encoder, error) {
	categories := DefaultEncodings()

	key := storage.JoinKey(prefix, EncodersArtifact)
	data, err := readOptional(ctx, store, key)
	if err != nil {
		return nil, err
	}
	if data == nil {
		log.Warn("No label encoders found, using training vocabulary defaults")
	} else {
		categories, err = parseEncodings(data)
		if err != nil {
			return nil, newLoadError(key, err)
		}
	}

	key = storage.JoinKey(prefix, ScalerArtifact)
	data, err = readOptional(ctx, store, key)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return NewEncoder(categories, nil), nil
	}
	var scaler Scaler
	if err := json.Unmarshal(data, &scaler); err != nil {
		return nil, newLoadError(key, err)
	}
	if err := scaler.validate(); err != nil {
		return nil, newLoadError(key, err)
	}
	return NewEncoder(categories, &scaler), nil
}

// parseEncodings reads {"vehicle": ["Bike", "Car", ...], ...}; a label's code
// is its position in the list.
func parseEncodings(data []byte) (CategoryEncodings, error) {
	var classes map[string][]string
	if err := json.Unmarshal(data, &classes); err != nil {
		return nil, err
	}
	categories := make(CategoryEncodings, len(classes))
	for _, field := range []string{"vehicle", "weather", "route"} {
		labels := classes[field]
		if len(labels) == 0 {
			return nil, fmt.Errorf("no classes for %s", field)
		}
		codes := make(map[string]int, len(labels))
		for i, label := range labels {
			if _, dup := codes[label]; dup {
				return nil, fmt.Errorf("duplicate %s class %q", field, label)
			}
			codes[label] = i
		}
		categories[field] = codes
	}
	return categories, nil
}

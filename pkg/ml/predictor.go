package ml

import (
	"fmt"
	"math"
)

// Predictor selects a model from a Registry and turns feature vectors into an
// ETA in hours. It keeps no mutable state and is safe for concurrent use.
type Predictor struct {
	registry     *Registry
	defaultModel string
}

func NewPredictor(registry *Registry, defaultModel string) *Predictor {
	return &Predictor{registry: registry, defaultModel: defaultModel}
}

func (p *Predictor) Registry() *Registry {
	return p.registry
}

// Predict returns the clamped ETA in hours and the name of the model that
// produced it. An explicitly named base model never falls back to another.
func (p *Predictor) Predict(features, scaled FeatureVector, modelName string) (float64, string, error) {
	var (
		eta  float64
		used string
		err  error
	)

	if modelName != "" && modelName != ModelEnsemble {
		model, ok := p.registry.Get(modelName)
		if !ok {
			return 0, "", fmt.Errorf("%w: %s", ErrUnknownModel, modelName)
		}
		eta, err = runModel(model, features, scaled)
		used = modelName
	} else {
		eta, used, err = p.predictDefault(features, scaled)
	}
	if err != nil {
		return 0, "", err
	}

	return math.Max(0, eta), used, nil
}

func (p *Predictor) predictDefault(features, scaled FeatureVector) (float64, string, error) {
	if weights, ok := p.EffectiveWeights(); ok {
		var eta float64
		for _, name := range BaseModels {
			w, ok := weights[name]
			if !ok {
				continue
			}
			model, _ := p.registry.Get(name)
			v, err := runModel(model, features, scaled)
			if err != nil {
				return 0, "", fmt.Errorf("ensemble member %s: %w", name, err)
			}
			eta += w * v
		}
		return eta, ModelEnsemble, nil
	}

	model, ok := p.fallbackModel()
	if !ok {
		return 0, "", fmt.Errorf("%w: no models loaded", ErrEnsembleUnavailable)
	}
	eta, err := runModel(model, features, scaled)
	return eta, model.Name(), err
}

// EffectiveWeights returns the ensemble weights renormalized over the loaded
// members with a positive weight. It reports false when the ensemble cannot
// be evaluated.
func (p *Predictor) EffectiveWeights() (EnsembleWeights, bool) {
	weights, ok := p.registry.Weights()
	if !ok {
		return nil, false
	}

	effective := make(EnsembleWeights)
	var total float64
	for _, name := range BaseModels {
		w, ok := weights[name]
		if !ok || w <= 0 || !p.registry.Has(name) {
			continue
		}
		effective[name] = w
		total += w
	}
	if total == 0 {
		return nil, false
	}
	for name, w := range effective {
		effective[name] = w / total
	}
	return effective, true
}

// fallbackModel picks the configured default, then the lexicographically
// first loaded model.
func (p *Predictor) fallbackModel() (Model, bool) {
	if model, ok := p.registry.Get(p.defaultModel); ok {
		return model, true
	}
	names := p.registry.BaseNames()
	if len(names) == 0 {
		return nil, false
	}
	return p.registry.Get(names[0])
}

func runModel(model Model, features, scaled FeatureVector) (float64, error) {
	input := features
	if model.Scaled() {
		input = scaled
	}
	v, err := model.Predict(input)
	if err != nil {
		return 0, err
	}
	return checkOutput(model.Name(), v)
}

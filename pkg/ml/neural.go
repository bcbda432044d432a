package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

type denseLayer struct {
	Weights    [][]float64 `json:"weights"` // [inputs][units]
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"`
}

type neuralArtifact struct {
	Layers []denseLayer `json:"layers"`
}

// NeuralModel is a feed-forward network of dense layers evaluated on the
// standardized feature vector. Dropout layers are inference no-ops and are
// not part of the export.
type NeuralModel struct {
	layers []denseLayer
}

func LoadNeural(data []byte) (*NeuralModel, error) {
	var artifact neuralArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("invalid network export: %w", err)
	}
	if len(artifact.Layers) == 0 {
		return nil, errors.New("network has no layers")
	}
	if err := checkWidth(ModelNeural, len(artifact.Layers[0].Weights)); err != nil {
		return nil, err
	}

	width := FeatureCount
	for i, layer := range artifact.Layers {
		if len(layer.Weights) != width {
			return nil, fmt.Errorf("layer %d expects %d inputs, previous layer yields %d", i, len(layer.Weights), width)
		}
		units := len(layer.Bias)
		for _, row := range layer.Weights {
			if len(row) != units {
				return nil, fmt.Errorf("layer %d weight row has %d units, bias has %d", i, len(row), units)
			}
		}
		if _, err := activation(layer.Activation); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		width = units
	}
	if width != 1 {
		return nil, fmt.Errorf("network output has %d units, want 1", width)
	}

	return &NeuralModel{layers: artifact.Layers}, nil
}

func activation(name string) (func(float64) float64, error) {
	switch name {
	case "relu":
		return func(x float64) float64 { return math.Max(0, x) }, nil
	case "", "linear":
		return func(x float64) float64 { return x }, nil
	case "sigmoid":
		return func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }, nil
	case "tanh":
		return math.Tanh, nil
	}
	return nil, fmt.Errorf("unsupported activation %q", name)
}

func (m *NeuralModel) Name() string { return ModelNeural }

func (m *NeuralModel) Scaled() bool { return true }

func (m *NeuralModel) Predict(features FeatureVector) (float64, error) {
	in := features[:]
	for _, layer := range m.layers {
		act, _ := activation(layer.Activation)
		out := make([]float64, len(layer.Bias))
		copy(out, layer.Bias)
		for i, x := range in {
			for j, w := range layer.Weights[i] {
				out[j] += x * w
			}
		}
		for j := range out {
			out[j] = act(out[j])
		}
		in = out
	}
	return checkOutput(ModelNeural, in[0])
}

package ml

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictor_EffectiveWeightsRenormalize(t *testing.T) {
	registry := mustRegistry(t, true,
		&stubModel{name: ModelXGBoost, value: 1},
		&stubModel{name: ModelLightGBM, value: 2},
	)
	p := NewPredictor(registry, ModelXGBoost)

	weights, ok := p.EffectiveWeights()

	require.True(t, ok)
	assert.InDelta(t, 0.5, weights[ModelXGBoost], 1e-12)
	assert.InDelta(t, 0.5, weights[ModelLightGBM], 1e-12)
	assert.NotContains(t, weights, ModelNeural)

	eta, used, err := p.Predict(FeatureVector{}, FeatureVector{}, "")
	require.NoError(t, err)
	assert.Equal(t, ModelEnsemble, used)
	assert.InDelta(t, 1.5, eta, 1e-12)
}

func TestPredictor_EnsembleAllMembers(t *testing.T) {
	registry := mustRegistry(t, true,
		&stubModel{name: ModelXGBoost, value: 1},
		&stubModel{name: ModelLightGBM, value: 2},
		&stubModel{name: ModelNeural, value: 3, scaled: true},
	)
	p := NewPredictor(registry, ModelXGBoost)

	eta, used, err := p.Predict(FeatureVector{}, FeatureVector{}, ModelEnsemble)

	require.NoError(t, err)
	assert.Equal(t, ModelEnsemble, used)
	assert.InDelta(t, 1.8, eta, 1e-12)
}

func TestPredictor_ZeroWeightMembersIgnored(t *testing.T) {
	metadata := Metadata{EnsembleWeights: EnsembleWeights{ModelXGBoost: 1, ModelLightGBM: 0}}
	registry, err := NewRegistry(nil, metadata, true,
		&stubModel{name: ModelXGBoost, value: 1},
		&stubModel{name: ModelLightGBM, value: 5},
	)
	require.NoError(t, err)

	eta, used, err := NewPredictor(registry, "").Predict(FeatureVector{}, FeatureVector{}, "")

	require.NoError(t, err)
	assert.Equal(t, ModelEnsemble, used)
	assert.InDelta(t, 1.0, eta, 1e-12)
}

func TestPredictor_AllZeroWeightsFallBack(t *testing.T) {
	metadata := Metadata{EnsembleWeights: EnsembleWeights{ModelXGBoost: 0, ModelLightGBM: 0}}
	registry, err := NewRegistry(nil, metadata, true,
		&stubModel{name: ModelXGBoost, value: 1},
		&stubModel{name: ModelLightGBM, value: 5},
	)
	require.NoError(t, err)

	eta, used, err := NewPredictor(registry, ModelLightGBM).Predict(FeatureVector{}, FeatureVector{}, "")

	require.NoError(t, err)
	assert.Equal(t, ModelLightGBM, used)
	assert.Equal(t, 5.0, eta)
}

func TestPredictor_NamedModelNeverFallsBack(t *testing.T) {
	registry := mustRegistry(t, true,
		&stubModel{name: ModelXGBoost, value: 1},
		&stubModel{name: ModelLightGBM, value: 2},
	)
	p := NewPredictor(registry, ModelXGBoost)

	_, _, err := p.Predict(FeatureVector{}, FeatureVector{}, ModelNeural)
	assert.True(t, errors.Is(err, ErrUnknownModel))

	_, _, err = p.Predict(FeatureVector{}, FeatureVector{}, "catboost")
	assert.True(t, errors.Is(err, ErrUnknownModel))

	eta, used, err := p.Predict(FeatureVector{}, FeatureVector{}, ModelLightGBM)
	require.NoError(t, err)
	assert.Equal(t, ModelLightGBM, used)
	assert.Equal(t, 2.0, eta)
}

func TestPredictor_FallbackOrder(t *testing.T) {
	tests := []struct {
		name         string
		models       []Model
		defaultModel string
		want         string
	}{
		{
			name:         "configured default",
			models:       []Model{&stubModel{name: ModelXGBoost}, &stubModel{name: ModelLightGBM}},
			defaultModel: ModelLightGBM,
			want:         ModelLightGBM,
		},
		{
			name:         "default absent picks lexicographically first",
			models:       []Model{&stubModel{name: ModelXGBoost}, &stubModel{name: ModelNeural, scaled: true}},
			defaultModel: ModelLightGBM,
			want:         ModelNeural,
		},
		{
			name:         "default is ensemble",
			models:       []Model{&stubModel{name: ModelXGBoost}},
			defaultModel: ModelEnsemble,
			want:         ModelXGBoost,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := mustRegistry(t, false, tt.models...)

			for i := 0; i < 5; i++ {
				_, used, err := NewPredictor(registry, tt.defaultModel).Predict(FeatureVector{}, FeatureVector{}, ModelEnsemble)
				require.NoError(t, err)
				assert.Equal(t, tt.want, used)
			}
		})
	}
}

func TestPredictor_NoModels(t *testing.T) {
	registry := mustRegistry(t, true)

	_, _, err := NewPredictor(registry, ModelXGBoost).Predict(FeatureVector{}, FeatureVector{}, "")

	assert.True(t, errors.Is(err, ErrEnsembleUnavailable))
}

func TestPredictor_ClampsNegative(t *testing.T) {
	registry := mustRegistry(t, false, &stubModel{name: ModelXGBoost, value: -0.4})

	eta, _, err := NewPredictor(registry, ModelXGBoost).Predict(FeatureVector{}, FeatureVector{}, "")

	require.NoError(t, err)
	assert.Equal(t, 0.0, eta)
}

func TestPredictor_NonFiniteOutput(t *testing.T) {
	registry := mustRegistry(t, true,
		&stubModel{name: ModelXGBoost, value: math.Inf(1)},
		&stubModel{name: ModelLightGBM, value: 1},
	)
	p := NewPredictor(registry, ModelXGBoost)

	_, _, err := p.Predict(FeatureVector{}, FeatureVector{}, ModelXGBoost)
	assert.Error(t, err)

	_, _, err = p.Predict(FeatureVector{}, FeatureVector{}, "")
	assert.Error(t, err)
}

func TestPredictor_MemberErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	registry := mustRegistry(t, true,
		&stubModel{name: ModelXGBoost, value: 1},
		&stubModel{name: ModelLightGBM, err: boom},
	)

	_, _, err := NewPredictor(registry, ModelXGBoost).Predict(FeatureVector{}, FeatureVector{}, "")

	assert.True(t, errors.Is(err, boom))
}

func TestPredictor_RoutesScaledInput(t *testing.T) {
	var rawSeen, scaledSeen FeatureVector
	registry := mustRegistry(t, true,
		&stubModel{name: ModelXGBoost, value: 1, seen: &rawSeen},
		&stubModel{name: ModelNeural, value: 1, scaled: true, seen: &scaledSeen},
	)
	raw := FeatureVector{FeatureDistance: 10}
	scaled := FeatureVector{FeatureDistance: -1}

	_, _, err := NewPredictor(registry, ModelXGBoost).Predict(raw, scaled, "")

	require.NoError(t, err)
	assert.Equal(t, raw, rawSeen)
	assert.Equal(t, scaled, scaledSeen)
}

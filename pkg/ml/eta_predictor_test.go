package ml

import (
	"context"
	"errors"
	"testing"
	"time"

	"etaservice/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 12, 8, 15, 0, 0, time.FixedZone("IST", 5*3600+1800))

func TestETAPredictor_TravelTimeModel(t *testing.T) {
	registry := mustRegistry(t, true, travelTimeModel{})
	predictor := NewETAPredictor(registry, ModelXGBoost, fixedClock(testNow))

	result, err := predictor.PredictETA(context.Background(), sampleRequest(), "")

	require.NoError(t, err)
	assert.Equal(t, 21.25, result.EstimatedETAMinutes)
	assert.Equal(t, 0.35, result.EstimatedETAHours)
	assert.Equal(t, ModelXGBoost, result.ModelUsed)
	assert.Equal(t, 25.5, result.DistanceKM)
	assert.Equal(t, ConfidenceLow, result.Confidence)
	assert.Equal(t, ETARange{Lower: 9.49, Upper: 33.01}, result.ETARange)
	assert.Equal(t, Factors{
		BaseTravelTime:  25.5,
		TrafficImpact:   -4.25,
		VehicleFactor:   "Car",
		WeatherFactor:   "Clear",
		RouteComplexity: "A",
		IsRushHour:      false,
	}, result.Factors)
	assert.Equal(t, testNow.UTC(), result.Timestamp)
}

func TestETAPredictor_FixtureEnsemble(t *testing.T) {
	store, err := storage.NewLocalStorage("testdata/model")
	require.NoError(t, err)
	registry, err := LoadRegistry(context.Background(), store, defaultLoadOptions())
	require.NoError(t, err)
	predictor := NewETAPredictor(registry, ModelXGBoost, fixedClock(testNow))

	tests := []struct {
		model      string
		wantUsed   string
		wantHours  float64
		confidence ConfidenceLevel
	}{
		{"", ModelEnsemble, 0.622, ConfidenceHigh},
		{ModelEnsemble, ModelEnsemble, 0.622, ConfidenceHigh},
		{ModelXGBoost, ModelXGBoost, 0.6, ConfidenceHigh},
		{ModelLightGBM, ModelLightGBM, 0.7, ConfidenceMedium},
		{ModelNeural, ModelNeural, 0.51, ConfidenceLow},
	}

	for _, tt := range tests {
		t.Run(tt.wantUsed+"/"+tt.model, func(t *testing.T) {
			result, err := predictor.PredictETA(context.Background(), sampleRequest(), tt.model)

			require.NoError(t, err)
			assert.Equal(t, tt.wantUsed, result.ModelUsed)
			assert.InDelta(t, tt.wantHours*60, result.EstimatedETAMinutes, 0.005)
			assert.Equal(t, tt.confidence, result.Confidence)
			assert.LessOrEqual(t, result.ETARange.Lower, result.EstimatedETAMinutes)
			assert.GreaterOrEqual(t, result.ETARange.Upper, result.EstimatedETAMinutes)
		})
	}
}

func TestETAPredictor_RepeatableResults(t *testing.T) {
	store, err := storage.NewLocalStorage("testdata/model")
	require.NoError(t, err)
	registry, err := LoadRegistry(context.Background(), store, defaultLoadOptions())
	require.NoError(t, err)
	predictor := NewETAPredictor(registry, ModelXGBoost, fixedClock(testNow))

	first, err := predictor.PredictETA(context.Background(), sampleRequest(), "")
	require.NoError(t, err)
	second, err := predictor.PredictETA(context.Background(), sampleRequest(), "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestETAPredictor_RushHourFromClock(t *testing.T) {
	registry := mustRegistry(t, false, travelTimeModel{})
	predictor := NewETAPredictor(registry, ModelXGBoost, fixedClock(testNow))
	req := sampleRequest()
	req.Hour = nil

	result, err := predictor.PredictETA(context.Background(), req, "")

	require.NoError(t, err)
	assert.True(t, result.Factors.IsRushHour, "08:15 local is inside the morning window")
}

func TestETAPredictor_Errors(t *testing.T) {
	registry := mustRegistry(t, false, travelTimeModel{})
	predictor := NewETAPredictor(registry, ModelXGBoost, fixedClock(testNow))

	req := sampleRequest()
	req.Weather = "Sandstorm"
	_, err := predictor.PredictETA(context.Background(), req, "")
	assert.True(t, errors.Is(err, ErrUnknownCategory))

	_, err = predictor.PredictETA(context.Background(), sampleRequest(), ModelNeural)
	assert.True(t, errors.Is(err, ErrUnknownModel))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = predictor.PredictETA(ctx, sampleRequest(), "")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 21.25, Round2(21.2500001))
	assert.Equal(t, 0.35, Round2(0.3541666))
	assert.Equal(t, -4.25, Round2(-4.2499999))
}

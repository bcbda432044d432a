package ml

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoder_Encode_FeatureOrder(t *testing.T) {
	enc := NewEncoder(nil, nil)

	raw, scaled, err := enc.Encode(sampleRequest(), time.Time{})

	require.NoError(t, err)
	assert.Equal(t, FeatureVector{25.5, 60, 1.2, 1, 0, 0, 14, 2, 0.425, 72, 0, 0}, raw)
	assert.Equal(t, raw, scaled, "without a scaler the scaled copy equals the raw vector")
}

func TestEncoder_Encode_DerivedFlags(t *testing.T) {
	enc := NewEncoder(nil, nil)

	tests := []struct {
		name    string
		hour    int
		day     int
		rush    float64
		weekend float64
	}{
		{"morning rush start", 7, 0, 1, 0},
		{"morning rush end", 9, 1, 1, 0},
		{"midday", 10, 4, 0, 0},
		{"evening rush", 17, 5, 1, 1},
		{"evening rush end", 19, 6, 1, 1},
		{"after evening rush", 20, 6, 0, 1},
		{"before morning rush", 6, 3, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := sampleRequest()
			req.Hour = intPtr(tt.hour)
			req.Day = intPtr(tt.day)

			raw, _, err := enc.Encode(req, time.Time{})

			require.NoError(t, err)
			assert.Equal(t, tt.rush, raw[FeatureIsRushHour])
			assert.Equal(t, tt.weekend, raw[FeatureIsWeekend])
		})
	}
}

func TestEncoder_Encode_UsesClockWhenTimeOmitted(t *testing.T) {
	enc := NewEncoder(nil, nil)
	req := sampleRequest()
	req.Hour = nil
	req.Day = nil

	// Saturday 18:30
	now := time.Date(2025, 3, 15, 18, 30, 0, 0, time.UTC)
	raw, _, err := enc.Encode(req, now)

	require.NoError(t, err)
	assert.Equal(t, 18.0, raw[FeatureHour])
	assert.Equal(t, 5.0, raw[FeatureDay])
	assert.Equal(t, 1.0, raw[FeatureIsRushHour])
	assert.Equal(t, 1.0, raw[FeatureIsWeekend])
}

func TestEncoder_Encode_UnknownCategory(t *testing.T) {
	enc := NewEncoder(nil, nil)

	for _, mutate := range []func(r *ETARequest){
		func(r *ETARequest) { r.Vehicle = "Boat" },
		func(r *ETARequest) { r.Weather = "Hail" },
		func(r *ETARequest) { r.Route = "Z" },
	} {
		req := sampleRequest()
		mutate(req)

		_, _, err := enc.Encode(req, time.Time{})

		assert.True(t, errors.Is(err, ErrUnknownCategory))
	}
}

func TestEncoder_Encode_Scaled(t *testing.T) {
	scaler := &Scaler{
		Mean:  []float64{25, 60, 1, 1, 1, 1, 12, 3, 0.5, 60, 0.3, 0.3},
		Scale: []float64{10, 20, 0.5, 1, 1, 1, 6, 2, 0.3, 30, 0.5, 0},
	}
	enc := NewEncoder(nil, scaler)

	raw, scaled, err := enc.Encode(sampleRequest(), time.Time{})

	require.NoError(t, err)
	assert.Equal(t, 25.5, raw[FeatureDistance])
	assert.InDelta(t, 0.05, scaled[FeatureDistance], 1e-9)
	assert.InDelta(t, 0.4, scaled[FeatureTrafficFactor], 1e-9)
	assert.InDelta(t, -0.3, scaled[FeatureIsWeekend], 1e-9, "zero scale is treated as one")
}

func TestScaler_Validate(t *testing.T) {
	s := &Scaler{Mean: make([]float64, 11), Scale: make([]float64, 12)}
	assert.Error(t, s.validate())

	s = &Scaler{Mean: make([]float64, 12), Scale: make([]float64, 12)}
	assert.NoError(t, s.validate())
}

func TestCategoryEncodings_Classes(t *testing.T) {
	assert.Equal(t, []string{"Bike", "Car", "Truck", "Van"}, DefaultEncodings().Classes("vehicle"))
	assert.Equal(t, []string{"Clear", "Foggy", "Rainy", "Snowy"}, DefaultEncodings().Classes("weather"))
	assert.Empty(t, DefaultEncodings().Classes("unknown"))
}

func TestETARequest_EffectiveDay(t *testing.T) {
	req := &ETARequest{}

	// 2025-03-10 is a Monday
	monday := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, req.EffectiveDay(monday))
	assert.Equal(t, 6, req.EffectiveDay(monday.AddDate(0, 0, 6)))
	assert.Equal(t, 8, req.EffectiveHour(monday))

	req.Day = intPtr(3)
	req.Hour = intPtr(0)
	assert.Equal(t, 3, req.EffectiveDay(monday))
	assert.Equal(t, 0, req.EffectiveHour(monday))
}

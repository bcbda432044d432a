package ml

import (
	"context"
	"math"
	"time"
)

// Clock supplies the wall-clock reading used when a request omits its hour
// or day.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

var SystemClock Clock = ClockFunc(time.Now)

type PredictionResult struct {
	EstimatedETAMinutes float64         `json:"estimated_eta_minutes" bson:"estimated_eta_minutes"`
	EstimatedETAHours   float64         `json:"estimated_eta_hours" bson:"estimated_eta_hours"`
	ETARange            ETARange        `json:"eta_range" bson:"eta_range"`
	DistanceKM          float64         `json:"distance_km" bson:"distance_km"`
	Confidence          ConfidenceLevel `json:"confidence" bson:"confidence"`
	ModelUsed           string          `json:"model_used" bson:"model_used"`
	Factors             Factors         `json:"factors" bson:"factors"`
	Timestamp           time.Time       `json:"timestamp" bson:"timestamp"`
}

// ETAPredictor runs the full inference pipeline over one registry.
type ETAPredictor struct {
	predictor *Predictor
	clock     Clock
}

func NewETAPredictor(registry *Registry, defaultModel string, clock Clock) *ETAPredictor {
	if clock == nil {
		clock = SystemClock
	}
	return &ETAPredictor{
		predictor: NewPredictor(registry, defaultModel),
		clock:     clock,
	}
}

func (e *ETAPredictor) Registry() *Registry {
	return e.predictor.Registry()
}

func (e *ETAPredictor) Predictor() *Predictor {
	return e.predictor
}

// Now returns the predictor's clock reading.
func (e *ETAPredictor) Now() time.Time {
	return e.clock.Now()
}

// PredictETA encodes req, runs the selected model and attaches the
// confidence interval and factor breakdown. The clock is read once.
func (e *ETAPredictor) PredictETA(ctx context.Context, req *ETARequest, modelName string) (*PredictionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := e.clock.Now()
	registry := e.predictor.Registry()

	features, scaled, err := registry.Encoder().Encode(req, now)
	if err != nil {
		return nil, err
	}

	etaHours, modelUsed, err := e.predictor.Predict(features, scaled, modelName)
	if err != nil {
		return nil, err
	}

	etaMinutes := etaHours * 60
	etaRange, confidence := Estimate(modelUsed, etaMinutes, registry.Residuals())

	return &PredictionResult{
		EstimatedETAMinutes: Round2(etaMinutes),
		EstimatedETAHours:   Round2(etaHours),
		ETARange: ETARange{
			Lower: Round2(etaRange.Lower),
			Upper: Round2(etaRange.Upper),
		},
		DistanceKM: req.Distance,
		Confidence: confidence,
		ModelUsed:  modelUsed,
		Factors:    Explain(req, etaHours, req.EffectiveHour(now)),
		Timestamp:  now.UTC(),
	}, nil
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

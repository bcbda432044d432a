package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"etaservice/pkg/ml"
)

const (
	DefaultTrafficFactor = 1.0
	DefaultVehicle       = "Car"
	DefaultWeather       = "Clear"
	DefaultRoute         = "A"
)

// PredictionRequest is the wire form of an ETA request. Optional fields
// are pointers or empty strings so defaults can be told apart from zero.
type PredictionRequest struct {
	Distance      float64  `json:"distance" binding:"required,gt=0,lte=1000"`
	BaseSpeed     float64  `json:"base_speed" binding:"required,gt=0,lte=200"`
	TrafficFactor *float64 `json:"traffic_factor,omitempty" binding:"omitempty,gte=0.5,lte=3"`
	Vehicle       string   `json:"vehicle,omitempty" binding:"omitempty,vehicle"`
	Weather       string   `json:"weather,omitempty" binding:"omitempty,weather"`
	Route         string   `json:"route,omitempty" binding:"omitempty,route_type"`
	TimeOfDay     *int     `json:"time_of_day,omitempty" binding:"omitempty,gte=0,lte=23"`
	DayOfWeek     *int     `json:"day_of_week,omitempty" binding:"omitempty,gte=0,lte=6"`
	// ShipmentID is echoed to websocket subscribers of that shipment.
	ShipmentID string `json:"shipment_id,omitempty" binding:"omitempty,max=128"`
}

// ToETARequest applies defaults and returns the request the predictor
// consumes.
func (r *PredictionRequest) ToETARequest() *ml.ETARequest {
	req := &ml.ETARequest{
		Distance:      r.Distance,
		BaseSpeed:     r.BaseSpeed,
		TrafficFactor: DefaultTrafficFactor,
		Vehicle:       r.Vehicle,
		Weather:       r.Weather,
		Route:         r.Route,
		Hour:          r.TimeOfDay,
		Day:           r.DayOfWeek,
	}
	if r.TrafficFactor != nil {
		req.TrafficFactor = *r.TrafficFactor
	}
	if req.Vehicle == "" {
		req.Vehicle = DefaultVehicle
	}
	if req.Weather == "" {
		req.Weather = DefaultWeather
	}
	if req.Route == "" {
		req.Route = DefaultRoute
	}
	return req
}

type BatchPredictionRequest struct {
	Predictions     []PredictionRequest `json:"predictions" binding:"required,min=1,dive"`
	ModelPreference string              `json:"model_preference,omitempty" binding:"omitempty,model_type"`
}

type BatchPredictionResponse struct {
	Results        []*ml.PredictionResult `json:"results"`
	Total          int                    `json:"total"`
	Successful     int                    `json:"successful"`
	Failed         int                    `json:"failed"`
	ProcessingTime float64                `json:"processing_time"`
}

type Coordinates struct {
	Latitude  float64 `json:"lat" binding:"latitude"`
	Longitude float64 `json:"lng" binding:"longitude"`
}

// RoutePredictionRequest predicts from coordinates; the distance comes from
// the configured maps provider.
type RoutePredictionRequest struct {
	Pickup        Coordinates `json:"pickup" binding:"required"`
	Delivery      Coordinates `json:"delivery" binding:"required"`
	TrafficFactor *float64    `json:"traffic_factor,omitempty" binding:"omitempty,gte=0.5,lte=3"`
	Vehicle       string      `json:"vehicle,omitempty" binding:"omitempty,vehicle"`
	Weather       string      `json:"weather,omitempty" binding:"omitempty,weather"`
	Route         string      `json:"route,omitempty" binding:"omitempty,route_type"`
	TimeOfDay     *int        `json:"time_of_day,omitempty" binding:"omitempty,gte=0,lte=23"`
	DayOfWeek     *int        `json:"day_of_week,omitempty" binding:"omitempty,gte=0,lte=6"`
	ModelType     string      `json:"model_type,omitempty" binding:"omitempty,model_type"`
	ShipmentID    string      `json:"shipment_id,omitempty" binding:"omitempty,max=128"`
}

type RoutePredictionResponse struct {
	Prediction       *ml.PredictionResult `json:"prediction"`
	DistanceProvider string               `json:"distance_provider"`
	BaseSpeed        float64              `json:"base_speed"`
	// RouteDurationMinutes is the provider's own estimate, when it has one.
	RouteDurationMinutes *float64 `json:"route_duration_minutes,omitempty"`
}

type HealthResponse struct {
	Status         string          `json:"status"`
	Version        string          `json:"version"`
	Uptime         float64         `json:"uptime"`
	ModelsLoaded   map[string]bool `json:"models_loaded"`
	CacheConnected bool            `json:"cache_connected"`
	Timestamp      time.Time       `json:"timestamp"`
}

type ModelInfoResponse struct {
	LoadedModels  []string            `json:"loaded_models"`
	DefaultModel  string              `json:"default_model"`
	Ensemble      *EnsembleInfo       `json:"ensemble,omitempty"`
	Encoders      map[string][]string `json:"encoders"`
	ScalerLoaded  bool                `json:"scaler_loaded"`
	Features      []string            `json:"features"`
	Metadata      ml.Metadata         `json:"metadata"`
	Storage       string              `json:"storage"`
	LoadedAt      time.Time           `json:"loaded_at"`
	ResidualStdHr map[string]float64  `json:"residual_std_hours"`
}

type EnsembleInfo struct {
	Weights          ml.EnsembleWeights `json:"weights"`
	EffectiveWeights ml.EnsembleWeights `json:"effective_weights"`
}

type ReloadResponse struct {
	LoadedModels []string  `json:"loaded_models"`
	CacheCleared int64     `json:"cache_cleared"`
	LoadedAt     time.Time `json:"loaded_at"`
}

// PredictionRecord is the audit entry stored for a served prediction.
type PredictionRecord struct {
	ID         primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	RequestID  string               `json:"request_id,omitempty" bson:"request_id,omitempty"`
	ShipmentID string               `json:"shipment_id,omitempty" bson:"shipment_id,omitempty"`
	Request    *ml.ETARequest       `json:"request" bson:"request"`
	ModelAsked string               `json:"model_requested,omitempty" bson:"model_requested,omitempty"`
	Result     *ml.PredictionResult `json:"result" bson:"result"`
	Cached     bool                 `json:"cached" bson:"cached"`
	CreatedAt  time.Time            `json:"created_at" bson:"created_at"`
}

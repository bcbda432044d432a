package ml

import (
	"fmt"
	"sort"
	"time"
)

// FeatureCount is the width of every vector the models were fitted against.
const FeatureCount = 12

// Positions inside a FeatureVector.
const (
	FeatureDistance = iota
	FeatureBaseSpeed
	FeatureTrafficFactor
	FeatureVehicle
	FeatureWeather
	FeatureRoute
	FeatureHour
	FeatureDay
	FeatureSpeedDistanceRatio
	FeatureTrafficSpeedInteraction
	FeatureIsRushHour
	FeatureIsWeekend
)

// FeatureNames lists the vector layout in order.
var FeatureNames = []string{
	"distance", "base_speed", "traffic_factor",
	"vehicle", "weather", "route",
	"hour", "day_of_week",
	"speed_distance_ratio", "traffic_speed_interaction",
	"is_rush_hour", "is_weekend",
}

type FeatureVector [FeatureCount]float64

// ETARequest is a validated prediction request. Hour and Day are optional;
// when nil the encoder falls back to the injected clock reading.
type ETARequest struct {
	Distance      float64 `json:"distance" bson:"distance"`
	BaseSpeed     float64 `json:"base_speed" bson:"base_speed"`
	TrafficFactor float64 `json:"traffic_factor" bson:"traffic_factor"`
	Vehicle       string  `json:"vehicle" bson:"vehicle"`
	Weather       string  `json:"weather" bson:"weather"`
	Route         string  `json:"route" bson:"route"`
	Hour          *int    `json:"time_of_day,omitempty" bson:"time_of_day,omitempty"`
	Day           *int    `json:"day_of_week,omitempty" bson:"day_of_week,omitempty"`
}

// EffectiveHour returns the requested hour or the hour of now.
func (r *ETARequest) EffectiveHour(now time.Time) int {
	if r.Hour != nil {
		return *r.Hour
	}
	return now.Hour()
}

// EffectiveDay returns the requested day (0=Mon..6=Sun) or the weekday of now.
func (r *ETARequest) EffectiveDay(now time.Time) int {
	if r.Day != nil {
		return *r.Day
	}
	return (int(now.Weekday()) + 6) % 7
}

func IsRushHour(hour int) bool {
	return (hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 19)
}

func IsWeekend(day int) bool {
	return day >= 5
}

// CategoryEncodings maps each categorical field to its frozen label codes.
type CategoryEncodings map[string]map[string]int

// DefaultEncodings mirrors sorted label encoding of the training vocabulary.
func DefaultEncodings() CategoryEncodings {
	return CategoryEncodings{
		"vehicle": {"Bike": 0, "Car": 1, "Truck": 2, "Van": 3},
		"weather": {"Clear": 0, "Foggy": 1, "Rainy": 2, "Snowy": 3},
		"route":   {"A": 0, "B": 1, "C": 2},
	}
}

// Classes returns the known labels of a field ordered by code.
func (c CategoryEncodings) Classes(field string) []string {
	codes := c[field]
	classes := make([]string, 0, len(codes))
	for label := range codes {
		classes = append(classes, label)
	}
	sort.Slice(classes, func(i, j int) bool {
		return codes[classes[i]] < codes[classes[j]]
	})
	return classes
}

func (c CategoryEncodings) encode(field, value string) (float64, error) {
	code, ok := c[field][value]
	if !ok {
		return 0, fmt.Errorf("%w: %s=%q", ErrUnknownCategory, field, value)
	}
	return float64(code), nil
}

// Scaler holds standard-scaler parameters fixed at training time.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func (s *Scaler) validate() error {
	if len(s.Mean) != FeatureCount || len(s.Scale) != FeatureCount {
		return fmt.Errorf("scaler expects %d features, got mean=%d scale=%d", FeatureCount, len(s.Mean), len(s.Scale))
	}
	return nil
}

func (s *Scaler) Transform(v FeatureVector) FeatureVector {
	var out FeatureVector
	for i, x := range v {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (x - s.Mean[i]) / scale
	}
	return out
}

// Encoder turns requests into model input. It is immutable and safe for
// concurrent use.
type Encoder struct {
	categories CategoryEncodings
	scaler     *Scaler
}

func NewEncoder(categories CategoryEncodings, scaler *Scaler) *Encoder {
	if categories == nil {
		categories = DefaultEncodings()
	}
	return &Encoder{categories: categories, scaler: scaler}
}

func (e *Encoder) HasScaler() bool {
	return e.scaler != nil
}

func (e *Encoder) Categories() CategoryEncodings {
	return e.categories
}

// Encode builds the raw and scaled vectors for req. now is read only when
// the request omits its hour or day.
func (e *Encoder) Encode(req *ETARequest, now time.Time) (FeatureVector, FeatureVector, error) {
	var v FeatureVector

	vehicle, err := e.categories.encode("vehicle", req.Vehicle)
	if err != nil {
		return v, v, err
	}
	weather, err := e.categories.encode("weather", req.Weather)
	if err != nil {
		return v, v, err
	}
	route, err := e.categories.encode("route", req.Route)
	if err != nil {
		return v, v, err
	}

	hour := req.EffectiveHour(now)
	day := req.EffectiveDay(now)

	v[FeatureDistance] = req.Distance
	v[FeatureBaseSpeed] = req.BaseSpeed
	v[FeatureTrafficFactor] = req.TrafficFactor
	v[FeatureVehicle] = vehicle
	v[FeatureWeather] = weather
	v[FeatureRoute] = route
	v[FeatureHour] = float64(hour)
	v[FeatureDay] = float64(day)
	v[FeatureSpeedDistanceRatio] = req.Distance / req.BaseSpeed
	v[FeatureTrafficSpeedInteraction] = req.TrafficFactor * req.BaseSpeed
	v[FeatureIsRushHour] = boolToFloat(IsRushHour(hour))
	v[FeatureIsWeekend] = boolToFloat(IsWeekend(day))

	if e.scaler == nil {
		return v, v, nil
	}
	return v, e.scaler.Transform(v), nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

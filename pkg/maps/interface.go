package maps

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNoResults            = errors.New("no results")
	ErrGeocodingUnsupported = errors.New("geocoding not supported by provider")
)

// Provider resolves addresses and road distances for route based
// predictions.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, address string) (*GeocodeResult, error)
	RouteDistance(ctx context.Context, origin, destination Location) (*RouteDistance, error)
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type GeocodeResult struct {
	PlaceID     string   `json:"place_id"`
	Address     string   `json:"formatted_address"`
	Coordinates Location `json:"geometry"`
	Types       []string `json:"types"`
}

// RouteDistance is the travel distance between two points. Duration is the
// provider's own traffic-free estimate and is zero when unknown.
type RouteDistance struct {
	DistanceKM float64       `json:"distance_km"`
	Duration   time.Duration `json:"duration"`
	Provider   string        `json:"provider"`
}

package maps

import (
	"context"
	"math"
)

const EarthRadiusKM = 6371.0

// HaversineKM returns the great-circle distance between two points.
func HaversineKM(a, b Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKM * c
}

// HaversineProvider measures straight-line distance. It is used when no
// maps API key is configured.
type HaversineProvider struct{}

func NewHaversineProvider() *HaversineProvider {
	return &HaversineProvider{}
}

func (h *HaversineProvider) Name() string {
	return "haversine"
}

func (h *HaversineProvider) Geocode(ctx context.Context, address string) (*GeocodeResult, error) {
	return nil, ErrGeocodingUnsupported
}

func (h *HaversineProvider) RouteDistance(ctx context.Context, origin, destination Location) (*RouteDistance, error) {
	return &RouteDistance{
		DistanceKM: HaversineKM(origin, destination),
		Provider:   h.Name(),
	}, nil
}

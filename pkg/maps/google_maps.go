package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"
)

type GoogleMapsProvider struct {
	client *maps.Client
}

func NewGoogleMapsProvider(apiKey string) (*GoogleMapsProvider, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return &GoogleMapsProvider{
		client: client,
	}, nil
}

func (g *GoogleMapsProvider) Name() string {
	return "google"
}

func (g *GoogleMapsProvider) Geocode(ctx context.Context, address string) (*GeocodeResult, error) {
	req := &maps.GeocodingRequest{
		Address: address,
	}

	resp, err := g.client.Geocode(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("geocoding failed: %w", err)
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("geocoding %q: %w", address, ErrNoResults)
	}

	result := resp[0]
	return &GeocodeResult{
		PlaceID: result.PlaceID,
		Address: result.FormattedAddress,
		Coordinates: Location{
			Latitude:  result.Geometry.Location.Lat,
			Longitude: result.Geometry.Location.Lng,
		},
		Types: result.Types,
	}, nil
}

// RouteDistance asks the distance matrix API for the driving distance.
func (g *GoogleMapsProvider) RouteDistance(ctx context.Context, origin, destination Location) (*RouteDistance, error) {
	req := &maps.DistanceMatrixRequest{
		Origins:      []string{formatLatLng(origin)},
		Destinations: []string{formatLatLng(destination)},
		Mode:         maps.TravelModeDriving,
		Units:        maps.UnitsMetric,
	}

	resp, err := g.client.DistanceMatrix(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("distance matrix request failed: %w", err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return nil, fmt.Errorf("distance matrix: %w", ErrNoResults)
	}

	element := resp.Rows[0].Elements[0]
	if element.Status != "OK" {
		return nil, fmt.Errorf("distance matrix element status %s: %w", element.Status, ErrNoResults)
	}

	return &RouteDistance{
		DistanceKM: float64(element.Distance.Meters) / 1000,
		Duration:   element.Duration,
		Provider:   g.Name(),
	}, nil
}

func formatLatLng(l Location) string {
	return fmt.Sprintf("%f,%f", l.Latitude, l.Longitude)
}

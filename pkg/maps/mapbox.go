package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

type MapboxProvider struct {
	accessToken string
	httpClient  *http.Client
	baseURL     string
}

func NewMapboxProvider(accessToken string) *MapboxProvider {
	return NewMapboxProviderWithURL(accessToken, "https://api.mapbox.com")
}

func NewMapboxProviderWithURL(accessToken, baseURL string) *MapboxProvider {
	return &MapboxProvider{
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     baseURL,
	}
}

func (m *MapboxProvider) Name() string {
	return "mapbox"
}

func (m *MapboxProvider) Geocode(ctx context.Context, address string) (*GeocodeResult, error) {
	apiURL := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?limit=1&access_token=%s",
		m.baseURL, url.PathEscape(address), url.QueryEscape(m.accessToken))

	var mapboxResp struct {
		Features []struct {
			ID        string    `json:"id"`
			PlaceName string    `json:"place_name"`
			PlaceType []string  `json:"place_type"`
			Center    []float64 `json:"center"`
		} `json:"features"`
	}
	if err := m.get(ctx, apiURL, &mapboxResp); err != nil {
		return nil, err
	}

	for _, feature := range mapboxResp.Features {
		if len(feature.Center) < 2 {
			continue
		}
		return &GeocodeResult{
			PlaceID: feature.ID,
			Address: feature.PlaceName,
			Coordinates: Location{
				Latitude:  feature.Center[1],
				Longitude: feature.Center[0],
			},
			Types: feature.PlaceType,
		}, nil
	}

	return nil, fmt.Errorf("geocoding %q: %w", address, ErrNoResults)
}

// RouteDistance uses the driving directions API; distances come back in
// meters and durations in seconds.
func (m *MapboxProvider) RouteDistance(ctx context.Context, origin, destination Location) (*RouteDistance, error) {
	coordinates := fmt.Sprintf("%f,%f;%f,%f",
		origin.Longitude, origin.Latitude,
		destination.Longitude, destination.Latitude)

	apiURL := fmt.Sprintf("%s/directions/v5/mapbox/driving/%s?overview=false&access_token=%s",
		m.baseURL, coordinates, url.QueryEscape(m.accessToken))

	var mapboxResp struct {
		Code   string `json:"code"`
		Routes []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"routes"`
	}
	if err := m.get(ctx, apiURL, &mapboxResp); err != nil {
		return nil, err
	}
	if len(mapboxResp.Routes) == 0 {
		return nil, fmt.Errorf("directions (%s): %w", mapboxResp.Code, ErrNoResults)
	}

	route := mapboxResp.Routes[0]
	return &RouteDistance{
		DistanceKM: route.Distance / 1000,
		Duration:   time.Duration(route.Duration * float64(time.Second)),
		Provider:   m.Name(),
	}, nil
}

func (m *MapboxProvider) get(ctx context.Context, apiURL string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mapbox API error (%d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

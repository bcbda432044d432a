package ml

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"etaservice/pkg/storage"
)

// memStore is an in-memory artifact store.
type memStore map[string][]byte

func (m memStore) Name() string { return "memory" }

func (m memStore) Download(ctx context.Context, key string) (*storage.DownloadResponse, error) {
	data, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	return &storage.DownloadResponse{Reader: io.NopCloser(bytes.NewReader(data)), Size: int64(len(data))}, nil
}

func (m memStore) ListFiles(ctx context.Context, prefix string) ([]*storage.FileInfo, error) {
	var files []*storage.FileInfo
	for key, data := range m {
		if strings.HasPrefix(key, prefix) {
			files = append(files, &storage.FileInfo{Key: key, Size: int64(len(data))})
		}
	}
	return files, nil
}

func (m memStore) FileExists(ctx context.Context, key string) (bool, error) {
	_, ok := m[key]
	return ok, nil
}

func (m memStore) GetFileInfo(ctx context.Context, key string) (*storage.FileInfo, error) {
	data, ok := m[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.FileInfo{Key: key, Size: int64(len(data))}, nil
}

// stubModel returns a fixed value and records the vector it was given.
type stubModel struct {
	name   string
	scaled bool
	value  float64
	err    error
	seen   *FeatureVector
}

func (s *stubModel) Name() string { return s.name }

func (s *stubModel) Scaled() bool { return s.scaled }

func (s *stubModel) Predict(features FeatureVector) (float64, error) {
	if s.seen != nil {
		*s.seen = features
	}
	return s.value, s.err
}

// travelTimeModel predicts distance / (base_speed * traffic_factor).
type travelTimeModel struct{}

func (travelTimeModel) Name() string { return ModelXGBoost }

func (travelTimeModel) Scaled() bool { return false }

func (travelTimeModel) Predict(f FeatureVector) (float64, error) {
	return f[FeatureDistance] / (f[FeatureBaseSpeed] * f[FeatureTrafficFactor]), nil
}

func intPtr(v int) *int { return &v }

func fixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

func sampleRequest() *ETARequest {
	return &ETARequest{
		Distance:      25.5,
		BaseSpeed:     60,
		TrafficFactor: 1.2,
		Vehicle:       "Car",
		Weather:       "Clear",
		Route:         "A",
		Hour:          intPtr(14),
		Day:           intPtr(2),
	}
}

func mustRegistry(t interface{ Fatalf(string, ...interface{}) }, enableEnsemble bool, models ...Model) *Registry {
	r, err := NewRegistry(nil, Metadata{}, enableEnsemble, models...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"etaservice/internal/models"
	"etaservice/internal/utils"
	"etaservice/pkg/cache"
	"etaservice/pkg/maps"
	"etaservice/pkg/ml"
)

// 2024-01-03 is a Wednesday, day 2.
var fixedNow = time.Date(2024, 1, 3, 14, 0, 0, 0, time.UTC)

func fixedClock() ml.Clock {
	return ml.ClockFunc(func() time.Time { return fixedNow })
}

type constModel struct {
	name  string
	hours float64
	calls *int64
}

func newConstModel(name string, hours float64) constModel {
	return constModel{name: name, hours: hours, calls: new(int64)}
}

func (m constModel) Name() string { return m.name }
func (m constModel) Scaled() bool { return false }
func (m constModel) Predict(ml.FeatureVector) (float64, error) {
	atomic.AddInt64(m.calls, 1)
	return m.hours, nil
}

// gateModel blocks inside Predict until released.
type gateModel struct {
	hours   float64
	entered chan struct{}
	release chan struct{}
	once    *sync.Once
}

func newGateModel(hours float64) gateModel {
	return gateModel{
		hours:   hours,
		entered: make(chan struct{}),
		release: make(chan struct{}),
		once:    new(sync.Once),
	}
}

func (m gateModel) Name() string { return ml.ModelXGBoost }
func (m gateModel) Scaled() bool { return false }
func (m gateModel) Predict(ml.FeatureVector) (float64, error) {
	m.once.Do(func() { close(m.entered) })
	<-m.release
	return m.hours, nil
}

func staticLoader(models ...ml.Model) RegistryLoader {
	return func(ctx context.Context) (*ml.Registry, error) {
		return ml.NewRegistry(nil, ml.Metadata{}, true, models...)
	}
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func sampleRequest() *models.PredictionRequest {
	return &models.PredictionRequest{
		Distance:      25.5,
		BaseSpeed:     60,
		TrafficFactor: floatPtr(1.2),
		Vehicle:       "Car",
		Weather:       "Clear",
		Route:         "A",
		TimeOfDay:     intPtr(14),
		DayOfWeek:     intPtr(2),
	}
}

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Create(ctx context.Context, record *models.PredictionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *mockRepository) List(ctx context.Context, modelUsed string, params *utils.PaginationParams) ([]*models.PredictionRecord, int64, error) {
	args := m.Called(ctx, modelUsed, params)
	records, _ := args.Get(0).([]*models.PredictionRecord)
	return records, args.Get(1).(int64), args.Error(2)
}

func (m *mockRepository) CountByModel(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	counts, _ := args.Get(0).(map[string]int64)
	return counts, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) BroadcastToShipment(shipmentID, messageType string, data interface{}) int {
	args := m.Called(shipmentID, messageType, data)
	return args.Int(0)
}

type mockMaps struct {
	mock.Mock
}

func (m *mockMaps) Name() string { return "mock" }

func (m *mockMaps) Geocode(ctx context.Context, address string) (*maps.GeocodeResult, error) {
	return nil, maps.ErrGeocodingUnsupported
}

func (m *mockMaps) RouteDistance(ctx context.Context, origin, destination maps.Location) (*maps.RouteDistance, error) {
	args := m.Called(ctx, origin, destination)
	route, _ := args.Get(0).(*maps.RouteDistance)
	return route, args.Error(1)
}

// memStore is an in-memory cache.Store.
type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet bool
	down    bool
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(ctx context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return errors.New("connection refused")
	}
	data, ok := s.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (s *memStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
	return nil
}

func (s *memStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *memStore) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			delete(s.data, key)
			n++
		}
	}
	return n, nil
}

func (s *memStore) Ping(ctx context.Context) error {
	if s.down {
		return errors.New("connection refused")
	}
	return nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

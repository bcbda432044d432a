package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"etaservice/internal/models"
	"etaservice/internal/repositories/interfaces"
	"etaservice/internal/utils"
	"etaservice/pkg/logger"
	"etaservice/pkg/maps"
	"etaservice/pkg/metrics"
	"etaservice/pkg/ml"
)

var (
	ErrPredictorUnavailable  = errors.New("models not loaded")
	ErrInvalidModel          = errors.New("invalid model type")
	ErrBatchTooLarge         = errors.New("batch too large")
	ErrInvalidRoute          = errors.New("invalid route")
	ErrPredictionLogDisabled = errors.New("prediction log disabled")
)

// EventETAUpdate is broadcast to a shipment's subscribers after each
// prediction made for it.
const EventETAUpdate = "eta_update"

// RegistryLoader builds a fresh registry from the artifact store.
type RegistryLoader func(ctx context.Context) (*ml.Registry, error)

// ShipmentPublisher pushes updates to clients following a shipment.
type ShipmentPublisher interface {
	BroadcastToShipment(shipmentID, messageType string, data interface{}) int
}

type PredictionService interface {
	Predict(ctx context.Context, req *models.PredictionRequest, modelName string) (*ml.PredictionResult, error)
	PredictBatch(ctx context.Context, req *models.BatchPredictionRequest) (*models.BatchPredictionResponse, error)
	PredictRoute(ctx context.Context, req *models.RoutePredictionRequest) (*models.RoutePredictionResponse, error)

	// Reload swaps in a freshly loaded registry. On failure the current
	// registry keeps serving.
	Reload(ctx context.Context) (*models.ReloadResponse, error)
	Ready() bool
	ModelInfo() (*models.ModelInfoResponse, error)
	Health(ctx context.Context) *models.HealthResponse

	CacheStats(ctx context.Context) *CacheStats
	ClearCache(ctx context.Context) (int64, error)
	RecentPredictions(ctx context.Context, modelUsed string, params *utils.PaginationParams) ([]*models.PredictionRecord, int64, error)
	PredictionCounts(ctx context.Context) (map[string]int64, error)

	// Shutdown waits for pending audit writes.
	Shutdown(ctx context.Context) error
}

type PredictionServiceConfig struct {
	DefaultModel string
	MaxBatchSize int
	Version      string
	StorageName  string
	Clock        ml.Clock
}

type loadedPredictor struct {
	predictor *ml.ETAPredictor
	loadedAt  time.Time
}

type predictionService struct {
	config    PredictionServiceConfig
	loader    RegistryLoader
	cache     PredictionCache
	repo      interfaces.PredictionRepository
	maps      maps.Provider
	publisher ShipmentPublisher
	metrics   *metrics.Client
	logger    *logger.Logger

	current   atomic.Pointer[loadedPredictor]
	reloadMu  sync.Mutex
	swapMu    sync.RWMutex
	pending   sync.WaitGroup
	startedAt time.Time
}

// NewPredictionService wires the service. repo, publisher and mapsProvider
// are optional; without a maps provider distances are great-circle.
func NewPredictionService(
	config PredictionServiceConfig,
	loader RegistryLoader,
	cache PredictionCache,
	repo interfaces.PredictionRepository,
	mapsProvider maps.Provider,
	publisher ShipmentPublisher,
	m *metrics.Client,
	log *logger.Logger,
) PredictionService {
	if config.Clock == nil {
		config.Clock = ml.SystemClock
	}
	if cache == nil {
		cache = NoCache()
	}
	if mapsProvider == nil {
		mapsProvider = maps.NewHaversineProvider()
	}
	if m == nil {
		m = metrics.NoOp()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &predictionService{
		config:    config,
		loader:    loader,
		cache:     cache,
		repo:      repo,
		maps:      mapsProvider,
		publisher: publisher,
		metrics:   m,
		logger:    log.WithField("component", "prediction_service"),
		startedAt: time.Now(),
	}
}

func (s *predictionService) Predict(ctx context.Context, req *models.PredictionRequest, modelName string) (*ml.PredictionResult, error) {
	if modelName != "" && !ml.IsKnownModel(modelName) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidModel, modelName)
	}
	current := s.current.Load()
	if current == nil {
		return nil, ErrPredictorUnavailable
	}

	start := time.Now()
	log := s.logger.WithContext(ctx)

	etaReq := req.ToETARequest()
	resolveTime(etaReq, current.predictor.Now())
	key := PredictionKey(etaReq, time.Time{}, modelName)

	if result, ok := s.cache.Get(ctx, key); ok {
		log.LogPrediction(result.ModelUsed, result.EstimatedETAMinutes, string(result.Confidence), true, time.Since(start))
		s.metrics.Incr(metrics.PredictionCount, metrics.Tags("model", result.ModelUsed, "cached", "true"))
		s.served(ctx, req, etaReq, modelName, result, true)
		return result, nil
	}

	result, err := current.predictor.PredictETA(ctx, etaReq, modelName)
	if err != nil {
		s.metrics.Incr(metrics.PredictionError, metrics.Tags("reason", errorReason(err)))
		return nil, err
	}

	s.cacheResult(ctx, current, key, result)

	duration := time.Since(start)
	log.LogPrediction(result.ModelUsed, result.EstimatedETAMinutes, string(result.Confidence), false, duration)
	s.metrics.Timing(metrics.PredictionLatency, duration, metrics.Tags("model", result.ModelUsed))
	s.metrics.Incr(metrics.PredictionCount, metrics.Tags("model", result.ModelUsed, "cached", "false"))
	s.served(ctx, req, etaReq, modelName, result, false)

	return result, nil
}

// cacheResult stores result only while the predictor that produced it is
// still current. Reload swaps under swapMu before clearing the cache.
func (s *predictionService) cacheResult(ctx context.Context, producer *loadedPredictor, key string, result *ml.PredictionResult) {
	s.swapMu.RLock()
	defer s.swapMu.RUnlock()
	if s.current.Load() != producer {
		return
	}
	s.cache.Set(ctx, key, result)
}

// resolveTime pins omitted time fields to now so the cache key and the
// encoder see the same hour and day.
func resolveTime(req *ml.ETARequest, now time.Time) {
	hour := req.EffectiveHour(now)
	day := req.EffectiveDay(now)
	req.Hour = &hour
	req.Day = &day
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, ml.ErrUnknownCategory):
		return "unknown_category"
	case errors.Is(err, ml.ErrUnknownModel):
		return "model_not_loaded"
	case errors.Is(err, ml.ErrEnsembleUnavailable):
		return "no_model"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "internal"
}

// served publishes the result to shipment subscribers and records it in
// the audit log.
func (s *predictionService) served(ctx context.Context, req *models.PredictionRequest, etaReq *ml.ETARequest, modelName string, result *ml.PredictionResult, cached bool) {
	if req.ShipmentID != "" && s.publisher != nil {
		s.publisher.BroadcastToShipment(req.ShipmentID, EventETAUpdate, result)
	}
	if s.repo == nil {
		return
	}

	record := &models.PredictionRecord{
		RequestID:  requestIDFrom(ctx),
		ShipmentID: req.ShipmentID,
		Request:    etaReq,
		ModelAsked: modelName,
		Result:     result,
		Cached:     cached,
		CreatedAt:  time.Now().UTC(),
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		if err := s.repo.Create(writeCtx, record); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Failed to store prediction record")
		}
	}()
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(logger.RequestIDKey).(string)
	return id
}

func (s *predictionService) PredictBatch(ctx context.Context, req *models.BatchPredictionRequest) (*models.BatchPredictionResponse, error) {
	if len(req.Predictions) > s.config.MaxBatchSize {
		return nil, fmt.Errorf("%w: maximum %d predictions per request", ErrBatchTooLarge, s.config.MaxBatchSize)
	}
	if req.ModelPreference != "" && !ml.IsKnownModel(req.ModelPreference) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidModel, req.ModelPreference)
	}
	if !s.Ready() {
		return nil, ErrPredictorUnavailable
	}

	start := time.Now()
	resp := &models.BatchPredictionResponse{
		Results: make([]*ml.PredictionResult, 0, len(req.Predictions)),
		Total:   len(req.Predictions),
	}

	for i := range req.Predictions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := s.Predict(ctx, &req.Predictions[i], req.ModelPreference)
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).WithField("index", i).Warn("Batch prediction failed for item")
			resp.Failed++
			continue
		}
		resp.Results = append(resp.Results, result)
	}

	resp.Successful = len(resp.Results)
	resp.ProcessingTime = time.Since(start).Seconds()
	s.metrics.Gauge(metrics.BatchSize, float64(resp.Total), nil)

	return resp, nil
}

func (s *predictionService) PredictRoute(ctx context.Context, req *models.RoutePredictionRequest) (*models.RoutePredictionResponse, error) {
	if req.ModelType != "" && !ml.IsKnownModel(req.ModelType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidModel, req.ModelType)
	}
	if !s.Ready() {
		return nil, ErrPredictorUnavailable
	}

	pickup := maps.Location{Latitude: req.Pickup.Latitude, Longitude: req.Pickup.Longitude}
	delivery := maps.Location{Latitude: req.Delivery.Latitude, Longitude: req.Delivery.Longitude}

	route, err := s.maps.RouteDistance(ctx, pickup, delivery)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("provider", s.maps.Name()).
			Warn("Route lookup failed, using great-circle distance")
		route = &maps.RouteDistance{
			DistanceKM: maps.HaversineKM(pickup, delivery),
			Provider:   "haversine",
		}
	}

	distance := ml.Round2(route.DistanceKM)
	if distance <= 0 {
		return nil, fmt.Errorf("%w: pickup and delivery are the same location", ErrInvalidRoute)
	}
	if distance > utils.MaxRouteDistanceKM {
		return nil, fmt.Errorf("%w: %.2f km exceeds the %.0f km limit", ErrInvalidRoute, distance, utils.MaxRouteDistanceKM)
	}

	vehicle := req.Vehicle
	if vehicle == "" {
		vehicle = models.DefaultVehicle
	}
	baseSpeed := utils.BaseSpeedForVehicle(vehicle)

	result, err := s.Predict(ctx, &models.PredictionRequest{
		Distance:      distance,
		BaseSpeed:     baseSpeed,
		TrafficFactor: req.TrafficFactor,
		Vehicle:       vehicle,
		Weather:       req.Weather,
		Route:         req.Route,
		TimeOfDay:     req.TimeOfDay,
		DayOfWeek:     req.DayOfWeek,
		ShipmentID:    req.ShipmentID,
	}, req.ModelType)
	if err != nil {
		return nil, err
	}

	resp := &models.RoutePredictionResponse{
		Prediction:       result,
		DistanceProvider: route.Provider,
		BaseSpeed:        baseSpeed,
	}
	if route.Duration > 0 {
		minutes := ml.Round2(route.Duration.Minutes())
		resp.RouteDurationMinutes = &minutes
	}
	return resp, nil
}

func (s *predictionService) Reload(ctx context.Context) (*models.ReloadResponse, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	registry, err := s.loader(ctx)
	if err != nil {
		s.metrics.Incr(metrics.ModelReload, metrics.Tags("status", "failed"))
		s.logger.WithError(err).Error("Model reload failed, keeping current models")
		return nil, err
	}

	loaded := &loadedPredictor{
		predictor: ml.NewETAPredictor(registry, s.config.DefaultModel, s.config.Clock),
		loadedAt:  time.Now().UTC(),
	}
	s.swapMu.Lock()
	s.current.Store(loaded)
	s.swapMu.Unlock()

	cleared, err := s.cache.Clear(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to clear prediction cache after reload")
	}

	names := registry.Names()
	s.metrics.Incr(metrics.ModelReload, metrics.Tags("status", "ok"))
	s.metrics.Gauge(metrics.ModelsLoaded, float64(len(names)), nil)
	s.logger.WithFields(map[string]interface{}{
		"models":        names,
		"cache_cleared": cleared,
	}).Info("Models loaded")

	return &models.ReloadResponse{
		LoadedModels: names,
		CacheCleared: cleared,
		LoadedAt:     loaded.loadedAt,
	}, nil
}

func (s *predictionService) Ready() bool {
	return s.current.Load() != nil
}

func (s *predictionService) ModelInfo() (*models.ModelInfoResponse, error) {
	current := s.current.Load()
	if current == nil {
		return nil, ErrPredictorUnavailable
	}

	registry := current.predictor.Registry()
	encoder := registry.Encoder()
	categories := encoder.Categories()

	info := &models.ModelInfoResponse{
		LoadedModels: registry.Names(),
		DefaultModel: s.config.DefaultModel,
		Encoders: map[string][]string{
			"vehicle": categories.Classes("vehicle"),
			"weather": categories.Classes("weather"),
			"route":   categories.Classes("route"),
		},
		ScalerLoaded:  encoder.HasScaler(),
		Features:      ml.FeatureNames,
		Metadata:      registry.Metadata(),
		Storage:       s.config.StorageName,
		LoadedAt:      current.loadedAt,
		ResidualStdHr: registry.Residuals(),
	}
	if weights, ok := registry.Weights(); ok {
		effective, _ := current.predictor.Predictor().EffectiveWeights()
		info.Ensemble = &models.EnsembleInfo{
			Weights:          weights,
			EffectiveWeights: effective,
		}
	}
	return info, nil
}

func (s *predictionService) Health(ctx context.Context) *models.HealthResponse {
	current := s.current.Load()

	names := append(append([]string{}, ml.BaseModels...), ml.ModelEnsemble)
	loaded := make(map[string]bool, len(names))
	for _, name := range names {
		loaded[name] = current != nil && current.predictor.Registry().Has(name)
	}

	status := "healthy"
	if current == nil {
		status = "degraded"
	}

	return &models.HealthResponse{
		Status:         status,
		Version:        s.config.Version,
		Uptime:         time.Since(s.startedAt).Seconds(),
		ModelsLoaded:   loaded,
		CacheConnected: s.cache.Connected(ctx),
		Timestamp:      time.Now().UTC(),
	}
}

func (s *predictionService) CacheStats(ctx context.Context) *CacheStats {
	return s.cache.Stats(ctx)
}

func (s *predictionService) ClearCache(ctx context.Context) (int64, error) {
	return s.cache.Clear(ctx)
}

func (s *predictionService) RecentPredictions(ctx context.Context, modelUsed string, params *utils.PaginationParams) ([]*models.PredictionRecord, int64, error) {
	if s.repo == nil {
		return nil, 0, ErrPredictionLogDisabled
	}
	return s.repo.List(ctx, modelUsed, params)
}

func (s *predictionService) PredictionCounts(ctx context.Context) (map[string]int64, error) {
	if s.repo == nil {
		return nil, ErrPredictionLogDisabled
	}
	return s.repo.CountByModel(ctx)
}

func (s *predictionService) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"etaservice/internal/config"
	"etaservice/internal/handlers"
	"etaservice/internal/middleware"
	"etaservice/internal/repositories/interfaces"
	"etaservice/internal/repositories/mongodb"
	"etaservice/internal/services"
	"etaservice/internal/utils"
	"etaservice/internal/validators"
	"etaservice/pkg/cache"
	"etaservice/pkg/database"
	"etaservice/pkg/logger"
	"etaservice/pkg/maps"
	"etaservice/pkg/metrics"
	"etaservice/pkg/ml"
	"etaservice/pkg/notify"
	"etaservice/pkg/storage"
	"etaservice/pkg/websocket"
	"etaservice/routes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:   logger.LogLevel(cfg.App.LogLevel),
		Format:  cfg.App.LogFormat,
		Output:  "stdout",
		Caller:  cfg.App.Debug,
		AppName: cfg.App.Name,
		Version: cfg.App.Version,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if err := run(cfg, appLogger); err != nil {
		appLogger.WithError(err).Fatal("Server stopped with error")
	}
}

func run(cfg *config.Config, appLogger *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsClient, err := metrics.New(cfg.Metrics.ClientConfig(), appLogger)
	if err != nil {
		return fmt.Errorf("failed to create metrics client: %w", err)
	}
	defer metricsClient.Close()

	store, err := newStorageProvider(ctx, cfg)
	if err != nil {
		return err
	}
	loadOptions := cfg.ML.LoadOptions()
	loadOptions.Logger = appLogger
	loader := func(ctx context.Context) (*ml.Registry, error) {
		return ml.LoadRegistry(ctx, store, loadOptions)
	}

	predictionCache, closeCache := newPredictionCache(cfg, appLogger, metricsClient)
	defer closeCache()

	repo, closeDB, err := newPredictionRepository(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer closeDB()

	mapsProvider, err := newMapsProvider(cfg)
	if err != nil {
		return err
	}

	hub := websocket.NewHub(nil, appLogger)
	var publishers services.Publishers
	if cfg.WebSocket.Enabled {
		publishers = append(publishers, hub)
	}
	var topic *services.TopicPublisher
	if cfg.Notify.Enabled() {
		snsPublisher, err := notify.NewSNSPublisher(ctx, cfg.Notify.Region, cfg.Notify.SNSTopicARN)
		if err != nil {
			return err
		}
		topic = services.NewTopicPublisher(snsPublisher, cfg.Notify.Timeout, cfg.Notify.MaxInFlight, appLogger)
		publishers = append(publishers, topic)
	}
	var publisher services.ShipmentPublisher
	if len(publishers) > 0 {
		publisher = publishers
	}

	predictionService := services.NewPredictionService(
		services.PredictionServiceConfig{
			DefaultModel: cfg.ML.DefaultModel,
			MaxBatchSize: cfg.ML.MaxBatchSize,
			Version:      cfg.App.Version,
			StorageName:  store.Name(),
		},
		loader,
		predictionCache,
		repo,
		mapsProvider,
		publisher,
		metricsClient,
		appLogger,
	)

	if _, err := predictionService.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}

	if err := validators.RegisterWithGin(); err != nil {
		return fmt.Errorf("failed to register validators: %w", err)
	}

	h := routes.Handlers{
		Model:      handlers.NewModelHandler(predictionService, cfg.App.Version),
		Prediction: handlers.NewPredictionHandler(predictionService, appLogger),
		Admin:      handlers.NewAdminHandler(predictionService, appLogger),
	}
	if cfg.WebSocket.Enabled {
		hub.SetHandler(handlers.NewStreamHandler(predictionService, appLogger))
		h.WebSocket = websocket.NewHandler(ctx, hub, websocket.Options{
			ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.WebSocket.WriteBufferSize,
			PingInterval:    cfg.WebSocket.PingInterval,
			PongTimeout:     cfg.WebSocket.PongTimeout,
			MaxMessageSize:  cfg.WebSocket.MaxMessageSize,
			AllowedOrigins:  cfg.WebSocket.AllowedOrigins,
		})
	}
	if cfg.Security.JWTSecret == "" {
		appLogger.Warn("JWT_SECRET is not set, admin endpoints are disabled")
	}

	if !cfg.App.Debug || config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}
	router.Use(middleware.RecoveryMiddleware(appLogger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(appLogger, metricsClient))
	router.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))
	router.Use(middleware.TimeoutMiddleware(utils.PredictionTimeout))

	routes.SetupRoutes(router, h, routes.Options{
		JWTSecret:     cfg.Security.JWTSecret,
		WebSocketPath: cfg.WebSocket.Path,
		Logger:        appLogger,
	})

	server := &http.Server{
		Addr:         cfg.App.Address(),
		Handler:      router,
		ReadTimeout:  cfg.App.ReadTimeout,
		WriteTimeout: cfg.App.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.WithField("address", server.Addr).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.WriteTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	if err := predictionService.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Warn("Pending prediction records were not written")
	}
	if topic != nil {
		if err := topic.Wait(shutdownCtx); err != nil {
			appLogger.WithError(err).Warn("Pending shipment updates were not published")
		}
	}

	appLogger.Info("Server exited")
	return nil
}

func newStorageProvider(ctx context.Context, cfg *config.Config) (storage.StorageProvider, error) {
	switch cfg.Storage.Provider {
	case "s3":
		return storage.NewAWSS3Storage(ctx, storage.S3Config{
			Region:          cfg.Storage.AWS.Region,
			Bucket:          cfg.Storage.AWS.Bucket,
			Prefix:          cfg.Storage.AWS.Prefix,
			AccessKeyID:     cfg.Storage.AWS.AccessKeyID,
			SecretAccessKey: cfg.Storage.AWS.SecretAccessKey,
			Endpoint:        cfg.Storage.AWS.Endpoint,
		})
	case "gcs":
		return storage.NewGCPStorage(ctx, cfg.Storage.GCP.Bucket, cfg.Storage.GCP.Prefix, cfg.Storage.GCP.CredentialsFile)
	}
	return storage.NewLocalStorage(cfg.ML.ModelPath)
}

// newPredictionCache builds the in-process tier and, when configured, the
// Redis tier. An unreachable Redis is logged and skipped.
func newPredictionCache(cfg *config.Config, appLogger *logger.Logger, m *metrics.Client) (services.PredictionCache, func()) {
	if !cfg.Cache.Enabled {
		return services.NoCache(), func() {}
	}

	local := cache.NewMemoryCache(cfg.Cache.LocalSizeBytes)
	if !cfg.Redis.Enabled {
		return services.NewPredictionCache(local, nil, cfg.Cache.TTL, appLogger, m), func() {}
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis.CacheConfig())
	if err != nil {
		appLogger.WithError(err).Warn("Redis unavailable, using in-process cache only")
		return services.NewPredictionCache(local, nil, cfg.Cache.TTL, appLogger, m), func() {}
	}
	appLogger.WithField("host", cfg.Redis.Host).Info("Connected to Redis")

	return services.NewPredictionCache(local, redisCache, cfg.Cache.TTL, appLogger, m), func() {
		if err := redisCache.Close(); err != nil {
			appLogger.WithError(err).Warn("Failed to close Redis connection")
		}
	}
}

func newPredictionRepository(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (interfaces.PredictionRepository, func(), error) {
	if !cfg.ML.PredictionLogEnabled {
		return nil, func() {}, nil
	}

	db, err := database.NewMongoDB(ctx, cfg.Database.MongoConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			appLogger.WithError(err).Warn("Failed to close MongoDB connection")
		}
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := database.NewMigrator(db.Database, cfg.Database.Retention, appLogger).Up(migrateCtx); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to migrate prediction log: %w", err)
	}

	return mongodb.NewPredictionRepository(db.Database), closeDB, nil
}

func newMapsProvider(cfg *config.Config) (maps.Provider, error) {
	switch cfg.Maps.Provider {
	case "google":
		if cfg.Maps.GoogleMaps.APIKey == "" {
			return maps.NewHaversineProvider(), nil
		}
		return maps.NewGoogleMapsProvider(cfg.Maps.GoogleMaps.APIKey)
	case "mapbox":
		if cfg.Maps.Mapbox.AccessToken == "" {
			return maps.NewHaversineProvider(), nil
		}
		return maps.NewMapboxProvider(cfg.Maps.Mapbox.AccessToken), nil
	}
	return maps.NewHaversineProvider(), nil
}


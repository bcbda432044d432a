package routes

import (
	"github.com/gin-gonic/gin"

	"etaservice/internal/handlers"
	"etaservice/internal/middleware"
	"etaservice/pkg/logger"
	"etaservice/pkg/websocket"
)

type Handlers struct {
	Model      *handlers.ModelHandler
	Prediction *handlers.PredictionHandler
	Admin      *handlers.AdminHandler
	// WebSocket is nil when streaming is disabled.
	WebSocket *websocket.Handler
}

type Options struct {
	JWTSecret     string
	WebSocketPath string
	Logger        *logger.Logger
}

// SetupRoutes mounts every endpoint on r.
func SetupRoutes(r *gin.Engine, h Handlers, opts Options) {
	r.GET("/", h.Model.Root)
	r.GET("/health", h.Model.Health)
	r.GET("/models/info", h.Model.ModelInfo)

	predict := r.Group("/predict")
	{
		predict.POST("", h.Prediction.Predict)
		predict.POST("/batch", h.Prediction.PredictBatch)
		predict.POST("/route", h.Prediction.PredictRoute)
		predict.POST("/:model_type", h.Prediction.PredictWithModel)
	}

	if h.WebSocket != nil {
		r.GET(opts.WebSocketPath, h.WebSocket.HandleWebSocket)
	}

	admin := r.Group("/admin")
	admin.Use(middleware.AdminRequired(opts.JWTSecret, opts.Logger))
	{
		admin.POST("/models/reload", h.Admin.ReloadModels)
		admin.DELETE("/cache", h.Admin.ClearCache)
		admin.GET("/cache/stats", h.Admin.CacheStats)
		admin.GET("/predictions", h.Admin.ListPredictions)
		admin.GET("/predictions/counts", h.Admin.PredictionCounts)
	}
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"etaservice/internal/services"
	"etaservice/internal/utils"
)

type ModelHandler struct {
	predictionService services.PredictionService
	version           string
}

func NewModelHandler(predictionService services.PredictionService, version string) *ModelHandler {
	return &ModelHandler{
		predictionService: predictionService,
		version:           version,
	}
}

// Root describes the service and its endpoints.
func (h *ModelHandler) Root(c *gin.Context) {
	utils.SuccessResponse(c, "ETA prediction service", gin.H{
		"service": utils.AppName,
		"version": h.version,
		"ready":   h.predictionService.Ready(),
		"endpoints": gin.H{
			"health":     "/health",
			"model_info": "/models/info",
			"predict":    "/predict",
			"batch":      "/predict/batch",
			"route":      "/predict/route",
			"stream":     "/ws/eta",
		},
	})
}

// Health reports 200 once models are loaded and 503 before.
func (h *ModelHandler) Health(c *gin.Context) {
	health := h.predictionService.Health(c.Request.Context())
	status := http.StatusOK
	if !h.predictionService.Ready() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}

func (h *ModelHandler) ModelInfo(c *gin.Context) {
	info, err := h.predictionService.ModelInfo()
	if err != nil {
		respondError(c, err)
		return
	}
	utils.SuccessResponse(c, "Model information retrieved", info)
}

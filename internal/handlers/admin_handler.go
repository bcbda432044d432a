package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"etaservice/internal/services"
	"etaservice/internal/utils"
	"etaservice/internal/validators"
	"etaservice/pkg/logger"
)

type AdminHandler struct {
	predictionService services.PredictionService
	logger            *logger.Logger
}

func NewAdminHandler(predictionService services.PredictionService, log *logger.Logger) *AdminHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &AdminHandler{
		predictionService: predictionService,
		logger:            log.WithField("component", "admin_handler"),
	}
}

// ReloadModels reloads every artifact from storage. The running models keep
// serving if the reload fails.
func (h *AdminHandler) ReloadModels(c *gin.Context) {
	h.logger.WithContext(c.Request.Context()).
		WithField("subject", c.GetString(utils.ContextKeySubject)).
		Info("Model reload requested")

	response, err := h.predictionService.Reload(c.Request.Context())
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "RELOAD_FAILED", "Failed to reload models: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Models reloaded", response)
}

func (h *AdminHandler) ClearCache(c *gin.Context) {
	deleted, err := h.predictionService.ClearCache(c.Request.Context())
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "CACHE_CLEAR_FAILED", "Failed to clear cache: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Cache cleared", gin.H{"deleted": deleted})
}

func (h *AdminHandler) CacheStats(c *gin.Context) {
	utils.SuccessResponse(c, "Cache statistics retrieved", h.predictionService.CacheStats(c.Request.Context()))
}

// ListPredictions pages through the prediction audit log, newest first by
// default. ?model= filters by the model that served the prediction.
func (h *AdminHandler) ListPredictions(c *gin.Context) {
	modelUsed := c.Query("model")
	if modelUsed != "" && !validators.IsModelType(modelUsed) {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidModel, "model must be one of: xgboost, lightgbm, neural, ensemble")
		return
	}

	params := utils.GetPaginationParams(c)
	records, total, err := h.predictionService.RecentPredictions(c.Request.Context(), modelUsed, params)
	if err != nil {
		respondError(c, err)
		return
	}

	meta := &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
		Count:      len(records),
	}
	utils.SuccessResponseWithMeta(c, "Predictions retrieved", records, meta)
}

func (h *AdminHandler) PredictionCounts(c *gin.Context) {
	counts, err := h.predictionService.PredictionCounts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, "Prediction counts retrieved", counts)
}

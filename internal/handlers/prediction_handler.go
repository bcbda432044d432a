package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"etaservice/internal/models"
	"etaservice/internal/services"
	"etaservice/internal/utils"
	"etaservice/internal/validators"
	"etaservice/pkg/logger"
)

type PredictionHandler struct {
	predictionService services.PredictionService
	logger            *logger.Logger
}

func NewPredictionHandler(predictionService services.PredictionService, log *logger.Logger) *PredictionHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &PredictionHandler{
		predictionService: predictionService,
		logger:            log.WithField("component", "prediction_handler"),
	}
}

// Predict serves a single prediction with the default model selection.
func (h *PredictionHandler) Predict(c *gin.Context) {
	h.predict(c, "")
}

// PredictWithModel serves a prediction from the model named in the path.
func (h *PredictionHandler) PredictWithModel(c *gin.Context) {
	modelType := c.Param("model_type")
	if !validators.IsModelType(modelType) {
		utils.ErrorResponse(c, http.StatusBadRequest, utils.CodeInvalidModel, "model_type must be one of: xgboost, lightgbm, neural, ensemble")
		return
	}
	h.predict(c, modelType)
}

func (h *PredictionHandler) predict(c *gin.Context, modelType string) {
	var request models.PredictionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.ValidationErrorResponse(c, utils.ValidationDetails(err))
		return
	}

	result, err := h.predictionService.Predict(c.Request.Context(), &request, modelType)
	if err != nil {
		h.logFailure(c, err)
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, "ETA predicted successfully", result)
}

func (h *PredictionHandler) PredictBatch(c *gin.Context) {
	var request models.BatchPredictionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.ValidationErrorResponse(c, utils.ValidationDetails(err))
		return
	}

	response, err := h.predictionService.PredictBatch(c.Request.Context(), &request)
	if err != nil {
		h.logFailure(c, err)
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, "Batch processed", response)
}

func (h *PredictionHandler) PredictRoute(c *gin.Context) {
	var request models.RoutePredictionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.ValidationErrorResponse(c, utils.ValidationDetails(err))
		return
	}

	response, err := h.predictionService.PredictRoute(c.Request.Context(), &request)
	if err != nil {
		h.logFailure(c, err)
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, "Route ETA predicted successfully", response)
}

func (h *PredictionHandler) logFailure(c *gin.Context, err error) {
	e := classify(err)
	entry := h.logger.WithContext(c.Request.Context()).WithError(err).WithField("path", c.FullPath())
	if e.status >= 500 {
		entry.Error("Prediction failed")
		return
	}
	entry.Warn("Prediction rejected")
}

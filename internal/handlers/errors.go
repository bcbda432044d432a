package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"etaservice/internal/services"
	"etaservice/internal/utils"
	"etaservice/pkg/ml"
)

// apiError is the status, code and message a service error maps to.
type apiError struct {
	status  int
	code    string
	message string
}

func classify(err error) apiError {
	switch {
	case errors.Is(err, ml.ErrUnknownCategory):
		return apiError{http.StatusBadRequest, utils.CodeUnknownValue, err.Error()}
	case errors.Is(err, services.ErrInvalidModel):
		return apiError{http.StatusBadRequest, utils.CodeInvalidModel, err.Error()}
	case errors.Is(err, ml.ErrUnknownModel):
		return apiError{http.StatusNotFound, utils.CodeModelNotLoaded, err.Error()}
	case errors.Is(err, services.ErrBatchTooLarge):
		return apiError{http.StatusBadRequest, utils.CodeBatchTooLarge, err.Error()}
	case errors.Is(err, services.ErrInvalidRoute):
		return apiError{http.StatusBadRequest, utils.CodeInvalidRoute, err.Error()}
	case errors.Is(err, services.ErrPredictorUnavailable):
		return apiError{http.StatusServiceUnavailable, utils.CodeUnavailable, utils.ErrModelsUnavailable}
	case errors.Is(err, services.ErrPredictionLogDisabled):
		return apiError{http.StatusNotFound, "NOT_FOUND", err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return apiError{http.StatusGatewayTimeout, "TIMEOUT", "prediction timed out"}
	}
	return apiError{http.StatusInternalServerError, utils.CodePrediction, "prediction failed"}
}

func respondError(c *gin.Context, err error) {
	e := classify(err)
	utils.ErrorResponse(c, e.status, e.code, e.message)
}

package handlers

import (
	"context"
	"encoding/json"

	"etaservice/internal/models"
	"etaservice/internal/services"
	"etaservice/internal/utils"
	"etaservice/internal/validators"
	"etaservice/pkg/logger"
	"etaservice/pkg/websocket"
)

// Websocket message types handled here.
const (
	TypePredict    = "predict"
	TypePrediction = "prediction"
)

// modelSelection is read from the same "predict" payload as the request.
// An empty model_type uses the default selection.
type modelSelection struct {
	ModelType string `json:"model_type,omitempty"`
}

// StreamHandler answers prediction requests sent over the websocket.
type StreamHandler struct {
	predictionService services.PredictionService
	logger            *logger.Logger
}

func NewStreamHandler(predictionService services.PredictionService, log *logger.Logger) *StreamHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &StreamHandler{
		predictionService: predictionService,
		logger:            log.WithField("component", "stream_handler"),
	}
}

func (h *StreamHandler) HandleMessage(ctx context.Context, client *websocket.Client, msg *websocket.Message) {
	if msg.Type != TypePredict {
		client.SendError("unsupported message type " + msg.Type)
		return
	}

	var (
		req       models.PredictionRequest
		selection modelSelection
	)
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		client.SendError("invalid prediction request: " + err.Error())
		return
	}
	if err := json.Unmarshal(msg.Data, &selection); err != nil {
		client.SendError("invalid prediction request: " + err.Error())
		return
	}
	if selection.ModelType != "" && !validators.IsModelType(selection.ModelType) {
		client.Send(websocket.NewMessage(websocket.TypeError, msg.ShipmentID, utils.APIError{
			Code:    utils.CodeInvalidModel,
			Message: "model_type must be one of: xgboost, lightgbm, neural, ensemble",
		}))
		return
	}
	if req.ShipmentID == "" {
		req.ShipmentID = msg.ShipmentID
	}
	if err := validators.ValidateStruct(&req); err != nil {
		client.Send(websocket.NewMessage(websocket.TypeError, req.ShipmentID, utils.APIError{
			Code:    utils.CodeValidation,
			Message: utils.ErrValidationFailed,
			Details: utils.ValidationDetails(err),
		}))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, utils.PredictionTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, logger.RequestIDKey, client.ID)

	result, err := h.predictionService.Predict(ctx, &req, selection.ModelType)
	if err != nil {
		e := classify(err)
		h.logger.WithContext(ctx).WithError(err).Warn("Websocket prediction failed")
		client.Send(websocket.NewMessage(websocket.TypeError, req.ShipmentID, utils.APIError{
			Code:    e.code,
			Message: e.message,
		}))
		return
	}

	client.Send(websocket.NewMessage(TypePrediction, req.ShipmentID, result))
}

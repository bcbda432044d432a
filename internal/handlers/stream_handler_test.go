package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"etaservice/internal/models"
	"etaservice/internal/utils"
	"etaservice/pkg/logger"
	"etaservice/pkg/ml"
	"etaservice/pkg/websocket"
)

func dialStream(t *testing.T, svc *mockPredictionService) *gorilla.Conn {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := websocket.NewHub(NewStreamHandler(svc, nil), nil)
	ws := websocket.NewHandler(ctx, hub, websocket.Options{})

	router := gin.New()
	router.GET("/ws/eta", ws.HandleWebSocket)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	conn, _, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws/eta", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Equal(t, websocket.TypeWelcome, readStream(t, conn).Type)
	return conn
}

func readStream(t *testing.T, conn *gorilla.Conn) *websocket.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg websocket.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return &msg
}

func predictFrame(t *testing.T, shipmentID string, data interface{}) websocket.Message {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return websocket.Message{Type: TypePredict, ShipmentID: shipmentID, Data: raw}
}

func TestStreamHandler_Predict(t *testing.T) {
	svc := &mockPredictionService{}
	svc.On("Predict", mock.MatchedBy(func(ctx context.Context) bool {
		id, _ := ctx.Value(logger.RequestIDKey).(string)
		return id != ""
	}), mock.MatchedBy(func(r *models.PredictionRequest) bool {
		return r.ShipmentID == "SHP-9" && r.Distance == 25.5
	}), ml.ModelNeural).Return(sampleResult(ml.ModelNeural), nil).Once()

	conn := dialStream(t, svc)
	body := map[string]interface{}{"distance": 25.5, "base_speed": 60, "model_type": "neural"}
	require.NoError(t, conn.WriteJSON(predictFrame(t, "SHP-9", body)))

	reply := readStream(t, conn)
	require.Equal(t, TypePrediction, reply.Type)
	assert.Equal(t, "SHP-9", reply.ShipmentID)
	var result ml.PredictionResult
	require.NoError(t, json.Unmarshal(reply.Data, &result))
	assert.Equal(t, ml.ModelNeural, result.ModelUsed)
	svc.AssertExpectations(t)
}

func TestStreamHandler_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data interface{}
		code string
	}{
		{"validation", map[string]interface{}{"distance": -3, "base_speed": 60}, utils.CodeValidation},
		{"unknown vehicle", map[string]interface{}{"distance": 3, "base_speed": 60, "vehicle": "Boat"}, utils.CodeValidation},
		{"invalid model", map[string]interface{}{"distance": 3, "base_speed": 60, "model_type": "catboost"}, utils.CodeInvalidModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockPredictionService{}
			conn := dialStream(t, svc)
			require.NoError(t, conn.WriteJSON(predictFrame(t, "", tt.data)))

			reply := readStream(t, conn)
			require.Equal(t, websocket.TypeError, reply.Type)
			var apiErr utils.APIError
			require.NoError(t, json.Unmarshal(reply.Data, &apiErr))
			assert.Equal(t, tt.code, apiErr.Code)
			svc.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestStreamHandler_ServiceError(t *testing.T) {
	svc := &mockPredictionService{}
	svc.On("Predict", mock.Anything, mock.Anything, "").Return(nil, fmt.Errorf("%w: neural", ml.ErrUnknownModel))

	conn := dialStream(t, svc)
	require.NoError(t, conn.WriteJSON(predictFrame(t, "", map[string]interface{}{"distance": 3, "base_speed": 60})))

	reply := readStream(t, conn)
	require.Equal(t, websocket.TypeError, reply.Type)
	var apiErr utils.APIError
	require.NoError(t, json.Unmarshal(reply.Data, &apiErr))
	assert.Equal(t, utils.CodeModelNotLoaded, apiErr.Code)
}

func TestStreamHandler_UnsupportedType(t *testing.T) {
	conn := dialStream(t, &mockPredictionService{})
	require.NoError(t, conn.WriteJSON(websocket.Message{Type: "ping"}))

	reply := readStream(t, conn)
	assert.Equal(t, websocket.TypeError, reply.Type)
	assert.Contains(t, string(reply.Data), "unsupported message type ping")
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"etaservice/internal/models"
	"etaservice/internal/services"
	"etaservice/internal/utils"
	"etaservice/pkg/ml"
)

func TestModelHandler_Health(t *testing.T) {
	health := &models.HealthResponse{
		Status:       "healthy",
		Version:      "test",
		ModelsLoaded: map[string]bool{ml.ModelXGBoost: true},
	}

	ready := &mockPredictionService{}
	ready.On("Health", mock.Anything).Return(health)
	ready.On("Ready").Return(true)
	w := doJSON(newRouter(ready), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.ModelsLoaded[ml.ModelXGBoost])

	notReady := &mockPredictionService{}
	notReady.On("Health", mock.Anything).Return(&models.HealthResponse{Status: "degraded"})
	notReady.On("Ready").Return(false)
	w = doJSON(newRouter(notReady), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestModelHandler_RootAndInfo(t *testing.T) {
	svc := &mockPredictionService{}
	svc.On("Ready").Return(true)
	svc.On("ModelInfo").Return(&models.ModelInfoResponse{
		LoadedModels: []string{ml.ModelEnsemble, ml.ModelLightGBM, ml.ModelXGBoost},
		DefaultModel: ml.ModelXGBoost,
		Features:     ml.FeatureNames,
	}, nil).Once()
	svc.On("ModelInfo").Return(nil, services.ErrPredictorUnavailable)
	router := newRouter(svc)

	w := doJSON(router, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), utils.AppName)

	w = doJSON(router, http.MethodGet, "/models/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info models.ModelInfoResponse
	require.NoError(t, json.Unmarshal(decode(w).Data, &info))
	assert.Equal(t, ml.ModelXGBoost, info.DefaultModel)
	assert.Len(t, info.LoadedModels, 3)

	w = doJSON(router, http.MethodGet, "/models/info", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminHandler_ReloadModels(t *testing.T) {
	svc := &mockPredictionService{}
	svc.On("Reload", mock.Anything).Return(&models.ReloadResponse{
		LoadedModels: []string{ml.ModelXGBoost},
		CacheCleared: 3,
		LoadedAt:     time.Now().UTC(),
	}, nil).Once()
	svc.On("Reload", mock.Anything).Return(nil, &ml.ModelLoadError{Artifact: "xgboost/model.json", Err: errors.New("missing")})
	router := newRouter(svc)

	w := doJSON(router, http.MethodPost, "/admin/models/reload", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.ReloadResponse
	require.NoError(t, json.Unmarshal(decode(w).Data, &resp))
	assert.Equal(t, int64(3), resp.CacheCleared)

	w = doJSON(router, http.MethodPost, "/admin/models/reload", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decode(w).Error.Message, "xgboost/model.json")
}

func TestAdminHandler_Cache(t *testing.T) {
	svc := &mockPredictionService{}
	svc.On("ClearCache", mock.Anything).Return(int64(7), nil)
	svc.On("CacheStats", mock.Anything).Return(&services.CacheStats{Enabled: true, TTLSeconds: 300})
	router := newRouter(svc)

	w := doJSON(router, http.MethodDelete, "/admin/cache", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":7}`, string(decode(w).Data))

	w = doJSON(router, http.MethodGet, "/admin/cache/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats services.CacheStats
	require.NoError(t, json.Unmarshal(decode(w).Data, &stats))
	assert.True(t, stats.Enabled)
	assert.Equal(t, 300.0, stats.TTLSeconds)
}

func TestAdminHandler_ListPredictions(t *testing.T) {
	svc := &mockPredictionService{}
	svc.On("RecentPredictions", mock.Anything, ml.ModelXGBoost, &utils.PaginationParams{Page: 2, PageSize: 1, Order: "desc"}).
		Return([]*models.PredictionRecord{{RequestID: "req-2"}}, int64(3), nil).Once()
	router := newRouter(svc)

	w := doJSON(router, http.MethodGet, "/admin/predictions?model=xgboost&page=2&page_size=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(w)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 1, env.Meta.Count)
	assert.Equal(t, 3, env.Meta.Pagination.TotalPages)
	assert.True(t, env.Meta.Pagination.HasNext)

	w = doJSON(router, http.MethodGet, "/admin/predictions?model=catboost", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.AssertExpectations(t)
}

func TestAdminHandler_PredictionLogDisabled(t *testing.T) {
	svc := &mockPredictionService{}
	svc.On("RecentPredictions", mock.Anything, "", mock.Anything).Return(nil, int64(0), services.ErrPredictionLogDisabled)
	svc.On("PredictionCounts", mock.Anything).Return(nil, services.ErrPredictionLogDisabled)
	router := newRouter(svc)

	w := doJSON(router, http.MethodGet, "/admin/predictions", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, http.MethodGet, "/admin/predictions/counts", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminHandler_PredictionCounts(t *testing.T) {
	svc := &mockPredictionService{}
	svc.On("PredictionCounts", mock.Anything).Return(map[string]int64{ml.ModelEnsemble: 12}, nil)

	w := doJSON(newRouter(svc), http.MethodGet, "/admin/predictions/counts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ensemble":12}`, string(decode(w).Data))
}

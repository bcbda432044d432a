package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"etaservice/internal/models"
	"etaservice/internal/utils"
	"etaservice/pkg/database"
	"etaservice/pkg/ml"
)

func sampleRecord(model string) *models.PredictionRecord {
	return &models.PredictionRecord{
		RequestID: "req-1",
		Request: &ml.ETARequest{
			Distance:      25,
			BaseSpeed:     60,
			TrafficFactor: 1.2,
			Vehicle:       "Car",
			Weather:       "Clear",
			Route:         "A",
		},
		Result: &ml.PredictionResult{
			EstimatedETAMinutes: 36,
			EstimatedETAHours:   0.6,
			ETARange:            ml.ETARange{Lower: 30, Upper: 42},
			ModelUsed:           model,
			Confidence:          ml.ConfidenceHigh,
			Factors:             ml.Factors{BaseTravelTime: 25, VehicleFactor: "Car"},
			Timestamp:           time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
		},
		CreatedAt: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
	}
}

func toDoc(t *testing.T, v interface{}) bson.D {
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	var doc bson.D
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

// Verifies that records are stored under the snake_case keys the queries and
// indexes use.
func TestPredictionRecordDocumentKeys(t *testing.T) {
	raw, err := bson.Marshal(sampleRecord(ml.ModelXGBoost))
	require.NoError(t, err)

	doc := bson.Raw(raw)
	assert.Equal(t, ml.ModelXGBoost, doc.Lookup("result", "model_used").StringValue())
	assert.Equal(t, 36.0, doc.Lookup("result", "estimated_eta_minutes").Double())
	assert.Equal(t, 42.0, doc.Lookup("result", "eta_range", "upper").Double())
	assert.Equal(t, "Car", doc.Lookup("result", "factors", "vehicle_factor").StringValue())
	assert.Equal(t, 60.0, doc.Lookup("request", "base_speed").Double())

	_, err = doc.LookupErr("result", "modelused")
	assert.Error(t, err)
	_, err = doc.LookupErr("request", "time_of_day")
	assert.Error(t, err, "unset hour is omitted")
}

func TestPredictionRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create", func(mt *mtest.T) {
		repo := NewPredictionRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		record := sampleRecord(ml.ModelLightGBM)
		record.CreatedAt = time.Time{}
		require.NoError(mt, repo.Create(context.Background(), record))
		assert.False(mt, record.ID.IsZero())
		assert.False(mt, record.CreatedAt.IsZero())

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "insert", evt.CommandName)
		assert.Equal(mt, database.PredictionsCollection, evt.Command.Lookup("insert").StringValue())

		docs, err := evt.Command.Lookup("documents").Array().Values()
		require.NoError(mt, err)
		require.Len(mt, docs, 1)
		inserted := docs[0].Document()
		assert.Equal(mt, ml.ModelLightGBM, inserted.Lookup("result", "model_used").StringValue())
		assert.Equal(mt, "req-1", inserted.Lookup("request_id").StringValue())
		assert.Equal(mt, "Car", inserted.Lookup("request", "vehicle").StringValue())
	})

	mt.Run("list filters by model", func(mt *mtest.T) {
		repo := NewPredictionRepository(mt.DB)
		ns := mt.DB.Name() + "." + database.PredictionsCollection
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, toDoc(mt.T, sampleRecord(ml.ModelXGBoost))),
		)

		params := &utils.PaginationParams{Page: 2, PageSize: 10, Order: "desc"}
		records, total, err := repo.List(context.Background(), ml.ModelXGBoost, params)
		require.NoError(mt, err)
		assert.Equal(mt, int64(1), total)
		require.Len(mt, records, 1)
		assert.Equal(mt, ml.ModelXGBoost, records[0].Result.ModelUsed)
		assert.Equal(mt, 25.0, records[0].Request.Distance)

		count := mt.GetStartedEvent()
		require.NotNil(mt, count)
		assert.Equal(mt, "aggregate", count.CommandName)

		find := mt.GetStartedEvent()
		require.NotNil(mt, find)
		assert.Equal(mt, "find", find.CommandName)
		assert.Equal(mt, ml.ModelXGBoost, find.Command.Lookup("filter", "result.model_used").StringValue())
		assert.Equal(mt, int64(-1), find.Command.Lookup("sort", "created_at").AsInt64())
		assert.Equal(mt, int64(10), find.Command.Lookup("skip").AsInt64())
	})

	mt.Run("list without model", func(mt *mtest.T) {
		repo := NewPredictionRepository(mt.DB)
		ns := mt.DB.Name() + "." + database.PredictionsCollection
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(0)}}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
		)

		records, total, err := repo.List(context.Background(), "", &utils.PaginationParams{Page: 1, PageSize: 20, Order: "asc"})
		require.NoError(mt, err)
		assert.Zero(mt, total)
		assert.Empty(mt, records)

		mt.GetStartedEvent()
		find := mt.GetStartedEvent()
		require.NotNil(mt, find)
		_, err = find.Command.LookupErr("filter", "result.model_used")
		assert.Error(mt, err)
	})

	mt.Run("count by model", func(mt *mtest.T) {
		repo := NewPredictionRepository(mt.DB)
		ns := mt.DB.Name() + "." + database.PredictionsCollection
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: ml.ModelXGBoost}, {Key: "count", Value: int64(3)}},
			bson.D{{Key: "_id", Value: ml.ModelLightGBM}, {Key: "count", Value: int64(1)}},
		))

		counts, err := repo.CountByModel(context.Background())
		require.NoError(mt, err)
		assert.Equal(mt, map[string]int64{ml.ModelXGBoost: 3, ml.ModelLightGBM: 1}, counts)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		stages, err := evt.Command.Lookup("pipeline").Array().Values()
		require.NoError(mt, err)
		require.Len(mt, stages, 1)
		assert.Equal(mt, "$result.model_used", stages[0].Document().Lookup("$group", "_id").StringValue())
	})

	mt.Run("insert failure is wrapped", func(mt *mtest.T) {
		repo := NewPredictionRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11000,
			Message: "duplicate key",
			Name:    "DuplicateKey",
		}))

		err := repo.Create(context.Background(), sampleRecord(ml.ModelXGBoost))
		require.Error(mt, err)
		assert.Contains(mt, err.Error(), "failed to store prediction")
	})
}

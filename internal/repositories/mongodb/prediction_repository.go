package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"etaservice/internal/models"
	"etaservice/internal/repositories/interfaces"
	"etaservice/internal/utils"
	"etaservice/pkg/database"
)

type predictionRepository struct {
	collection *mongo.Collection
}

func NewPredictionRepository(db *mongo.Database) interfaces.PredictionRepository {
	return &predictionRepository{
		collection: db.Collection(database.PredictionsCollection),
	}
}

func (r *predictionRepository) Create(ctx context.Context, record *models.PredictionRecord) error {
	record.ID = primitive.NewObjectID()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to store prediction: %w", err)
	}

	return nil
}

func (r *predictionRepository) List(ctx context.Context, modelUsed string, params *utils.PaginationParams) ([]*models.PredictionRecord, int64, error) {
	filter := bson.M{}
	if modelUsed != "" {
		filter["result.model_used"] = modelUsed
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count predictions: %w", err)
	}

	cursor, err := r.collection.Find(ctx, filter, params.FindOptions("created_at"))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find predictions: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*models.PredictionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, 0, fmt.Errorf("failed to decode predictions: %w", err)
	}

	return records, total, nil
}

func (r *predictionRepository) CountByModel(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$result.model_used"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate predictions: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Model string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode prediction counts: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Model] = row.Count
	}
	return counts, nil
}

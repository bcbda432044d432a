package interfaces

import (
	"context"

	"etaservice/internal/models"
	"etaservice/internal/utils"
)

type PredictionRepository interface {
	Create(ctx context.Context, record *models.PredictionRecord) error
	// List returns records newest first, with the total matching count.
	List(ctx context.Context, modelUsed string, params *utils.PaginationParams) ([]*models.PredictionRecord, int64, error)
	CountByModel(ctx context.Context) (map[string]int64, error)
}

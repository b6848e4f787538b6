package evaluations

import (
	"context"

	"github.com/dmitrijs2005/inspectsync/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, e *models.Evaluation) (created bool, err error)
	Update(ctx context.Context, e *models.Evaluation) error
	List(ctx context.Context, f models.EvaluationFilter) ([]*models.Evaluation, error)
	Count(ctx context.Context, f models.EvaluationFilter) (int, error)
}

package evaluations

import (
	"context"
	"iter"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
)

type Repository interface {
	Upsert(ctx context.Context, e *models.Evaluation) error
	Get(ctx context.Context, clientID string) (*models.Evaluation, error)
	GetByServerID(ctx context.Context, serverID int64) (*models.Evaluation, error)
	Delete(ctx context.Context, clientID string) error
	Query(ctx context.Context, f models.EvaluationFilter) iter.Seq2[*models.Evaluation, error]
	List(ctx context.Context, f models.EvaluationFilter) ([]*models.Evaluation, error)
	Count(ctx context.Context, f models.EvaluationFilter) (int, error)
}

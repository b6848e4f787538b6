package client

import (
	"context"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/api"
)

type Client interface {
	Ping(ctx context.Context) error
	Login(ctx context.Context, username, password string) (*api.LoginResponse, error)

	CreateEvaluation(ctx context.Context, p api.EvaluationPayload) (int64, error)
	UpdateEvaluation(ctx context.Context, serverID int64, p api.EvaluationPayload) error
	ListEvaluations(ctx context.Context, from, to time.Time, offset, limit int) (*api.EvaluationPage, error)

	Companies(ctx context.Context) ([]api.Company, error)
	Locations(ctx context.Context) ([]api.Location, error)
	Users(ctx context.Context) ([]api.User, error)
	ChecklistTemplates(ctx context.Context) ([]api.ChecklistTemplate, error)

	CreateExport(ctx context.Context, contentType string) (*api.ExportResponse, error)
}

// TokenSource returns the bearer token for the next call; "" sends none.
type TokenSource func(ctx context.Context) (string, error)

package reference

import (
	"context"

	"github.com/dmitrijs2005/inspectsync/internal/api"
)

type Repository interface {
	Company(ctx context.Context, id int64) (api.Company, error)
	Location(ctx context.Context, id int64) (api.Location, error)
	Template(ctx context.Context, id int64) (api.ChecklistTemplate, error)
	Locations(ctx context.Context, companyID int64) ([]api.Location, error)
	Templates(ctx context.Context, companyID int64) ([]api.ChecklistTemplate, error)
}

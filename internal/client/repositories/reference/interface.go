// Package reference stores the server-owned entities mirrored on the client.
// Each collection is a table of JSON documents keyed by server id.
package reference

import (
	"context"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
)

type Repository[T models.Reference] interface {
	ReplaceAll(ctx context.Context, items []T) error
	Get(ctx context.Context, id int64) (T, error)
	List(ctx context.Context) ([]T, error)
}

// Table names of the four reference collections.
const (
	TableCompanies          = "companies"
	TableLocations          = "locations"
	TableUsers              = "users"
	TableChecklistTemplates = "checklist_templates"
)

package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/inspectsync/internal/api"
	"github.com/dmitrijs2005/inspectsync/internal/server/auth"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/repomanager"
)

// ReferenceService serves the reference collections the client caches. A
// caller only sees its own company.
type ReferenceService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewReferenceService(db *sql.DB, m repomanager.RepositoryManager) *ReferenceService {
	return &ReferenceService{db: db, repomanager: m}
}

func (s *ReferenceService) Companies(ctx context.Context, p auth.Principal) ([]api.Company, error) {
	c, err := s.repomanager.Reference(s.db).Company(ctx, p.CompanyID)
	if err != nil {
		return nil, err
	}
	return []api.Company{c}, nil
}

func (s *ReferenceService) Locations(ctx context.Context, p auth.Principal) ([]api.Location, error) {
	return s.repomanager.Reference(s.db).Locations(ctx, p.CompanyID)
}

func (s *ReferenceService) Templates(ctx context.Context, p auth.Principal) ([]api.ChecklistTemplate, error) {
	return s.repomanager.Reference(s.db).Templates(ctx, p.CompanyID)
}

func (s *ReferenceService) Users(ctx context.Context, p auth.Principal) ([]api.User, error) {
	list, err := s.repomanager.Users(s.db).ListByCompany(ctx, p.CompanyID)
	if err != nil {
		return nil, err
	}
	result := make([]api.User, 0, len(list))
	for _, u := range list {
		result = append(result, u.API())
	}
	return result, nil
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/api"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/dbx"
	"github.com/dmitrijs2005/inspectsync/internal/server/auth"
	"github.com/dmitrijs2005/inspectsync/internal/server/models"
	"github.com/dmitrijs2005/inspectsync/internal/server/repositories/repomanager"
)

// EvaluationService accepts evaluations from field clients and serves the
// history used for backfill.
type EvaluationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewEvaluationService(db *sql.DB, m repomanager.RepositoryManager) *EvaluationService {
	return &EvaluationService{db: db, repomanager: m}
}

// Create stores a new evaluation. A repeated create with the same client id
// overwrites the earlier one and returns its id, so a client may retry after
// losing a response. created is false in that case.
func (s *EvaluationService) Create(ctx context.Context, p auth.Principal, in api.EvaluationPayload) (id int64, created bool, err error) {
	if strings.TrimSpace(in.ClientID) == "" {
		return 0, false, &ValidationError{Fields: map[string]string{"client_id": "is required"}}
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		e, err := s.validate(ctx, tx, p, in)
		if err != nil {
			return err
		}
		created, err = s.repomanager.Evaluations(tx).Upsert(ctx, e)
		id = e.ID
		return err
	})
	if err != nil {
		return 0, false, err
	}
	return id, created, nil
}

// Update overwrites evaluation id of the caller's company. Returns
// common.ErrNotFound when there is no such evaluation.
func (s *EvaluationService) Update(ctx context.Context, p auth.Principal, id int64, in api.EvaluationPayload) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		e, err := s.validate(ctx, tx, p, in)
		if err != nil {
			return err
		}
		e.ID = id
		return s.repomanager.Evaluations(tx).Update(ctx, e)
	})
}

// List returns one page of the company's evaluations dated within
// [from, to]. limit is capped at api.MaxPageSize; 0 means the cap.
func (s *EvaluationService) List(ctx context.Context, p auth.Principal, from, to time.Time, offset, limit int) (*api.EvaluationPage, error) {
	fe := fieldErrors{}
	if offset < 0 {
		fe.add(api.ParamOffset, "must not be negative")
	}
	if limit < 0 {
		fe.add(api.ParamLimit, "must not be negative")
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		fe.add(api.ParamTo, "is before %s", api.ParamFrom)
	}
	if err := fe.err(); err != nil {
		return nil, err
	}
	if limit == 0 || limit > api.MaxPageSize {
		limit = api.MaxPageSize
	}

	f := models.EvaluationFilter{CompanyID: p.CompanyID, From: from, To: to, Offset: offset, Limit: limit}
	repo := s.repomanager.Evaluations(s.db)

	total, err := repo.Count(ctx, f)
	if err != nil {
		return nil, err
	}
	list, err := repo.List(ctx, f)
	if err != nil {
		return nil, err
	}

	page := &api.EvaluationPage{Items: make([]api.Evaluation, 0, len(list)), Total: total, Offset: offset, Limit: limit}
	for _, e := range list {
		page.Items = append(page.Items, e.API())
	}
	return page, nil
}

// validate checks in against the reference data visible to p and converts
// it to a model.
func (s *EvaluationService) validate(ctx context.Context, db dbx.DBTX, p auth.Principal, in api.EvaluationPayload) (*models.Evaluation, error) {
	fe := fieldErrors{}
	refs := s.repomanager.Reference(db)

	if in.CompanyID == 0 {
		in.CompanyID = p.CompanyID
	}
	if in.CompanyID != p.CompanyID {
		fe.add("company_id", "is not the company of the caller")
	}

	date, err := time.Parse(time.DateOnly, in.EvaluationDate)
	if err != nil {
		fe.add("evaluation_date", "must be YYYY-MM-DD")
	}

	if err := checkOwned(ctx, p.CompanyID, func(ctx context.Context) (int64, error) {
		l, err := refs.Location(ctx, in.LocationID)
		return l.CompanyID, err
	}); err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		fe.add("location_id", "unknown location %d", in.LocationID)
	}

	if err := checkOwned(ctx, p.CompanyID, func(ctx context.Context) (int64, error) {
		u, err := s.repomanager.Users(db).Get(ctx, in.EvaluatorID)
		if err != nil {
			return 0, err
		}
		return u.CompanyID, nil
	}); err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		fe.add("evaluator_id", "unknown evaluator %d", in.EvaluatorID)
	}

	if in.ChecklistTemplateID != 0 {
		if err := checkOwned(ctx, p.CompanyID, func(ctx context.Context) (int64, error) {
			t, err := refs.Template(ctx, in.ChecklistTemplateID)
			return t.CompanyID, err
		}); err != nil {
			if !errors.Is(err, common.ErrNotFound) {
				return nil, err
			}
			fe.add("checklist_template_id", "unknown checklist template %d", in.ChecklistTemplateID)
		}
	}

	for i, it := range in.Items {
		if strings.TrimSpace(it.Category) == "" || strings.TrimSpace(it.Item) == "" {
			fe.add(fmt.Sprintf("items[%d]", i), "category and item are required")
		}
		if !validRating(it.Rating) {
			fe.add(fmt.Sprintf("items[%d].rating", i), "must be between %d and %d", api.MinRating, api.MaxRating)
		}
		for j, sub := range it.SubItems {
			if !validRating(sub.Rating) {
				fe.add(fmt.Sprintf("items[%d].sub_items[%d].rating", i, j), "must be between %d and %d", api.MinRating, api.MaxRating)
			}
		}
	}

	if err := fe.err(); err != nil {
		return nil, err
	}

	return &models.Evaluation{
		ClientID:            in.ClientID,
		CompanyID:           in.CompanyID,
		LocationID:          in.LocationID,
		EvaluatorID:         in.EvaluatorID,
		ChecklistTemplateID: in.ChecklistTemplateID,
		EvaluationDate:      date,
		Items:               in.Items,
		Notes:               in.Notes,
	}, nil
}

// checkOwned loads a referenced row's company and reports common.ErrNotFound
// when the row is missing or belongs to another company.
func checkOwned(ctx context.Context, companyID int64, load func(context.Context) (int64, error)) error {
	owner, err := load(ctx)
	if err != nil {
		return err
	}
	if owner != companyID {
		return common.ErrNotFound
	}
	return nil
}

func validRating(v int) bool {
	return v >= api.MinRating && v <= api.MaxRating
}

// Package reference provides read access to companies, locations and
// checklist templates.
package reference

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/inspectsync/internal/api"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Company(ctx context.Context, id int64) (api.Company, error) {
	var c api.Company
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM companies WHERE id = $1`, id).Scan(&c.ID, &c.Name)
	return c, rowError(err)
}

func (r *PostgresRepository) Location(ctx context.Context, id int64) (api.Location, error) {
	var l api.Location
	err := r.db.QueryRowContext(ctx, `SELECT id, company_id, name, address FROM locations WHERE id = $1`, id).
		Scan(&l.ID, &l.CompanyID, &l.Name, &l.Address)
	return l, rowError(err)
}

func (r *PostgresRepository) Template(ctx context.Context, id int64) (api.ChecklistTemplate, error) {
	var (
		t   api.ChecklistTemplate
		raw []byte
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, company_id, name, categories FROM checklist_templates WHERE id = $1`, id).
		Scan(&t.ID, &t.CompanyID, &t.Name, &raw)
	if err != nil {
		return t, rowError(err)
	}
	if err := json.Unmarshal(raw, &t.Categories); err != nil {
		return t, fmt.Errorf("failed to decode template %d: %w", id, err)
	}
	return t, nil
}

// Locations returns the company's locations ordered by id.
func (r *PostgresRepository) Locations(ctx context.Context, companyID int64) ([]api.Location, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, company_id, name, address FROM locations WHERE company_id = $1 ORDER BY id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to select locations: %w", err)
	}
	defer rows.Close()

	result := []api.Location{}
	for rows.Next() {
		var l api.Location
		if err := rows.Scan(&l.ID, &l.CompanyID, &l.Name, &l.Address); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

// Templates returns the company's checklist templates ordered by id.
func (r *PostgresRepository) Templates(ctx context.Context, companyID int64) ([]api.ChecklistTemplate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, company_id, name, categories FROM checklist_templates WHERE company_id = $1 ORDER BY id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to select templates: %w", err)
	}
	defer rows.Close()

	result := []api.ChecklistTemplate{}
	for rows.Next() {
		var (
			t   api.ChecklistTemplate
			raw []byte
		)
		if err := rows.Scan(&t.ID, &t.CompanyID, &t.Name, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		if err := json.Unmarshal(raw, &t.Categories); err != nil {
			return nil, fmt.Errorf("failed to decode template %d: %w", t.ID, err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func rowError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return common.ErrNotFound
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

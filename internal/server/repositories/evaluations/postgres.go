// Package evaluations provides PostgreSQL-backed storage of submitted
// evaluations.
package evaluations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/inspectsync/internal/api"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/dbx"
	"github.com/dmitrijs2005/inspectsync/internal/server/models"
)

// PostgresRepository implements evaluation storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert stores e keyed by its client id and fills in ID, CreatedAt and
// UpdatedAt. A row with the same client id is overwritten when it belongs to
// the same company; otherwise common.ErrConflict is returned. created reports
// whether a new row was inserted.
func (r *PostgresRepository) Upsert(ctx context.Context, e *models.Evaluation) (bool, error) {
	query := `
		INSERT INTO evaluations (client_id, company_id, location_id, evaluator_id,
			checklist_template_id, evaluation_date, items, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (client_id)
		DO UPDATE SET
			location_id = EXCLUDED.location_id,
			evaluator_id = EXCLUDED.evaluator_id,
			checklist_template_id = EXCLUDED.checklist_template_id,
			evaluation_date = EXCLUDED.evaluation_date,
			items = EXCLUDED.items,
			notes = EXCLUDED.notes,
			updated_at = now()
			WHERE evaluations.company_id = EXCLUDED.company_id
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted`

	items, err := encodeItems(e)
	if err != nil {
		return false, err
	}

	var created bool
	err = r.db.QueryRowContext(ctx, query,
		e.ClientID, e.CompanyID, e.LocationID, e.EvaluatorID,
		nullID(e.ChecklistTemplateID), e.EvaluationDate, items, e.Notes,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("%w: client id %s is taken", common.ErrConflict, e.ClientID)
		}
		return false, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

// Update overwrites the evaluation with e.ID inside e.CompanyID. The stored
// client id is kept. Returns common.ErrNotFound when no such row exists.
func (r *PostgresRepository) Update(ctx context.Context, e *models.Evaluation) error {
	query := `
		UPDATE evaluations SET
			location_id = $3,
			evaluator_id = $4,
			checklist_template_id = $5,
			evaluation_date = $6,
			items = $7,
			notes = $8,
			updated_at = now()
		WHERE id = $1 AND company_id = $2
		RETURNING client_id, created_at, updated_at`

	items, err := encodeItems(e)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(ctx, query,
		e.ID, e.CompanyID, e.LocationID, e.EvaluatorID,
		nullID(e.ChecklistTemplateID), e.EvaluationDate, items, e.Notes,
	).Scan(&e.ClientID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// List returns the evaluations matching f ordered by date and id.
func (r *PostgresRepository) List(ctx context.Context, f models.EvaluationFilter) ([]*models.Evaluation, error) {
	where, args := filterClause(f)
	query := `SELECT id, client_id, company_id, location_id, evaluator_id, checklist_template_id,
			evaluation_date, items, notes, created_at, updated_at
		FROM evaluations` + where + `
		ORDER BY evaluation_date, id`

	args = append(args, f.Offset)
	query += " OFFSET $" + strconv.Itoa(len(args))
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select evaluations: %w", err)
	}
	defer rows.Close()

	var result []*models.Evaluation
	for rows.Next() {
		var (
			e     models.Evaluation
			tpl   sql.NullInt64
			items []byte
		)
		if err := rows.Scan(&e.ID, &e.ClientID, &e.CompanyID, &e.LocationID, &e.EvaluatorID, &tpl,
			&e.EvaluationDate, &items, &e.Notes, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		e.ChecklistTemplateID = tpl.Int64
		if err := json.Unmarshal(items, &e.Items); err != nil {
			return nil, fmt.Errorf("failed to decode items of evaluation %d: %w", e.ID, err)
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return result, nil
}

// Count returns how many evaluations match f, ignoring Offset and Limit.
func (r *PostgresRepository) Count(ctx context.Context, f models.EvaluationFilter) (int, error) {
	where, args := filterClause(f)

	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM evaluations`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count evaluations: %w", err)
	}
	return n, nil
}

func filterClause(f models.EvaluationFilter) (string, []any) {
	conds := []string{"company_id = $1"}
	args := []any{f.CompanyID}

	if !f.From.IsZero() {
		args = append(args, f.From)
		conds = append(conds, "evaluation_date >= $"+strconv.Itoa(len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		conds = append(conds, "evaluation_date <= $"+strconv.Itoa(len(args)))
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

func encodeItems(e *models.Evaluation) (string, error) {
	items := e.Items
	if items == nil {
		items = []api.ItemResult{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode items: %w", err)
	}
	return string(b), nil
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

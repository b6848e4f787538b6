package evaluations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/dbx"
)

const columns = `client_id, server_id, synced, location_id, evaluator_id, company_id,
	checklist_template_id, evaluation_date, items, notes,
	location_name, evaluator_name, company_name, template_name, created_at, updated_at`

// SQLiteRepository implements Repository over a DBTX (either *sql.DB or *sql.Tx).
var _ Repository = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Upsert writes the evaluation keyed by its client id.
func (r *SQLiteRepository) Upsert(ctx context.Context, e *models.Evaluation) error {
	synced, serverID, hasServerID := models.IdentityColumns(e.Identity)

	items, err := json.Marshal(e.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	query := `INSERT INTO evaluations (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			server_id = excluded.server_id,
			synced = excluded.synced,
			location_id = excluded.location_id,
			evaluator_id = excluded.evaluator_id,
			company_id = excluded.company_id,
			checklist_template_id = excluded.checklist_template_id,
			evaluation_date = excluded.evaluation_date,
			items = excluded.items,
			notes = excluded.notes,
			location_name = excluded.location_name,
			evaluator_name = excluded.evaluator_name,
			company_name = excluded.company_name,
			template_name = excluded.template_name,
			updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		e.ClientID,
		sql.NullInt64{Int64: serverID, Valid: hasServerID},
		synced,
		e.LocationID, e.EvaluatorID, e.CompanyID,
		sql.NullInt64{Int64: e.ChecklistTemplateID, Valid: e.ChecklistTemplateID != 0},
		e.EvaluationDate.Format(models.DateLayout),
		string(items),
		e.Notes,
		e.LocationName, e.EvaluatorName, e.CompanyName, e.TemplateName,
		e.CreatedAt.UnixMilli(), e.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert evaluation %s: %w", e.ClientID, err)
	}
	return nil
}

// Get returns the evaluation or common.ErrNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, clientID string) (*models.Evaluation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM evaluations WHERE client_id = ?`, clientID)
	e, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation %s: %w", clientID, err)
	}
	return e, nil
}

func (r *SQLiteRepository) GetByServerID(ctx context.Context, serverID int64) (*models.Evaluation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM evaluations WHERE server_id = ?`, serverID)
	e, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation by server id %d: %w", serverID, err)
	}
	return e, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, clientID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM evaluations WHERE client_id = ?`, clientID); err != nil {
		return fmt.Errorf("failed to delete evaluation %s: %w", clientID, err)
	}
	return nil
}

// Query streams matching evaluations, newest evaluation date first. Each
// range over the returned sequence runs the query again.
func (r *SQLiteRepository) Query(ctx context.Context, f models.EvaluationFilter) iter.Seq2[*models.Evaluation, error] {
	where, args := buildWhere(f)
	query := `SELECT ` + columns + ` FROM evaluations` + where + ` ORDER BY evaluation_date DESC, created_at DESC, client_id`

	return func(yield func(*models.Evaluation, error) bool) {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("failed to query evaluations: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scan(rows)
			if err != nil {
				yield(nil, fmt.Errorf("failed to scan evaluation: %w", err))
				return
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("failed to iterate evaluations: %w", err))
		}
	}
}

// List collects Query into a slice.
func (r *SQLiteRepository) List(ctx context.Context, f models.EvaluationFilter) ([]*models.Evaluation, error) {
	var result []*models.Evaluation
	for e, err := range r.Query(ctx, f) {
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

func (r *SQLiteRepository) Count(ctx context.Context, f models.EvaluationFilter) (int, error) {
	where, args := buildWhere(f)
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM evaluations`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count evaluations: %w", err)
	}
	return n, nil
}

func buildWhere(f models.EvaluationFilter) (string, []any) {
	var conds []string
	var args []any

	if f.LocationID != 0 {
		conds = append(conds, "location_id = ?")
		args = append(args, f.LocationID)
	}
	if f.EvaluatorID != 0 {
		conds = append(conds, "evaluator_id = ?")
		args = append(args, f.EvaluatorID)
	}
	if !f.From.IsZero() {
		conds = append(conds, "evaluation_date >= ?")
		args = append(args, f.From.Format(models.DateLayout))
	}
	if !f.To.IsZero() {
		conds = append(conds, "evaluation_date <= ?")
		args = append(args, f.To.Format(models.DateLayout))
	}
	if f.OnlySynced {
		conds = append(conds, "synced = 1")
	}
	if f.OnlyPending {
		conds = append(conds, "synced = 0")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.Evaluation, error) {
	var (
		e          models.Evaluation
		serverID   sql.NullInt64
		synced     bool
		templateID sql.NullInt64
		date       string
		items      string
		createdAt  int64
		updatedAt  int64
	)

	err := s.Scan(&e.ClientID, &serverID, &synced, &e.LocationID, &e.EvaluatorID, &e.CompanyID,
		&templateID, &date, &items, &e.Notes,
		&e.LocationName, &e.EvaluatorName, &e.CompanyName, &e.TemplateName, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	e.Identity, err = models.IdentityFromColumns(synced, serverID.Int64, serverID.Valid)
	if err != nil {
		return nil, fmt.Errorf("evaluation %s: %w", e.ClientID, err)
	}

	e.ChecklistTemplateID = templateID.Int64
	if e.EvaluationDate, err = time.Parse(models.DateLayout, date); err != nil {
		return nil, fmt.Errorf("evaluation %s: bad date %q: %w", e.ClientID, date, err)
	}
	if err := json.Unmarshal([]byte(items), &e.Items); err != nil {
		return nil, fmt.Errorf("evaluation %s: bad items: %w", e.ClientID, err)
	}
	e.CreatedAt = time.UnixMilli(createdAt).UTC()
	e.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	return &e, nil
}

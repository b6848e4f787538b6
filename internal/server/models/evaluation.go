package models

import (
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/api"
)

// Evaluation is a stored evaluation. ClientID is unique across the table
// and makes a repeated create land on the same row.
type Evaluation struct {
	ID                  int64
	ClientID            string
	CompanyID           int64
	LocationID          int64
	EvaluatorID         int64
	ChecklistTemplateID int64
	EvaluationDate      time.Time
	Items               []api.ItemResult
	Notes               string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// EvaluationFilter selects a company's evaluations by date. Zero dates
// leave that side open; Limit 0 means no limit.
type EvaluationFilter struct {
	CompanyID int64
	From      time.Time
	To        time.Time
	Offset    int
	Limit     int
}

func (e *Evaluation) API() api.Evaluation {
	items := e.Items
	if items == nil {
		items = []api.ItemResult{}
	}
	return api.Evaluation{
		ID: e.ID,
		EvaluationPayload: api.EvaluationPayload{
			ClientID:            e.ClientID,
			LocationID:          e.LocationID,
			EvaluatorID:         e.EvaluatorID,
			CompanyID:           e.CompanyID,
			ChecklistTemplateID: e.ChecklistTemplateID,
			EvaluationDate:      e.EvaluationDate.Format(time.DateOnly),
			Items:               items,
			Notes:               e.Notes,
		},
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

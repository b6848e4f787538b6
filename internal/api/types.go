package api

import "time"

// Rating scale for item and sub-item results, checked by both sides.
const (
	MinRating = 1
	MaxRating = 5
)

type SubItemRating struct {
	Name   string `json:"name"`
	Rating int    `json:"rating"`
}

type ItemResult struct {
	Category string          `json:"category"`
	Item     string          `json:"item"`
	Rating   int             `json:"rating"`
	Comment  string          `json:"comment,omitempty"`
	SubItems []SubItemRating `json:"sub_items,omitempty"`
}

// EvaluationPayload is the body of POST /evaluations and PUT /evaluations/{id}.
// ClientID doubles as the idempotency key of a create.
type EvaluationPayload struct {
	ClientID            string       `json:"client_id"`
	LocationID          int64        `json:"location_id"`
	EvaluatorID         int64        `json:"evaluator_id"`
	CompanyID           int64        `json:"company_id"`
	ChecklistTemplateID int64        `json:"checklist_template_id,omitempty"`
	EvaluationDate      string       `json:"evaluation_date"`
	Items               []ItemResult `json:"items"`
	Notes               string       `json:"notes"`
}

// Evaluation is a server-side record.
type Evaluation struct {
	ID int64 `json:"id"`
	EvaluationPayload
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type EvaluationPage struct {
	Items  []Evaluation `json:"items"`
	Total  int          `json:"total"`
	Offset int          `json:"offset"`
	Limit  int          `json:"limit"`
}

type CreateEvaluationResponse struct {
	ID int64 `json:"id"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type ExportRequest struct {
	ContentType string `json:"content_type"`
}

type ExportResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type PingResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

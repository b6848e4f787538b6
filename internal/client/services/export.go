package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/api"
	"github.com/dmitrijs2005/inspectsync/internal/client/client"
	"github.com/dmitrijs2005/inspectsync/internal/client/models"
	"github.com/dmitrijs2005/inspectsync/internal/client/store"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
	"github.com/dmitrijs2005/inspectsync/internal/netx"
)

const exportContentType = "application/json"

// ExportService uploads a snapshot of every local evaluation, pending ones
// included, to object storage through a presigned URL.
type ExportService interface {
	Export(ctx context.Context) (key string, count int, err error)
}

type exportService struct {
	client client.Client
	st     *store.Store
	log    logging.Logger
	now    func() time.Time
	upload func(ctx context.Context, url, contentType string, body []byte) error
}

func NewExportService(c client.Client, st *store.Store, log logging.Logger) ExportService {
	return &exportService{
		client: c,
		st:     st,
		log:    log.With("module", "export"),
		now:    time.Now,
		upload: netx.UploadToPresignedURL,
	}
}

type exportRecord struct {
	api.EvaluationPayload
	ServerID      *int64    `json:"server_id,omitempty"`
	Synced        bool      `json:"synced"`
	LocationName  string    `json:"location_name"`
	EvaluatorName string    `json:"evaluator_name"`
	CompanyName   string    `json:"company_name"`
	TemplateName  string    `json:"template_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type exportDocument struct {
	ExportedAt  time.Time      `json:"exported_at"`
	Evaluations []exportRecord `json:"evaluations"`
}

func (s *exportService) Export(ctx context.Context) (string, int, error) {
	doc := exportDocument{ExportedAt: s.now().UTC(), Evaluations: []exportRecord{}}

	for e, err := range s.st.Evaluations().Query(ctx, models.EvaluationFilter{}) {
		if err != nil {
			return "", 0, err
		}
		doc.Evaluations = append(doc.Evaluations, toExportRecord(e))
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return "", 0, fmt.Errorf("failed to encode export: %w", err)
	}

	target, err := s.client.CreateExport(ctx, exportContentType)
	if err != nil {
		return "", 0, fmt.Errorf("failed to request upload url: %w", err)
	}

	if err := s.upload(ctx, target.URL, exportContentType, body); err != nil {
		return "", 0, fmt.Errorf("failed to upload export: %w", err)
	}

	s.log.Info(ctx, "export uploaded", "key", target.Key, "evaluations", len(doc.Evaluations))
	return target.Key, len(doc.Evaluations), nil
}

func toExportRecord(e *models.Evaluation) exportRecord {
	r := exportRecord{
		EvaluationPayload: e.Payload(),
		Synced:            e.Synced(),
		LocationName:      e.LocationName,
		EvaluatorName:     e.EvaluatorName,
		CompanyName:       e.CompanyName,
		TemplateName:      e.TemplateName,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
	if id, ok := e.ServerID(); ok {
		r.ServerID = &id
	}
	return r
}

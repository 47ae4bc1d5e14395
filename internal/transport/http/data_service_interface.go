package http

import (
	"context"

	"emspulse/pkg/contracts/domain"
)

// DataServiceInterface is the ingestion and template surface the handler
// needs.
type DataServiceInterface interface {
	IngestReadings(ctx context.Context, series string, samples []domain.Sample) error
	CreateTemplate(ctx context.Context, tmpl *domain.Template) (int64, error)
	GetTemplate(ctx context.Context, id int64) (*domain.Template, error)
	ListTemplates(ctx context.Context) ([]*domain.Template, error)
}

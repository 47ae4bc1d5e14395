package services

import (
	"context"
	"fmt"
	"log/slog"

	"emspulse/internal/store"
	"emspulse/pkg/contracts/domain"
)

// DataService ingests raw sensor readings and manages report templates.
type DataService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewDataService creates the ingestion service.
func NewDataService(st *store.Store, logger *slog.Logger) *DataService {
	return &DataService{
		store:  st,
		logger: logger.With(slog.String("component", "data_service")),
	}
}

// IngestReadings stores a batch of samples for one series.
func (s *DataService) IngestReadings(ctx context.Context, series string, samples []domain.Sample) error {
	if series == "" {
		return fmt.Errorf("series name is empty")
	}
	if err := s.store.InsertSamples(ctx, series, samples); err != nil {
		return fmt.Errorf("ingest %q: %w", series, err)
	}

	s.logger.InfoContext(ctx, "readings ingested",
		slog.String("series", series),
		slog.Int("samples", len(samples)))
	return nil
}

// CreateTemplate stores a new report template.
func (s *DataService) CreateTemplate(ctx context.Context, tmpl *domain.Template) (int64, error) {
	if len(tmpl.Parameters) == 0 {
		return 0, fmt.Errorf("template %q has no parameters", tmpl.Name)
	}
	id, err := s.store.InsertTemplate(ctx, tmpl)
	if err != nil {
		return 0, fmt.Errorf("create template: %w", err)
	}

	s.logger.InfoContext(ctx, "template created",
		slog.Int64("template_id", id),
		slog.String("name", tmpl.Name),
		slog.Int("parameters", len(tmpl.Parameters)))
	return id, nil
}

// GetTemplate loads one template.
func (s *DataService) GetTemplate(ctx context.Context, id int64) (*domain.Template, error) {
	return s.store.GetTemplate(ctx, id)
}

// ListTemplates returns all templates ordered by name.
func (s *DataService) ListTemplates(ctx context.Context) ([]*domain.Template, error) {
	return s.store.ListTemplates(ctx)
}

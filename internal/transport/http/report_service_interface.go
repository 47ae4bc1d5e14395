package http

import (
	"context"

	"emspulse/internal/services"
	"emspulse/pkg/contracts/domain"
)

// ReportServiceInterface is the report pipeline surface the handler needs.
// Defined here so the handler can be tested against a fake.
type ReportServiceInterface interface {
	Generate(ctx context.Context, req services.GenerateRequest) (*services.GenerateResult, error)
	Review(ctx context.Context, id int64, reviewer string) (*domain.StoredReport, error)
	Approve(ctx context.Context, id int64, approver string) (*domain.StoredReport, error)
	Get(ctx context.Context, id int64) (*domain.StoredReport, error)
	List(ctx context.Context) ([]*domain.StoredReport, error)
	MergedRows(ctx context.Context, window domain.Window) ([]domain.MergedRow, error)
}

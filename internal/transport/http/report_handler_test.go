package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "emspulse/internal/errors"
	"emspulse/internal/middleware"
	"emspulse/internal/report"
	"emspulse/internal/services"
	"emspulse/pkg/contracts/domain"
)

type fakeReportService struct {
	generated *services.GenerateRequest
	reports   map[int64]*domain.StoredReport
	rows      []domain.MergedRow
	err       error
}

func (f *fakeReportService) Generate(ctx context.Context, req services.GenerateRequest) (*services.GenerateResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.generated = &req
	return &services.GenerateResult{
		ReportID: 7,
		Artifact: &report.Artifact{
			Bytes:    []byte("%PDF-1.4 fake"),
			Heading:  "EMS Report - Lab",
			Filename: "EMS_Report_Lab.pdf",
		},
	}, nil
}

func (f *fakeReportService) Review(ctx context.Context, id int64, reviewer string) (*domain.StoredReport, error) {
	return f.stamp(id, func(r *domain.StoredReport) { r.ReviewedBy = reviewer })
}

func (f *fakeReportService) Approve(ctx context.Context, id int64, approver string) (*domain.StoredReport, error) {
	return f.stamp(id, func(r *domain.StoredReport) {
		r.ApprovedBy = approver
		r.Approved = true
	})
}

func (f *fakeReportService) stamp(id int64, apply func(*domain.StoredReport)) (*domain.StoredReport, error) {
	r, ok := f.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %d: %w", id, apierrors.ErrArtifactNotFound)
	}
	apply(r)
	return r, nil
}

func (f *fakeReportService) Get(ctx context.Context, id int64) (*domain.StoredReport, error) {
	r, ok := f.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %d: %w", id, apierrors.ErrArtifactNotFound)
	}
	copied := *r
	return &copied, nil
}

func (f *fakeReportService) List(ctx context.Context) ([]*domain.StoredReport, error) {
	out := make([]*domain.StoredReport, 0, len(f.reports))
	for _, r := range f.reports {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeReportService) MergedRows(ctx context.Context, window domain.Window) ([]domain.MergedRow, error) {
	return f.rows, nil
}

type fakeDataService struct {
	templates map[int64]*domain.Template
	ingested  map[string][]domain.Sample
}

func (f *fakeDataService) IngestReadings(ctx context.Context, series string, samples []domain.Sample) error {
	if f.ingested == nil {
		f.ingested = make(map[string][]domain.Sample)
	}
	f.ingested[series] = append(f.ingested[series], samples...)
	return nil
}

func (f *fakeDataService) CreateTemplate(ctx context.Context, tmpl *domain.Template) (int64, error) {
	if f.templates == nil {
		f.templates = make(map[int64]*domain.Template)
	}
	id := int64(len(f.templates) + 1)
	tmpl.ID = id
	f.templates[id] = tmpl
	return id, nil
}

func (f *fakeDataService) GetTemplate(ctx context.Context, id int64) (*domain.Template, error) {
	tmpl, ok := f.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %d: %w", id, apierrors.ErrTemplateNotFound)
	}
	return tmpl, nil
}

func (f *fakeDataService) ListTemplates(ctx context.Context) ([]*domain.Template, error) {
	out := make([]*domain.Template, 0, len(f.templates))
	for _, tmpl := range f.templates {
		out = append(out, tmpl)
	}
	return out, nil
}

func newReportHandler(svc ReportServiceInterface, data DataServiceInterface) *ReportHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eh := apierrors.NewErrorHandler(logger, false)
	return NewReportHandler(svc, data, logger, eh, middleware.NewValidationMiddleware(logger, eh))
}

func storedReport(id int64) *domain.StoredReport {
	return &domain.StoredReport{
		ID:          id,
		Name:        "EMS_Report_Lab.pdf",
		PDF:         []byte("%PDF-1.4 stored"),
		GeneratedBy: "alice",
		GeneratedAt: time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC),
	}
}

func TestGenerateEndpoint(t *testing.T) {
	svc := &fakeReportService{reports: map[int64]*domain.StoredReport{}}
	h := newReportHandler(svc, &fakeDataService{})

	body := `{"template_id":1,"from":1772704800000,"to":1772712000000,"requested_by":"alice"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "7", rec.Header().Get("X-Report-ID"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `attachment; filename="EMS_Report_Lab.pdf"`)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF-"))

	require.NotNil(t, svc.generated)
	assert.Equal(t, int64(1), svc.generated.TemplateID)
	assert.Equal(t, time.UnixMilli(1772704800000), svc.generated.Window.Start)
	assert.Equal(t, "alice", svc.generated.RequestedBy)
}

func TestGenerateEndpoint_ValidationFailure(t *testing.T) {
	h := newReportHandler(&fakeReportService{}, &fakeDataService{})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"template_id":1}`))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestViewEndpoint(t *testing.T) {
	svc := &fakeReportService{reports: map[int64]*domain.StoredReport{3: storedReport(3)}}
	h := newReportHandler(svc, &fakeDataService{})

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/3/view", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "inline")
	assert.Equal(t, "%PDF-1.4 stored", rec.Body.String())
}

func TestViewEndpoint_NotFound(t *testing.T) {
	svc := &fakeReportService{reports: map[int64]*domain.StoredReport{}}
	h := newReportHandler(svc, &fakeDataService{})

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/404/view", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "/errors/report/not-found")
}

func TestReviewEndpoint(t *testing.T) {
	svc := &fakeReportService{reports: map[int64]*domain.StoredReport{3: storedReport(3)}}
	h := newReportHandler(svc, &fakeDataService{})

	req := httptest.NewRequest(http.MethodPut, "/3/review", strings.NewReader(`{"by":"carol"}`))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got domain.StoredReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "carol", got.ReviewedBy)
}

func TestReviewEndpoint_InvalidID(t *testing.T) {
	h := newReportHandler(&fakeReportService{}, &fakeDataService{})

	req := httptest.NewRequest(http.MethodPut, "/abc/review", strings.NewReader(`{"by":"carol"}`))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApproveEndpoint(t *testing.T) {
	svc := &fakeReportService{reports: map[int64]*domain.StoredReport{3: storedReport(3)}}
	h := newReportHandler(svc, &fakeDataService{})

	req := httptest.NewRequest(http.MethodPut, "/3/approve", strings.NewReader(`{"by":"dave"}`))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.StoredReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Approved)
	assert.Equal(t, "dave", got.ApprovedBy)
}

func TestListEndpoint(t *testing.T) {
	svc := &fakeReportService{reports: map[int64]*domain.StoredReport{
		1: storedReport(1),
		2: storedReport(2),
	}}
	h := newReportHandler(svc, &fakeDataService{})

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2, got.Count)
}

func TestExportCSVEndpoint(t *testing.T) {
	bucket := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	val := 21.5
	svc := &fakeReportService{
		rows: []domain.MergedRow{{Bucket: bucket, Values: map[string]*float64{"Temp": &val}}},
	}
	data := &fakeDataService{templates: map[int64]*domain.Template{
		1: {ID: 1, Name: "Lab A", Parameters: []string{"Temp_From_10_To_30_Unit_C"}},
	}}
	h := newReportHandler(svc, data)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/export/csv?template_id=1&from=1772704800000&to=1772712000000", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")
	assert.Contains(t, rec.Body.String(), "Timestamp,Temp")
	assert.Contains(t, rec.Body.String(), "21.5")
}

func TestExportCSVEndpoint_BadWindow(t *testing.T) {
	h := newReportHandler(&fakeReportService{}, &fakeDataService{})

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/export/csv?template_id=1&from=yesterday&to=now", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportXLSXEndpoint(t *testing.T) {
	data := &fakeDataService{templates: map[int64]*domain.Template{
		1: {ID: 1, Name: "Lab A", Parameters: []string{"Temp_Unit_C"}},
	}}
	h := newReportHandler(&fakeReportService{}, data)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/export/xlsx?template_id=1&from=1772704800000&to=1772712000000", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	// XLSX containers are zip archives.
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"))
}

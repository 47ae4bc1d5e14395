package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "emspulse/internal/errors"
	"emspulse/internal/exporter"
	"emspulse/internal/middleware"
	"emspulse/internal/report"
	"emspulse/internal/services"
	"emspulse/internal/timeseries"
	"emspulse/pkg/contracts/domain"
)

// ReportHandler serves report generation, retrieval, export and the
// review/approval lifecycle.
type ReportHandler struct {
	service      ReportServiceInterface
	data         DataServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validation   *middleware.ValidationMiddleware
}

// NewReportHandler creates the handler.
func NewReportHandler(service ReportServiceInterface, data DataServiceInterface,
	logger *slog.Logger, errorHandler *apierrors.ErrorHandler,
	validation *middleware.ValidationMiddleware) *ReportHandler {

	return &ReportHandler{
		service:      service,
		data:         data,
		logger:       logger.With(slog.String("component", "report_handler")),
		errorHandler: errorHandler,
		validation:   validation,
	}
}

// Routes returns the report routes.
func (h *ReportHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Generate)
	r.Get("/", h.List)

	r.Get("/export/csv", h.ExportCSV)
	r.Get("/export/xlsx", h.ExportXLSX)

	r.Route("/{id}", func(r chi.Router) {
		r.Use(h.ReportCtx)
		r.Get("/", h.Get)
		r.Get("/view", h.View)
		r.Get("/download", h.Download)
		r.Put("/review", h.Review)
		r.Put("/approve", h.Approve)
	})

	return r
}

// ReportCtx validates the id parameter.
func (h *ReportHandler) ReportCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := reportID(r); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func reportID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierrors.ErrValidation("id", fmt.Sprintf("invalid report id %q", raw))
	}
	return id, nil
}

type generateRequest struct {
	TemplateID       int64  `json:"template_id" validate:"required"`
	From             int64  `json:"from" validate:"required"`
	To               int64  `json:"to" validate:"required"`
	RequestedBy      string `json:"requested_by" validate:"required"`
	AssignedReviewer string `json:"assigned_reviewer,omitempty"`
	ApproverRequired bool   `json:"approver_required,omitempty"`
	AssignedApprover string `json:"assigned_approver,omitempty"`
}

// Generate handles POST /api/reports. The window bounds are unix epoch
// milliseconds. On success the artifact is returned as a PDF attachment
// with its stored id in the X-Report-ID header.
func (h *ReportHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := h.validation.DecodeAndValidate(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	result, err := h.service.Generate(r.Context(), services.GenerateRequest{
		TemplateID:       req.TemplateID,
		Window:           domain.Window{Start: time.UnixMilli(req.From), End: time.UnixMilli(req.To)},
		RequestedBy:      req.RequestedBy,
		AssignedReviewer: req.AssignedReviewer,
		ApproverRequired: req.ApproverRequired,
		AssignedApprover: req.AssignedApprover,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("X-Report-ID", strconv.FormatInt(result.ReportID, 10))
	writePDF(w, result.Artifact.Filename, result.Artifact.Bytes, "attachment")
}

// List handles GET /api/reports.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	reports, err := h.service.List(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{
		"reports": reports,
		"count":   len(reports),
	})
}

// Get handles GET /api/reports/{id}, returning the audit record without
// the artifact bytes.
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, _ := reportID(r)
	report, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	report.PDF = nil
	render.JSON(w, r, report)
}

// View handles GET /api/reports/{id}/view, serving the PDF inline.
func (h *ReportHandler) View(w http.ResponseWriter, r *http.Request) {
	h.servePDF(w, r, "inline")
}

// Download handles GET /api/reports/{id}/download, serving the PDF as an
// attachment.
func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	h.servePDF(w, r, "attachment")
}

func (h *ReportHandler) servePDF(w http.ResponseWriter, r *http.Request, disposition string) {
	id, _ := reportID(r)
	report, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	writePDF(w, report.Name, report.PDF, disposition)
}

type stampRequest struct {
	By string `json:"by" validate:"required"`
}

// Review handles PUT /api/reports/{id}/review.
func (h *ReportHandler) Review(w http.ResponseWriter, r *http.Request) {
	h.stamp(w, r, h.service.Review)
}

// Approve handles PUT /api/reports/{id}/approve.
func (h *ReportHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.stamp(w, r, h.service.Approve)
}

func (h *ReportHandler) stamp(w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, id int64, by string) (*domain.StoredReport, error)) {

	id, _ := reportID(r)
	var req stampRequest
	if err := h.validation.DecodeAndValidate(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	report, err := apply(r.Context(), id, req.By)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	report.PDF = nil
	render.JSON(w, r, report)
}

// ExportCSV handles GET /api/reports/export/csv.
func (h *ReportHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	table, name, err := h.exportTable(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.csv"`)
	if err := exporter.WriteCSV(w, table, exporter.CSVOptions{BOMPrefix: true}); err != nil {
		h.logger.ErrorContext(r.Context(), "csv export failed", slog.String("error", err.Error()))
	}
}

// ExportXLSX handles GET /api/reports/export/xlsx.
func (h *ReportHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	table, name, err := h.exportTable(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.xlsx"`)
	if err := exporter.WriteXLSX(w, table); err != nil {
		h.logger.ErrorContext(r.Context(), "xlsx export failed", slog.String("error", err.Error()))
	}
}

// exportTable resolves the template and window query parameters and loads
// the materialized rows for export.
func (h *ReportHandler) exportTable(r *http.Request) (*exporter.Table, string, error) {
	templateID, err := strconv.ParseInt(r.URL.Query().Get("template_id"), 10, 64)
	if err != nil {
		return nil, "", apierrors.ErrValidation("template_id", "template_id must be a numeric id")
	}
	window, err := parseWindow(r)
	if err != nil {
		return nil, "", err
	}

	tmpl, err := h.data.GetTemplate(r.Context(), templateID)
	if err != nil {
		return nil, "", err
	}

	rows, err := h.service.MergedRows(r.Context(), window)
	if err != nil {
		return nil, "", err
	}

	name := strings.TrimSuffix(report.Filename(tmpl.Name), ".pdf")
	return exporter.BuildTable(tmpl.BaseNames(), rows), name, nil
}

// parseWindow reads the from/to query parameters as epoch milliseconds.
func parseWindow(r *http.Request) (domain.Window, error) {
	start, err := timeseries.ParseMillis(r.URL.Query().Get("from"))
	if err != nil {
		return domain.Window{}, err
	}
	end, err := timeseries.ParseMillis(r.URL.Query().Get("to"))
	if err != nil {
		return domain.Window{}, err
	}
	return domain.Window{Start: start, End: end}, nil
}

func writePDF(w http.ResponseWriter, filename string, data []byte, disposition string) {
	if !strings.HasSuffix(filename, ".pdf") {
		filename += ".pdf"
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", disposition+`; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

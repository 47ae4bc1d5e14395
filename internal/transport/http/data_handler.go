package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "emspulse/internal/errors"
	"emspulse/internal/importer"
	"emspulse/internal/middleware"
	"emspulse/pkg/contracts/domain"
)

// DataHandler serves template management and raw reading ingestion.
type DataHandler struct {
	service      DataServiceInterface
	importer     *importer.Importer
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validation   *middleware.ValidationMiddleware
}

// NewDataHandler creates the handler.
func NewDataHandler(service DataServiceInterface, logger *slog.Logger,
	errorHandler *apierrors.ErrorHandler, validation *middleware.ValidationMiddleware) *DataHandler {

	return &DataHandler{
		service:      service,
		importer:     importer.New(logger),
		logger:       logger.With(slog.String("component", "data_handler")),
		errorHandler: errorHandler,
		validation:   validation,
	}
}

// Routes returns the template and ingestion routes.
func (h *DataHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/templates", h.CreateTemplate)
	r.Get("/templates", h.ListTemplates)
	r.Get("/templates/{id}", h.GetTemplate)

	r.Post("/readings", h.IngestReadings)
	r.Post("/readings/upload", h.UploadReadings)

	return r
}

type createTemplateRequest struct {
	Name           string   `json:"name" validate:"required"`
	ReportGroup    string   `json:"report_group,omitempty"`
	RoomID         string   `json:"room_id,omitempty"`
	RoomName       string   `json:"room_name,omitempty"`
	AdditionalInfo string   `json:"additional_info,omitempty"`
	Parameters     []string `json:"parameters" validate:"required,min=1,dive,required"`
}

// CreateTemplate handles POST /api/data/templates.
func (h *DataHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := h.validation.DecodeAndValidate(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	id, err := h.service.CreateTemplate(r.Context(), &domain.Template{
		Name:           req.Name,
		ReportGroup:    req.ReportGroup,
		RoomID:         req.RoomID,
		RoomName:       req.RoomName,
		AdditionalInfo: req.AdditionalInfo,
		Parameters:     req.Parameters,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]any{"id": id})
}

// ListTemplates handles GET /api/data/templates.
func (h *DataHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.service.ListTemplates(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{
		"templates": templates,
		"count":     len(templates),
	})
}

// GetTemplate handles GET /api/data/templates/{id}.
func (h *DataHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("id", fmt.Sprintf("invalid template id %q", raw)))
		return
	}

	tmpl, err := h.service.GetTemplate(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, tmpl)
}

type ingestRequest struct {
	Series   string          `json:"series" validate:"required,seriesname"`
	Readings []ingestReading `json:"readings" validate:"required,min=1,dive"`
}

type ingestReading struct {
	Timestamp int64   `json:"timestamp" validate:"required"`
	Value     float64 `json:"value"`
}

// IngestReadings handles POST /api/data/readings. Timestamps are unix
// epoch milliseconds.
func (h *DataHandler) IngestReadings(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := h.validation.DecodeAndValidate(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	samples := make([]domain.Sample, len(req.Readings))
	for i, reading := range req.Readings {
		samples[i] = domain.Sample{
			Timestamp: time.UnixMilli(reading.Timestamp),
			Value:     reading.Value,
		}
	}

	if err := h.service.IngestReadings(r.Context(), req.Series, samples); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]any{
		"series":   req.Series,
		"accepted": len(samples),
	})
}

// Upload size cap for reading exports.
const maxUploadBytes = 32 << 20

// UploadReadings handles POST /api/data/readings/upload: a multipart CSV
// or XLSX logger export, ingested in bulk.
func (h *DataHandler) UploadReadings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "request is not valid multipart form data"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "missing file field"))
		return
	}
	defer file.Close()

	result, err := h.importer.Parse(file, header.Filename)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", err.Error()))
		return
	}

	accepted := make(map[string]int, len(result.Series))
	for series, samples := range result.Series {
		if err := h.service.IngestReadings(r.Context(), series, samples); err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		accepted[series] = len(samples)
	}

	h.logger.InfoContext(r.Context(), "export ingested",
		slog.String("filename", header.Filename),
		slog.Int("series", len(accepted)),
		slog.Int("skipped", result.Skipped))

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]any{
		"accepted": accepted,
		"skipped":  result.Skipped,
	})
}

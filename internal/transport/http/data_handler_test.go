package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "emspulse/internal/errors"
	"emspulse/internal/middleware"
	"emspulse/pkg/contracts/domain"
)

func newDataHandler(data *fakeDataService) *DataHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eh := apierrors.NewErrorHandler(logger, false)
	return NewDataHandler(data, logger, eh, middleware.NewValidationMiddleware(logger, eh))
}

func TestCreateTemplateEndpoint(t *testing.T) {
	data := &fakeDataService{}
	h := newDataHandler(data)

	body := `{"name":"Lab A","room_name":"Lab A","parameters":["Temp_From_10_To_30_Unit_C"]}`
	req := httptest.NewRequest(http.MethodPost, "/templates", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Positive(t, got.ID)
	require.Len(t, data.templates, 1)
	assert.Equal(t, "Lab A", data.templates[got.ID].Name)
}

func TestCreateTemplateEndpoint_NoParameters(t *testing.T) {
	h := newDataHandler(&fakeDataService{})

	req := httptest.NewRequest(http.MethodPost, "/templates", strings.NewReader(`{"name":"Lab A","parameters":[]}`))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTemplateEndpoint(t *testing.T) {
	data := &fakeDataService{templates: map[int64]*domain.Template{
		5: {ID: 5, Name: "Lab B", Parameters: []string{"Temp_Unit_C"}},
	}}
	h := newDataHandler(data)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/templates/5", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.Template
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Lab B", got.Name)
}

func TestGetTemplateEndpoint_NotFound(t *testing.T) {
	h := newDataHandler(&fakeDataService{templates: map[int64]*domain.Template{}})

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/templates/404", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIngestReadingsEndpoint(t *testing.T) {
	data := &fakeDataService{}
	h := newDataHandler(data)

	body := `{"series":"Temp","readings":[{"timestamp":1772704800000,"value":21.5},{"timestamp":1772704860500,"value":22}]}`
	req := httptest.NewRequest(http.MethodPost, "/readings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	samples := data.ingested["Temp"]
	require.Len(t, samples, 2)
	assert.Equal(t, time.UnixMilli(1772704800000), samples[0].Timestamp)
	assert.Equal(t, 21.5, samples[0].Value)
}

func TestUploadReadingsEndpoint(t *testing.T) {
	data := &fakeDataService{}
	h := newDataHandler(data)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "export.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("Timestamp,Temp,Humidity\n1772704800000,21.5,45\n1772705700000,22,46\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/readings/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Len(t, data.ingested["Temp"], 2)
	assert.Len(t, data.ingested["Humidity"], 2)
}

func TestUploadReadingsEndpoint_MissingFile(t *testing.T) {
	h := newDataHandler(&fakeDataService{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/readings/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestReadingsEndpoint_BadSeriesName(t *testing.T) {
	h := newDataHandler(&fakeDataService{})

	body := `{"series":"9temp!","readings":[{"timestamp":1772704800000,"value":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/readings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

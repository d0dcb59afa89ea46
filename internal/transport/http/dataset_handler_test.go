package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equiviz/internal/domain"
	apierrors "equiviz/internal/errors"
	"equiviz/internal/middleware"
	"equiviz/internal/services"
)

type fakeDatasetService struct {
	uploadResult *services.UploadResult
	uploadErr    error
	uploadedName string
	uploadedBody []byte

	listResult []domain.DatasetMeta
	detail     *domain.Dataset
	summary    *domain.Summary
	export     *services.ExportResult
	err        error

	deletedID int64
}

func (f *fakeDatasetService) Upload(ctx context.Context, identity domain.Identity, fileName string, file io.Reader) (*services.UploadResult, error) {
	f.uploadedName = fileName
	f.uploadedBody, _ = io.ReadAll(file)
	return f.uploadResult, f.uploadErr
}

func (f *fakeDatasetService) List(ctx context.Context, identity domain.Identity) ([]domain.DatasetMeta, error) {
	return f.listResult, f.err
}

func (f *fakeDatasetService) Detail(ctx context.Context, identity domain.Identity, id int64) (*domain.Dataset, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.detail, nil
}

func (f *fakeDatasetService) Summary(ctx context.Context, identity domain.Identity, id int64) (*domain.Summary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

func (f *fakeDatasetService) Delete(ctx context.Context, identity domain.Identity, id int64) error {
	f.deletedID = id
	return f.err
}

func (f *fakeDatasetService) RenderPDF(ctx context.Context, identity domain.Identity, id int64) (*services.ExportResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.export, nil
}

func (f *fakeDatasetService) RenderXLSX(ctx context.Context, identity domain.Identity, id int64) (*services.ExportResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.export, nil
}

func testRouter(service DatasetServiceInterface, authenticated bool) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewDatasetHandler(service, logger, apierrors.NewErrorHandler(logger), nil, 1<<20)

	r := chi.NewRouter()
	if authenticated {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := middleware.WithIdentity(req.Context(), domain.Identity{UserID: 1, Username: "alice"})
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
	}
	r.Mount("/api", handler.Routes())
	return r
}

func multipartBody(t *testing.T, field, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, fileName)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestDatasetHandler_Upload(t *testing.T) {
	service := &fakeDatasetService{
		uploadResult: &services.UploadResult{
			DatasetID: 42,
			Summary: &domain.Summary{
				TotalCount:       1,
				TypeDistribution: map[string]int{"Pump": 1},
			},
		},
	}
	router := testRouter(service, true)

	body, contentType := multipartBody(t, "file", "plant.csv", "Equipment Name,Type\n")
	r := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "plant.csv", service.uploadedName)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(42), resp["dataset_id"])
	assert.NotNil(t, resp["summary"])
}

func TestDatasetHandler_Upload_NoFile(t *testing.T) {
	router := testRouter(&fakeDatasetService{}, true)

	body, contentType := multipartBody(t, "document", "plant.csv", "data")
	r := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No file provided")
}

func TestDatasetHandler_Upload_ValidationError(t *testing.T) {
	service := &fakeDatasetService{
		uploadErr: domain.NewValidationError("Missing required columns: Pressure"),
	}
	router := testRouter(service, true)

	body, contentType := multipartBody(t, "file", "plant.csv", "bad")
	r := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Missing required columns: Pressure")
}

func TestDatasetHandler_Unauthenticated(t *testing.T) {
	router := testRouter(&fakeDatasetService{}, false)

	r := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDatasetHandler_List_EmptyIsArray(t *testing.T) {
	router := testRouter(&fakeDatasetService{}, true)

	r := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", string(bytes.TrimSpace(w.Body.Bytes())))
}

func TestDatasetHandler_Detail_NotFound(t *testing.T) {
	service := &fakeDatasetService{err: &domain.NotFoundError{Resource: "Dataset"}}
	router := testRouter(service, true)

	r := httptest.NewRequest(http.MethodGet, "/api/datasets/99", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Dataset not found")
}

func TestDatasetHandler_Detail_MalformedID(t *testing.T) {
	router := testRouter(&fakeDatasetService{}, true)

	r := httptest.NewRequest(http.MethodGet, "/api/datasets/abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	// A malformed ID is indistinguishable from a missing dataset.
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDatasetHandler_Summary(t *testing.T) {
	service := &fakeDatasetService{
		summary: &domain.Summary{
			TotalCount:       3,
			AvgFlowrate:      11.67,
			TypeDistribution: map[string]int{"Pump": 2, "Valve": 1},
			TypeStats: map[string]domain.TypeStat{
				"Pump": {Count: 2, AvgTemperature: 75.0, AvgPressure: 6.0},
			},
		},
	}
	router := testRouter(service, true)

	r := httptest.NewRequest(http.MethodGet, "/api/summary/1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(3), resp["total_count"])
	assert.Equal(t, float64(11.67), resp["avg_flowrate"])
	assert.NotNil(t, resp["type_stats"])
}

func TestDatasetHandler_PDF(t *testing.T) {
	service := &fakeDatasetService{
		export: &services.ExportResult{
			FileName:    "report_plant.csv.pdf",
			ContentType: "application/pdf",
			Data:        []byte("%PDF-1.3 fake"),
		},
	}
	router := testRouter(service, true)

	r := httptest.NewRequest(http.MethodGet, "/api/pdf/1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="report_plant.csv.pdf"`, w.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}

func TestDatasetHandler_ExportXLSX(t *testing.T) {
	service := &fakeDatasetService{
		export: &services.ExportResult{
			FileName:    "export_plant.xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        []byte("PK fake"),
		},
	}
	router := testRouter(service, true)

	r := httptest.NewRequest(http.MethodGet, "/api/export/1.xlsx", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="export_plant.xlsx"`, w.Header().Get("Content-Disposition"))
}

func TestDatasetHandler_Delete(t *testing.T) {
	service := &fakeDatasetService{}
	router := testRouter(service, true)

	r := httptest.NewRequest(http.MethodDelete, "/api/datasets/7", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, int64(7), service.deletedID)
}

package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"equiviz/internal/domain"
	apierrors "equiviz/internal/errors"
	"equiviz/internal/infrastructure"
	"equiviz/internal/middleware"
	"equiviz/internal/services"
)

// DatasetHandler serves the dataset endpoints: upload, listing,
// detail, summary, report downloads, and deletion. Every route
// requires an authenticated identity in the request context.
type DatasetHandler struct {
	service      DatasetServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	metrics      *infrastructure.Metrics
	maxBytes     int64
}

// NewDatasetHandler creates a new dataset handler. metrics may be nil
// in tests.
func NewDatasetHandler(service DatasetServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler, metrics *infrastructure.Metrics, maxBytes int64) *DatasetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DatasetHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "dataset_handler")),
		errorHandler: errorHandler,
		metrics:      metrics,
		maxBytes:     maxBytes,
	}
}

// Routes returns the dataset routes
func (h *DatasetHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/upload", h.Upload)
	r.Get("/datasets", h.List)
	r.Get("/datasets/{datasetID}", h.Detail)
	r.Delete("/datasets/{datasetID}", h.Delete)
	r.Get("/summary/{datasetID}", h.Summary)
	r.Get("/pdf/{datasetID}", h.PDF)
	r.Get("/export/{datasetID}.xlsx", h.ExportXLSX)

	return r
}

// Upload handles POST /api/upload. The request carries the file as
// multipart form data under the "file" field.
func (h *DatasetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok {
		h.errorHandler.HandleError(w, r, apierrors.ErrUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		// The multipart reader does not always wrap MaxBytesError, so
		// match on the message as well.
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) || strings.Contains(err.Error(), "request body too large") {
			h.errorHandler.HandleError(w, r, apierrors.PayloadTooLarge("File exceeds the upload limit"))
			return
		}
		h.errorHandler.HandleError(w, r, services.ErrMissingFile)
		return
	}
	defer file.Close()

	result, err := h.service.Upload(ctx, identity, header.Filename, file)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "dataset uploaded",
		slog.Int64("dataset_id", result.DatasetID),
		slog.String("file_name", header.Filename),
		slog.Int64("user_id", identity.UserID),
	)
	if h.metrics != nil {
		h.metrics.DatasetUploadsTotal.Add(ctx, 1)
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, result)
}

// List handles GET /api/datasets
func (h *DatasetHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok {
		h.errorHandler.HandleError(w, r, apierrors.ErrUnauthorized)
		return
	}

	metas, err := h.service.List(ctx, identity)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if metas == nil {
		metas = []domain.DatasetMeta{}
	}
	render.JSON(w, r, metas)
}

// Detail handles GET /api/datasets/{datasetID}
func (h *DatasetHandler) Detail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, id, err := h.requestScope(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	ds, err := h.service.Detail(ctx, identity, id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, ds)
}

// Summary handles GET /api/summary/{datasetID}
func (h *DatasetHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, id, err := h.requestScope(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	summary, err := h.service.Summary(ctx, identity, id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, summary)
}

// Delete handles DELETE /api/datasets/{datasetID}
func (h *DatasetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, id, err := h.requestScope(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if err := h.service.Delete(ctx, identity, id); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "dataset deleted",
		slog.Int64("dataset_id", id),
		slog.Int64("user_id", identity.UserID),
	)
	render.NoContent(w, r)
}

// PDF handles GET /api/pdf/{datasetID}
func (h *DatasetHandler) PDF(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, "pdf", h.service.RenderPDF)
}

// ExportXLSX handles GET /api/export/{datasetID}.xlsx
func (h *DatasetHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, "xlsx", h.service.RenderXLSX)
}

type renderFunc func(ctx context.Context, identity domain.Identity, id int64) (*services.ExportResult, error)

func (h *DatasetHandler) download(w http.ResponseWriter, r *http.Request, format string, fn renderFunc) {
	ctx := r.Context()
	identity, id, err := h.requestScope(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	export, err := fn(ctx, identity, id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if h.metrics != nil {
		h.metrics.ReportRendersTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("format", format)))
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(export.Data)
}

// requestScope resolves the caller identity and the dataset ID from
// the route. A malformed ID reads the same as a missing dataset so the
// ID space leaks nothing.
func (h *DatasetHandler) requestScope(r *http.Request) (domain.Identity, int64, error) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return domain.Identity{}, 0, apierrors.ErrUnauthorized
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "datasetID"), 10, 64)
	if err != nil || id < 1 {
		return domain.Identity{}, 0, apierrors.NotFound("Dataset")
	}
	return identity, id, nil
}

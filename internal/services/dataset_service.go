package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"equiviz/internal/dataprocessing"
	"equiviz/internal/domain"
	"equiviz/internal/report"
	"equiviz/internal/store"
)

// DatasetService runs the upload pipeline (ingest, summarize, persist,
// prune) and the read paths over stored datasets. Each call is one
// synchronous request-scoped cycle; the store is the only shared state.
type DatasetService struct {
	ingestor   *dataprocessing.Ingestor
	summarizer *dataprocessing.Summarizer
	datasets   *store.DatasetStore
	renderer   *report.Renderer
	logger     *slog.Logger
}

// NewDatasetService wires the pipeline components.
func NewDatasetService(
	ingestor *dataprocessing.Ingestor,
	summarizer *dataprocessing.Summarizer,
	datasets *store.DatasetStore,
	renderer *report.Renderer,
	logger *slog.Logger,
) *DatasetService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DatasetService{
		ingestor:   ingestor,
		summarizer: summarizer,
		datasets:   datasets,
		renderer:   renderer,
		logger:     logger.With(slog.String("component", "dataset_service")),
	}
}

// UploadResult is the successful upload payload.
type UploadResult struct {
	DatasetID int64           `json:"dataset_id"`
	Summary   *domain.Summary `json:"summary"`
}

// Upload ingests the file, computes its summary and persists both
// atomically together with the retention pruning. No partial writes: a
// validation failure leaves no dataset behind.
func (s *DatasetService) Upload(ctx context.Context, identity domain.Identity, fileName string, r io.Reader) (*UploadResult, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".xlsx":
	default:
		return nil, ErrInvalidFileType
	}

	table, err := s.ingestor.Ingest(ctx, fileName, r)
	if err != nil {
		return nil, err
	}

	summary := s.summarizer.Summarize(ctx, table)

	id, err := s.datasets.Create(ctx, identity.UserID, fileName, table, summary)
	if err != nil {
		return nil, fmt.Errorf("persist dataset: %w", err)
	}

	s.logger.InfoContext(ctx, "upload processed",
		slog.Int64("dataset_id", id),
		slog.Int64("owner_id", identity.UserID),
		slog.String("file_name", fileName),
		slog.Int("row_count", summary.TotalCount))

	return &UploadResult{DatasetID: id, Summary: summary}, nil
}

// List returns the caller's dataset history, newest first, capped at
// the retention limit.
func (s *DatasetService) List(ctx context.Context, identity domain.Identity) ([]domain.DatasetMeta, error) {
	return s.datasets.List(ctx, identity.UserID)
}

// Detail returns one dataset with its raw table.
func (s *DatasetService) Detail(ctx context.Context, identity domain.Identity, id int64) (*domain.Dataset, error) {
	return s.datasets.Get(ctx, id, identity.UserID)
}

// Summary returns the stored summary for a dataset. Records persisted
// before per-type stats existed get them derived from the raw table on
// the fly and written back so the derivation runs once.
func (s *DatasetService) Summary(ctx context.Context, identity domain.Identity, id int64) (*domain.Summary, error) {
	summary, err := s.datasets.GetSummary(ctx, id, identity.UserID)
	if err != nil {
		return nil, err
	}

	if len(summary.TypeStats) == 0 {
		ds, err := s.datasets.Get(ctx, id, identity.UserID)
		if err != nil {
			return nil, err
		}
		summary.TypeStats = s.summarizer.TypeStatsFromRawTable(ctx, ds.Table)
		if len(summary.TypeStats) > 0 {
			if err := s.datasets.UpdateTypeStats(ctx, id, summary.TypeStats); err != nil {
				// The derived stats are still served; persisting them is
				// an optimization, not a correctness requirement.
				s.logger.WarnContext(ctx, "failed to persist backfilled type stats",
					slog.Int64("dataset_id", id),
					slog.String("error", err.Error()))
			}
		}
	}

	return summary, nil
}

// Delete removes one dataset and its summary.
func (s *DatasetService) Delete(ctx context.Context, identity domain.Identity, id int64) error {
	return s.datasets.Delete(ctx, id, identity.UserID)
}

// ExportResult is a rendered report attachment.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
}

// RenderPDF produces the PDF report for a dataset.
func (s *DatasetService) RenderPDF(ctx context.Context, identity domain.Identity, id int64) (*ExportResult, error) {
	ds, summary, err := s.load(ctx, identity, id)
	if err != nil {
		return nil, err
	}

	data, err := s.renderer.PDF(ds, summary)
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	return &ExportResult{
		FileName:    fmt.Sprintf("report_%s.pdf", ds.FileName),
		ContentType: "application/pdf",
		Data:        data,
	}, nil
}

// RenderXLSX produces the spreadsheet export for a dataset.
func (s *DatasetService) RenderXLSX(ctx context.Context, identity domain.Identity, id int64) (*ExportResult, error) {
	ds, summary, err := s.load(ctx, identity, id)
	if err != nil {
		return nil, err
	}

	data, err := s.renderer.XLSX(ds, summary)
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}

	base := strings.TrimSuffix(ds.FileName, filepath.Ext(ds.FileName))
	return &ExportResult{
		FileName:    fmt.Sprintf("export_%s.xlsx", base),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        data,
	}, nil
}

// load fetches a dataset and its summary, backfilling type stats the
// same way the summary endpoint does so reports never miss them.
func (s *DatasetService) load(ctx context.Context, identity domain.Identity, id int64) (*domain.Dataset, *domain.Summary, error) {
	ds, err := s.datasets.Get(ctx, id, identity.UserID)
	if err != nil {
		return nil, nil, err
	}
	summary, err := s.Summary(ctx, identity, id)
	if err != nil {
		return nil, nil, err
	}
	return ds, summary, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"equiviz/internal/domain"
)

// DefaultKeep is the retention cap: each owner keeps at most this many
// of their most recently uploaded datasets.
const DefaultKeep = 5

// DatasetStore persists datasets and their summaries.
type DatasetStore struct {
	db     *sql.DB
	logger *slog.Logger
	keep   int
}

// NewDatasetStore creates a dataset store. keep <= 0 falls back to
// DefaultKeep.
func NewDatasetStore(db *sql.DB, logger *slog.Logger, keep int) *DatasetStore {
	if logger == nil {
		logger = slog.Default()
	}
	if keep <= 0 {
		keep = DefaultKeep
	}
	return &DatasetStore{
		db:     db,
		logger: logger.With(slog.String("component", "dataset_store")),
		keep:   keep,
	}
}

// Create persists a dataset with its summary and prunes the owner's
// history beyond the retention cap, all inside one transaction. The
// connection opens transactions with an immediate write lock, so two
// concurrent uploads by the same owner cannot both skip pruning.
func (s *DatasetStore) Create(ctx context.Context, ownerID int64, fileName string, table *domain.Table, summary *domain.Summary) (int64, error) {
	rawTable, err := json.Marshal(table)
	if err != nil {
		return 0, fmt.Errorf("marshal raw table: %w", err)
	}
	dist, err := json.Marshal(summary.TypeDistribution)
	if err != nil {
		return 0, fmt.Errorf("marshal type distribution: %w", err)
	}
	stats, err := json.Marshal(summary.TypeStats)
	if err != nil {
		return 0, fmt.Errorf("marshal type stats: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (owner_id, file_name, uploaded_at, raw_table) VALUES (?, ?, ?, ?)`,
		ownerID, fileName, time.Now().UTC(), string(rawTable))
	if err != nil {
		return 0, fmt.Errorf("insert dataset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("dataset id: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO summaries (dataset_id, total_count, avg_flowrate, avg_pressure, avg_temperature, type_distribution, type_stats)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, summary.TotalCount, summary.AvgFlowrate, summary.AvgPressure, summary.AvgTemperature,
		string(dist), string(stats))
	if err != nil {
		return 0, fmt.Errorf("insert summary: %w", err)
	}

	pruned, err := s.pruneTx(ctx, tx, ownerID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit dataset: %w", err)
	}

	s.logger.InfoContext(ctx, "dataset created",
		slog.Int64("dataset_id", id),
		slog.Int64("owner_id", ownerID),
		slog.String("file_name", fileName),
		slog.Int64("pruned", pruned))

	return id, nil
}

// pruneTx deletes all of the owner's datasets beyond the keep most
// recent, newest first by upload time then id. Summaries go with their
// datasets via the cascading foreign key.
func (s *DatasetStore) pruneTx(ctx context.Context, tx *sql.Tx, ownerID int64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM datasets
		 WHERE owner_id = ?
		   AND id NOT IN (
		       SELECT id FROM datasets
		       WHERE owner_id = ?
		       ORDER BY uploaded_at DESC, id DESC
		       LIMIT ?)`,
		ownerID, ownerID, s.keep)
	if err != nil {
		return 0, fmt.Errorf("prune datasets: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	return n, nil
}

// Get loads one dataset with its raw table, scoped to the owner. A
// dataset belonging to someone else is indistinguishable from a
// nonexistent one.
func (s *DatasetStore) Get(ctx context.Context, id, ownerID int64) (*domain.Dataset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, file_name, uploaded_at, raw_table
		 FROM datasets WHERE id = ? AND owner_id = ?`,
		id, ownerID)

	var (
		ds       domain.Dataset
		rawTable string
	)
	if err := row.Scan(&ds.ID, &ds.OwnerID, &ds.FileName, &ds.UploadedAt, &rawTable); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: "dataset"}
		}
		return nil, fmt.Errorf("select dataset: %w", err)
	}

	var table domain.Table
	if err := json.Unmarshal([]byte(rawTable), &table); err != nil {
		return nil, fmt.Errorf("unmarshal raw table: %w", err)
	}
	ds.Table = &table
	return &ds, nil
}

// GetSummary loads the stored summary for a dataset, scoped to the
// owner.
func (s *DatasetStore) GetSummary(ctx context.Context, id, ownerID int64) (*domain.Summary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT sm.total_count, sm.avg_flowrate, sm.avg_pressure, sm.avg_temperature,
		        sm.type_distribution, sm.type_stats
		 FROM summaries sm
		 JOIN datasets d ON d.id = sm.dataset_id
		 WHERE d.id = ? AND d.owner_id = ?`,
		id, ownerID)

	var (
		summary    domain.Summary
		distJSON   string
		statsJSON  string
	)
	err := row.Scan(&summary.TotalCount, &summary.AvgFlowrate, &summary.AvgPressure,
		&summary.AvgTemperature, &distJSON, &statsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: "summary"}
		}
		return nil, fmt.Errorf("select summary: %w", err)
	}

	if err := json.Unmarshal([]byte(distJSON), &summary.TypeDistribution); err != nil {
		return nil, fmt.Errorf("unmarshal type distribution: %w", err)
	}
	if err := json.Unmarshal([]byte(statsJSON), &summary.TypeStats); err != nil {
		return nil, fmt.Errorf("unmarshal type stats: %w", err)
	}
	return &summary, nil
}

// List returns the owner's datasets, newest first, at most the
// retention cap.
func (s *DatasetStore) List(ctx context.Context, ownerID int64) ([]domain.DatasetMeta, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_name, uploaded_at
		 FROM datasets
		 WHERE owner_id = ?
		 ORDER BY uploaded_at DESC, id DESC
		 LIMIT ?`,
		ownerID, s.keep)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	metas := []domain.DatasetMeta{}
	for rows.Next() {
		var m domain.DatasetMeta
		if err := rows.Scan(&m.ID, &m.FileName, &m.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan dataset row: %w", err)
		}
		metas = append(metas, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate datasets: %w", err)
	}
	return metas, nil
}

// Delete removes one dataset (and its summary, via cascade), scoped to
// the owner.
func (s *DatasetStore) Delete(ctx context.Context, id, ownerID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM datasets WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete dataset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if n == 0 {
		return &domain.NotFoundError{Resource: "dataset"}
	}

	s.logger.InfoContext(ctx, "dataset deleted",
		slog.Int64("dataset_id", id),
		slog.Int64("owner_id", ownerID))
	return nil
}

// UpdateTypeStats persists backfilled type stats for an existing
// summary so the derivation only runs once per old record.
func (s *DatasetStore) UpdateTypeStats(ctx context.Context, datasetID int64, stats map[string]domain.TypeStat) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal type stats: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE summaries SET type_stats = ? WHERE dataset_id = ?`, string(raw), datasetID)
	if err != nil {
		return fmt.Errorf("update type stats: %w", err)
	}
	return nil
}

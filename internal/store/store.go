// Package store persists users, datasets and their summaries in a
// SQLite database. The dataset/summary pair is created atomically with
// the per-owner retention pruning, so concurrent uploads cannot leave
// more than the configured number of datasets behind.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens (or creates) the SQLite database at path and runs all
// pending migrations. Foreign keys are enforced and transactions take
// the write lock immediately so the create+prune sequence serializes
// same-owner uploads.
func Open(path string, logger *slog.Logger) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite allows a single writer; pooling extra connections only
	// produces SQLITE_BUSY under write load.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	if logger != nil {
		logger.Info("database ready", slog.String("path", path))
	}
	return db, nil
}
